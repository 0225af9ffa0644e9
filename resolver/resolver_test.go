package resolver_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/pitabwire/lingua/resolver"
	"github.com/pitabwire/lingua/resource"
	"github.com/pitabwire/lingua/store"
	"github.com/pitabwire/lingua/store/sqlite"
)

// countingStore records which locales were queried.
type countingStore struct {
	store.Store

	mu      sync.Mutex
	queried []string
	failOn  string
}

func (c *countingStore) record(locale string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queried = append(c.queried, locale)
	if c.failOn != "" && c.failOn == locale {
		return errors.New("connection reset")
	}
	return nil
}

func (c *countingStore) GetValue(ctx context.Context, key, locale string) (*resource.Value, error) {
	if err := c.record(locale); err != nil {
		return nil, err
	}
	return c.Store.GetValue(ctx, key, locale)
}

func (c *countingStore) GetArray(ctx context.Context, key, locale string) (*resource.Array, error) {
	if err := c.record(locale); err != nil {
		return nil, err
	}
	return c.Store.GetArray(ctx, key, locale)
}

func (c *countingStore) GetPlural(ctx context.Context, key, locale string) (*resource.Plural, error) {
	if err := c.record(locale); err != nil {
		return nil, err
	}
	return c.Store.GetPlural(ctx, key, locale)
}

type ResolverSuite struct {
	suite.Suite

	store *countingStore
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) SetupTest() {
	ctx := context.Background()
	backing, err := sqlite.Open(":memory:")
	s.Require().NoError(err)
	s.store = &countingStore{Store: backing}

	s.Require().NoError(backing.InsertValue(ctx, resource.Value{Key: "greeting", Locale: "en", Text: "Hello"}))
	s.Require().NoError(backing.InsertValue(ctx, resource.Value{Key: "greeting", Locale: "fr", Text: "Bonjour"}))
	s.Require().NoError(backing.InsertValue(ctx, resource.Value{Key: "farewell", Locale: "en", Text: "Goodbye"}))
	s.Require().NoError(backing.InsertArray(ctx, resource.Array{
		Key: "weekdays", Locale: "en", Items: []string{"Mon", "Tue", "Wed"},
	}))
	s.Require().NoError(backing.InsertPlural(ctx, resource.NewPlural("items", "en",
		resource.PluralForm{Quantity: resource.QuantityZero, Text: "no items"},
		resource.PluralForm{Quantity: resource.QuantityOne, Text: "one item"},
		resource.PluralForm{Quantity: resource.QuantityOther, Text: "many items"},
	)))
	s.Require().NoError(backing.InsertPlural(ctx, resource.NewPlural("broken", "en")))
}

func (s *ResolverSuite) TearDownTest() {
	s.NoError(s.store.Close())
}

func (s *ResolverSuite) TestResolveValue() {
	ctx := context.Background()
	r := resolver.New(s.store)

	testCases := []struct {
		name      string
		key       string
		env       resource.Environment
		wantText  string
		wantFound bool
		wantQuery []string
	}{
		{
			name:      "primary hit skips fallback",
			key:       "greeting",
			env:       resource.Environment{Locale: "fr", FallbackLocale: "en"},
			wantText:  "Bonjour",
			wantFound: true,
			wantQuery: []string{"fr"},
		},
		{
			name:      "falls back when primary misses",
			key:       "farewell",
			env:       resource.Environment{Locale: "fr", FallbackLocale: "en"},
			wantText:  "Goodbye",
			wantFound: true,
			wantQuery: []string{"fr", "en"},
		},
		{
			name:      "same fallback queried once",
			key:       "missing",
			env:       resource.DefaultEnvironment(),
			wantFound: false,
			wantQuery: []string{"en"},
		},
		{
			name:      "not found anywhere",
			key:       "missing",
			env:       resource.Environment{Locale: "de", FallbackLocale: "en"},
			wantFound: false,
			wantQuery: []string{"de", "en"},
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			s.store.queried = nil

			text, found, err := r.ResolveValue(ctx, tc.key, tc.env)
			s.Require().NoError(err)
			s.Equal(tc.wantFound, found)
			s.Equal(tc.wantText, text)
			s.Equal(tc.wantQuery, s.store.queried)
		})
	}
}

func (s *ResolverSuite) TestStoreFailureIsNotNotFound() {
	ctx := context.Background()
	r := resolver.New(s.store)

	s.store.failOn = "en"
	_, found, err := r.ResolveValue(ctx, "farewell", resource.Environment{Locale: "fr", FallbackLocale: "en"})
	s.False(found)
	s.Require().Error(err)
	s.ErrorIs(err, store.ErrStoreFailure)

	s.store.failOn = "fr"
	_, _, err = r.ResolveArray(ctx, "weekdays", resource.Environment{Locale: "fr", FallbackLocale: "en"})
	s.ErrorIs(err, store.ErrStoreFailure)
}

func (s *ResolverSuite) TestResolveArray() {
	ctx := context.Background()
	r := resolver.New(s.store)

	items, found, err := r.ResolveArray(ctx, "weekdays", resource.Environment{Locale: "es", FallbackLocale: "en"})
	s.Require().NoError(err)
	s.True(found)
	s.Equal([]string{"Mon", "Tue", "Wed"}, items)

	items, found, err = r.ResolveArray(ctx, "months", resource.DefaultEnvironment())
	s.Require().NoError(err)
	s.False(found)
	s.Nil(items)
}

func (s *ResolverSuite) TestResolvePlural() {
	ctx := context.Background()
	r := resolver.New(s.store)
	env := resource.Environment{Locale: "fr", FallbackLocale: "en"}

	for count, want := range map[int]string{0: "no items", 1: "one item", 2: "many items", 5: "many items"} {
		text, found, err := r.ResolvePlural(ctx, "items", count, env)
		s.Require().NoError(err)
		s.True(found)
		s.Equal(want, text, "count %d", count)
	}

	text, found, err := r.ResolvePlural(ctx, "broken", 3, env)
	s.Require().NoError(err)
	s.False(found)
	s.Empty(text)

	_, found, err = r.ResolvePlural(ctx, "absent", 3, env)
	s.Require().NoError(err)
	s.False(found)
}

func (s *ResolverSuite) TestResolveByKind() {
	ctx := context.Background()
	r := resolver.New(s.store, resolver.WithPluralPolicy(resource.PolicyCLDR))
	s.Equal(resource.PolicyCLDR, r.Policy())
	env := resource.Environment{Locale: "fr", FallbackLocale: "en"}

	res, found, err := r.Resolve(ctx, resource.KindValue, "greeting", env)
	s.Require().NoError(err)
	s.True(found)
	s.Equal(resource.Value{Key: "greeting", Locale: "fr", Text: "Bonjour"}, res)

	res, found, err = r.Resolve(ctx, resource.KindArray, "weekdays", env)
	s.Require().NoError(err)
	s.True(found)
	s.Equal(resource.KindArray, res.Kind())

	res, found, err = r.Resolve(ctx, resource.KindPlural, "items", env)
	s.Require().NoError(err)
	s.True(found)
	plural, ok := res.(resource.Plural)
	s.Require().True(ok)
	s.Equal("en", plural.Locale)

	_, found, err = r.Resolve(ctx, resource.KindValue, "missing", env)
	s.Require().NoError(err)
	s.False(found)

	_, _, err = r.Resolve(ctx, resource.Kind(9), "greeting", env)
	s.Error(err)
}
