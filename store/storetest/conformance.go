// Package storetest holds a conformance suite every store.Store
// implementation is run against.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/pitabwire/lingua/resource"
	"github.com/pitabwire/lingua/store"
)

// ConformanceSuite exercises the store.Store contract. Open must return an
// empty store; it is called once per test.
type ConformanceSuite struct {
	suite.Suite

	Open func(t *testing.T) store.Store

	store store.Store
}

// Run executes the suite against stores produced by open.
func Run(t *testing.T, open func(t *testing.T) store.Store) {
	t.Helper()
	suite.Run(t, &ConformanceSuite{Open: open})
}

func (s *ConformanceSuite) SetupTest() {
	s.Require().NotNil(s.Open, "Open is required")
	s.store = s.Open(s.T())
	s.Require().NotNil(s.store)
}

func (s *ConformanceSuite) TearDownTest() {
	if s.store != nil {
		s.NoError(s.store.Close())
	}
}

func (s *ConformanceSuite) TestValueLifecycle() {
	ctx := context.Background()
	st := s.store

	missing, err := st.GetValue(ctx, "greeting", "en")
	s.Require().NoError(err)
	s.Nil(missing)

	s.Require().NoError(st.InsertValue(ctx, resource.Value{
		Key: "greeting", Locale: "en", Text: "Hello", Desc: "home screen",
	}))

	got, err := st.GetValue(ctx, "greeting", "en")
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal("Hello", got.Text)
	s.Equal("home screen", got.Desc)
	s.Equal("en", got.Locale)

	err = st.InsertValue(ctx, resource.Value{Key: "greeting", Locale: "en", Text: "Hi"})
	s.ErrorIs(err, store.ErrAlreadyExists)

	s.Require().NoError(st.UpdateValue(ctx, resource.Value{Key: "greeting", Locale: "en", Text: "Hey"}))
	got, err = st.GetValue(ctx, "greeting", "en")
	s.Require().NoError(err)
	s.Equal("Hey", got.Text)

	err = st.UpdateValue(ctx, resource.Value{Key: "absent", Locale: "en", Text: "x"})
	s.ErrorIs(err, store.ErrNotFound)

	s.Require().NoError(st.UpsertValue(ctx, resource.Value{Key: "greeting", Locale: "en", Text: "Yo"}))
	s.Require().NoError(st.UpsertValue(ctx, resource.Value{Key: "farewell", Locale: "en", Text: "Bye"}))
	got, err = st.GetValue(ctx, "greeting", "en")
	s.Require().NoError(err)
	s.Equal("Yo", got.Text)

	s.Require().NoError(st.DeleteValue(ctx, "greeting", "en"))
	s.Require().NoError(st.DeleteValue(ctx, "greeting", "en"))
	got, err = st.GetValue(ctx, "greeting", "en")
	s.Require().NoError(err)
	s.Nil(got)
}

func (s *ConformanceSuite) TestValueValidation() {
	ctx := context.Background()
	s.ErrorIs(s.store.InsertValue(ctx, resource.Value{Locale: "en", Text: "x"}), store.ErrKeyRequired)
	s.ErrorIs(s.store.UpsertValue(ctx, resource.Value{Key: "k", Text: "x"}), store.ErrLocaleRequired)
}

func (s *ConformanceSuite) TestGetAllValuesIsLocaleScoped() {
	ctx := context.Background()
	st := s.store

	for _, v := range []resource.Value{
		{Key: "a", Locale: "en", Text: "A"},
		{Key: "b", Locale: "en", Text: "B"},
		{Key: "a", Locale: "de", Text: "Ä"},
	} {
		s.Require().NoError(st.InsertValue(ctx, v))
	}

	values, err := st.GetAllValues(ctx, "en")
	s.Require().NoError(err)
	s.Len(values, 2)
	texts := map[string]string{}
	for _, v := range values {
		texts[v.Key] = v.Text
	}
	s.Equal(map[string]string{"a": "A", "b": "B"}, texts)

	values, err = st.GetAllValues(ctx, "fr")
	s.Require().NoError(err)
	s.Empty(values)

	locales, err := st.Locales(ctx)
	s.Require().NoError(err)
	s.ElementsMatch([]string{"en", "de"}, locales)
}

func (s *ConformanceSuite) TestArrayOrderIsPreserved() {
	ctx := context.Background()
	st := s.store

	items := []string{"zeta", "alpha", "mu", "alpha"}
	s.Require().NoError(st.InsertArray(ctx, resource.Array{Key: "days", Locale: "en", Items: items, Desc: "d"}))

	got, err := st.GetArray(ctx, "days", "en")
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(items, got.Items)
	s.Equal("d", got.Desc)

	s.ErrorIs(st.InsertArray(ctx, resource.Array{Key: "days", Locale: "en"}), store.ErrAlreadyExists)

	s.Require().NoError(st.UpdateArray(ctx, resource.Array{Key: "days", Locale: "en", Items: []string{"b", "a"}}))
	got, err = st.GetArray(ctx, "days", "en")
	s.Require().NoError(err)
	s.Equal([]string{"b", "a"}, got.Items)

	s.ErrorIs(st.UpdateArray(ctx, resource.Array{Key: "none", Locale: "en"}), store.ErrNotFound)

	s.Require().NoError(st.DeleteArray(ctx, "days", "en"))
	got, err = st.GetArray(ctx, "days", "en")
	s.Require().NoError(err)
	s.Nil(got)
}

func (s *ConformanceSuite) TestEmptyArray() {
	ctx := context.Background()
	s.Require().NoError(s.store.InsertArray(ctx, resource.Array{Key: "none", Locale: "en"}))

	got, err := s.store.GetArray(ctx, "none", "en")
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Empty(got.Items)
}

func (s *ConformanceSuite) TestPluralLifecycle() {
	ctx := context.Background()
	st := s.store

	plural := resource.NewPlural("items", "en",
		resource.PluralForm{Quantity: resource.QuantityOne, Text: "%d item"},
		resource.PluralForm{Quantity: resource.QuantityOther, Text: "%d items"},
	)
	s.Require().NoError(st.InsertPlural(ctx, plural))
	s.ErrorIs(st.InsertPlural(ctx, plural), store.ErrAlreadyExists)

	got, err := st.GetPlural(ctx, "items", "en")
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(plural.Quantities(), got.Quantities())

	updated := resource.NewPlural("items", "en",
		resource.PluralForm{Quantity: resource.QuantityZero, Text: "none"},
		resource.PluralForm{Quantity: resource.QuantityOther, Text: "many"},
	)
	s.Require().NoError(st.UpdatePlural(ctx, updated))
	got, err = st.GetPlural(ctx, "items", "en")
	s.Require().NoError(err)
	s.Equal(updated.Quantities(), got.Quantities())

	s.ErrorIs(st.UpdatePlural(ctx, resource.NewPlural("none", "en")), store.ErrNotFound)

	s.Require().NoError(st.DeletePlural(ctx, "items", "en"))
	got, err = st.GetPlural(ctx, "items", "en")
	s.Require().NoError(err)
	s.Nil(got)
}

func (s *ConformanceSuite) TestKindsAreSeparateNamespaces() {
	ctx := context.Background()
	st := s.store

	s.Require().NoError(st.InsertValue(ctx, resource.Value{Key: "colors", Locale: "en", Text: "Colors"}))
	s.Require().NoError(st.InsertArray(ctx, resource.Array{Key: "colors", Locale: "en", Items: []string{"red"}}))
	s.Require().NoError(st.InsertPlural(ctx, resource.NewPlural("colors", "en",
		resource.PluralForm{Quantity: resource.QuantityOther, Text: "colors"})))

	value, err := st.GetValue(ctx, "colors", "en")
	s.Require().NoError(err)
	s.Equal("Colors", value.Text)

	array, err := st.GetArray(ctx, "colors", "en")
	s.Require().NoError(err)
	s.Equal([]string{"red"}, array.Items)

	s.Require().NoError(st.DeleteArray(ctx, "colors", "en"))
	value, err = st.GetValue(ctx, "colors", "en")
	s.Require().NoError(err)
	s.NotNil(value)

	plural, err := st.GetPlural(ctx, "colors", "en")
	s.Require().NoError(err)
	s.NotNil(plural)
}

func (s *ConformanceSuite) TestCancelledContextIsFailure() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.store.GetValue(ctx, "greeting", "en")
	s.Require().Error(err)
	s.ErrorIs(err, store.ErrStoreFailure)
}
