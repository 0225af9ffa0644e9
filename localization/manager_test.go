package localization_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/pitabwire/lingua/locale"
	"github.com/pitabwire/lingua/localization"
	"github.com/pitabwire/lingua/remote"
	"github.com/pitabwire/lingua/resource"
	"github.com/pitabwire/lingua/store"
	"github.com/pitabwire/lingua/store/sqlite"
)

const waitTimeout = 2 * time.Second

// switchableStore fails value lookups while failing is set and slows them
// down by delay.
type switchableStore struct {
	store.Store
	failing atomic.Bool
	delay   atomic.Int64
}

func (s *switchableStore) GetValue(ctx context.Context, key, locale string) (*resource.Value, error) {
	if s.failing.Load() {
		return nil, store.Fail("get value", errors.New("disk unavailable"))
	}
	if d := time.Duration(s.delay.Load()); d > 0 {
		select {
		case <-ctx.Done():
			return nil, store.Fail("get value", ctx.Err())
		case <-time.After(d):
		}
	}
	return s.Store.GetValue(ctx, key, locale)
}

type brokenFetcher struct{}

func (brokenFetcher) FetchStrings(_ context.Context, l string) (map[string]string, error) {
	return nil, &remote.FetchError{Locale: l, StatusCode: 500, Err: errors.New("boom")}
}

type ManagerSuite struct {
	suite.Suite

	ctx    context.Context
	store  *switchableStore
	source *locale.SettableSource
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	s.ctx = context.Background()

	backing, err := sqlite.Open(":memory:")
	s.Require().NoError(err)
	s.store = &switchableStore{Store: backing}
	s.source = locale.NewSettableSource(resource.NewLocale("en"))

	for _, v := range []resource.Value{
		{Key: "greeting", Locale: "en", Text: "Hello"},
		{Key: "farewell", Locale: "en", Text: "Goodbye"},
		{Key: "greeting", Locale: "de", Text: "Hallo"},
	} {
		s.Require().NoError(s.store.InsertValue(s.ctx, v))
	}
	s.Require().NoError(s.store.InsertArray(s.ctx, resource.Array{
		Key: "weekdays", Locale: "en", Items: []string{"Mon", "Tue"},
	}))
	s.Require().NoError(s.store.InsertPlural(s.ctx, resource.NewPlural("apples", "en",
		resource.PluralForm{Quantity: resource.QuantityOne, Text: "one apple"},
		resource.PluralForm{Quantity: resource.QuantityOther, Text: "many apples"},
	)))
}

func (s *ManagerSuite) TearDownTest() {
	s.source.Close()
	s.NoError(s.store.Close())
}

func (s *ManagerSuite) newManager(opts ...localization.Option) *localization.Manager {
	opts = append([]localization.Option{
		localization.WithStore(s.store),
		localization.WithSource(s.source),
	}, opts...)

	m, err := localization.NewManager(s.ctx, opts...)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = m.Shutdown(context.Background()) })
	return m
}

// waitForLocale reads ch until want arrives.
func (s *ManagerSuite) waitForLocale(ch <-chan resource.LocaleInfo, want string) {
	deadline := time.After(waitTimeout)
	for {
		select {
		case got, ok := <-ch:
			s.Require().True(ok, "locale stream closed before %s", want)
			if got.String() == want {
				return
			}
		case <-deadline:
			s.FailNow("timed out waiting for locale " + want)
		}
	}
}

func (s *ManagerSuite) receiveString(ch <-chan string) string {
	select {
	case v, ok := <-ch:
		s.Require().True(ok, "string stream closed")
		return v
	case <-time.After(waitTimeout):
		s.FailNow("timed out waiting for string")
		return ""
	}
}

func (s *ManagerSuite) TestRequiresStore() {
	_, err := localization.NewManager(s.ctx, localization.WithSource(s.source))
	s.ErrorIs(err, localization.ErrStoreRequired)
}

func (s *ManagerSuite) TestInvalidCacheSize() {
	_, err := localization.NewManager(s.ctx,
		localization.WithStore(s.store),
		localization.WithSource(s.source),
		localization.WithCacheSize(0),
	)
	s.Error(err)
}

func (s *ManagerSuite) TestInitTwice() {
	m := s.newManager()
	s.Require().NoError(m.Init(s.ctx))
	s.ErrorIs(m.Init(s.ctx), localization.ErrAlreadyInitialized)
}

func (s *ManagerSuite) TestCapturesLocaleAtConstruction() {
	s.source.Set(resource.NewLocale("de"))
	m := s.newManager()

	s.Equal("de", m.CurrentLocale().String())
	s.Equal(resource.Environment{Locale: "de", FallbackLocale: "en"}, m.Environment())
}

func (s *ManagerSuite) TestGetStringWithFallback() {
	s.source.Set(resource.NewLocale("de"))
	m := s.newManager()

	s.Equal("Hallo", m.GetString(s.ctx, "greeting"))
	s.Equal("Goodbye", m.GetString(s.ctx, "farewell"))
}

func (s *ManagerSuite) TestNoFallbackLocale() {
	s.source.Set(resource.NewLocale("de"))
	m := s.newManager(localization.WithFallbackLocale(resource.LocaleInfo{}))

	s.Equal("farewell", m.GetString(s.ctx, "farewell"))
}

func (s *ManagerSuite) TestMissingKeyReturnsKey() {
	m := s.newManager()
	s.Equal("does.not.exist", m.GetString(s.ctx, "does.not.exist"))
}

func (s *ManagerSuite) TestStoreFailureIsNotCached() {
	m := s.newManager()

	s.store.failing.Store(true)
	s.Equal("greeting", m.GetString(s.ctx, "greeting"))

	s.store.failing.Store(false)
	s.Equal("Hello", m.GetString(s.ctx, "greeting"))
}

func (s *ManagerSuite) TestLocaleSwitch() {
	m := s.newManager()
	s.Require().NoError(m.Init(s.ctx))
	s.Equal("Hello", m.GetString(s.ctx, "greeting"))

	notified := make(chan struct{}, 16)
	sub := m.OnRefresh("greeting", func() { notified <- struct{}{} })
	defer sub.Close()

	locales := m.ObserveLocale(s.ctx)
	s.source.Set(resource.NewLocale("de"))
	s.waitForLocale(locales, "de")

	s.Equal("de", m.CurrentLocale().String())
	s.Equal("Hallo", m.GetString(s.ctx, "greeting"))
	s.Equal("Goodbye", m.GetString(s.ctx, "farewell"))

	select {
	case <-notified:
	case <-time.After(waitTimeout):
		s.Fail("refresh callback not called")
	}
}

func (s *ManagerSuite) TestSameLocaleDoesNotNotify() {
	m := s.newManager()
	s.Require().NoError(m.Init(s.ctx))
	s.Require().NoError(m.Refresh(s.ctx))
	s.Equal("Hello", m.GetString(s.ctx, "greeting"))

	var calls atomic.Int32
	sub := m.OnRefresh("greeting", func() { calls.Add(1) })
	defer sub.Close()

	s.source.Set(resource.NewLocale("en"))
	s.source.Set(resource.NewLocale("en"))
	time.Sleep(100 * time.Millisecond)

	s.Zero(calls.Load())
	s.Equal("Hello", m.GetString(s.ctx, "greeting"))
}

func (s *ManagerSuite) TestObserveString() {
	m := s.newManager()
	s.Require().NoError(m.Init(s.ctx))

	ctx, cancel := context.WithCancel(s.ctx)
	values := m.ObserveString(ctx, "greeting")
	s.Equal("Hello", s.receiveString(values))

	s.source.Set(resource.NewLocale("de"))
	s.Equal("Hallo", s.receiveString(values))

	cancel()
	s.Eventually(func() bool {
		select {
		case _, ok := <-values:
			return !ok
		default:
			return false
		}
	}, waitTimeout, 10*time.Millisecond)
}

func (s *ManagerSuite) TestApplyUpdate() {
	m := s.newManager()
	s.Equal("Hello", m.GetString(s.ctx, "greeting"))

	notified := make(chan struct{}, 4)
	sub := m.OnRefresh("greeting", func() { notified <- struct{}{} })
	defer sub.Close()

	s.Require().NoError(m.ApplyUpdate(s.ctx, resource.Value{Key: "greeting", Locale: "en", Text: "Hi"}))
	s.Equal("Hi", m.GetString(s.ctx, "greeting"))

	select {
	case <-notified:
	case <-time.After(waitTimeout):
		s.Fail("refresh callback not called")
	}

	stored, err := s.store.GetValue(s.ctx, "greeting", "en")
	s.Require().NoError(err)
	s.Equal("Hi", stored.Text)
}

func (s *ManagerSuite) TestApplyUpdateToFallback() {
	s.source.Set(resource.NewLocale("de"))
	m := s.newManager()
	s.Equal("Goodbye", m.GetString(s.ctx, "farewell"))

	s.Require().NoError(m.ApplyUpdate(s.ctx, resource.Value{Key: "farewell", Locale: "en", Text: "Bye"}))
	s.Equal("Bye", m.GetString(s.ctx, "farewell"))
}

func (s *ManagerSuite) TestApplyUpdateOtherLocale() {
	m := s.newManager()

	s.Require().NoError(m.ApplyUpdate(s.ctx, resource.Value{Key: "farewell", Locale: "fr", Text: "Au revoir"}))
	s.Equal("Goodbye", m.GetString(s.ctx, "farewell"))

	stored, err := s.store.GetValue(s.ctx, "farewell", "fr")
	s.Require().NoError(err)
	s.Equal("Au revoir", stored.Text)
}

func (s *ManagerSuite) TestApplyUpdateNormalisesLocale() {
	m := s.newManager()

	s.Require().NoError(m.ApplyUpdate(s.ctx, resource.Value{Key: "greeting", Locale: "en-US", Text: "Howdy"}))
	s.Equal("Howdy", m.GetString(s.ctx, "greeting"))

	stored, err := s.store.GetValue(s.ctx, "greeting", "en")
	s.Require().NoError(err)
	s.Require().NotNil(stored)
	s.Equal("Howdy", stored.Text)

	s.Require().NoError(m.Refresh(s.ctx))
	s.Equal("Howdy", m.GetString(s.ctx, "greeting"))
}

func (s *ManagerSuite) TestApplyUpdateRejectsInvalid() {
	m := s.newManager()
	s.ErrorIs(m.ApplyUpdate(s.ctx, resource.Value{Locale: "en", Text: "x"}), store.ErrKeyRequired)
	s.ErrorIs(m.ApplyUpdate(s.ctx, resource.Value{Key: "greeting", Text: "x"}), store.ErrLocaleRequired)
}

func (s *ManagerSuite) TestCancelledReaderDoesNotDegradeOthers() {
	m := s.newManager()
	s.store.delay.Store(int64(100 * time.Millisecond))

	shortCtx, cancel := context.WithTimeout(s.ctx, 20*time.Millisecond)
	defer cancel()

	var wg sync.WaitGroup
	var short, healthy string
	wg.Add(2)
	go func() {
		defer wg.Done()
		short = m.GetString(shortCtx, "greeting")
	}()
	go func() {
		defer wg.Done()
		healthy = m.GetString(s.ctx, "greeting")
	}()
	wg.Wait()

	s.Equal("greeting", short)
	s.Equal("Hello", healthy)

	s.store.delay.Store(0)
	s.Equal("Hello", m.GetString(s.ctx, "greeting"))
}

func (s *ManagerSuite) TestFetchedStringsOverlayStore() {
	fetcher := remote.NewStaticFetcher(map[string]map[string]string{
		"en": {"greeting": "Howdy", "remote.only": "From afar"},
	})
	m := s.newManager(
		localization.WithFetcher(fetcher),
		localization.WithPersistFetched(true),
	)
	s.Require().NoError(m.Init(s.ctx))
	s.Require().NoError(m.Refresh(s.ctx))

	s.Equal("Howdy", m.GetString(s.ctx, "greeting"))
	s.Equal("From afar", m.GetString(s.ctx, "remote.only"))

	stored, err := s.store.GetValue(s.ctx, "remote.only", "en")
	s.Require().NoError(err)
	s.Require().NotNil(stored)
	s.Equal("From afar", stored.Text)
}

func (s *ManagerSuite) TestFetchFailureIsAbsorbed() {
	m := s.newManager(localization.WithFetcher(brokenFetcher{}))
	s.Require().NoError(m.Init(s.ctx))

	s.Require().NoError(m.Refresh(s.ctx))
	s.Equal("Hello", m.GetString(s.ctx, "greeting"))
}

func (s *ManagerSuite) TestRefreshDropsDeletedStrings() {
	m := s.newManager()
	s.Equal("Goodbye", m.GetString(s.ctx, "farewell"))

	s.Require().NoError(s.store.DeleteValue(s.ctx, "farewell", "en"))
	s.Equal("Goodbye", m.GetString(s.ctx, "farewell"))

	s.Require().NoError(m.Refresh(s.ctx))
	s.Equal("farewell", m.GetString(s.ctx, "farewell"))
}

func (s *ManagerSuite) TestArraysAndPlurals() {
	m := s.newManager()

	items, err := m.GetArray(s.ctx, "weekdays")
	s.Require().NoError(err)
	s.Equal([]string{"Mon", "Tue"}, items)

	items, err = m.GetArray(s.ctx, "months")
	s.Require().NoError(err)
	s.Equal([]string{"months"}, items)

	text, err := m.GetPlural(s.ctx, "apples", 1)
	s.Require().NoError(err)
	s.Equal("one apple", text)

	text, err = m.GetPlural(s.ctx, "apples", 7)
	s.Require().NoError(err)
	s.Equal("many apples", text)

	text, err = m.GetPlural(s.ctx, "pears", 2)
	s.Require().NoError(err)
	s.Equal("pears", text)

	s.Require().NoError(s.store.InsertPlural(s.ctx, resource.NewPlural("plums", "en")))
	text, err = m.GetPlural(s.ctx, "plums", 3)
	s.Require().NoError(err)
	s.Equal("plums", text)
}

func (s *ManagerSuite) TestShutdown() {
	m := s.newManager()
	s.Require().NoError(m.Init(s.ctx))

	locales := m.ObserveLocale(s.ctx)
	s.Require().NoError(m.Shutdown(s.ctx))
	s.Require().NoError(m.Shutdown(s.ctx))
	s.ErrorIs(m.Init(s.ctx), localization.ErrShutDown)

	s.Eventually(func() bool {
		for {
			select {
			case _, ok := <-locales:
				if !ok {
					return true
				}
			default:
				return false
			}
		}
	}, waitTimeout, 10*time.Millisecond)

	s.Equal("Hello", m.GetString(s.ctx, "greeting"))
}

func (s *ManagerSuite) TestShutdownWithoutInit() {
	m := s.newManager()
	s.NoError(m.Shutdown(s.ctx))
}

func (s *ManagerSuite) TestContextHelpers() {
	s.Nil(localization.FromContext(s.ctx))
	s.Equal("greeting", localization.T(s.ctx, "greeting"))

	m := s.newManager()
	ctx := localization.ToContext(s.ctx, m)
	s.Same(m, localization.FromContext(ctx))
	s.Equal("Hello", localization.T(ctx, "greeting"))
}
