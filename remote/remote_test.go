package remote_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/pitabwire/lingua/cache"
	"github.com/pitabwire/lingua/remote"
)

type HTTPFetcherSuite struct {
	suite.Suite
}

func TestHTTPFetcherSuite(t *testing.T) {
	suite.Run(t, new(HTTPFetcherSuite))
}

func fastRetry(attempts int) remote.RetryPolicy {
	return remote.RetryPolicy{
		MaxAttempts: attempts,
		Backoff:     func(int) time.Duration { return time.Millisecond },
	}
}

func (s *HTTPFetcherSuite) newFetcher(h http.HandlerFunc, opts ...remote.Option) *remote.HTTPFetcher {
	srv := httptest.NewServer(h)
	s.T().Cleanup(srv.Close)

	f, err := remote.NewHTTPFetcher(srv.URL, opts...)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = f.Close() })
	return f
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *HTTPFetcherSuite) TestFetchesBundle() {
	requests := make(chan *http.Request, 1)
	f := s.newFetcher(func(w http.ResponseWriter, r *http.Request) {
		requests <- r.Clone(context.Background())
		writeJSON(w, http.StatusOK, remote.Bundle{
			Locale:      "fr",
			Strings:     map[string]string{"greeting": "Bonjour"},
			Version:     "7",
			LastUpdated: 1700000000,
		})
	},
		remote.WithAppVersion("2.1"),
		remote.WithPlatform("linux"),
		remote.WithHeader("X-Api-Key", "k"),
	)

	strs, err := f.FetchStrings(context.Background(), "fr")
	s.Require().NoError(err)
	s.Equal(map[string]string{"greeting": "Bonjour"}, strs)

	got := <-requests
	s.Equal(remote.DefaultEndpoint, got.URL.Path)
	s.Equal("fr", got.URL.Query().Get("locale"))
	s.Equal("2.1", got.URL.Query().Get("app_version"))
	s.Equal("linux", got.URL.Query().Get("platform"))
	s.Equal("k", got.Header.Get("X-Api-Key"))
}

func (s *HTTPFetcherSuite) TestCustomEndpoint() {
	var path atomic.Value
	f := s.newFetcher(func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path)
		writeJSON(w, http.StatusOK, remote.Bundle{Locale: "en"})
	}, remote.WithEndpoint("/v2/strings"))

	strs, err := f.FetchStrings(context.Background(), "en")
	s.Require().NoError(err)
	s.NotNil(strs)
	s.Empty(strs)
	s.Equal("/v2/strings", path.Load())
}

func (s *HTTPFetcherSuite) TestNotFoundIsEmptyBundle() {
	f := s.newFetcher(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	strs, err := f.FetchStrings(context.Background(), "xx")
	s.Require().NoError(err)
	s.NotNil(strs)
	s.Empty(strs)
}

func (s *HTTPFetcherSuite) TestErrorStatuses() {
	testCases := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		wantError   string
	}{
		{
			name:        "json error body",
			status:      http.StatusInternalServerError,
			body:        `{"message":"database down","error":"internal"}`,
			wantMessage: "database down",
			wantError:   "internal",
		},
		{
			name:        "plain body",
			status:      http.StatusBadRequest,
			body:        "bad locale",
			wantMessage: "Unknown error",
			wantError:   "bad locale",
		},
		{
			name:      "error field only",
			status:    http.StatusUnauthorized,
			body:      `{"error":"token expired"}`,
			wantError: "token expired",
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			f := s.newFetcher(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}, remote.WithRetryPolicy(remote.NoRetry()))

			strs, err := f.FetchStrings(context.Background(), "en")
			s.Nil(strs)
			s.Require().Error(err)
			s.ErrorIs(err, remote.ErrFetchFailure)

			var fe *remote.FetchError
			s.Require().ErrorAs(err, &fe)
			s.Equal(tc.status, fe.StatusCode)
			s.Equal(tc.wantMessage, fe.Response.Message)
			s.Equal(tc.wantError, fe.Response.Error)
		})
	}
}

func (s *HTTPFetcherSuite) TestRetriesTransientStatus() {
	var calls atomic.Int32
	f := s.newFetcher(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, remote.Bundle{Locale: "de", Strings: map[string]string{"greeting": "Hallo"}})
	}, remote.WithRetryPolicy(fastRetry(3)))

	strs, err := f.FetchStrings(context.Background(), "de")
	s.Require().NoError(err)
	s.Equal("Hallo", strs["greeting"])
	s.Equal(int32(2), calls.Load())
}

func (s *HTTPFetcherSuite) TestGivesUpAfterLastAttempt() {
	var calls atomic.Int32
	f := s.newFetcher(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}, remote.WithRetryPolicy(fastRetry(2)))

	_, err := f.FetchStrings(context.Background(), "de")
	var fe *remote.FetchError
	s.Require().ErrorAs(err, &fe)
	s.Equal(http.StatusBadGateway, fe.StatusCode)
	s.Equal(int32(2), calls.Load())
}

func (s *HTTPFetcherSuite) TestTransportFailure() {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	f, err := remote.NewHTTPFetcher(url, remote.WithRetryPolicy(remote.NoRetry()))
	s.Require().NoError(err)

	_, err = f.FetchStrings(context.Background(), "en")
	s.Require().Error(err)
	s.ErrorIs(err, remote.ErrFetchFailure)

	var fe *remote.FetchError
	s.Require().ErrorAs(err, &fe)
	s.Zero(fe.StatusCode)
	s.Equal("en", fe.Locale)
	s.Require().Error(fe.Err)
}

func (s *HTTPFetcherSuite) TestTimeout() {
	f := s.newFetcher(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.WriteHeader(http.StatusOK)
	}, remote.WithTimeout(50*time.Millisecond), remote.WithRetryPolicy(remote.NoRetry()))

	_, err := f.FetchStrings(context.Background(), "en")
	s.Require().Error(err)
	s.ErrorIs(err, remote.ErrFetchFailure)
	s.ErrorIs(err, context.DeadlineExceeded)
}

func (s *HTTPFetcherSuite) TestRejectsBadBaseURL() {
	for _, raw := range []string{"", "localhost:8080", "ftp://example.com", "http://"} {
		_, err := remote.NewHTTPFetcher(raw)
		s.Error(err, raw)
	}
}

func (s *HTTPFetcherSuite) TestTraceRequestsKeepsBehaviour() {
	f := s.newFetcher(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, remote.Bundle{Locale: "he", Strings: map[string]string{"greeting": "שלום"}})
	}, remote.WithTraceRequests())

	strs, err := f.FetchStrings(context.Background(), "he")
	s.Require().NoError(err)
	s.Equal("שלום", strs["greeting"])
}

type StaticFetcherSuite struct {
	suite.Suite
}

func TestStaticFetcherSuite(t *testing.T) {
	suite.Run(t, new(StaticFetcherSuite))
}

func (s *StaticFetcherSuite) TestSampleGreetings() {
	f := remote.NewSampleFetcher()
	s.Equal([]string{"de", "en", "es", "fr", "he"}, f.Locales())

	want := map[string]string{"en": "Hello", "es": "Hola", "fr": "Bonjour", "he": "שלום", "de": "Hallo"}
	for locale, greeting := range want {
		strs, err := f.FetchStrings(context.Background(), locale)
		s.Require().NoError(err)
		s.Equal(greeting, strs["greeting"], locale)
		s.Len(strs, 8)
	}
}

func (s *StaticFetcherSuite) TestUnknownLocaleIsEmpty() {
	strs, err := remote.NewSampleFetcher().FetchStrings(context.Background(), "ja")
	s.Require().NoError(err)
	s.NotNil(strs)
	s.Empty(strs)
}

func (s *StaticFetcherSuite) TestAddAndIsolation() {
	f := remote.NewStaticFetcher(nil)
	s.Empty(f.Locales())

	src := map[string]string{"greeting": "Ciao"}
	f.Add("it", src)
	src["greeting"] = "changed"

	strs, err := f.FetchStrings(context.Background(), "it")
	s.Require().NoError(err)
	s.Equal("Ciao", strs["greeting"])

	strs["greeting"] = "mutated"
	again, err := f.FetchStrings(context.Background(), "it")
	s.Require().NoError(err)
	s.Equal("Ciao", again["greeting"])
}

func (s *StaticFetcherSuite) TestDelayHonoursCancellation() {
	f := remote.NewSampleFetcher().WithDelay(time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.FetchStrings(ctx, "en")
	s.ErrorIs(err, remote.ErrFetchFailure)
	s.ErrorIs(err, context.DeadlineExceeded)
}

// flakyFetcher fails whenever fail is set.
type flakyFetcher struct {
	inner remote.Fetcher
	fail  atomic.Bool
}

func (f *flakyFetcher) FetchStrings(ctx context.Context, locale string) (map[string]string, error) {
	if f.fail.Load() {
		return nil, &remote.FetchError{Locale: locale, Err: errors.New("offline")}
	}
	return f.inner.FetchStrings(ctx, locale)
}

type CachingFetcherSuite struct {
	suite.Suite

	raw   *cache.InMemoryCache
	inner *flakyFetcher
	f     *remote.CachingFetcher
}

func TestCachingFetcherSuite(t *testing.T) {
	suite.Run(t, new(CachingFetcherSuite))
}

func (s *CachingFetcherSuite) SetupTest() {
	s.raw = cache.NewInMemoryCache()
	s.inner = &flakyFetcher{inner: remote.NewSampleFetcher()}
	s.f = remote.NewCachingFetcher(s.inner, s.raw, 0)
}

func (s *CachingFetcherSuite) TearDownTest() {
	s.NoError(s.raw.Close())
}

func (s *CachingFetcherSuite) TestStoresFetchedBundle() {
	ctx := context.Background()

	strs, err := s.f.FetchStrings(ctx, "fr")
	s.Require().NoError(err)
	s.Equal("Bonjour", strs["greeting"])

	exists, err := s.raw.Exists(ctx, remote.BundleKey("fr"))
	s.Require().NoError(err)
	s.True(exists)
	s.Equal("bundle.fr", remote.BundleKey("fr"))
}

func (s *CachingFetcherSuite) TestServesCachedBundleOnFailure() {
	ctx := context.Background()

	_, err := s.f.FetchStrings(ctx, "es")
	s.Require().NoError(err)

	s.inner.fail.Store(true)
	strs, err := s.f.FetchStrings(ctx, "es")
	s.Require().NoError(err)
	s.Equal("Hola", strs["greeting"])
}

func (s *CachingFetcherSuite) TestFailureWithoutCachedBundle() {
	s.inner.fail.Store(true)

	strs, err := s.f.FetchStrings(context.Background(), "de")
	s.Nil(strs)
	s.ErrorIs(err, remote.ErrFetchFailure)
}

func (s *CachingFetcherSuite) TestForget() {
	ctx := context.Background()

	_, err := s.f.FetchStrings(ctx, "he")
	s.Require().NoError(err)
	s.Require().NoError(s.f.Forget(ctx, "he"))

	s.inner.fail.Store(true)
	_, err = s.f.FetchStrings(ctx, "he")
	s.ErrorIs(err, remote.ErrFetchFailure)
}
