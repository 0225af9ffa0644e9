package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pitabwire/util"
	"github.com/sony/gobreaker/v2"

	"github.com/pitabwire/lingua/telemetry"
)

const (
	tracerName = "github.com/pitabwire/lingua/remote"

	breakerMaxRequests = 3
	breakerInterval    = 30 * time.Second
	breakerTimeout     = 45 * time.Second
	breakerThreshold   = 20
	breakerFailureRate = 0.5
)

// serverError marks a 5xx response as a breaker failure while keeping the
// response readable for the caller.
type serverError struct {
	statusCode int
}

func (e *serverError) Error() string {
	return fmt.Sprintf("server error: HTTP %d", e.statusCode)
}

// HTTPFetcher calls the localization API:
//
//	GET {baseURL}{endpoint}?locale=..&app_version=..&platform=..
type HTTPFetcher struct {
	baseURL string
	opts    *options
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	tracer  telemetry.Tracer
}

var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates a fetcher for the API rooted at baseURL.
func NewHTTPFetcher(baseURL string, opts ...Option) (*HTTPFetcher, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be an absolute http(s) url", baseURL)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	return &HTTPFetcher{
		baseURL: strings.TrimRight(u.String(), "/"),
		opts:    o,
		client:  o.client(),
		breaker: gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
			Name:        "lingua:" + u.Host,
			MaxRequests: breakerMaxRequests,
			Interval:    breakerInterval,
			Timeout:     breakerTimeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				if c.Requests < breakerThreshold {
					return false
				}
				return float64(c.TotalFailures)/float64(c.Requests) >= breakerFailureRate
			},
		}),
		tracer: telemetry.NewTracer(tracerName),
	}, nil
}

// FetchStrings returns the strings the API holds for locale. A 404 is an
// empty bundle; any other non-200 status is a *FetchError.
func (f *HTTPFetcher) FetchStrings(ctx context.Context, locale string) (map[string]string, error) {
	ctx, span := f.tracer.Start(ctx, "FetchStrings", telemetry.ForLocale(locale))

	strs, err := f.fetch(ctx, locale)
	f.tracer.End(ctx, span, err)
	return strs, err
}

func (f *HTTPFetcher) fetch(ctx context.Context, locale string) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.opts.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.requestURL(locale), nil)
	if err != nil {
		return nil, failure(locale, err)
	}
	req.Header = f.opts.headers.Clone()
	req.Header.Set("Accept", "application/json")

	resp, err := f.execute(ctx, req)
	if err != nil {
		return nil, failure(locale, err)
	}
	defer util.CloseAndLogOnError(ctx, resp.Body)

	body := io.LimitReader(resp.Body, f.opts.maxBodyLen)

	switch resp.StatusCode {
	case http.StatusOK:
		var bundle Bundle
		if err = json.NewDecoder(body).Decode(&bundle); err != nil {
			return nil, failure(locale, fmt.Errorf("decode response: %w", err))
		}
		if bundle.Strings == nil {
			bundle.Strings = map[string]string{}
		}
		return bundle.Strings, nil

	case http.StatusNotFound:
		return map[string]string{}, nil

	default:
		return nil, &FetchError{
			Locale:     locale,
			StatusCode: resp.StatusCode,
			Response:   decodeErrorResponse(body),
		}
	}
}

func (f *HTTPFetcher) requestURL(locale string) string {
	q := url.Values{}
	q.Set("locale", locale)
	q.Set("app_version", f.opts.appVersion)
	q.Set("platform", f.opts.platform)
	return f.baseURL + f.opts.endpoint + "?" + q.Encode()
}

func decodeErrorResponse(body io.Reader) ErrorResponse {
	data, err := io.ReadAll(body)
	if err != nil {
		return ErrorResponse{Message: "Unknown error"}
	}

	var resp ErrorResponse
	if jsonErr := json.Unmarshal(data, &resp); jsonErr != nil || resp.text() == "" {
		return ErrorResponse{Message: "Unknown error", Error: strings.TrimSpace(string(data))}
	}
	return resp
}

func isRetryableStatus(code int) bool {
	return code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable ||
		code == http.StatusGatewayTimeout
}

func (f *HTTPFetcher) execute(ctx context.Context, req *http.Request) (*http.Response, error) {
	retry := f.opts.retry

	resp, err := f.breaker.Execute(func() (*http.Response, error) {
		var lastErr error

		for attempt := 1; attempt <= retry.attempts(); attempt++ {
			resp, doErr := f.client.Do(req)
			switch {
			case doErr != nil:
				if resp != nil && resp.Body != nil {
					_ = resp.Body.Close()
				}
				lastErr = doErr
			case isRetryableStatus(resp.StatusCode) && attempt < retry.attempts():
				_ = resp.Body.Close()
				lastErr = &serverError{statusCode: resp.StatusCode}
			case resp.StatusCode >= http.StatusInternalServerError:
				return resp, &serverError{statusCode: resp.StatusCode}
			default:
				return resp, nil
			}

			if attempt == retry.attempts() {
				break
			}

			t := time.NewTimer(retry.wait(attempt))
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}

		return nil, lastErr
	})

	var sErr *serverError
	if resp != nil && errors.As(err, &sErr) {
		return resp, nil
	}
	return resp, err
}

// Close releases idle connections.
func (f *HTTPFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}
