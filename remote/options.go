package remote

import (
	"net/http"
	"runtime"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultEndpoint   = "/api/v1/localizations"
	DefaultAppVersion = "1"
	DefaultTimeout    = 30 * time.Second

	defaultIdleTimeout = 90 * time.Second
	defaultMaxBodyLen  = 10 << 20
)

// Option configures an HTTPFetcher.
type Option func(*options)

type options struct {
	endpoint   string
	appVersion string
	platform   string
	headers    http.Header
	timeout    time.Duration
	transport  http.RoundTripper
	retry      RetryPolicy
	traceReqs  bool
	maxBodyLen int64
}

func defaultOptions() *options {
	return &options{
		endpoint:   DefaultEndpoint,
		appVersion: DefaultAppVersion,
		platform:   runtime.GOOS,
		headers:    http.Header{},
		timeout:    DefaultTimeout,
		retry:      DefaultRetryPolicy(),
		maxBodyLen: defaultMaxBodyLen,
	}
}

// WithEndpoint sets the path appended to the base URL.
func WithEndpoint(endpoint string) Option {
	return func(o *options) {
		if endpoint != "" {
			o.endpoint = endpoint
		}
	}
}

// WithAppVersion sets the app_version query parameter.
func WithAppVersion(version string) Option {
	return func(o *options) {
		o.appVersion = version
	}
}

// WithPlatform overrides the platform query parameter, the OS name by default.
func WithPlatform(platform string) Option {
	return func(o *options) {
		o.platform = platform
	}
}

// WithHeader adds a header sent on every request.
func WithHeader(name, value string) Option {
	return func(o *options) {
		o.headers.Add(name, value)
	}
}

// WithTimeout bounds each fetch, retries included.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithTransport replaces the traced default transport.
func WithTransport(transport http.RoundTripper) Option {
	return func(o *options) {
		o.transport = transport
	}
}

// WithRetryPolicy sets how transient server errors are retried.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(o *options) {
		o.retry = policy
	}
}

// WithTraceRequests logs every request and response.
func WithTraceRequests() Option {
	return func(o *options) {
		o.traceReqs = true
	}
}

func (o *options) client() *http.Client {
	transport := o.transport
	if transport == nil {
		base := http.DefaultTransport.(*http.Transport).Clone()
		base.IdleConnTimeout = defaultIdleTimeout
		transport = otelhttp.NewTransport(base)
	}
	if o.traceReqs {
		transport = newLoggingTransport(transport)
	}
	return &http.Client{Transport: transport}
}

// RetryPolicy retries 502, 503 and 504 responses and transport errors.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
}

// DefaultRetryPolicy makes three attempts with linear backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff: func(attempt int) time.Duration {
			return time.Duration(attempt) * 200 * time.Millisecond
		},
	}
}

// NoRetry makes a single attempt.
func NoRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1, Backoff: func(int) time.Duration { return 0 }}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p RetryPolicy) wait(attempt int) time.Duration {
	if p.Backoff == nil {
		return 0
	}
	return p.Backoff(attempt)
}
