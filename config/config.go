package config

import (
	"context"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/pitabwire/lingua/version"
)

type contextKey string

func (c contextKey) String() string {
	return "lingua/config/" + string(c)
}

const (
	ctxKeyConfiguration = contextKey("configurationKey")

	DefaultSlowQueryThreshold = 200 * time.Millisecond
	DefaultPopulateTimeout    = 30 * time.Second
	DefaultRemoteTimeout      = 30 * time.Second
	DefaultBundleTTL          = 24 * time.Hour
)

// ToContext adds configuration to the supplied context.
func ToContext(ctx context.Context, config any) context.Context {
	return context.WithValue(ctx, ctxKeyConfiguration, config)
}

// FromContext extracts configuration from the supplied context if any exist.
func FromContext[T any](ctx context.Context) T {
	if cfg, ok := ctx.Value(ctxKeyConfiguration).(T); ok {
		return cfg
	}
	var zero T
	return zero
}

// FromEnv convenience method to process configs.
func FromEnv[T any]() (T, error) {
	return env.ParseAs[T]()
}

// FillEnv convenience method to fill a config object with environment data.
func FillEnv(v any) error {
	return env.Parse(v)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

type ConfigurationDefault struct {
	ServiceName        string `envDefault:"lingua" env:"SERVICE_NAME"        yaml:"service_name"`
	ServiceEnvironment string `envDefault:""       env:"SERVICE_ENVIRONMENT" yaml:"service_environment"`
	ServiceVersion     string `envDefault:""       env:"SERVICE_VERSION"     yaml:"service_version"`

	LogLevel          string `envDefault:"info"                      env:"LOG_LEVEL"            yaml:"log_level"`
	LogFormat         string `envDefault:"text"                      env:"LOG_FORMAT"           yaml:"log_format"`
	LogTimeFormat     string `envDefault:"2006-01-02T15:04:05Z07:00" env:"LOG_TIME_FORMAT"      yaml:"log_time_format"`
	LogColored        bool   `envDefault:"true"                      env:"LOG_COLORED"          yaml:"log_colored"`
	LogShowStackTrace bool   `envDefault:"false"                     env:"LOG_SHOW_STACK_TRACE" yaml:"log_show_stack_trace"`

	TraceRequests bool `envDefault:"false" env:"TRACE_REQUESTS" yaml:"trace_requests"`

	OpenTelemetryDisable    bool    `envDefault:"true" env:"OPENTELEMETRY_DISABLE"        yaml:"opentelemetry_disable"`
	OpenTelemetryTraceRatio float64 `envDefault:"0.1"  env:"OPENTELEMETRY_TRACE_ID_RATIO" yaml:"opentelemetry_trace_id_ratio"`

	WorkerPoolCPUFactorForWorkerCount int    `envDefault:"10"  env:"WORKER_POOL_CPU_FACTOR_FOR_WORKER_COUNT" yaml:"worker_pool_cpu_factor_for_worker_count"`
	WorkerPoolCapacity                int    `envDefault:"100" env:"WORKER_POOL_CAPACITY"                    yaml:"worker_pool_capacity"`
	WorkerPoolCount                   int    `envDefault:"1"   env:"WORKER_POOL_COUNT"                       yaml:"worker_pool_count"`
	WorkerPoolExpiryDuration          string `envDefault:"1s"  env:"WORKER_POOL_EXPIRY_DURATION"             yaml:"worker_pool_expiry_duration"`

	Locale          string `envDefault:""       env:"LINGUA_LOCALE"           yaml:"locale"`
	FallbackLocale  string `envDefault:"en"     env:"LINGUA_FALLBACK_LOCALE"  yaml:"fallback_locale"`
	CacheSize       int    `envDefault:"1000"   env:"LINGUA_CACHE_SIZE"       yaml:"cache_size"`
	PopulateTimeout string `envDefault:"30s"    env:"LINGUA_POPULATE_TIMEOUT" yaml:"populate_timeout"`
	PluralPolicy    string `envDefault:"legacy" env:"LINGUA_PLURAL_POLICY"    yaml:"plural_policy"`
	PersistFetched  bool   `envDefault:"false"  env:"LINGUA_PERSIST_FETCHED"  yaml:"persist_fetched"`

	DatabaseURL                   string `envDefault:"lingua.db" env:"DATABASE_URL"                  yaml:"database_url"`
	DatabaseMigrate               bool   `envDefault:"true"      env:"DO_MIGRATION"                  yaml:"do_migration"`
	DatabasePreferSimpleProtocol  bool   `envDefault:"true"      env:"PREFER_SIMPLE_PROTOCOL"        yaml:"prefer_simple_protocol"`
	DatabaseMaxOpenConnections    int    `envDefault:"5"         env:"DATABASE_MAX_OPEN_CONNECTIONS" yaml:"database_max_open_connections"`
	DatabaseTraceQueries          bool   `envDefault:"false"     env:"DATABASE_LOG_QUERIES"          yaml:"database_log_queries"`
	DatabaseSlowQueryLogThreshold string `envDefault:"200ms"     env:"DATABASE_SLOW_QUERY_THRESHOLD" yaml:"database_slow_query_threshold"`

	RemoteBaseURL    string `envDefault:""                      env:"REMOTE_BASE_URL"    yaml:"remote_base_url"`
	RemoteEndpoint   string `envDefault:"/api/v1/localizations" env:"REMOTE_ENDPOINT"    yaml:"remote_endpoint"`
	RemoteAppVersion string `envDefault:"1"                     env:"REMOTE_APP_VERSION" yaml:"remote_app_version"`
	RemoteTimeout    string `envDefault:"30s"                   env:"REMOTE_TIMEOUT"     yaml:"remote_timeout"`
	RemoteUseSample  bool   `envDefault:"false"                 env:"REMOTE_USE_SAMPLE"  yaml:"remote_use_sample"`

	BundleCacheURL  string `envDefault:""       env:"BUNDLE_CACHE_URL"  yaml:"bundle_cache_url"`
	BundleCacheName string `envDefault:"lingua" env:"BUNDLE_CACHE_NAME" yaml:"bundle_cache_name"`
	BundleCacheTTL  string `envDefault:"24h"    env:"BUNDLE_CACHE_TTL"  yaml:"bundle_cache_ttl"`

	EventsQueueName string `envDefault:"lingua.events"       env:"EVENTS_QUEUE_NAME" yaml:"events_queue_name"`
	EventsQueueURL  string `envDefault:"mem://lingua.events" env:"EVENTS_QUEUE_URL"  yaml:"events_queue_url"`

	EventsSubscriptionURL string `envDefault:"" env:"EVENTS_SUBSCRIPTION_URL" yaml:"events_subscription_url"`
}

type ConfigurationService interface {
	Name() string
	Environment() string
	Version() string
}

var _ ConfigurationService = new(ConfigurationDefault)

func (c *ConfigurationDefault) Name() string {
	return c.ServiceName
}

func (c *ConfigurationDefault) Environment() string {
	return c.ServiceEnvironment
}

// Version is SERVICE_VERSION, else the version stamped into the build.
func (c *ConfigurationDefault) Version() string {
	if c.ServiceVersion != "" {
		return c.ServiceVersion
	}
	return version.Current()
}

type ConfigurationLogLevel interface {
	LoggingLevel() string
	LoggingFormat() string
	LoggingTimeFormat() string
	LoggingShowStackTrace() bool
	LoggingColored() bool
	LoggingLevelIsDebug() bool
}

var _ ConfigurationLogLevel = new(ConfigurationDefault)

func (c *ConfigurationDefault) LoggingLevel() string {
	return c.LogLevel
}

func (c *ConfigurationDefault) LoggingTimeFormat() string {
	return c.LogTimeFormat
}

func (c *ConfigurationDefault) LoggingFormat() string {
	return c.LogFormat
}

func (c *ConfigurationDefault) LoggingColored() bool {
	return c.LogColored
}

func (c *ConfigurationDefault) LoggingShowStackTrace() bool {
	return c.LogShowStackTrace
}

func (c *ConfigurationDefault) LoggingLevelIsDebug() bool {
	return c.LoggingLevel() == "debug" || c.LoggingLevel() == "trace"
}

type ConfigurationTraceRequests interface {
	TraceReq() bool
}

var _ ConfigurationTraceRequests = new(ConfigurationDefault)

func (c *ConfigurationDefault) TraceReq() bool {
	return c.TraceRequests
}

type ConfigurationTelemetry interface {
	DisableOpenTelemetry() bool
	SamplingRatio() float64
}

var _ ConfigurationTelemetry = new(ConfigurationDefault)

func (c *ConfigurationDefault) DisableOpenTelemetry() bool {
	return c.OpenTelemetryDisable
}

func (c *ConfigurationDefault) SamplingRatio() float64 {
	return c.OpenTelemetryTraceRatio
}

type ConfigurationWorkerPool interface {
	GetCPUFactor() int
	GetCapacity() int
	GetCount() int
	GetExpiryDuration() time.Duration
}

var _ ConfigurationWorkerPool = new(ConfigurationDefault)

func (c *ConfigurationDefault) GetCPUFactor() int {
	return c.WorkerPoolCPUFactorForWorkerCount
}

func (c *ConfigurationDefault) GetCapacity() int {
	return c.WorkerPoolCapacity
}

func (c *ConfigurationDefault) GetCount() int {
	return c.WorkerPoolCount
}

func (c *ConfigurationDefault) GetExpiryDuration() time.Duration {
	return parseDuration(c.WorkerPoolExpiryDuration, time.Second)
}

type ConfigurationLocalization interface {
	InitialLocale() string
	GetFallbackLocale() string
	GetCacheSize() int
	GetPopulateTimeout() time.Duration
	GetPluralPolicy() string
	ShouldPersistFetched() bool
}

var _ ConfigurationLocalization = new(ConfigurationDefault)

// InitialLocale is the locale to start in; empty means detect it from the
// process environment.
func (c *ConfigurationDefault) InitialLocale() string {
	return strings.TrimSpace(c.Locale)
}

func (c *ConfigurationDefault) GetFallbackLocale() string {
	if strings.TrimSpace(c.FallbackLocale) == "" {
		return "en"
	}
	return strings.TrimSpace(c.FallbackLocale)
}

func (c *ConfigurationDefault) GetCacheSize() int {
	return c.CacheSize
}

func (c *ConfigurationDefault) GetPopulateTimeout() time.Duration {
	return parseDuration(c.PopulateTimeout, DefaultPopulateTimeout)
}

func (c *ConfigurationDefault) GetPluralPolicy() string {
	return c.PluralPolicy
}

func (c *ConfigurationDefault) ShouldPersistFetched() bool {
	return c.PersistFetched
}

type ConfigurationDatabase interface {
	GetDatabaseURL() string
	DoDatabaseMigrate() bool
	PreferSimpleProtocol() bool
	GetMaxOpenConnections() int
}

var _ ConfigurationDatabase = new(ConfigurationDefault)

type ConfigurationDatabaseTracing interface {
	CanDatabaseTraceQueries() bool
	GetDatabaseSlowQueryLogThreshold() time.Duration
}

var _ ConfigurationDatabaseTracing = new(ConfigurationDefault)

func (c *ConfigurationDefault) GetDatabaseURL() string {
	return strings.TrimSpace(c.DatabaseURL)
}

func (c *ConfigurationDefault) DoDatabaseMigrate() bool {
	return c.DatabaseMigrate
}

func (c *ConfigurationDefault) PreferSimpleProtocol() bool {
	return c.DatabasePreferSimpleProtocol
}

func (c *ConfigurationDefault) GetMaxOpenConnections() int {
	return c.DatabaseMaxOpenConnections
}

func (c *ConfigurationDefault) CanDatabaseTraceQueries() bool {
	return c.DatabaseTraceQueries
}

func (c *ConfigurationDefault) GetDatabaseSlowQueryLogThreshold() time.Duration {
	return parseDuration(c.DatabaseSlowQueryLogThreshold, DefaultSlowQueryThreshold)
}

type ConfigurationRemote interface {
	GetRemoteBaseURL() string
	GetRemoteEndpoint() string
	GetRemoteAppVersion() string
	GetRemoteTimeout() time.Duration
	UseSampleRemote() bool
}

var _ ConfigurationRemote = new(ConfigurationDefault)

func (c *ConfigurationDefault) GetRemoteBaseURL() string {
	return strings.TrimSpace(c.RemoteBaseURL)
}

func (c *ConfigurationDefault) GetRemoteEndpoint() string {
	return c.RemoteEndpoint
}

func (c *ConfigurationDefault) GetRemoteAppVersion() string {
	return c.RemoteAppVersion
}

func (c *ConfigurationDefault) GetRemoteTimeout() time.Duration {
	return parseDuration(c.RemoteTimeout, DefaultRemoteTimeout)
}

func (c *ConfigurationDefault) UseSampleRemote() bool {
	return c.RemoteUseSample
}

type ConfigurationBundleCache interface {
	GetBundleCacheURL() string
	GetBundleCacheName() string
	GetBundleCacheTTL() time.Duration
}

var _ ConfigurationBundleCache = new(ConfigurationDefault)

func (c *ConfigurationDefault) GetBundleCacheURL() string {
	return strings.TrimSpace(c.BundleCacheURL)
}

func (c *ConfigurationDefault) GetBundleCacheName() string {
	return c.BundleCacheName
}

func (c *ConfigurationDefault) GetBundleCacheTTL() time.Duration {
	return parseDuration(c.BundleCacheTTL, DefaultBundleTTL)
}

type ConfigurationEvents interface {
	GetEventsQueueName() string
	GetEventsQueueURL() string
	GetEventsSubscriptionURL() string
}

var _ ConfigurationEvents = new(ConfigurationDefault)

func (c *ConfigurationDefault) GetEventsQueueName() string {
	if strings.TrimSpace(c.EventsQueueName) == "" {
		return "lingua.events"
	}
	return c.EventsQueueName
}

func (c *ConfigurationDefault) GetEventsQueueURL() string {
	if strings.TrimSpace(c.EventsQueueURL) == "" {
		return "mem://" + c.GetEventsQueueName()
	}
	return c.EventsQueueURL
}

// GetEventsSubscriptionURL is the URL events are received from. Brokers such
// as NATS take consumer settings on the subscription URL; for mem:// it is
// the queue URL.
func (c *ConfigurationDefault) GetEventsSubscriptionURL() string {
	if strings.TrimSpace(c.EventsSubscriptionURL) == "" {
		return c.GetEventsQueueURL()
	}
	return c.EventsSubscriptionURL
}
