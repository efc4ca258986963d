// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultHost                      = "0.0.0.0"
	DefaultPort                      = 8080
	DefaultLogLevel                  = "INFO"
	DefaultWorkerCount               = 1
	DefaultSearchLimit               = 10
	DefaultModelsSubdir              = "models"
	DefaultCollection                = "products"
	DefaultTextDimension             = 384
	DefaultImageDimension            = 512
	DefaultBatchSize                 = 32
	DefaultSyncMaxAttempts           = 3
	DefaultSyncInitialDelay          = 5 * time.Second
	DefaultSyncBackoffFactor         = 2.0
	DefaultEndpointParallelTasks     = 1
	DefaultEndpointTimeout           = 60 * time.Second
	DefaultEndpointMaxRetries        = 5
	DefaultEndpointInitialDelay      = 2 * time.Second
	DefaultEndpointBackoffFactor     = 2.0
	DefaultEndpointMaxBatchChars     = 16000
	DefaultQdrantTimeout             = 30 * time.Second
	DefaultPeriodicSyncInterval      = 1800.0 // seconds
	DefaultPeriodicSyncCheckInterval = 10.0   // seconds
	DefaultPeriodicSyncRetries       = 3
	DefaultReportingInterval         = 5 * time.Second
)

// VectorBackend identifies the vector store implementation.
type VectorBackend string

// VectorBackend values.
const (
	// VectorBackendEmbedded stores vectors in the relational database
	// (JSON columns on SQLite, pgvector on PostgreSQL).
	VectorBackendEmbedded VectorBackend = "embedded"
	// VectorBackendQdrant stores vectors in a Qdrant server.
	VectorBackendQdrant VectorBackend = "qdrant"
)

// LogFormat represents the log output format.
type LogFormat string

// LogFormat values.
const (
	LogFormatPretty LogFormat = "pretty"
	LogFormatJSON   LogFormat = "json"
)

// ReportingConfig configures progress reporting.
type ReportingConfig struct {
	logTimeInterval time.Duration
}

// NewReportingConfig creates a new ReportingConfig with defaults.
func NewReportingConfig() ReportingConfig {
	return ReportingConfig{
		logTimeInterval: DefaultReportingInterval,
	}
}

// LogTimeInterval returns the time interval for logging progress.
func (r ReportingConfig) LogTimeInterval() time.Duration {
	return r.logTimeInterval
}

// WithLogTimeInterval returns a new config with the specified interval.
func (r ReportingConfig) WithLogTimeInterval(d time.Duration) ReportingConfig {
	r.logTimeInterval = d
	return r
}

// Endpoint configures an embedding service endpoint.
type Endpoint struct {
	baseURL          string
	model            string
	apiKey           string
	numParallelTasks int
	timeout          time.Duration
	maxRetries       int
	initialDelay     time.Duration
	backoffFactor    float64
	maxBatchChars    int
}

// NewEndpoint creates a new Endpoint with defaults.
func NewEndpoint() Endpoint {
	return Endpoint{
		numParallelTasks: DefaultEndpointParallelTasks,
		timeout:          DefaultEndpointTimeout,
		maxRetries:       DefaultEndpointMaxRetries,
		initialDelay:     DefaultEndpointInitialDelay,
		backoffFactor:    DefaultEndpointBackoffFactor,
		maxBatchChars:    DefaultEndpointMaxBatchChars,
	}
}

// BaseURL returns the base URL for the endpoint.
func (e Endpoint) BaseURL() string { return e.baseURL }

// Model returns the model identifier.
func (e Endpoint) Model() string { return e.model }

// APIKey returns the API key.
func (e Endpoint) APIKey() string { return e.apiKey }

// NumParallelTasks returns the number of parallel tasks.
func (e Endpoint) NumParallelTasks() int { return e.numParallelTasks }

// Timeout returns the request timeout.
func (e Endpoint) Timeout() time.Duration { return e.timeout }

// MaxRetries returns the maximum retry count.
func (e Endpoint) MaxRetries() int { return e.maxRetries }

// InitialDelay returns the initial retry delay.
func (e Endpoint) InitialDelay() time.Duration { return e.initialDelay }

// BackoffFactor returns the retry backoff multiplier.
func (e Endpoint) BackoffFactor() float64 { return e.backoffFactor }

// MaxBatchChars returns the maximum total characters per embedding batch.
func (e Endpoint) MaxBatchChars() int { return e.maxBatchChars }

// IsConfigured returns true if the endpoint has required configuration.
func (e Endpoint) IsConfigured() bool {
	return e.model != "" || e.baseURL != ""
}

// EndpointOption is a functional option for Endpoint.
type EndpointOption func(*Endpoint)

// WithBaseURL sets the base URL.
func WithBaseURL(url string) EndpointOption {
	return func(e *Endpoint) { e.baseURL = url }
}

// WithModel sets the model.
func WithModel(model string) EndpointOption {
	return func(e *Endpoint) { e.model = model }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) EndpointOption {
	return func(e *Endpoint) { e.apiKey = key }
}

// WithNumParallelTasks sets the parallel task count.
func WithNumParallelTasks(n int) EndpointOption {
	return func(e *Endpoint) { e.numParallelTasks = n }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) EndpointOption {
	return func(e *Endpoint) { e.timeout = d }
}

// WithMaxRetries sets the maximum retry count.
func WithMaxRetries(n int) EndpointOption {
	return func(e *Endpoint) { e.maxRetries = n }
}

// WithInitialDelay sets the initial retry delay.
func WithInitialDelay(d time.Duration) EndpointOption {
	return func(e *Endpoint) { e.initialDelay = d }
}

// WithBackoffFactor sets the retry backoff multiplier.
func WithBackoffFactor(f float64) EndpointOption {
	return func(e *Endpoint) { e.backoffFactor = f }
}

// WithMaxBatchChars sets the maximum total characters per embedding batch.
func WithMaxBatchChars(n int) EndpointOption {
	return func(e *Endpoint) { e.maxBatchChars = n }
}

// NewEndpointWithOptions creates an Endpoint with functional options.
func NewEndpointWithOptions(opts ...EndpointOption) Endpoint {
	e := NewEndpoint()
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// QdrantConfig configures the Qdrant vector store connection.
type QdrantConfig struct {
	url     string
	apiKey  string
	timeout time.Duration
}

// NewQdrantConfig creates a new QdrantConfig with defaults.
func NewQdrantConfig() QdrantConfig {
	return QdrantConfig{
		timeout: DefaultQdrantTimeout,
	}
}

// URL returns the Qdrant server URL.
func (q QdrantConfig) URL() string { return q.url }

// APIKey returns the Qdrant API key.
func (q QdrantConfig) APIKey() string { return q.apiKey }

// Timeout returns the request timeout.
func (q QdrantConfig) Timeout() time.Duration { return q.timeout }

// IsConfigured returns true if a server URL is set.
func (q QdrantConfig) IsConfigured() bool { return q.url != "" }

// WithQdrantURL returns a new config with the specified URL.
func (q QdrantConfig) WithQdrantURL(url string) QdrantConfig {
	q.url = url
	return q
}

// WithQdrantAPIKey returns a new config with the specified API key.
func (q QdrantConfig) WithQdrantAPIKey(key string) QdrantConfig {
	q.apiKey = key
	return q
}

// WithQdrantTimeout returns a new config with the specified timeout.
func (q QdrantConfig) WithQdrantTimeout(d time.Duration) QdrantConfig {
	q.timeout = d
	return q
}

// SyncConfig configures catalog sync behavior.
type SyncConfig struct {
	batchSize     int
	maxAttempts   int
	initialDelay  time.Duration
	backoffFactor float64
}

// NewSyncConfig creates a new SyncConfig with defaults.
func NewSyncConfig() SyncConfig {
	return SyncConfig{
		batchSize:     DefaultBatchSize,
		maxAttempts:   DefaultSyncMaxAttempts,
		initialDelay:  DefaultSyncInitialDelay,
		backoffFactor: DefaultSyncBackoffFactor,
	}
}

// BatchSize returns the number of items fetched and indexed per batch.
func (s SyncConfig) BatchSize() int { return s.batchSize }

// MaxAttempts returns the maximum attempts per batch before the run fails.
func (s SyncConfig) MaxAttempts() int { return s.maxAttempts }

// InitialDelay returns the delay before the first retry.
func (s SyncConfig) InitialDelay() time.Duration { return s.initialDelay }

// BackoffFactor returns the retry backoff multiplier.
func (s SyncConfig) BackoffFactor() float64 { return s.backoffFactor }

// WithBatchSize returns a new config with the specified batch size.
func (s SyncConfig) WithBatchSize(n int) SyncConfig {
	if n > 0 {
		s.batchSize = n
	}
	return s
}

// WithMaxAttempts returns a new config with the specified attempt count.
func (s SyncConfig) WithMaxAttempts(n int) SyncConfig {
	if n > 0 {
		s.maxAttempts = n
	}
	return s
}

// WithSyncInitialDelay returns a new config with the specified initial delay.
func (s SyncConfig) WithSyncInitialDelay(d time.Duration) SyncConfig {
	s.initialDelay = d
	return s
}

// WithSyncBackoffFactor returns a new config with the specified backoff factor.
func (s SyncConfig) WithSyncBackoffFactor(f float64) SyncConfig {
	if f >= 1 {
		s.backoffFactor = f
	}
	return s
}

// PeriodicSyncConfig configures periodic platform syncing.
type PeriodicSyncConfig struct {
	enabled              bool
	intervalSeconds      float64
	checkIntervalSeconds float64
	retryAttempts        int
}

// NewPeriodicSyncConfig creates a new PeriodicSyncConfig with defaults.
func NewPeriodicSyncConfig() PeriodicSyncConfig {
	return PeriodicSyncConfig{
		enabled:              true,
		intervalSeconds:      DefaultPeriodicSyncInterval,
		checkIntervalSeconds: DefaultPeriodicSyncCheckInterval,
		retryAttempts:        DefaultPeriodicSyncRetries,
	}
}

// Enabled returns whether periodic sync is enabled.
func (p PeriodicSyncConfig) Enabled() bool { return p.enabled }

// Interval returns the sync interval as a duration.
func (p PeriodicSyncConfig) Interval() time.Duration {
	return time.Duration(p.intervalSeconds * float64(time.Second))
}

// CheckInterval returns how often to check for platforms due for sync.
func (p PeriodicSyncConfig) CheckInterval() time.Duration {
	return time.Duration(p.checkIntervalSeconds * float64(time.Second))
}

// RetryAttempts returns the retry count.
func (p PeriodicSyncConfig) RetryAttempts() int { return p.retryAttempts }

// WithEnabled returns a new config with the specified enabled state.
func (p PeriodicSyncConfig) WithEnabled(enabled bool) PeriodicSyncConfig {
	p.enabled = enabled
	return p
}

// WithIntervalSeconds returns a new config with the specified interval.
func (p PeriodicSyncConfig) WithIntervalSeconds(seconds float64) PeriodicSyncConfig {
	p.intervalSeconds = seconds
	return p
}

// WithCheckIntervalSeconds returns a new config with the specified check interval.
func (p PeriodicSyncConfig) WithCheckIntervalSeconds(seconds float64) PeriodicSyncConfig {
	p.checkIntervalSeconds = seconds
	return p
}

// WithRetryAttempts returns a new config with the specified retry count.
func (p PeriodicSyncConfig) WithRetryAttempts(attempts int) PeriodicSyncConfig {
	p.retryAttempts = attempts
	return p
}

// AppConfig holds the main application configuration.
type AppConfig struct {
	host                   string
	port                   int
	dataDir                string
	dbURL                  string
	httpCacheDir           string
	logLevel               string
	logFormat              LogFormat
	skipProviderValidation bool
	embeddingEndpoint      *Endpoint
	imageEndpoint          *Endpoint
	vectorBackend          VectorBackend
	qdrant                 QdrantConfig
	collection             string
	textDimension          int
	imageDimension         int
	syncConfig             SyncConfig
	periodicSync           PeriodicSyncConfig
	connectors             ConnectorsConfig
	apiKeys                []string
	reporting              ReportingConfig
	workerCount            int
	searchLimit            int
}

// DefaultDataDir returns the default data directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".shopvec"
	}
	return filepath.Join(home, ".shopvec")
}

// DefaultModelsDir returns the default local model directory for a given data directory.
func DefaultModelsDir(dataDir string) string {
	return filepath.Join(dataDir, DefaultModelsSubdir)
}

// DefaultLogger returns the default slog logger for library consumers.
func DefaultLogger() *slog.Logger {
	return slog.Default()
}

// PrepareDataDir creates the data directory if it does not exist and returns it.
func PrepareDataDir(dataDir string) (string, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	return dataDir, nil
}

// NewAppConfig creates a new AppConfig with defaults.
func NewAppConfig() AppConfig {
	dataDir := DefaultDataDir()
	return AppConfig{
		host:           DefaultHost,
		port:           DefaultPort,
		dataDir:        dataDir,
		dbURL:          "sqlite:///" + filepath.Join(dataDir, "shopvec.db"),
		logLevel:       DefaultLogLevel,
		logFormat:      LogFormatPretty,
		vectorBackend:  VectorBackendEmbedded,
		qdrant:         NewQdrantConfig(),
		collection:     DefaultCollection,
		textDimension:  DefaultTextDimension,
		imageDimension: DefaultImageDimension,
		syncConfig:     NewSyncConfig(),
		periodicSync:   NewPeriodicSyncConfig(),
		apiKeys:        []string{},
		reporting:      NewReportingConfig(),
		workerCount:    DefaultWorkerCount,
		searchLimit:    DefaultSearchLimit,
	}
}

// Host returns the server host to bind to.
func (c AppConfig) Host() string { return c.host }

// Port returns the server port to listen on.
func (c AppConfig) Port() int { return c.port }

// Addr returns the combined host:port address.
func (c AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.host, c.port)
}

// DataDir returns the data directory path.
func (c AppConfig) DataDir() string { return c.dataDir }

// DBURL returns the database connection URL.
func (c AppConfig) DBURL() string { return c.dbURL }

// HTTPCacheDir returns the directory for on-disk HTTP response caching.
// Empty means caching is disabled.
func (c AppConfig) HTTPCacheDir() string { return c.httpCacheDir }

// LogLevel returns the log level.
func (c AppConfig) LogLevel() string { return c.logLevel }

// LogFormat returns the log format.
func (c AppConfig) LogFormat() LogFormat { return c.logFormat }

// SkipProviderValidation returns whether to skip provider validation at startup.
// This is intended for testing only.
func (c AppConfig) SkipProviderValidation() bool { return c.skipProviderValidation }

// EmbeddingEndpoint returns the text embedding endpoint config.
func (c AppConfig) EmbeddingEndpoint() *Endpoint { return c.embeddingEndpoint }

// ImageEndpoint returns the image embedding endpoint config.
func (c AppConfig) ImageEndpoint() *Endpoint { return c.imageEndpoint }

// VectorBackend returns the configured vector store backend.
func (c AppConfig) VectorBackend() VectorBackend { return c.vectorBackend }

// Qdrant returns the Qdrant config.
func (c AppConfig) Qdrant() QdrantConfig { return c.qdrant }

// Collection returns the vector collection name.
func (c AppConfig) Collection() string { return c.collection }

// TextDimension returns the text embedding dimension.
func (c AppConfig) TextDimension() int { return c.textDimension }

// ImageDimension returns the image embedding dimension.
func (c AppConfig) ImageDimension() int { return c.imageDimension }

// Sync returns the sync config.
func (c AppConfig) Sync() SyncConfig { return c.syncConfig }

// PeriodicSync returns the periodic sync config.
func (c AppConfig) PeriodicSync() PeriodicSyncConfig { return c.periodicSync }

// Connectors returns the platform connector configs.
func (c AppConfig) Connectors() ConnectorsConfig { return c.connectors }

// APIKeys returns the configured API keys.
func (c AppConfig) APIKeys() []string {
	keys := make([]string, len(c.apiKeys))
	copy(keys, c.apiKeys)
	return keys
}

// Reporting returns the reporting config.
func (c AppConfig) Reporting() ReportingConfig { return c.reporting }

// WorkerCount returns the number of background workers.
func (c AppConfig) WorkerCount() int { return c.workerCount }

// SearchLimit returns the default search result limit.
func (c AppConfig) SearchLimit() int { return c.searchLimit }

// ModelsDir returns the local model directory path.
func (c AppConfig) ModelsDir() string {
	return filepath.Join(c.dataDir, DefaultModelsSubdir)
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c AppConfig) EnsureDataDir() error {
	return os.MkdirAll(c.dataDir, 0o755)
}

// EnsureModelsDir creates the model directory if it doesn't exist.
func (c AppConfig) EnsureModelsDir() error {
	return os.MkdirAll(c.ModelsDir(), 0o755)
}

// AppConfigOption is a functional option for AppConfig.
type AppConfigOption func(*AppConfig)

// WithHost sets the server host.
func WithHost(host string) AppConfigOption {
	return func(c *AppConfig) { c.host = host }
}

// WithPort sets the server port.
func WithPort(port int) AppConfigOption {
	return func(c *AppConfig) { c.port = port }
}

// WithDataDir sets the data directory.
func WithDataDir(dir string) AppConfigOption {
	return func(c *AppConfig) {
		c.dataDir = dir
		// Update default DB URL when data dir changes
		if c.dbURL == "" || strings.Contains(c.dbURL, "shopvec.db") {
			c.dbURL = "sqlite:///" + filepath.Join(dir, "shopvec.db")
		}
	}
}

// WithDBURL sets the database URL.
func WithDBURL(url string) AppConfigOption {
	return func(c *AppConfig) { c.dbURL = url }
}

// WithHTTPCacheDir enables on-disk HTTP response caching under dir.
func WithHTTPCacheDir(dir string) AppConfigOption {
	return func(c *AppConfig) { c.httpCacheDir = dir }
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) AppConfigOption {
	return func(c *AppConfig) { c.logLevel = level }
}

// WithLogFormat sets the log format.
func WithLogFormat(format LogFormat) AppConfigOption {
	return func(c *AppConfig) { c.logFormat = format }
}

// WithSkipProviderValidation sets whether to skip provider validation.
// WARNING: For testing only.
func WithSkipProviderValidation(skip bool) AppConfigOption {
	return func(c *AppConfig) { c.skipProviderValidation = skip }
}

// WithEmbeddingEndpoint sets the text embedding endpoint.
func WithEmbeddingEndpoint(e Endpoint) AppConfigOption {
	return func(c *AppConfig) { c.embeddingEndpoint = &e }
}

// WithImageEndpoint sets the image embedding endpoint.
func WithImageEndpoint(e Endpoint) AppConfigOption {
	return func(c *AppConfig) { c.imageEndpoint = &e }
}

// WithVectorBackend sets the vector store backend.
func WithVectorBackend(b VectorBackend) AppConfigOption {
	return func(c *AppConfig) { c.vectorBackend = b }
}

// WithQdrantConfig sets the Qdrant config.
func WithQdrantConfig(q QdrantConfig) AppConfigOption {
	return func(c *AppConfig) { c.qdrant = q }
}

// WithCollection sets the vector collection name.
func WithCollection(name string) AppConfigOption {
	return func(c *AppConfig) {
		if name != "" {
			c.collection = name
		}
	}
}

// WithTextDimension sets the text embedding dimension.
func WithTextDimension(dim int) AppConfigOption {
	return func(c *AppConfig) {
		if dim > 0 {
			c.textDimension = dim
		}
	}
}

// WithImageDimension sets the image embedding dimension.
// Zero disables the image vector space.
func WithImageDimension(dim int) AppConfigOption {
	return func(c *AppConfig) {
		if dim >= 0 {
			c.imageDimension = dim
		}
	}
}

// WithSyncConfig sets the sync config.
func WithSyncConfig(s SyncConfig) AppConfigOption {
	return func(c *AppConfig) { c.syncConfig = s }
}

// WithPeriodicSyncConfig sets the periodic sync config.
func WithPeriodicSyncConfig(p PeriodicSyncConfig) AppConfigOption {
	return func(c *AppConfig) { c.periodicSync = p }
}

// WithConnectorsConfig sets the platform connector configs.
func WithConnectorsConfig(cc ConnectorsConfig) AppConfigOption {
	return func(c *AppConfig) { c.connectors = cc }
}

// WithAPIKeys sets the API keys.
func WithAPIKeys(keys []string) AppConfigOption {
	return func(c *AppConfig) {
		c.apiKeys = make([]string, len(keys))
		copy(c.apiKeys, keys)
	}
}

// WithReportingConfig sets the reporting config.
func WithReportingConfig(r ReportingConfig) AppConfigOption {
	return func(c *AppConfig) { c.reporting = r }
}

// WithWorkerCount sets the number of background workers.
func WithWorkerCount(n int) AppConfigOption {
	return func(c *AppConfig) {
		if n > 0 {
			c.workerCount = n
		}
	}
}

// WithSearchLimit sets the default search result limit.
func WithSearchLimit(n int) AppConfigOption {
	return func(c *AppConfig) {
		if n > 0 {
			c.searchLimit = n
		}
	}
}

// NewAppConfigWithOptions creates an AppConfig with functional options.
func NewAppConfigWithOptions(opts ...AppConfigOption) AppConfig {
	c := NewAppConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Apply returns a new AppConfig with the given options applied.
// This copies all fields from the receiver and then applies the options,
// making it safe to use when adding new fields to AppConfig.
func (c AppConfig) Apply(opts ...AppConfigOption) AppConfig {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// LogAttrs returns slog attributes for logging the configuration.
// Sensitive values like API keys are masked or shown as counts.
func (c AppConfig) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("data_dir", c.dataDir),
		slog.String("log_level", c.logLevel),
		slog.String("db_url", c.maskedDBURL()),
		slog.String("vector_backend", string(c.vectorBackend)),
		slog.String("qdrant_url", c.qdrant.URL()),
		slog.String("collection", c.collection),
		slog.Int("text_dimension", c.textDimension),
		slog.Int("image_dimension", c.imageDimension),
		slog.String("embedding_base_url", c.endpointBaseURL(c.embeddingEndpoint)),
		slog.String("embedding_model", c.endpointModel(c.embeddingEndpoint)),
		slog.String("image_base_url", c.endpointBaseURL(c.imageEndpoint)),
		slog.Int("api_keys_count", len(c.apiKeys)),
		slog.Int("batch_size", c.syncConfig.BatchSize()),
		slog.Bool("periodic_sync_enabled", c.periodicSync.Enabled()),
		slog.Duration("periodic_sync_interval", c.periodicSync.Interval()),
	}
}

func (c AppConfig) maskedDBURL() string {
	if c.dbURL == "" {
		return "(default)"
	}
	if len(c.dbURL) >= 7 && c.dbURL[:7] == "sqlite:" {
		return c.dbURL
	}
	return "postgres://***@***"
}

func (c AppConfig) endpointBaseURL(e *Endpoint) string {
	if e == nil {
		return "(not configured)"
	}
	return e.BaseURL()
}

func (c AppConfig) endpointModel(e *Endpoint) string {
	if e == nil {
		return "(not configured)"
	}
	return e.Model()
}

// ParseAPIKeys parses a comma-separated string of API keys.
func ParseAPIKeys(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			keys = append(keys, trimmed)
		}
	}
	return keys
}
