// Package config provides application configuration.
package config

import (
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvConfig holds all environment-based configuration.
// Field names map directly to environment variables. Nested structs use
// underscore delimiters (e.g., EMBEDDING_ENDPOINT_BASE_URL).
type EnvConfig struct {
	// Host is the server host to bind to.
	// Env: HOST (default: 0.0.0.0)
	Host string `envconfig:"HOST" default:"0.0.0.0"`

	// Port is the server port to listen on.
	// Env: PORT (default: 8080)
	Port int `envconfig:"PORT" default:"8080"`

	// DataDir is the data directory path.
	// Env: DATA_DIR
	// Default: ~/.shopvec
	DataDir string `envconfig:"DATA_DIR"`

	// DBURL is the database connection URL.
	// Env: DB_URL
	// Default: sqlite:///{data_dir}/shopvec.db
	DBURL string `envconfig:"DB_URL"`

	// HTTPCacheDir enables on-disk caching of embedding HTTP responses.
	// Env: HTTP_CACHE_DIR
	HTTPCacheDir string `envconfig:"HTTP_CACHE_DIR"`

	// LogLevel is the log verbosity level.
	// Env: LOG_LEVEL (default: INFO)
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`

	// LogFormat is the log output format (pretty or json).
	// Env: LOG_FORMAT (default: pretty)
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// SkipProviderValidation skips embedding provider validation at startup.
	// Env: SKIP_PROVIDER_VALIDATION (default: false)
	// WARNING: For testing only.
	SkipProviderValidation bool `envconfig:"SKIP_PROVIDER_VALIDATION" default:"false"`

	// APIKeys is a comma-separated list of valid API keys.
	// Env: API_KEYS
	APIKeys string `envconfig:"API_KEYS"`

	// EmbeddingEndpoint configures the text embedding service.
	EmbeddingEndpoint EndpointEnv `envconfig:"EMBEDDING_ENDPOINT"`

	// ImageEndpoint configures the image embedding service.
	ImageEndpoint EndpointEnv `envconfig:"IMAGE_ENDPOINT"`

	// VectorBackend selects the vector store implementation (embedded or qdrant).
	// Env: VECTOR_BACKEND (default: embedded)
	VectorBackend string `envconfig:"VECTOR_BACKEND" default:"embedded"`

	// Qdrant configures the Qdrant server connection.
	Qdrant QdrantEnv `envconfig:"QDRANT"`

	// Collection is the vector collection name.
	// Env: COLLECTION (default: products)
	Collection string `envconfig:"COLLECTION" default:"products"`

	// TextDimension is the text embedding dimension.
	// Env: TEXT_DIMENSION (default: 384)
	TextDimension int `envconfig:"TEXT_DIMENSION" default:"384"`

	// ImageDimension is the image embedding dimension (0 disables image vectors).
	// Env: IMAGE_DIMENSION (default: 512)
	ImageDimension int `envconfig:"IMAGE_DIMENSION" default:"512"`

	// Sync configures batch size and retry behavior for catalog syncs.
	Sync SyncEnv `envconfig:"SYNC"`

	// PeriodicSync configures periodic platform syncing.
	PeriodicSync PeriodicSyncEnv `envconfig:"PERIODIC_SYNC"`

	// Fakestore configures the Fake Store API connector.
	Fakestore FakestoreEnv `envconfig:"FAKESTORE"`

	// Magento configures the Magento connector.
	Magento MagentoEnv `envconfig:"MAGENTO"`

	// Odoo configures the Odoo connector.
	Odoo OdooEnv `envconfig:"ODOO"`

	// SeedPath is the YAML seed file path for the seed connector.
	// Env: SEED_PATH
	// Kept top-level: a nested PATH tag would fall back to the system PATH
	// variable when SEED_PATH is unset.
	SeedPath string `envconfig:"SEED_PATH"`

	// Reporting configures progress reporting.
	Reporting ReportingEnv `envconfig:"REPORTING"`

	// WorkerCount is the number of background workers.
	// Env: WORKER_COUNT (default: 1)
	WorkerCount int `envconfig:"WORKER_COUNT" default:"1"`

	// SearchLimit is the default search result limit.
	// Env: SEARCH_LIMIT (default: 10)
	SearchLimit int `envconfig:"SEARCH_LIMIT" default:"10"`
}

// EndpointEnv holds environment configuration for an embedding endpoint.
type EndpointEnv struct {
	// BaseURL is the base URL for the endpoint.
	// Env: *_BASE_URL
	BaseURL string `envconfig:"BASE_URL"`

	// Model is the model identifier (e.g., text-embedding-3-small).
	// Env: *_MODEL
	Model string `envconfig:"MODEL"`

	// APIKey is the API key for authentication.
	// Env: *_API_KEY
	APIKey string `envconfig:"API_KEY"`

	// NumParallelTasks is the number of parallel tasks.
	// Env: *_NUM_PARALLEL_TASKS (default: 1)
	NumParallelTasks int `envconfig:"NUM_PARALLEL_TASKS" default:"1"`

	// Timeout is the request timeout in seconds.
	// Env: *_TIMEOUT (default: 60)
	Timeout float64 `envconfig:"TIMEOUT" default:"60"`

	// MaxRetries is the maximum number of retries.
	// Env: *_MAX_RETRIES (default: 5)
	MaxRetries int `envconfig:"MAX_RETRIES" default:"5"`

	// InitialDelay is the initial retry delay in seconds.
	// Env: *_INITIAL_DELAY (default: 2.0)
	InitialDelay float64 `envconfig:"INITIAL_DELAY" default:"2.0"`

	// BackoffFactor is the retry backoff multiplier.
	// Env: *_BACKOFF_FACTOR (default: 2.0)
	BackoffFactor float64 `envconfig:"BACKOFF_FACTOR" default:"2.0"`

	// MaxBatchChars is the maximum total characters per embedding batch.
	// Env: *_MAX_BATCH_CHARS (default: 16000)
	MaxBatchChars int `envconfig:"MAX_BATCH_CHARS" default:"16000"`
}

// QdrantEnv holds environment configuration for Qdrant.
type QdrantEnv struct {
	// URL is the Qdrant server URL.
	// Env: QDRANT_URL
	URL string `envconfig:"URL"`

	// APIKey is the Qdrant API key.
	// Env: QDRANT_API_KEY
	APIKey string `envconfig:"API_KEY"`

	// Timeout is the request timeout in seconds.
	// Env: QDRANT_TIMEOUT (default: 30)
	Timeout float64 `envconfig:"TIMEOUT" default:"30"`
}

// SyncEnv holds environment configuration for catalog syncs.
type SyncEnv struct {
	// BatchSize is the number of items fetched and indexed per batch.
	// Env: SYNC_BATCH_SIZE (default: 32)
	BatchSize int `envconfig:"BATCH_SIZE" default:"32"`

	// MaxAttempts is the maximum attempts per batch before the run fails.
	// Env: SYNC_MAX_ATTEMPTS (default: 3)
	MaxAttempts int `envconfig:"MAX_ATTEMPTS" default:"3"`

	// InitialDelay is the delay before the first retry in seconds.
	// Env: SYNC_INITIAL_DELAY (default: 5)
	InitialDelay float64 `envconfig:"INITIAL_DELAY" default:"5"`

	// BackoffFactor is the retry backoff multiplier.
	// Env: SYNC_BACKOFF_FACTOR (default: 2.0)
	BackoffFactor float64 `envconfig:"BACKOFF_FACTOR" default:"2.0"`
}

// PeriodicSyncEnv holds environment configuration for periodic sync.
type PeriodicSyncEnv struct {
	// Enabled controls whether periodic sync is enabled.
	// Env: PERIODIC_SYNC_ENABLED (default: true)
	Enabled bool `envconfig:"ENABLED" default:"true"`

	// IntervalSeconds is the sync interval in seconds.
	// Env: PERIODIC_SYNC_INTERVAL_SECONDS (default: 1800)
	IntervalSeconds float64 `envconfig:"INTERVAL_SECONDS" default:"1800"`

	// CheckIntervalSeconds is how often to check for due platforms in seconds.
	// Env: PERIODIC_SYNC_CHECK_INTERVAL_SECONDS (default: 10)
	CheckIntervalSeconds float64 `envconfig:"CHECK_INTERVAL_SECONDS" default:"10"`

	// RetryAttempts is the number of retry attempts.
	// Env: PERIODIC_SYNC_RETRY_ATTEMPTS (default: 3)
	RetryAttempts int `envconfig:"RETRY_ATTEMPTS" default:"3"`
}

// FakestoreEnv holds environment configuration for the Fake Store connector.
type FakestoreEnv struct {
	// BaseURL is the Fake Store API base URL.
	// Env: FAKESTORE_BASE_URL
	BaseURL string `envconfig:"BASE_URL"`
}

// MagentoEnv holds environment configuration for the Magento connector.
type MagentoEnv struct {
	// BaseURL is the Magento store base URL, without the /rest suffix.
	// Env: MAGENTO_BASE_URL
	BaseURL string `envconfig:"BASE_URL"`

	// Token is the Magento integration bearer token.
	// Env: MAGENTO_TOKEN
	Token string `envconfig:"TOKEN"`
}

// OdooEnv holds environment configuration for the Odoo connector.
type OdooEnv struct {
	// URL is the Odoo server URL.
	// Env: ODOO_URL
	URL string `envconfig:"URL"`

	// Database is the Odoo database name.
	// Env: ODOO_DATABASE
	Database string `envconfig:"DATABASE"`

	// Username is the Odoo login username.
	// Env: ODOO_USERNAME
	Username string `envconfig:"USERNAME"`

	// Password is the Odoo login password.
	// Env: ODOO_PASSWORD
	Password string `envconfig:"PASSWORD"`
}

// ReportingEnv holds environment configuration for reporting.
type ReportingEnv struct {
	// LogTimeInterval is the logging interval in seconds.
	// Env: REPORTING_LOG_TIME_INTERVAL (default: 5)
	LogTimeInterval float64 `envconfig:"LOG_TIME_INTERVAL" default:"5"`
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// LoadFromEnvWithPrefix loads configuration with a custom prefix.
// For example, prefix "SHOPVEC" would require SHOPVEC_DATA_DIR instead of DATA_DIR.
func LoadFromEnvWithPrefix(prefix string) (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// ToAppConfig converts EnvConfig to AppConfig.
func (e EnvConfig) ToAppConfig() AppConfig {
	cfg := NewAppConfig()

	// Apply overrides from environment
	if e.Host != "" {
		cfg = applyOption(cfg, WithHost(e.Host))
	}
	if e.Port != 0 {
		cfg = applyOption(cfg, WithPort(e.Port))
	}
	if e.DataDir != "" {
		cfg = applyOption(cfg, WithDataDir(e.DataDir))
	}
	if e.DBURL != "" {
		cfg = applyOption(cfg, WithDBURL(e.DBURL))
	}
	if e.HTTPCacheDir != "" {
		cfg = applyOption(cfg, WithHTTPCacheDir(e.HTTPCacheDir))
	}
	if e.LogLevel != "" {
		cfg = applyOption(cfg, WithLogLevel(e.LogLevel))
	}
	if e.LogFormat != "" {
		cfg = applyOption(cfg, WithLogFormat(parseLogFormat(e.LogFormat)))
	}
	cfg = applyOption(cfg, WithSkipProviderValidation(e.SkipProviderValidation))

	if e.APIKeys != "" {
		cfg = applyOption(cfg, WithAPIKeys(ParseAPIKeys(e.APIKeys)))
	}

	// Embedding endpoints
	if e.EmbeddingEndpoint.IsConfigured() {
		cfg = applyOption(cfg, WithEmbeddingEndpoint(e.EmbeddingEndpoint.ToEndpoint()))
	}
	if e.ImageEndpoint.IsConfigured() {
		cfg = applyOption(cfg, WithImageEndpoint(e.ImageEndpoint.ToEndpoint()))
	}

	// Vector store
	if e.VectorBackend != "" {
		cfg = applyOption(cfg, WithVectorBackend(parseVectorBackend(e.VectorBackend)))
	}
	cfg = applyOption(cfg, WithQdrantConfig(e.Qdrant.ToQdrantConfig()))
	cfg = applyOption(cfg, WithCollection(e.Collection))
	cfg = applyOption(cfg, WithTextDimension(e.TextDimension))
	cfg = applyOption(cfg, WithImageDimension(e.ImageDimension))

	// Sync config
	cfg = applyOption(cfg, WithSyncConfig(e.Sync.ToSyncConfig()))
	cfg = applyOption(cfg, WithPeriodicSyncConfig(e.PeriodicSync.ToPeriodicSyncConfig()))

	// Connectors
	cfg = applyOption(cfg, WithConnectorsConfig(e.ToConnectorsConfig()))

	// Reporting config
	cfg = applyOption(cfg, WithReportingConfig(e.Reporting.ToReportingConfig()))

	// Worker count
	if e.WorkerCount > 0 {
		cfg = applyOption(cfg, WithWorkerCount(e.WorkerCount))
	}

	// Search limit
	if e.SearchLimit > 0 {
		cfg = applyOption(cfg, WithSearchLimit(e.SearchLimit))
	}

	return cfg
}

// applyOption applies an option to the config.
func applyOption(cfg AppConfig, opt AppConfigOption) AppConfig {
	opt(&cfg)
	return cfg
}

// IsConfigured returns true if the endpoint has a model or base URL configured.
func (e EndpointEnv) IsConfigured() bool {
	return e.Model != "" || e.BaseURL != ""
}

// ToEndpoint converts EndpointEnv to Endpoint.
func (e EndpointEnv) ToEndpoint() Endpoint {
	opts := []EndpointOption{
		WithModel(e.Model),
		WithNumParallelTasks(e.NumParallelTasks),
		WithTimeout(time.Duration(e.Timeout * float64(time.Second))),
		WithMaxRetries(e.MaxRetries),
		WithInitialDelay(time.Duration(e.InitialDelay * float64(time.Second))),
		WithBackoffFactor(e.BackoffFactor),
		WithMaxBatchChars(e.MaxBatchChars),
	}

	if e.BaseURL != "" {
		opts = append(opts, WithBaseURL(e.BaseURL))
	}
	if e.APIKey != "" {
		opts = append(opts, WithAPIKey(e.APIKey))
	}

	return NewEndpointWithOptions(opts...)
}

// ToQdrantConfig converts QdrantEnv to QdrantConfig.
func (q QdrantEnv) ToQdrantConfig() QdrantConfig {
	cfg := NewQdrantConfig().
		WithQdrantURL(q.URL).
		WithQdrantAPIKey(q.APIKey)
	if q.Timeout > 0 {
		cfg = cfg.WithQdrantTimeout(time.Duration(q.Timeout * float64(time.Second)))
	}
	return cfg
}

// ToSyncConfig converts SyncEnv to SyncConfig.
func (s SyncEnv) ToSyncConfig() SyncConfig {
	return NewSyncConfig().
		WithBatchSize(s.BatchSize).
		WithMaxAttempts(s.MaxAttempts).
		WithSyncInitialDelay(time.Duration(s.InitialDelay * float64(time.Second))).
		WithSyncBackoffFactor(s.BackoffFactor)
}

// ToPeriodicSyncConfig converts PeriodicSyncEnv to PeriodicSyncConfig.
func (p PeriodicSyncEnv) ToPeriodicSyncConfig() PeriodicSyncConfig {
	return NewPeriodicSyncConfig().
		WithEnabled(p.Enabled).
		WithIntervalSeconds(p.IntervalSeconds).
		WithCheckIntervalSeconds(p.CheckIntervalSeconds).
		WithRetryAttempts(p.RetryAttempts)
}

// ToConnectorsConfig builds a ConnectorsConfig from connector env sections.
func (e EnvConfig) ToConnectorsConfig() ConnectorsConfig {
	cfg := NewConnectorsConfig()
	if e.Fakestore.BaseURL != "" {
		cfg = cfg.WithFakestore(NewFakestoreConfig(e.Fakestore.BaseURL))
	}
	if e.Magento.BaseURL != "" {
		cfg = cfg.WithMagento(NewMagentoConfig(e.Magento.BaseURL, e.Magento.Token))
	}
	if e.Odoo.URL != "" {
		cfg = cfg.WithOdoo(NewOdooConfig(e.Odoo.URL, e.Odoo.Database, e.Odoo.Username, e.Odoo.Password))
	}
	if e.SeedPath != "" {
		cfg = cfg.WithSeed(NewSeedConfig(e.SeedPath))
	}
	return cfg
}

// ToReportingConfig converts ReportingEnv to ReportingConfig.
func (r ReportingEnv) ToReportingConfig() ReportingConfig {
	return NewReportingConfig().
		WithLogTimeInterval(time.Duration(r.LogTimeInterval * float64(time.Second)))
}

// parseLogFormat parses a log format string.
func parseLogFormat(s string) LogFormat {
	switch strings.ToLower(s) {
	case "json":
		return LogFormatJSON
	default:
		return LogFormatPretty
	}
}

// parseVectorBackend parses a vector backend string.
func parseVectorBackend(s string) VectorBackend {
	switch strings.ToLower(s) {
	case string(VectorBackendQdrant):
		return VectorBackendQdrant
	default:
		return VectorBackendEmbedded
	}
}
