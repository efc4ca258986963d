package shopvec

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopvec/shopvec/infrastructure/provider"
	"github.com/shopvec/shopvec/internal/config"
)

// databaseType identifies the database.
type databaseType int

const (
	databaseUnset databaseType = iota
	databaseSQLite
	databasePostgres
)

// clientConfig holds configuration for Client construction.
// Use newClientConfig() to create with defaults from internal/config.
type clientConfig struct {
	database               databaseType
	dbPath                 string
	dbDSN                  string
	dataDir                string
	modelDir               string
	collection             string
	textDimension          int
	imageDimension         int
	vectorBackend          config.VectorBackend
	qdrant                 config.QdrantConfig
	embeddingProvider      provider.Embedder
	imageEmbedder          provider.ImageEmbedder
	connectors             config.ConnectorsConfig
	syncConfig             config.SyncConfig
	periodicSync           config.PeriodicSyncConfig
	httpClient             *http.Client
	logger                 *slog.Logger
	apiKeys                []string
	workerPollPeriod       time.Duration
	skipProviderValidation bool
	closers                []io.Closer
}

// newClientConfig creates a clientConfig with defaults from internal/config.
// This ensures all defaults come from the single source of truth.
func newClientConfig() *clientConfig {
	return &clientConfig{
		dataDir:        config.DefaultDataDir(),
		collection:     config.DefaultCollection,
		textDimension:  config.DefaultTextDimension,
		imageDimension: config.DefaultImageDimension,
		vectorBackend:  config.VectorBackendEmbedded,
		qdrant:         config.NewQdrantConfig(),
		connectors:     config.NewConnectorsConfig(),
		syncConfig:     config.NewSyncConfig(),
		periodicSync:   config.NewPeriodicSyncConfig(),
	}
}

// Option configures the Client.
type Option func(*clientConfig)

// WithSQLite configures SQLite as the database. Vectors are stored
// embedded, as JSON rows, unless WithQdrant overrides the backend.
func WithSQLite(path string) Option {
	return func(c *clientConfig) {
		c.database = databaseSQLite
		c.dbPath = path
	}
}

// WithPostgres configures PostgreSQL as the database.
func WithPostgres(dsn string) Option {
	return func(c *clientConfig) {
		c.database = databasePostgres
		c.dbDSN = dsn
	}
}

// WithQdrant configures Qdrant as the vector store backend instead of
// the embedded store.
func WithQdrant(cfg config.QdrantConfig) Option {
	return func(c *clientConfig) {
		c.vectorBackend = config.VectorBackendQdrant
		c.qdrant = cfg
	}
}

// WithCollection sets the vector collection name.
// Defaults to "products".
func WithCollection(name string) Option {
	return func(c *clientConfig) {
		if name != "" {
			c.collection = name
		}
	}
}

// WithOpenAI sets OpenAI as the text embedding provider.
func WithOpenAI(apiKey string) Option {
	return func(c *clientConfig) {
		c.embeddingProvider = provider.NewOpenAIProvider(apiKey)
	}
}

// WithEmbeddingProvider sets a custom text embedding provider.
func WithEmbeddingProvider(p provider.Embedder) Option {
	return func(c *clientConfig) {
		c.embeddingProvider = p
	}
}

// WithImageEmbedder sets an image embedding provider, enabling the
// image vector space.
func WithImageEmbedder(p provider.ImageEmbedder) Option {
	return func(c *clientConfig) {
		c.imageEmbedder = p
	}
}

// WithTextDimension sets the text embedding dimension.
// Defaults to 384, the built-in model's output size.
func WithTextDimension(dim int) Option {
	return func(c *clientConfig) {
		if dim > 0 {
			c.textDimension = dim
		}
	}
}

// WithImageDimension sets the image embedding dimension.
// Only meaningful together with WithImageEmbedder.
func WithImageDimension(dim int) Option {
	return func(c *clientConfig) {
		if dim > 0 {
			c.imageDimension = dim
		}
	}
}

// WithConnectorsConfig sets the platform connector configuration.
func WithConnectorsConfig(cfg config.ConnectorsConfig) Option {
	return func(c *clientConfig) {
		c.connectors = cfg
	}
}

// WithSyncConfig sets the sync batch size and retry policy.
func WithSyncConfig(cfg config.SyncConfig) Option {
	return func(c *clientConfig) {
		c.syncConfig = cfg
	}
}

// WithPeriodicSyncConfig sets the periodic sync configuration.
func WithPeriodicSyncConfig(cfg config.PeriodicSyncConfig) Option {
	return func(c *clientConfig) {
		c.periodicSync = cfg
	}
}

// WithHTTPClient sets the HTTP client used by platform connectors and
// remote embedding endpoints.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithDataDir sets the data directory for database and model storage.
func WithDataDir(dir string) Option {
	return func(c *clientConfig) {
		c.dataDir = dir
	}
}

// WithModelDir sets the directory where built-in model files are stored.
// Defaults to {dataDir}/models if not specified.
func WithModelDir(dir string) Option {
	return func(c *clientConfig) {
		c.modelDir = dir
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}

// WithAPIKeys sets the API keys for HTTP API authentication.
func WithAPIKeys(keys ...string) Option {
	return func(c *clientConfig) {
		c.apiKeys = keys
	}
}

// WithWorkerPollPeriod sets how often the background worker checks for new tasks.
// Defaults to 1 second. Lower values speed up task processing at the cost of
// more frequent polling — useful in tests.
func WithWorkerPollPeriod(d time.Duration) Option {
	return func(c *clientConfig) {
		c.workerPollPeriod = d
	}
}

// WithSkipProviderValidation skips the handler validation at startup.
// This is intended for testing only.
func WithSkipProviderValidation() Option {
	return func(c *clientConfig) {
		c.skipProviderValidation = true
	}
}

// WithCloser registers a resource to be closed when the Client shuts down.
func WithCloser(c io.Closer) Option {
	return func(cfg *clientConfig) {
		cfg.closers = append(cfg.closers, c)
	}
}
