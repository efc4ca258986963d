// Package shopvec provides a library for product catalog ingestion,
// embedding, and semantic search.
//
// Shopvec pulls product catalogs from e-commerce platforms, embeds
// titles and descriptions, and indexes the vectors for filtered
// semantic and hybrid search. Indexing is checkpointed, so interrupted
// syncs resume where they left off.
//
// Basic usage:
//
//	client, err := shopvec.New(
//	    shopvec.WithSQLite(".shopvec/data.db"),
//	    shopvec.WithOpenAI(os.Getenv("OPENAI_API_KEY")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Ingest and index a platform catalog
//	result, err := client.Sync.SyncPlatform(ctx, service.SyncPlatformParams{
//	    Platform: "fakestore",
//	})
//
//	// Filtered semantic search
//	results, err := client.Index.SearchProducts(ctx, "wireless headphones",
//	    service.WithLimit(10),
//	    service.WithMaxPrice(200),
//	)
//
//	for _, res := range results {
//	    fmt.Println(res.Payload().String("title"), res.Score())
//	}
package shopvec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopvec/shopvec/application/service"
	"github.com/shopvec/shopvec/domain/catalog"
	domainsync "github.com/shopvec/shopvec/domain/sync"
	"github.com/shopvec/shopvec/domain/task"
	"github.com/shopvec/shopvec/infrastructure/connector"
	"github.com/shopvec/shopvec/infrastructure/persistence"
	"github.com/shopvec/shopvec/infrastructure/provider"
	"github.com/shopvec/shopvec/infrastructure/tracking"
	"github.com/shopvec/shopvec/infrastructure/vectorstore"
	"github.com/shopvec/shopvec/internal/config"
	"github.com/shopvec/shopvec/internal/database"
)

// ErrNoDatabase indicates no database was configured.
// Pass WithSQLite or WithPostgres to New.
var ErrNoDatabase = errors.New("shopvec: no database configured")

// ErrClientClosed indicates the client has already been closed.
var ErrClientClosed = service.ErrClientClosed

// Client is the main entry point for the shopvec library.
// The background worker starts automatically on creation.
//
// Access resources via struct fields:
//
//	client.Index.SearchProducts(ctx, "query")
//	client.Sync.Run(ctx, service.RunParams{})
//	client.Records.Find(ctx)
type Client struct {
	// Public resource fields (direct service access)
	Index      *service.Indexing
	Sync       *service.SyncControl
	Tasks      *service.Queue
	Records    catalog.RecordStore
	Connectors *connector.Factory
	Statuses   task.StatusStore

	db          database.Database
	checkpoints domainsync.CheckpointStore
	taskStore   task.TaskStore

	// Application services (internal only)
	worker       *service.Worker
	periodicSync *service.PeriodicSync
	registry     *service.Registry

	trackerFactory *trackerFactoryImpl
	generator      *provider.Generator
	closers        []io.Closer

	logger  *slog.Logger
	dataDir string
	apiKeys []string
	closed  atomic.Bool
	mu      sync.Mutex
}

// New creates a new Client with the given options.
// The background worker is started automatically.
func New(opts ...Option) (*Client, error) {
	cfg := newClientConfig()

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.database == databaseUnset {
		return nil, ErrNoDatabase
	}

	// Set up logger
	logger := cfg.logger
	if logger == nil {
		logger = config.DefaultLogger()
	}

	// Set up data directory
	dataDir, err := config.PrepareDataDir(cfg.dataDir)
	if err != nil {
		return nil, err
	}

	// Create built-in embedding provider if no external provider is configured
	if cfg.embeddingProvider == nil {
		modelDir := cfg.modelDir
		if modelDir == "" {
			modelDir = filepath.Join(dataDir, config.DefaultModelsSubdir)
		}
		hugotEmbedding := provider.NewHugotEmbedding(modelDir)
		if !hugotEmbedding.Available() {
			return nil, fmt.Errorf("no embedding model found in %s: run 'go run ./tools/download-model %s' or configure an external embedding provider", modelDir, modelDir)
		}
		cfg.embeddingProvider = hugotEmbedding
		logger.Info("built-in embedding provider enabled", slog.String("model_dir", modelDir))
	}

	// Compose the embedding generator. Without an image embedder the
	// image vector space is disabled.
	imageDimension := cfg.imageDimension
	if cfg.imageEmbedder == nil {
		imageDimension = 0
	}
	generator := provider.NewGenerator(cfg.embeddingProvider, cfg.imageEmbedder, cfg.textDimension, imageDimension, logger)

	// Build database URL
	ctx := context.Background()
	dbURL, err := buildDatabaseURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("build database url: %w", err)
	}

	// Open database
	db, err := database.NewDatabase(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Run auto migration
	if err := persistence.AutoMigrate(db); err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("auto migrate: %w", err), errClose)
	}

	// Validate schema matches GORM models
	if err := persistence.ValidateSchema(db); err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("validate schema: %w", err), errClose)
	}

	// Create stores
	recordStore := persistence.NewRecordStore(db)
	checkpointStore := persistence.NewCheckpointStore(db)
	taskStore := persistence.NewTaskStore(db)
	statusStore := persistence.NewStatusStore(db)

	// Create connector factory
	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	connectors := connector.NewFactory(cfg.connectors, recordStore, httpClient, logger)

	// Create vector store
	storeCfg := config.NewAppConfig().Apply(
		config.WithVectorBackend(cfg.vectorBackend),
		config.WithQdrantConfig(cfg.qdrant),
		config.WithCollection(cfg.collection),
		config.WithTextDimension(cfg.textDimension),
		config.WithImageDimension(imageDimension),
	)
	vectorStore, err := vectorstore.New(storeCfg, db, logger)
	if err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("vector store: %w", err), errClose)
	}

	// Create application services
	indexing := service.NewIndexing(vectorStore, generator, cfg.collection, logger)
	syncControl, err := service.NewSyncControl(recordStore, checkpointStore, connectors, indexing, cfg.syncConfig, logger)
	if err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("sync control: %w", err), errClose)
	}

	registry := service.NewRegistry()
	queue := service.NewQueue(taskStore, logger)

	// Ensure the collection exists with the configured vector spaces.
	if err := indexing.EnsureCollection(ctx); err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("ensure collection: %w", err), errClose)
	}

	// Create tracker factory for progress reporting.
	// Wrap reporters in cooldowns so batch-level progress updates reach
	// the database and the log at a bounded rate per status ID.
	dbCooldown := tracking.NewCooldown(tracking.NewDBReporter(statusStore, logger), tracking.DefaultProgressInterval)
	logCooldown := tracking.NewCooldown(tracking.NewLoggingReporter(logger), tracking.DefaultProgressInterval)
	trackerFactory := &trackerFactoryImpl{
		reporters: []tracking.Reporter{dbCooldown, logCooldown},
		logger:    logger,
	}
	worker := service.NewWorker(taskStore, registry, &workerTrackerAdapter{trackerFactory}, logger)
	if cfg.workerPollPeriod > 0 {
		worker.WithPollPeriod(cfg.workerPollPeriod)
	}
	periodicSync := service.NewPeriodicSync(cfg.periodicSync, connectors, queue, logger)

	// Register cooldowns for cleanup on close so pending statuses are flushed.
	cfg.closers = append(cfg.closers, dbCooldown, logCooldown)

	client := &Client{
		Index:          indexing,
		Sync:           syncControl,
		Tasks:          queue,
		Records:        recordStore,
		Connectors:     connectors,
		Statuses:       statusStore,
		db:             db,
		checkpoints:    checkpointStore,
		taskStore:      taskStore,
		worker:         worker,
		periodicSync:   periodicSync,
		registry:       registry,
		trackerFactory: trackerFactory,
		generator:      generator,
		closers:        cfg.closers,
		logger:         logger,
		dataDir:        dataDir,
		apiKeys:        cfg.apiKeys,
	}

	// Register task handlers
	client.registerHandlers()

	// Validate all queue operations have handlers
	if !cfg.skipProviderValidation {
		if err := client.validateHandlers(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	// Start the background worker and periodic sync
	worker.Start(ctx)
	periodicSync.Start(ctx)

	return client, nil
}

// Close releases all resources and stops the background worker.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClientClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Stop the periodic sync and worker
	c.periodicSync.Stop()
	c.worker.Stop()

	// Close the embedding generator and its providers
	if err := c.generator.Close(); err != nil {
		c.logger.Error("failed to close embedding generator", slog.Any("error", err))
	}

	// Close registered resources (e.g. caching transports, cooldowns)
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			c.logger.Error("failed to close resource", slog.Any("error", err))
		}
	}

	// Close the database
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}

	c.logger.Info("shopvec client closed")
	return nil
}

// APIKeys returns the configured API keys for write protection.
func (c *Client) APIKeys() []string {
	keys := make([]string, len(c.apiKeys))
	copy(keys, c.apiKeys)
	return keys
}

// DataDir returns the resolved data directory.
func (c *Client) DataDir() string {
	return c.dataDir
}

// Logger returns the client's logger.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}
