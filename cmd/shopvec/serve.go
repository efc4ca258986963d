package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	shopvec "github.com/shopvec/shopvec"
	"github.com/shopvec/shopvec/infrastructure/api"
	"github.com/shopvec/shopvec/internal/config"
	"github.com/shopvec/shopvec/internal/log"
)

func serveCmd() *cobra.Command {
	var (
		envFile string
		host    string
		port    int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server.

Configuration is loaded in the following order (later sources override earlier):
  1. Default values
  2. .env file (if --env-file specified or .env exists in current directory)
  3. Environment variables
  4. Command line flags

Environment variables:
  HOST                         Server host to bind to (default: 0.0.0.0)
  PORT                         Server port to listen on (default: 8080)
  DATA_DIR                     Data directory (default: ~/.shopvec)
  DB_URL                       Database URL (default: sqlite:///{data_dir}/shopvec.db)
  LOG_LEVEL                    Log level: DEBUG, INFO, WARN, ERROR (default: INFO)
  LOG_FORMAT                   Log format: pretty, json (default: pretty)
  API_KEYS                     Comma-separated list of valid API keys
  COLLECTION                   Vector collection name (default: products)

  EMBEDDING_ENDPOINT_*         Text embedding service configuration
    BASE_URL                   Base URL (e.g., https://api.openai.com/v1)
    MODEL                      Model identifier (e.g., text-embedding-3-small)
    API_KEY                    API key for authentication
    TIMEOUT                    Request timeout in seconds (default: 60)
    MAX_RETRIES                Retry attempts (default: 5)

  IMAGE_ENDPOINT_*             Image embedding service configuration
    (same fields as EMBEDDING_ENDPOINT)

  VECTOR_BACKEND               Vector store: embedded, qdrant (default: embedded)
  QDRANT_URL                   Qdrant server URL
  QDRANT_API_KEY               Qdrant API key

  SYNC_BATCH_SIZE              Records per indexing batch (default: 32)
  PERIODIC_SYNC_ENABLED        Enable periodic sync (default: false)
  PERIODIC_SYNC_INTERVAL_SECONDS  Sync interval (default: 1800)

  FAKESTORE_BASE_URL           Fake Store API base URL
  MAGENTO_BASE_URL             Magento store base URL
  MAGENTO_TOKEN                Magento integration token
  ODOO_URL, ODOO_DATABASE, ODOO_USERNAME, ODOO_PASSWORD
  SEED_PATH                    YAML seed catalog path`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(envFile, host, port)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().StringVar(&host, "host", "", "Server host to bind to (default: 0.0.0.0)")
	cmd.Flags().IntVar(&port, "port", 0, "Server port to listen on (default: 8080)")

	return cmd
}

func runServe(envFile, host string, port int) error {
	// Load configuration
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	// Apply command line overrides (flags take precedence over env vars)
	cfg = applyServeOverrides(cfg, host, port)

	addr := cfg.Addr()

	// Ensure directories exist
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	// Setup logger
	logger := log.NewLogger(cfg)
	slogger := logger.Slog()

	// Build shopvec client options
	opts, err := clientOptions(cfg)
	if err != nil {
		return err
	}
	opts = append(opts, shopvec.WithLogger(slogger))

	if keys := cfg.APIKeys(); len(keys) > 0 {
		opts = append(opts, shopvec.WithAPIKeys(keys...))
	}

	// Create shopvec client and log settings
	attrs := append([]slog.Attr{slog.String("version", version)}, cfg.LogAttrs()...)
	slogger.LogAttrs(context.Background(), slog.LevelInfo, "starting shopvec", attrs...)

	client, err := shopvec.New(opts...)
	if err != nil {
		return fmt.Errorf("create shopvec client: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			slogger.Error("failed to close shopvec client", slog.Any("error", err))
		}
	}()

	// Create API server with the client's services
	apiServer := api.NewAPIServer(client, cfg.APIKeys())
	router := apiServer.Router()

	// Mount API routes
	apiServer.MountRoutes()

	// Health and readiness endpoints
	router.Get("/health", healthHandler)
	router.Get("/healthz", healthHandler)
	router.Get("/readyz", readyHandler(client))

	// Root endpoint with API info
	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, `{"name":"shopvec","version":"%s"}`, version)
	})

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Create standalone server for custom router
	server := api.NewServer(addr, slogger)
	server.Router().Mount("/", router)

	go func() {
		<-sigChan
		slogger.Info("shutting down server")
		cancel()
		if err := server.Shutdown(ctx); err != nil {
			slogger.Error("shutdown error", slog.Any("error", err))
		}
	}()

	slogger.Info("starting server", slog.String("addr", addr))
	if err := server.Start(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// readyHandler reports readiness by probing the vector collection. A
// failing store means the instance should not receive traffic yet.
func readyHandler(client *shopvec.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := client.Index.Info(r.Context(), client.Index.Collection()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"not ready"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	}
}

// applyServeOverrides applies command line flag overrides to the config.
func applyServeOverrides(cfg config.AppConfig, host string, port int) config.AppConfig {
	var opts []config.AppConfigOption

	if host != "" {
		opts = append(opts, config.WithHost(host))
	}
	if port != 0 {
		opts = append(opts, config.WithPort(port))
	}

	return cfg.Apply(opts...)
}
