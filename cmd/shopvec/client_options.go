package main

import (
	"fmt"
	"net/http"
	"strings"

	shopvec "github.com/shopvec/shopvec"
	"github.com/shopvec/shopvec/infrastructure/provider"
	"github.com/shopvec/shopvec/internal/config"
)

// clientOptions returns the shopvec.Option slice derived from the shared
// parts of AppConfig: database storage, embedding providers, vector
// backend, and connectors. Callers append entrypoint-specific options
// (API keys, worker poll period) before passing the full slice to
// shopvec.New.
func clientOptions(cfg config.AppConfig) ([]shopvec.Option, error) {
	opts := []shopvec.Option{
		shopvec.WithDataDir(cfg.DataDir()),
		shopvec.WithModelDir(cfg.ModelsDir()),
		shopvec.WithCollection(cfg.Collection()),
		shopvec.WithTextDimension(cfg.TextDimension()),
		shopvec.WithConnectorsConfig(cfg.Connectors()),
		shopvec.WithSyncConfig(cfg.Sync()),
		shopvec.WithPeriodicSyncConfig(cfg.PeriodicSync()),
	}

	opts = append(opts, storageOptions(cfg)...)

	if cfg.VectorBackend() == config.VectorBackendQdrant {
		opts = append(opts, shopvec.WithQdrant(cfg.Qdrant()))
	}

	embOpts, err := embeddingOptions(cfg)
	if err != nil {
		return nil, fmt.Errorf("embedding config: %w", err)
	}
	opts = append(opts, embOpts...)

	imgOpts, err := imageOptions(cfg)
	if err != nil {
		return nil, fmt.Errorf("image config: %w", err)
	}
	opts = append(opts, imgOpts...)

	if cfg.SkipProviderValidation() {
		opts = append(opts, shopvec.WithSkipProviderValidation())
	}

	return opts, nil
}

// storageOptions returns the shopvec.Option for the configured database backend.
func storageOptions(cfg config.AppConfig) []shopvec.Option {
	dbURL := cfg.DBURL()

	if dbURL != "" && !isSQLite(dbURL) {
		return []shopvec.Option{shopvec.WithPostgres(dbURL)}
	}

	dbPath := cfg.DataDir() + "/shopvec.db"
	if dbURL != "" && isSQLite(dbURL) {
		dbPath = strings.TrimPrefix(dbURL, "sqlite:///")
		if dbPath == dbURL {
			dbPath = strings.TrimPrefix(dbURL, "sqlite:")
		}
	}

	return []shopvec.Option{shopvec.WithSQLite(dbPath)}
}

// embeddingOptions returns a shopvec.Option for the text embedding
// provider when the embedding endpoint is fully configured, or an empty
// slice otherwise. Without one the client falls back to the built-in
// local model.
func embeddingOptions(cfg config.AppConfig) ([]shopvec.Option, error) {
	endpoint := cfg.EmbeddingEndpoint()
	if endpoint == nil || !endpoint.IsConfigured() {
		return nil, nil
	}

	httpClient, closer, err := endpointHTTPClient(cfg, *endpoint)
	if err != nil {
		return nil, err
	}

	p := provider.NewOpenAIProviderFromEndpoint(*endpoint, httpClient)

	opts := []shopvec.Option{shopvec.WithEmbeddingProvider(p)}
	if closer != nil {
		opts = append(opts, shopvec.WithCloser(closer))
	}
	return opts, nil
}

// imageOptions returns shopvec.Options enabling the image vector space
// when the image endpoint is fully configured.
func imageOptions(cfg config.AppConfig) ([]shopvec.Option, error) {
	endpoint := cfg.ImageEndpoint()
	if endpoint == nil || !endpoint.IsConfigured() {
		return nil, nil
	}

	httpClient, closer, err := endpointHTTPClient(cfg, *endpoint)
	if err != nil {
		return nil, err
	}

	opts := []shopvec.Option{
		shopvec.WithImageEmbedder(provider.NewClipEmbedder(*endpoint, httpClient)),
		shopvec.WithImageDimension(cfg.ImageDimension()),
	}
	if closer != nil {
		opts = append(opts, shopvec.WithCloser(closer))
	}
	return opts, nil
}

// endpointHTTPClient builds the HTTP client for a provider endpoint,
// wrapping the transport in an on-disk cache when configured. The
// returned CachingTransport must be closed on shutdown.
func endpointHTTPClient(cfg config.AppConfig, endpoint config.Endpoint) (*http.Client, *provider.CachingTransport, error) {
	if cfg.HTTPCacheDir() == "" {
		return &http.Client{Timeout: endpoint.Timeout()}, nil, nil
	}

	transport, err := provider.NewCachingTransport(cfg.HTTPCacheDir(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("http cache: %w", err)
	}
	return &http.Client{
		Timeout:   endpoint.Timeout(),
		Transport: transport,
	}, transport, nil
}

// isSQLite checks if the database URL is for SQLite.
func isSQLite(url string) bool {
	return strings.HasPrefix(url, "sqlite:")
}
