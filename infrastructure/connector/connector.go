// Package connector implements the platform connectors that fetch
// catalog items from external sources: the Fake Store demo API, Magento
// storefronts, Odoo ERP instances, YAML seed files, and the local
// record store. A Factory builds them by platform name.
package connector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/shopvec/shopvec/domain/catalog"
	"github.com/shopvec/shopvec/internal/config"
)

// Platform names accepted by the factory.
const (
	PlatformFakestore = "fakestore"
	PlatformMagento   = "magento"
	PlatformOdoo      = "odoo"
	PlatformSeed      = "seed"
	PlatformRecords   = "records"
)

// ErrUnknownPlatform indicates a platform name the factory does not know.
var ErrUnknownPlatform = errors.New("unknown platform")

// ErrNotConfigured indicates a known platform whose configuration is
// missing or incomplete.
var ErrNotConfigured = errors.New("platform not configured")

// Factory builds connectors on demand from the connector configuration.
type Factory struct {
	config     config.ConnectorsConfig
	store      catalog.RecordStore
	httpClient *http.Client
	logger     *slog.Logger
}

// NewFactory creates a Factory. The record store backs the records
// connector and may be nil when that variant is not needed; httpClient,
// when non-nil, is shared by the HTTP-based connectors.
func NewFactory(cfg config.ConnectorsConfig, store catalog.RecordStore, httpClient *http.Client, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{
		config:     cfg,
		store:      store,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Connector returns a connector for the named platform. Missing
// credentials fail here, before any batch work starts. The fakestore
// platform needs no configuration and falls back to the public demo API.
func (f *Factory) Connector(platform string) (catalog.Connector, error) {
	switch platform {
	case PlatformFakestore:
		return NewFakeStore(f.config.Fakestore(), f.httpClient), nil
	case PlatformMagento:
		if !f.config.Magento().IsConfigured() {
			return nil, fmt.Errorf("%w: %s", ErrNotConfigured, platform)
		}
		return NewMagento(f.config.Magento(), f.httpClient), nil
	case PlatformOdoo:
		if !f.config.Odoo().IsConfigured() {
			return nil, fmt.Errorf("%w: %s", ErrNotConfigured, platform)
		}
		return NewOdoo(f.config.Odoo(), f.httpClient, f.logger), nil
	case PlatformSeed:
		if !f.config.Seed().IsConfigured() {
			return nil, fmt.Errorf("%w: %s", ErrNotConfigured, platform)
		}
		return NewSeed(f.config.Seed())
	case PlatformRecords:
		if f.store == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotConfigured, platform)
		}
		return NewRecords(f.store, ""), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlatform, platform)
	}
}

// Platforms returns the platform names Connector would accept.
func (f *Factory) Platforms() []string {
	platforms := []string{PlatformFakestore}
	if f.config.Magento().IsConfigured() {
		platforms = append(platforms, PlatformMagento)
	}
	if f.config.Odoo().IsConfigured() {
		platforms = append(platforms, PlatformOdoo)
	}
	if f.config.Seed().IsConfigured() {
		platforms = append(platforms, PlatformSeed)
	}
	if f.store != nil {
		platforms = append(platforms, PlatformRecords)
	}
	return platforms
}

// errorIterator returns an iterator that fails with err on the first pull.
func errorIterator(err error) *catalog.BatchIterator {
	return catalog.NewBatchIterator(func(context.Context) ([]catalog.Item, error) {
		return nil, err
	})
}

// errInvalidBatchSize guards every FetchBatches entry point.
func errInvalidBatchSize(batchSize int) error {
	return fmt.Errorf("batch size must be positive, got %d", batchSize)
}
