// Package vectorstore provides vector.Store implementations: an
// embedded store on the relational database and a Qdrant-backed store.
package vectorstore

import (
	"fmt"
	"log/slog"

	"github.com/shopvec/shopvec/domain/vector"
	"github.com/shopvec/shopvec/internal/config"
	"github.com/shopvec/shopvec/internal/database"
)

// New creates the vector store selected by the configuration. The
// embedded store is the default; Qdrant requires a configured URL.
func New(cfg config.AppConfig, db database.Database, logger *slog.Logger) (vector.Store, error) {
	switch cfg.VectorBackend() {
	case config.VectorBackendQdrant:
		if !cfg.Qdrant().IsConfigured() {
			return nil, fmt.Errorf("vector backend %q selected but no Qdrant URL configured", config.VectorBackendQdrant)
		}
		return NewQdrant(cfg.Qdrant()), nil
	default:
		return NewSQLiteVec(db, logger)
	}
}
