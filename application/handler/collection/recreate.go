// Package collection provides task handlers for collection-level operations.
package collection

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopvec/shopvec/application/handler"
	"github.com/shopvec/shopvec/application/service"
	"github.com/shopvec/shopvec/domain/sync"
	"github.com/shopvec/shopvec/domain/task"
)

// Recreate handles the collection recreate task operation. It drops and
// recreates the vector collection, then resets the sync checkpoint so
// the next run re-indexes the full record store.
type Recreate struct {
	indexing       *service.Indexing
	control        *service.SyncControl
	trackerFactory handler.TrackerFactory
	logger         *slog.Logger
}

// NewRecreate creates a new Recreate handler.
func NewRecreate(
	indexing *service.Indexing,
	control *service.SyncControl,
	trackerFactory handler.TrackerFactory,
	logger *slog.Logger,
) *Recreate {
	return &Recreate{
		indexing:       indexing,
		control:        control,
		trackerFactory: trackerFactory,
		logger:         logger,
	}
}

// Execute processes the collection recreate task.
func (h *Recreate) Execute(ctx context.Context, payload map[string]any) error {
	collection, err := handler.ExtractString(payload, "collection")
	if err != nil {
		return err
	}
	if collection != h.indexing.Collection() {
		return fmt.Errorf("unknown collection: %s", collection)
	}

	// Dropping the collection under an active run would lose points
	// the run has already committed its checkpoint for.
	if h.control.Active() {
		return fmt.Errorf("recreate collection %s: %w", collection, sync.ErrRunActive)
	}

	tracker := h.trackerFactory.ForOperation(
		task.OperationRecreateCollection,
		task.TrackableTypeCollection,
		collection,
	)

	tracker.SetTotal(ctx, 2)

	tracker.SetCurrent(ctx, 0, "Recreating collection")

	if err := h.indexing.RecreateCollection(ctx); err != nil {
		return fmt.Errorf("recreate collection %s: %w", collection, err)
	}

	tracker.SetCurrent(ctx, 1, "Resetting sync checkpoint")

	if err := h.control.ResetCheckpoint(ctx); err != nil {
		return fmt.Errorf("reset checkpoint: %w", err)
	}

	h.logger.Info("collection recreated", slog.String("collection", collection))

	return nil
}
