package platform

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopvec/shopvec/application/handler"
	"github.com/shopvec/shopvec/application/service"
	"github.com/shopvec/shopvec/domain/catalog"
	"github.com/shopvec/shopvec/domain/task"
)

// Delete handles the platform delete task operation. It removes the
// platform's vector points, catalog records, and tracking statuses.
type Delete struct {
	records        catalog.RecordStore
	indexing       *service.Indexing
	queue          *service.Queue
	statuses       task.StatusStore
	trackerFactory handler.TrackerFactory
	logger         *slog.Logger
}

// NewDelete creates a new Delete handler.
func NewDelete(
	records catalog.RecordStore,
	indexing *service.Indexing,
	queue *service.Queue,
	statuses task.StatusStore,
	trackerFactory handler.TrackerFactory,
	logger *slog.Logger,
) *Delete {
	return &Delete{
		records:        records,
		indexing:       indexing,
		queue:          queue,
		statuses:       statuses,
		trackerFactory: trackerFactory,
		logger:         logger,
	}
}

// Execute processes the platform delete task.
func (h *Delete) Execute(ctx context.Context, payload map[string]any) error {
	platform, err := handler.ExtractString(payload, "platform")
	if err != nil {
		return err
	}

	tracker := h.trackerFactory.ForOperation(
		task.OperationDeletePlatform,
		task.TrackableTypePlatform,
		platform,
	)

	// Drain pending tasks for this platform first so a queued sync
	// does not re-index the catalog after the data is gone.
	drained, err := h.queue.DrainForPlatform(ctx, platform)
	if err != nil {
		h.logger.Warn("failed to drain pending tasks", slog.String("error", err.Error()))
	}
	if drained > 0 {
		h.logger.Info("drained pending tasks for platform",
			slog.String("platform", platform),
			slog.Int("drained", drained),
		)
	}

	tracker.SetTotal(ctx, 3)

	tracker.SetCurrent(ctx, 0, "Removing vector points")

	points, err := h.indexing.DeleteByPlatform(ctx, platform)
	if err != nil {
		return fmt.Errorf("delete vector points: %w", err)
	}

	tracker.SetCurrent(ctx, 1, "Removing catalog records")

	records, err := h.records.DeleteByPlatform(ctx, platform)
	if err != nil {
		return fmt.Errorf("delete catalog records: %w", err)
	}

	// Old sync statuses for the platform are noise once it is gone.
	tracker.SetCurrent(ctx, 2, "Removing tracking statuses")

	if err := h.statuses.DeleteByTrackable(ctx, task.TrackableTypePlatform, platform); err != nil {
		h.logger.Warn("failed to delete tracking statuses",
			slog.String("platform", platform),
			slog.String("error", err.Error()),
		)
	}

	h.logger.Info("platform deleted",
		slog.String("platform", platform),
		slog.Int("points_removed", points),
		slog.Int64("records_removed", records),
	)

	return nil
}
