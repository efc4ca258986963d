// Package platform provides task handlers for platform-level operations.
package platform

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopvec/shopvec/application/handler"
	"github.com/shopvec/shopvec/application/service"
	"github.com/shopvec/shopvec/domain/catalog"
	"github.com/shopvec/shopvec/domain/sync"
	"github.com/shopvec/shopvec/domain/task"
)

// Sync handles the platform sync task operation. It pulls the
// platform's catalog into the record store and indexes everything past
// the collection checkpoint.
type Sync struct {
	control        *service.SyncControl
	connectors     service.ConnectorSource
	trackerFactory handler.TrackerFactory
	logger         *slog.Logger
}

// NewSync creates a new Sync handler.
func NewSync(
	control *service.SyncControl,
	connectors service.ConnectorSource,
	trackerFactory handler.TrackerFactory,
	logger *slog.Logger,
) *Sync {
	return &Sync{
		control:        control,
		connectors:     connectors,
		trackerFactory: trackerFactory,
		logger:         logger,
	}
}

// Execute processes the platform sync task.
func (h *Sync) Execute(ctx context.Context, payload map[string]any) error {
	p, err := handler.ExtractSyncPayload(payload)
	if err != nil {
		return err
	}

	tracker := h.trackerFactory.ForOperation(
		task.OperationSyncPlatform,
		task.TrackableTypePlatform,
		p.Platform(),
	)

	// Seed the progress total from the platform's own count when it
	// reports one. Progress stays meaningful without it.
	if conn, err := h.connectors.Connector(p.Platform()); err == nil {
		if total, err := conn.EstimateTotalCount(ctx); err == nil && total != catalog.CountUnknown {
			tracker.SetTotal(ctx, total)
		}
	}

	result, err := h.control.SyncPlatform(ctx, service.SyncPlatformParams{
		Platform:   p.Platform(),
		Category:   p.Category(),
		BatchSize:  p.BatchSize(),
		WithImages: p.WithImages(),
		Progress: func(stats sync.Stats) {
			tracker.SetCurrent(ctx, stats.TotalIndexed(),
				fmt.Sprintf("Indexed %d of %d fetched products", stats.TotalIndexed(), stats.TotalFetched()))
		},
	})
	if err != nil {
		return fmt.Errorf("sync platform %s: %w", p.Platform(), err)
	}

	h.logger.Info("platform sync finished",
		slog.String("platform", p.Platform()),
		slog.String("state", result.State().String()),
		slog.Int("fetched", result.Stats().TotalFetched()),
		slog.Int("indexed", result.Stats().TotalIndexed()),
		slog.Int("failed", result.Stats().TotalFailed()),
	)

	return nil
}
