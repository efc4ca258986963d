package shopvec

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopvec/shopvec/application/handler"
	collectionhandler "github.com/shopvec/shopvec/application/handler/collection"
	platformhandler "github.com/shopvec/shopvec/application/handler/platform"
	"github.com/shopvec/shopvec/application/service"
	"github.com/shopvec/shopvec/domain/task"
	"github.com/shopvec/shopvec/infrastructure/tracking"
)

// registerHandlers registers all task handlers with the worker registry.
func (c *Client) registerHandlers() {
	c.registry.Register(task.OperationSyncPlatform, platformhandler.NewSync(
		c.Sync, c.Connectors, c.trackerFactory, c.logger,
	))
	c.registry.Register(task.OperationDeletePlatform, platformhandler.NewDelete(
		c.Records, c.Index, c.Tasks, c.Statuses, c.trackerFactory, c.logger,
	))
	c.registry.Register(task.OperationRecreateCollection, collectionhandler.NewRecreate(
		c.Index, c.Sync, c.trackerFactory, c.logger,
	))

	c.logger.Info("registered task handlers", slog.Int("count", len(c.registry.Operations())))
}

// validateHandlers checks that every queue operation has a registered handler.
func (c *Client) validateHandlers() error {
	var missing []string
	for _, op := range task.AllOperations() {
		if !c.registry.HasHandler(op) {
			missing = append(missing, op.String())
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("missing handlers for operations: [%s]", strings.Join(missing, ", "))
}

// buildDatabaseURL constructs the database URL from configuration.
func buildDatabaseURL(cfg *clientConfig) (string, error) {
	switch cfg.database {
	case databaseSQLite:
		return "sqlite:///" + cfg.dbPath, nil
	case databasePostgres:
		return cfg.dbDSN, nil
	default:
		return "", ErrNoDatabase
	}
}

// trackerFactoryImpl implements handler.TrackerFactory for progress reporting.
type trackerFactoryImpl struct {
	reporters []tracking.Reporter
	logger    *slog.Logger
}

// ForOperation creates a Tracker for the given operation.
func (f *trackerFactoryImpl) ForOperation(operation task.Operation, trackableType task.TrackableType, trackableKey string) handler.Tracker {
	tracker := tracking.TrackerForOperation(operation, f.logger, trackableType, trackableKey)
	for _, reporter := range f.reporters {
		tracker.Subscribe(reporter)
	}
	return tracker
}

// workerTrackerAdapter adapts trackerFactoryImpl to service.WorkerTrackerFactory.
type workerTrackerAdapter struct {
	factory *trackerFactoryImpl
}

// ForOperation creates a WorkerTracker for the given operation.
func (a *workerTrackerAdapter) ForOperation(operation task.Operation, trackableType task.TrackableType, trackableKey string) service.WorkerTracker {
	return a.factory.ForOperation(operation, trackableType, trackableKey)
}
