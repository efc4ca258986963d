package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopvec/shopvec/domain/catalog"
	"github.com/shopvec/shopvec/domain/sync"
	"github.com/shopvec/shopvec/internal/config"
)

// ConnectorSource resolves platform names to connectors.
type ConnectorSource interface {
	// Connector builds the connector for a platform.
	Connector(platform string) (catalog.Connector, error)

	// Platforms lists the platforms that can currently be built.
	Platforms() []string
}

// RunParams configures one checkpointed indexing run over the record
// store.
type RunParams struct {
	// BatchSize is the number of records per batch; zero uses the
	// configured default.
	BatchSize int

	// WithImages enables per-item image embedding.
	WithImages bool

	// Reset discards the checkpoint so the run starts from record zero.
	Reset bool

	// Progress, when set, is invoked after every committed batch.
	Progress sync.ProgressFunc
}

// RunResult reports how a run ended.
type RunResult struct {
	state           sync.RunState
	stats           sync.Stats
	lastProcessedID int64
}

// State returns the run's final state. A cancelled run keeps its
// non-terminal state; it resumes from the checkpoint on the next Run.
func (r RunResult) State() sync.RunState { return r.state }

// Stats returns the accumulated run statistics.
func (r RunResult) Stats() sync.Stats { return r.stats }

// LastProcessedID returns the checkpoint cursor after the run.
func (r RunResult) LastProcessedID() int64 { return r.lastProcessedID }

// SyncControl drives resumable, checkpointed indexing of the record
// store. At most one run per collection is active at a time; the
// checkpoint only moves after a batch is durably indexed, so a crashed
// or cancelled run resumes without re-processing committed batches and
// without gaps.
type SyncControl struct {
	records     catalog.RecordStore
	checkpoints sync.CheckpointStore
	connectors  ConnectorSource
	indexing    *Indexing
	policy      sync.RetryPolicy
	batchSize   int
	guard       *sync.RunGuard
	sleep       func(ctx context.Context, d time.Duration) error
	logger      *slog.Logger
}

// NewSyncControl creates a SyncControl.
func NewSyncControl(
	records catalog.RecordStore,
	checkpoints sync.CheckpointStore,
	connectors ConnectorSource,
	indexing *Indexing,
	cfg config.SyncConfig,
	logger *slog.Logger,
) (*SyncControl, error) {
	policy, err := sync.NewRetryPolicy(cfg.MaxAttempts(), cfg.InitialDelay(), cfg.BackoffFactor())
	if err != nil {
		return nil, fmt.Errorf("retry policy: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncControl{
		records:     records,
		checkpoints: checkpoints,
		connectors:  connectors,
		indexing:    indexing,
		policy:      policy,
		batchSize:   cfg.BatchSize(),
		guard:       sync.NewRunGuard(),
		sleep:       sleepContext,
		logger:      logger,
	}, nil
}

// Active reports whether a run currently holds the collection.
func (c *SyncControl) Active() bool {
	return c.guard.Active(c.indexing.Collection())
}

// Checkpoint returns the current cursor for the collection. A
// collection that was never synced reports a zero cursor.
func (c *SyncControl) Checkpoint(ctx context.Context) (sync.Checkpoint, error) {
	return c.loadCheckpoint(ctx, c.indexing.Collection())
}

// ResetCheckpoint discards the stored cursor so the next run starts
// from record zero. Combined with RecreateCollection this re-indexes
// the full catalog.
func (c *SyncControl) ResetCheckpoint(ctx context.Context) error {
	return c.checkpoints.Reset(ctx, c.indexing.Collection())
}

// Run indexes every record past the collection checkpoint, committing
// the checkpoint after each durable batch. A second concurrent run for
// the same collection fails with sync.ErrRunActive.
func (c *SyncControl) Run(ctx context.Context, params RunParams) (RunResult, error) {
	collection := c.indexing.Collection()
	if err := c.guard.Acquire(collection); err != nil {
		return RunResult{state: sync.StateIdle}, err
	}
	defer c.guard.Release(collection)

	return c.run(ctx, params)
}

// SyncPlatformParams configures a full platform sync: pull the catalog
// into the record store, then index everything past the checkpoint.
type SyncPlatformParams struct {
	Platform   string
	Category   string
	BatchSize  int
	WithImages bool
	Reset      bool
	Progress   sync.ProgressFunc
}

// SyncPlatform pulls the platform's catalog into the record store and
// then runs the checkpointed indexer. Records upsert on (platform,
// external id), so re-pulls update in place instead of duplicating, and
// the index phase covers records from every platform past the cursor.
func (c *SyncControl) SyncPlatform(ctx context.Context, params SyncPlatformParams) (RunResult, error) {
	if params.Platform == "" {
		return RunResult{state: sync.StateIdle}, errors.New("platform is required")
	}
	conn, err := c.connectors.Connector(params.Platform)
	if err != nil {
		return RunResult{state: sync.StateIdle}, err
	}

	collection := c.indexing.Collection()
	if err := c.guard.Acquire(collection); err != nil {
		return RunResult{state: sync.StateIdle}, err
	}
	defer c.guard.Release(collection)

	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = c.batchSize
	}

	saved, err := c.ingest(ctx, conn, batchSize, params.Category)
	if err != nil {
		return RunResult{state: sync.StateFailed, stats: sync.NewStats(time.Now()).Finish(time.Now())}, err
	}
	c.logger.Info("platform catalog ingested",
		slog.String("platform", params.Platform),
		slog.Int("records", saved),
	)

	return c.run(ctx, RunParams{
		BatchSize:  batchSize,
		WithImages: params.WithImages,
		Reset:      params.Reset,
		Progress:   params.Progress,
	})
}

// ingest pulls the connector's catalog into the record store in
// batches. Failures abort; a queue-level re-run restarts the pull and
// the upsert semantics absorb the overlap.
func (c *SyncControl) ingest(ctx context.Context, conn catalog.Connector, batchSize int, category string) (int, error) {
	it := conn.FetchBatches(ctx, batchSize, category)
	saved := 0
	for it.Next(ctx) {
		records, err := c.records.SaveBulk(ctx, it.Batch())
		if err != nil {
			return saved, fmt.Errorf("save records: %w", err)
		}
		saved += len(records)
	}
	if err := it.Err(); err != nil {
		return saved, fmt.Errorf("fetch %s catalog: %w", conn.Platform(), err)
	}
	return saved, nil
}

// run executes the checkpointed index loop. The caller holds the guard.
//
// The checkpoint advances to the batch's max record id even when the
// index reports a partial upsert: failed items land in the failure
// count but are not revisited on resume. Both vector backends apply a
// batch all-or-nothing today, so a partial report can only come from a
// backend that commits item by item; such a backend needs a retry queue
// here before failed items can be recovered.
func (c *SyncControl) run(ctx context.Context, params RunParams) (RunResult, error) {
	collection := c.indexing.Collection()

	if params.Reset {
		if err := c.checkpoints.Reset(ctx, collection); err != nil {
			return RunResult{state: sync.StateIdle}, fmt.Errorf("reset checkpoint: %w", err)
		}
	}

	cp, err := c.loadCheckpoint(ctx, collection)
	if err != nil {
		return RunResult{state: sync.StateIdle}, err
	}

	state := sync.StateRunning
	if cp.LastProcessedID() > 0 {
		state = sync.StateResuming
		c.logger.Info("resuming sync",
			slog.String("collection", collection),
			slog.Int64("after_record", cp.LastProcessedID()),
		)
	}

	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = c.batchSize
	}

	stats := sync.NewStats(time.Now())

	if err := c.indexing.EnsureCollection(ctx); err != nil {
		return RunResult{state: sync.StateFailed, stats: stats.Finish(time.Now()), lastProcessedID: cp.LastProcessedID()}, err
	}

	for {
		// A cancelled run pauses between batches. The checkpoint covers
		// every committed batch, so the next run picks up exactly here.
		if err := ctx.Err(); err != nil {
			c.logger.Info("sync paused",
				slog.String("collection", collection),
				slog.Int64("last_record", cp.LastProcessedID()),
			)
			return RunResult{state: state, stats: stats.Finish(time.Now()), lastProcessedID: cp.LastProcessedID()}, err
		}

		records, err := c.records.FindAfter(ctx, cp.LastProcessedID(), batchSize, "")
		if err != nil {
			return RunResult{state: sync.StateFailed, stats: stats.Finish(time.Now()), lastProcessedID: cp.LastProcessedID()},
				fmt.Errorf("fetch records: %w", err)
		}
		if len(records) == 0 {
			break
		}

		indexed, failed, err := c.indexBatchWithRetry(ctx, records, params.WithImages)
		if err != nil {
			finished := stats.Finish(time.Now())
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return RunResult{state: state, stats: finished, lastProcessedID: cp.LastProcessedID()}, err
			}
			return RunResult{state: sync.StateFailed, stats: finished, lastProcessedID: cp.LastProcessedID()},
				fmt.Errorf("index batch after record %d: %w", cp.LastProcessedID(), err)
		}

		stats = stats.AddBatch(len(records), indexed, failed)

		saved, err := c.checkpoints.Save(ctx, cp.Advance(records[len(records)-1].ID()))
		if err != nil {
			// The batch is indexed but the cursor is not durable; the
			// next run re-indexes it, which upserts are built to absorb.
			return RunResult{state: sync.StateFailed, stats: stats.Finish(time.Now()), lastProcessedID: cp.LastProcessedID()},
				fmt.Errorf("save checkpoint: %w", err)
		}
		cp = saved

		if params.Progress != nil {
			params.Progress(stats)
		}
	}

	stats = stats.Finish(time.Now())
	c.logger.Info("sync completed",
		slog.String("collection", collection),
		slog.Int("fetched", stats.TotalFetched()),
		slog.Int("indexed", stats.TotalIndexed()),
		slog.Int("failed", stats.TotalFailed()),
		slog.Duration("elapsed", stats.Elapsed()),
	)
	return RunResult{state: sync.StateCompleted, stats: stats, lastProcessedID: cp.LastProcessedID()}, nil
}

// indexBatchWithRetry pushes one batch through the indexing path,
// retrying transient failures under the retry policy. The checkpoint is
// only advanced by the caller after success, so a batch that exhausts
// its attempts is re-processed by the next run.
func (c *SyncControl) indexBatchWithRetry(ctx context.Context, records []catalog.Record, withImages bool) (int, int, error) {
	items := make([]catalog.Item, len(records))
	for i, r := range records {
		items[i] = r.Item()
	}

	var lastErr error
	for attempt := 1; attempt <= c.policy.MaxAttempts(); attempt++ {
		indexed, failed, err := c.indexing.IndexItems(ctx, items, withImages)
		if err == nil {
			return indexed, failed, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return 0, 0, err
		}

		lastErr = err
		if attempt == c.policy.MaxAttempts() {
			break
		}

		delay := c.policy.Delay(attempt)
		c.logger.Warn("batch failed, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)
		if err := c.sleep(ctx, delay); err != nil {
			return 0, 0, err
		}
	}
	return 0, 0, fmt.Errorf("after %d attempts: %w", c.policy.MaxAttempts(), lastErr)
}

func (c *SyncControl) loadCheckpoint(ctx context.Context, collection string) (sync.Checkpoint, error) {
	cp, err := c.checkpoints.Get(ctx, collection)
	if errors.Is(err, sync.ErrCheckpointNotFound) {
		return sync.NewCheckpoint(collection, 0)
	}
	if err != nil {
		return sync.Checkpoint{}, fmt.Errorf("load checkpoint: %w", err)
	}
	return cp, nil
}

// sleepContext waits for the duration or the context, whichever ends
// first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
