package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopvec/shopvec/domain/catalog"
	"github.com/shopvec/shopvec/domain/repository"
	dsync "github.com/shopvec/shopvec/domain/sync"
	"github.com/shopvec/shopvec/internal/config"
)

// fakeRecordStore keeps records in ascending id order in memory.
type fakeRecordStore struct {
	mu           sync.Mutex
	records      []catalog.Record
	nextID       int64
	findAfterErr error
	saveBulkErr  error
}

var _ catalog.RecordStore = (*fakeRecordStore)(nil)

func (f *fakeRecordStore) Get(_ context.Context, platform, externalID string) (catalog.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.Item().Platform() == platform && r.Item().ExternalID() == externalID {
			return r, nil
		}
	}
	return catalog.Record{}, catalog.ErrNotFound
}

func (f *fakeRecordStore) Find(_ context.Context, _ ...repository.Option) ([]catalog.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]catalog.Record, len(f.records))
	copy(out, f.records)
	return out, nil
}

func (f *fakeRecordStore) FindAfter(_ context.Context, afterID int64, limit int, platform string) ([]catalog.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findAfterErr != nil {
		return nil, f.findAfterErr
	}

	out := make([]catalog.Record, 0, limit)
	for _, r := range f.records {
		if r.ID() <= afterID {
			continue
		}
		if platform != "" && r.Item().Platform() != platform {
			continue
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeRecordStore) SaveBulk(_ context.Context, items []catalog.Item) ([]catalog.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveBulkErr != nil {
		return nil, f.saveBulkErr
	}

	out := make([]catalog.Record, 0, len(items))
	for _, item := range items {
		updated := false
		for i, r := range f.records {
			if r.Item().Platform() == item.Platform() && r.Item().ExternalID() == item.ExternalID() {
				f.records[i] = catalog.NewRecord(r.ID(), item)
				out = append(out, f.records[i])
				updated = true
				break
			}
		}
		if updated {
			continue
		}
		f.nextID++
		record := catalog.NewRecord(f.nextID, item)
		f.records = append(f.records, record)
		out = append(out, record)
	}
	return out, nil
}

func (f *fakeRecordStore) MaxID(_ context.Context, platform string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var maxID int64
	for _, r := range f.records {
		if platform != "" && r.Item().Platform() != platform {
			continue
		}
		if r.ID() > maxID {
			maxID = r.ID()
		}
	}
	return maxID, nil
}

func (f *fakeRecordStore) Count(_ context.Context, platform string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, r := range f.records {
		if platform == "" || r.Item().Platform() == platform {
			n++
		}
	}
	return n, nil
}

func (f *fakeRecordStore) Categories(_ context.Context, platform string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, r := range f.records {
		if platform != "" && r.Item().Platform() != platform {
			continue
		}
		c := r.Item().Category()
		if c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeRecordStore) Platforms(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, r := range f.records {
		p := r.Item().Platform()
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeRecordStore) DeleteByPlatform(_ context.Context, platform string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.records[:0]
	var deleted int64
	for _, r := range f.records {
		if r.Item().Platform() == platform {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	f.records = kept
	return deleted, nil
}

func (f *fakeRecordStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

// fakeCheckpointStore persists checkpoints in a map.
type fakeCheckpointStore struct {
	mu          sync.Mutex
	checkpoints map[string]dsync.Checkpoint
	saveErr     error
}

var _ dsync.CheckpointStore = (*fakeCheckpointStore)(nil)

func newFakeCheckpointStore() *fakeCheckpointStore {
	return &fakeCheckpointStore{checkpoints: make(map[string]dsync.Checkpoint)}
}

func (f *fakeCheckpointStore) Get(_ context.Context, collection string) (dsync.Checkpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp, ok := f.checkpoints[collection]
	if !ok {
		return dsync.Checkpoint{}, dsync.ErrCheckpointNotFound
	}
	return cp, nil
}

func (f *fakeCheckpointStore) Save(_ context.Context, checkpoint dsync.Checkpoint) (dsync.Checkpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return dsync.Checkpoint{}, f.saveErr
	}
	f.checkpoints[checkpoint.Collection()] = checkpoint
	return checkpoint, nil
}

func (f *fakeCheckpointStore) Reset(_ context.Context, collection string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.checkpoints, collection)
	return nil
}

func (f *fakeCheckpointStore) cursor(collection string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp, ok := f.checkpoints[collection]
	if !ok {
		return 0
	}
	return cp.LastProcessedID()
}

// fakeConnectorSource resolves connectors from a fixed map.
type fakeConnectorSource struct {
	connectors map[string]catalog.Connector
}

var _ ConnectorSource = (*fakeConnectorSource)(nil)

func (f *fakeConnectorSource) Connector(platform string) (catalog.Connector, error) {
	c, ok := f.connectors[platform]
	if !ok {
		return nil, fmt.Errorf("unknown platform: %s", platform)
	}
	return c, nil
}

func (f *fakeConnectorSource) Platforms() []string {
	out := make([]string, 0, len(f.connectors))
	for p := range f.connectors {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

type syncFixture struct {
	control     *SyncControl
	records     *fakeRecordStore
	checkpoints *fakeCheckpointStore
	store       *fakeVectorStore
	gen         *fakeGenerator
	sleeps      []time.Duration
}

func newSyncFixture(t *testing.T, connectors map[string]catalog.Connector) *syncFixture {
	t.Helper()

	fx := &syncFixture{
		records:     &fakeRecordStore{},
		checkpoints: newFakeCheckpointStore(),
		store:       newFakeVectorStore(),
		gen:         newFakeGenerator(),
	}
	indexing := NewIndexing(fx.store, fx.gen, "products", testLogger())

	control, err := NewSyncControl(
		fx.records,
		fx.checkpoints,
		&fakeConnectorSource{connectors: connectors},
		indexing,
		config.NewSyncConfig(),
		testLogger(),
	)
	require.NoError(t, err)

	control.sleep = func(_ context.Context, d time.Duration) error {
		fx.sleeps = append(fx.sleeps, d)
		return nil
	}
	fx.control = control
	return fx
}

func (fx *syncFixture) seedRecords(t *testing.T, items []catalog.Item) {
	t.Helper()
	_, err := fx.records.SaveBulk(context.Background(), items)
	require.NoError(t, err)
}

func fiveItems(t *testing.T) []catalog.Item {
	t.Helper()
	items := catalogItems(t)
	items = append(items,
		testItem(t, "magento", "SKU-1", "Red Hat", "warm red wool hat", "clothing", 12.00),
		testItem(t, "magento", "SKU-2", "USB Drive", "64gb usb drive", "electronics", 9.99),
	)
	return items
}

func TestSyncControl_RunCompletes(t *testing.T) {
	fx := newSyncFixture(t, nil)
	fx.seedRecords(t, fiveItems(t))

	progressCalls := 0
	result, err := fx.control.Run(context.Background(), RunParams{
		BatchSize: 2,
		Progress:  func(dsync.Stats) { progressCalls++ },
	})
	require.NoError(t, err)

	assert.Equal(t, dsync.StateCompleted, result.State())
	assert.Equal(t, 5, result.Stats().TotalFetched())
	assert.Equal(t, 5, result.Stats().TotalIndexed())
	assert.Equal(t, 0, result.Stats().TotalFailed())
	assert.Equal(t, int64(5), result.LastProcessedID())
	assert.Equal(t, 3, progressCalls)
	assert.Equal(t, int64(5), fx.checkpoints.cursor("products"))

	count, err := fx.store.Count(context.Background(), "products")
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestSyncControl_RunEmptyStore(t *testing.T) {
	fx := newSyncFixture(t, nil)

	result, err := fx.control.Run(context.Background(), RunParams{BatchSize: 2})
	require.NoError(t, err)
	assert.Equal(t, dsync.StateCompleted, result.State())
	assert.Equal(t, 0, result.Stats().TotalFetched())
	assert.Equal(t, int64(0), result.LastProcessedID())
}

func TestSyncControl_RunResumesAfterCheckpoint(t *testing.T) {
	fx := newSyncFixture(t, nil)
	fx.seedRecords(t, fiveItems(t))

	cp, err := dsync.NewCheckpoint("products", 2)
	require.NoError(t, err)
	_, err = fx.checkpoints.Save(context.Background(), cp)
	require.NoError(t, err)

	result, err := fx.control.Run(context.Background(), RunParams{BatchSize: 2})
	require.NoError(t, err)

	assert.Equal(t, dsync.StateCompleted, result.State())
	assert.Equal(t, 3, result.Stats().TotalFetched(), "records before the cursor are not re-processed")
	assert.Equal(t, int64(5), result.LastProcessedID())

	// Only the three remaining records were embedded and indexed.
	count, err := fx.store.Count(context.Background(), "products")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestSyncControl_RunReportsResumingState(t *testing.T) {
	fx := newSyncFixture(t, nil)
	fx.seedRecords(t, fiveItems(t))

	// Pause after the first committed batch.
	ctx, cancel := context.WithCancel(context.Background())
	result, err := fx.control.Run(ctx, RunParams{
		BatchSize: 2,
		Progress:  func(dsync.Stats) { cancel() },
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, dsync.StateRunning, result.State(), "a paused fresh run reports its running state")

	// A run starting from a non-zero cursor is in the resuming state
	// until it reaches a terminal one.
	ctx, cancel = context.WithCancel(context.Background())
	result, err = fx.control.Run(ctx, RunParams{
		BatchSize: 2,
		Progress:  func(dsync.Stats) { cancel() },
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, dsync.StateResuming, result.State())

	// Left alone, the resumed run finishes as Completed.
	result, err = fx.control.Run(context.Background(), RunParams{BatchSize: 2})
	require.NoError(t, err)
	assert.Equal(t, dsync.StateCompleted, result.State())
}

func TestSyncControl_CancelPausesAndResumeCoversRest(t *testing.T) {
	fx := newSyncFixture(t, nil)
	fx.seedRecords(t, fiveItems(t))

	ctx, cancel := context.WithCancel(context.Background())
	result, err := fx.control.Run(ctx, RunParams{
		BatchSize: 2,
		Progress:  func(dsync.Stats) { cancel() },
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, result.Stats().TotalIndexed())
	assert.Equal(t, int64(2), result.LastProcessedID(), "checkpoint covers the committed batch")
	assert.False(t, fx.control.Active(), "pause releases the run guard")

	resumed, err := fx.control.Run(context.Background(), RunParams{BatchSize: 2})
	require.NoError(t, err)
	assert.Equal(t, dsync.StateCompleted, resumed.State())
	assert.Equal(t, 3, resumed.Stats().TotalFetched(), "no re-processing after resume")

	// No gaps: every record ends up indexed exactly once.
	count, err := fx.store.Count(context.Background(), "products")
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestSyncControl_RetryThenSucceeds(t *testing.T) {
	fx := newSyncFixture(t, nil)
	fx.seedRecords(t, fiveItems(t))
	fx.gen.failCall = 1

	result, err := fx.control.Run(context.Background(), RunParams{BatchSize: 5})
	require.NoError(t, err)
	assert.Equal(t, dsync.StateCompleted, result.State())
	assert.Equal(t, 5, result.Stats().TotalIndexed())
	assert.Equal(t, []time.Duration{5 * time.Second}, fx.sleeps)
}

func TestSyncControl_RetryExhaustionFailsRun(t *testing.T) {
	fx := newSyncFixture(t, nil)
	fx.seedRecords(t, fiveItems(t))
	fx.gen.failAlways = true

	result, err := fx.control.Run(context.Background(), RunParams{BatchSize: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, dsync.StateFailed, result.State())

	// Exponential backoff between the three attempts.
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, fx.sleeps)

	// The checkpoint never moved past the failed batch.
	assert.Equal(t, int64(0), fx.checkpoints.cursor("products"))
	assert.Equal(t, 3, fx.gen.textCallCount())
}

func TestSyncControl_ConcurrentRunRejected(t *testing.T) {
	fx := newSyncFixture(t, nil)
	fx.seedRecords(t, fiveItems(t))

	fx.gen.blockTexts = make(chan struct{})
	fx.gen.enteredTexts = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		_, err := fx.control.Run(context.Background(), RunParams{BatchSize: 5})
		done <- err
	}()

	<-fx.gen.enteredTexts
	assert.True(t, fx.control.Active())

	_, err := fx.control.Run(context.Background(), RunParams{BatchSize: 5})
	require.ErrorIs(t, err, dsync.ErrRunActive)

	close(fx.gen.blockTexts)
	require.NoError(t, <-done)
	assert.False(t, fx.control.Active())
}

func TestSyncControl_RunResetStartsFromZero(t *testing.T) {
	fx := newSyncFixture(t, nil)
	fx.seedRecords(t, fiveItems(t))

	_, err := fx.control.Run(context.Background(), RunParams{BatchSize: 5})
	require.NoError(t, err)
	require.Equal(t, int64(5), fx.checkpoints.cursor("products"))

	result, err := fx.control.Run(context.Background(), RunParams{BatchSize: 5, Reset: true})
	require.NoError(t, err)
	assert.Equal(t, 5, result.Stats().TotalFetched(), "reset re-processes the full store")

	// Re-indexing upserts by deterministic id, so no duplicates appear.
	count, err := fx.store.Count(context.Background(), "products")
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestSyncControl_FindAfterErrorFailsRun(t *testing.T) {
	fx := newSyncFixture(t, nil)
	fx.seedRecords(t, fiveItems(t))
	fx.records.findAfterErr = errors.New("database is locked")

	result, err := fx.control.Run(context.Background(), RunParams{BatchSize: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch records")
	assert.Equal(t, dsync.StateFailed, result.State())
}

func TestSyncControl_CheckpointSaveErrorFailsRun(t *testing.T) {
	fx := newSyncFixture(t, nil)
	fx.seedRecords(t, fiveItems(t))
	fx.checkpoints.saveErr = errors.New("disk full")

	result, err := fx.control.Run(context.Background(), RunParams{BatchSize: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save checkpoint")
	assert.Equal(t, dsync.StateFailed, result.State())
	assert.Equal(t, int64(0), result.LastProcessedID(), "cursor reports the last durable checkpoint")
}

func TestSyncControl_SyncPlatform(t *testing.T) {
	conn := newFakeConnector("fakestore", catalogItems(t))
	fx := newSyncFixture(t, map[string]catalog.Connector{"fakestore": conn})

	result, err := fx.control.SyncPlatform(context.Background(), SyncPlatformParams{
		Platform:  "fakestore",
		BatchSize: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, dsync.StateCompleted, result.State())
	assert.Equal(t, 3, result.Stats().TotalIndexed())
	assert.Equal(t, 3, fx.records.count(), "catalog lands in the record store")

	count, err := fx.store.Count(context.Background(), "products")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestSyncControl_SyncPlatformTwiceIsIncremental(t *testing.T) {
	conn := newFakeConnector("fakestore", catalogItems(t))
	fx := newSyncFixture(t, map[string]catalog.Connector{"fakestore": conn})

	_, err := fx.control.SyncPlatform(context.Background(), SyncPlatformParams{Platform: "fakestore", BatchSize: 2})
	require.NoError(t, err)

	result, err := fx.control.SyncPlatform(context.Background(), SyncPlatformParams{Platform: "fakestore", BatchSize: 2})
	require.NoError(t, err)

	// Records upsert in place and the checkpoint already covers them.
	assert.Equal(t, 3, fx.records.count())
	assert.Equal(t, 0, result.Stats().TotalFetched())

	count, err := fx.store.Count(context.Background(), "products")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestSyncControl_SyncPlatformUnknown(t *testing.T) {
	fx := newSyncFixture(t, nil)

	_, err := fx.control.SyncPlatform(context.Background(), SyncPlatformParams{Platform: "shopify"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shopify")
	assert.False(t, fx.control.Active())
}

func TestSyncControl_SyncPlatformRequiresPlatform(t *testing.T) {
	fx := newSyncFixture(t, nil)

	_, err := fx.control.SyncPlatform(context.Background(), SyncPlatformParams{})
	require.Error(t, err)
}

func TestSyncControl_SyncPlatformIngestFailure(t *testing.T) {
	conn := newFakeConnector("fakestore", catalogItems(t))
	conn.failAfter = 1
	conn.fetchErr = errors.New("api down")
	fx := newSyncFixture(t, map[string]catalog.Connector{"fakestore": conn})

	result, err := fx.control.SyncPlatform(context.Background(), SyncPlatformParams{Platform: "fakestore", BatchSize: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api down")
	assert.Equal(t, dsync.StateFailed, result.State())

	// The first batch of records still landed; a re-run picks them up.
	assert.Equal(t, 2, fx.records.count())
}

func TestSyncControl_Checkpoint(t *testing.T) {
	fx := newSyncFixture(t, nil)

	cp, err := fx.control.Checkpoint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), cp.LastProcessedID())

	fx.seedRecords(t, fiveItems(t))
	_, err = fx.control.Run(context.Background(), RunParams{BatchSize: 5})
	require.NoError(t, err)

	cp, err = fx.control.Checkpoint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), cp.LastProcessedID())

	require.NoError(t, fx.control.ResetCheckpoint(context.Background()))
	cp, err = fx.control.Checkpoint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), cp.LastProcessedID())
}
