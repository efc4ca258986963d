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

	"github.com/shopvec/shopvec/domain/repository"
	"github.com/shopvec/shopvec/domain/task"
)

// fakeTaskStore is an in-memory task.TaskStore. Save dedups on the
// task's dedup key the same way the persistence layer does: the
// existing row keeps its ID and gets the new priority.
type fakeTaskStore struct {
	mu     sync.Mutex
	nextID int64
	tasks  []task.Task

	saveCalls  int
	saveErr    error
	dequeueErr error
}

var _ task.TaskStore = (*fakeTaskStore)(nil)

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{}
}

func (f *fakeTaskStore) Get(_ context.Context, id int64) (task.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tasks {
		if t.ID() == id {
			return t, nil
		}
	}
	return task.Task{}, fmt.Errorf("task %d not found", id)
}

func (f *fakeTaskStore) FindAll(_ context.Context) ([]task.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sorted(), nil
}

func (f *fakeTaskStore) FindPending(_ context.Context, _ ...repository.Option) ([]task.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sorted(), nil
}

func (f *fakeTaskStore) Save(_ context.Context, t task.Task) (task.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.saveCalls++
	if f.saveErr != nil {
		return task.Task{}, f.saveErr
	}

	for i, existing := range f.tasks {
		if existing.DedupKey() == t.DedupKey() {
			updated := task.NewTaskWithID(
				existing.ID(), existing.DedupKey(), existing.Operation(),
				t.Priority(), existing.Payload(),
				existing.CreatedAt(), time.Now(),
			)
			f.tasks[i] = updated
			return updated, nil
		}
	}

	f.nextID++
	saved := t.WithID(f.nextID).WithTimestamps(time.Now(), time.Now())
	f.tasks = append(f.tasks, saved)
	return saved, nil
}

func (f *fakeTaskStore) SaveBulk(ctx context.Context, tasks []task.Task) ([]task.Task, error) {
	saved := make([]task.Task, 0, len(tasks))
	for _, t := range tasks {
		s, err := f.Save(ctx, t)
		if err != nil {
			return nil, err
		}
		saved = append(saved, s)
	}
	return saved, nil
}

func (f *fakeTaskStore) Delete(_ context.Context, t task.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.tasks {
		if existing.ID() == t.ID() {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeTaskStore) DeleteAll(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = nil
	return nil
}

func (f *fakeTaskStore) CountPending(_ context.Context, _ ...repository.Option) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.tasks)), nil
}

func (f *fakeTaskStore) Exists(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tasks {
		if t.ID() == id {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeTaskStore) Dequeue(_ context.Context) (task.Task, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.dequeueErr != nil {
		return task.Task{}, false, f.dequeueErr
	}
	return f.best(func(task.Task) bool { return true })
}

func (f *fakeTaskStore) DequeueByOperation(_ context.Context, operation task.Operation) (task.Task, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.best(func(t task.Task) bool { return t.Operation() == operation })
}

// best returns the highest priority matching task, oldest first on
// ties. Unlike the real store it does not remove the row; the worker
// deletes the task itself once processed.
func (f *fakeTaskStore) best(match func(task.Task) bool) (task.Task, bool, error) {
	var found bool
	var best task.Task
	for _, t := range f.tasks {
		if !match(t) {
			continue
		}
		if !found || t.Priority() > best.Priority() || (t.Priority() == best.Priority() && t.ID() < best.ID()) {
			best = t
			found = true
		}
	}
	return best, found, nil
}

func (f *fakeTaskStore) sorted() []task.Task {
	out := make([]task.Task, len(f.tasks))
	copy(out, f.tasks)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority() != out[j].Priority() {
			return out[i].Priority() > out[j].Priority()
		}
		return out[i].ID() < out[j].ID()
	})
	return out
}

func (f *fakeTaskStore) pendingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tasks)
}

func (f *fakeTaskStore) saveCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saveCalls
}

// trackerCall records a status update the worker pushed through the
// tracker factory.
type trackerCall struct {
	operation     task.Operation
	trackableType task.TrackableType
	key           string
	message       string
}

type fakeTrackerFactory struct {
	mu        sync.Mutex
	completed []trackerCall
	failed    []trackerCall
}

var _ WorkerTrackerFactory = (*fakeTrackerFactory)(nil)

func (f *fakeTrackerFactory) ForOperation(operation task.Operation, trackableType task.TrackableType, trackableKey string) WorkerTracker {
	return &boundTracker{
		factory: f,
		call:    trackerCall{operation: operation, trackableType: trackableType, key: trackableKey},
	}
}

func (f *fakeTrackerFactory) completedCalls() []trackerCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]trackerCall, len(f.completed))
	copy(out, f.completed)
	return out
}

func (f *fakeTrackerFactory) failedCalls() []trackerCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]trackerCall, len(f.failed))
	copy(out, f.failed)
	return out
}

type boundTracker struct {
	factory *fakeTrackerFactory
	call    trackerCall
}

func (t *boundTracker) Fail(_ context.Context, message string) {
	t.factory.mu.Lock()
	defer t.factory.mu.Unlock()
	c := t.call
	c.message = message
	t.factory.failed = append(t.factory.failed, c)
}

func (t *boundTracker) Complete(_ context.Context) {
	t.factory.mu.Lock()
	defer t.factory.mu.Unlock()
	t.factory.completed = append(t.factory.completed, t.call)
}

// recordingHandler captures every payload it is executed with.
type recordingHandler struct {
	mu       sync.Mutex
	payloads []map[string]any
	err      error
}

func (h *recordingHandler) Execute(_ context.Context, payload map[string]any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.payloads = append(h.payloads, payload)
	return h.err
}

func (h *recordingHandler) calls() []map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]map[string]any, len(h.payloads))
	copy(out, h.payloads)
	return out
}

type panickingHandler struct{}

func (panickingHandler) Execute(context.Context, map[string]any) error {
	panic("nil connector")
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	handler := &recordingHandler{}

	assert.False(t, registry.HasHandler(task.OperationSyncPlatform))
	_, ok := registry.Handler(task.OperationSyncPlatform)
	assert.False(t, ok)

	registry.Register(task.OperationSyncPlatform, handler)
	registry.Register(task.OperationDeletePlatform, handler)

	assert.True(t, registry.HasHandler(task.OperationSyncPlatform))
	got, ok := registry.Handler(task.OperationSyncPlatform)
	require.True(t, ok)
	assert.Same(t, handler, got.(*recordingHandler))
	assert.ElementsMatch(t,
		[]task.Operation{task.OperationSyncPlatform, task.OperationDeletePlatform},
		registry.Operations(),
	)
}

func TestWorker_ProcessOne(t *testing.T) {
	store := newFakeTaskStore()
	queue := NewQueue(store, testLogger())
	handler := &recordingHandler{}
	registry := NewRegistry()
	registry.Register(task.OperationSyncPlatform, handler)
	trackers := &fakeTrackerFactory{}
	worker := NewWorker(store, registry, trackers, testLogger())

	ctx := context.Background()
	err := queue.EnqueueOperation(ctx, task.OperationSyncPlatform, task.PriorityNormal, map[string]any{
		"platform": "fakestore",
	})
	require.NoError(t, err)

	processed, err := worker.ProcessOne(ctx)
	require.NoError(t, err)
	assert.True(t, processed)

	calls := handler.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "fakestore", calls[0]["platform"])
	assert.Equal(t, 0, store.pendingCount(), "processed tasks leave the queue")

	completed := trackers.completedCalls()
	require.Len(t, completed, 1)
	assert.Equal(t, task.OperationSyncPlatform, completed[0].operation)
	assert.Equal(t, task.TrackableTypePlatform, completed[0].trackableType)
	assert.Equal(t, "fakestore", completed[0].key)
	assert.Empty(t, trackers.failedCalls())
}

func TestWorker_ProcessOne_EmptyQueue(t *testing.T) {
	store := newFakeTaskStore()
	worker := NewWorker(store, NewRegistry(), nil, testLogger())

	processed, err := worker.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestWorker_PriorityOrder(t *testing.T) {
	store := newFakeTaskStore()
	queue := NewQueue(store, testLogger())
	handler := &recordingHandler{}
	registry := NewRegistry()
	registry.Register(task.OperationSyncPlatform, handler)
	worker := NewWorker(store, registry, nil, testLogger())

	ctx := context.Background()
	require.NoError(t, queue.EnqueueOperation(ctx, task.OperationSyncPlatform, task.PriorityBackground, map[string]any{
		"platform": "fakestore",
	}))
	require.NoError(t, queue.EnqueueOperation(ctx, task.OperationSyncPlatform, task.PriorityUserInitiated, map[string]any{
		"platform": "magento",
	}))

	for range 2 {
		_, err := worker.ProcessOne(ctx)
		require.NoError(t, err)
	}

	calls := handler.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "magento", calls[0]["platform"], "higher priority task runs first")
	assert.Equal(t, "fakestore", calls[1]["platform"])
}

func TestWorker_HandlerErrorMarksFailed(t *testing.T) {
	store := newFakeTaskStore()
	queue := NewQueue(store, testLogger())
	handler := &recordingHandler{err: errors.New("connector offline")}
	registry := NewRegistry()
	registry.Register(task.OperationSyncPlatform, handler)
	trackers := &fakeTrackerFactory{}
	worker := NewWorker(store, registry, trackers, testLogger())

	ctx := context.Background()
	require.NoError(t, queue.EnqueueOperation(ctx, task.OperationSyncPlatform, task.PriorityNormal, map[string]any{
		"platform": "fakestore",
	}))

	processed, err := worker.ProcessOne(ctx)
	require.NoError(t, err)
	assert.True(t, processed)

	failed := trackers.failedCalls()
	require.Len(t, failed, 1)
	assert.Equal(t, task.TrackableTypePlatform, failed[0].trackableType)
	assert.Equal(t, "fakestore", failed[0].key)
	assert.Contains(t, failed[0].message, "connector offline")
	assert.Empty(t, trackers.completedCalls())
	assert.Equal(t, 0, store.pendingCount(), "failed tasks are not retried")
}

func TestWorker_HandlerPanicRecovered(t *testing.T) {
	store := newFakeTaskStore()
	queue := NewQueue(store, testLogger())
	registry := NewRegistry()
	registry.Register(task.OperationSyncPlatform, panickingHandler{})
	trackers := &fakeTrackerFactory{}
	worker := NewWorker(store, registry, trackers, testLogger())

	ctx := context.Background()
	require.NoError(t, queue.EnqueueOperation(ctx, task.OperationSyncPlatform, task.PriorityNormal, map[string]any{
		"platform": "fakestore",
	}))

	processed, err := worker.ProcessOne(ctx)
	require.NoError(t, err)
	assert.True(t, processed)

	failed := trackers.failedCalls()
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].message, "handler panicked")
	assert.Equal(t, 0, store.pendingCount())
}

func TestWorker_NoHandlerDeletesTask(t *testing.T) {
	store := newFakeTaskStore()
	queue := NewQueue(store, testLogger())
	trackers := &fakeTrackerFactory{}
	worker := NewWorker(store, NewRegistry(), trackers, testLogger())

	ctx := context.Background()
	require.NoError(t, queue.EnqueueOperation(ctx, task.OperationRecreateCollection, task.PriorityNormal, map[string]any{
		"collection": "products",
	}))

	processed, err := worker.ProcessOne(ctx)
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, 0, store.pendingCount(), "unhandled tasks do not block the queue")
	assert.Empty(t, trackers.completedCalls())
	assert.Empty(t, trackers.failedCalls())
}

func TestWorker_UntrackedPayload(t *testing.T) {
	store := newFakeTaskStore()
	queue := NewQueue(store, testLogger())
	handler := &recordingHandler{}
	registry := NewRegistry()
	registry.Register(task.OperationSyncPlatform, handler)
	trackers := &fakeTrackerFactory{}
	worker := NewWorker(store, registry, trackers, testLogger())

	// A platform operation without a platform in the payload has
	// nothing to track against.
	ctx := context.Background()
	require.NoError(t, queue.EnqueueOperation(ctx, task.OperationSyncPlatform, task.PriorityNormal, map[string]any{
		"note": "manual run",
	}))

	processed, err := worker.ProcessOne(ctx)
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Len(t, handler.calls(), 1)
	assert.Empty(t, trackers.completedCalls())
	assert.Empty(t, trackers.failedCalls())
}

func TestWorker_StartStop(t *testing.T) {
	store := newFakeTaskStore()
	queue := NewQueue(store, testLogger())
	handler := &recordingHandler{}
	registry := NewRegistry()
	registry.Register(task.OperationSyncPlatform, handler)
	worker := NewWorker(store, registry, nil, testLogger()).WithPollPeriod(5 * time.Millisecond)

	ctx := context.Background()
	require.NoError(t, queue.EnqueueOperation(ctx, task.OperationSyncPlatform, task.PriorityNormal, map[string]any{
		"platform": "fakestore",
	}))

	worker.Start(ctx)
	require.Eventually(t, func() bool {
		return len(handler.calls()) == 1 && store.pendingCount() == 0
	}, time.Second, 5*time.Millisecond)

	worker.Stop()

	// Tasks enqueued after Stop are left for the next worker.
	require.NoError(t, queue.EnqueueOperation(ctx, task.OperationSyncPlatform, task.PriorityNormal, map[string]any{
		"platform": "magento",
	}))
	time.Sleep(30 * time.Millisecond)
	assert.Len(t, handler.calls(), 1)
	assert.Equal(t, 1, store.pendingCount())
}

func TestQueue_EnqueueDedup(t *testing.T) {
	store := newFakeTaskStore()
	queue := NewQueue(store, testLogger())

	ctx := context.Background()
	require.NoError(t, queue.EnqueueOperation(ctx, task.OperationSyncPlatform, task.PriorityBackground, map[string]any{
		"platform": "fakestore",
	}))
	require.NoError(t, queue.EnqueueOperation(ctx, task.OperationSyncPlatform, task.PriorityCritical, map[string]any{
		"platform": "fakestore",
	}))

	count, err := queue.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "same operation and platform collapse into one task")

	got, found, err := store.Dequeue(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int(task.PriorityCritical), got.Priority(), "re-enqueueing refreshes the priority")
}

func TestQueue_ListFiltersByOperation(t *testing.T) {
	store := newFakeTaskStore()
	queue := NewQueue(store, testLogger())

	ctx := context.Background()
	require.NoError(t, queue.EnqueueOperation(ctx, task.OperationSyncPlatform, task.PriorityNormal, map[string]any{
		"platform": "fakestore",
	}))
	require.NoError(t, queue.EnqueueOperation(ctx, task.OperationDeletePlatform, task.PriorityNormal, map[string]any{
		"platform": "magento",
	}))

	op := task.OperationDeletePlatform
	tasks, err := queue.List(ctx, &TaskListParams{Operation: &op})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, task.OperationDeletePlatform, tasks[0].Operation())

	all, err := queue.List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestQueue_DrainForPlatform_RemovesAllMatching(t *testing.T) {
	store := newFakeTaskStore()
	queue := NewQueue(store, testLogger())

	ctx := context.Background()
	require.NoError(t, queue.EnqueueOperation(ctx, task.OperationSyncPlatform, task.PriorityNormal, map[string]any{
		"platform": "fakestore",
	}))
	require.NoError(t, queue.EnqueueOperation(ctx, task.OperationDeletePlatform, task.PriorityNormal, map[string]any{
		"platform": "fakestore",
	}))
	require.NoError(t, queue.EnqueueOperation(ctx, task.OperationSyncPlatform, task.PriorityNormal, map[string]any{
		"platform": "magento",
	}))

	removed, err := queue.DrainForPlatform(ctx, "fakestore")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	remaining, err := store.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	platform, ok := remaining[0].PayloadString("platform")
	require.True(t, ok)
	assert.Equal(t, "magento", platform)
}
