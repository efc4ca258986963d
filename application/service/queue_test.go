package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopvec/shopvec/domain/task"
)

func TestQueue_EnqueueOperation_DedupsOnPayload(t *testing.T) {
	store := newFakeTaskStore()
	queue := NewQueue(store, testLogger())
	ctx := context.Background()

	payload := map[string]any{"platform": "seed"}
	require.NoError(t, queue.EnqueueOperation(ctx, task.OperationSyncPlatform, task.PriorityBackground, payload))
	require.NoError(t, queue.EnqueueOperation(ctx, task.OperationSyncPlatform, task.PriorityUserInitiated, payload))

	count, err := queue.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "same platform sync should dedup")

	tasks, err := queue.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, int(task.PriorityUserInitiated), tasks[0].Priority(), "re-enqueue should raise priority")
}

func TestQueue_List_FiltersByOperation(t *testing.T) {
	store := newFakeTaskStore()
	queue := NewQueue(store, testLogger())
	ctx := context.Background()

	require.NoError(t, queue.EnqueueOperation(ctx, task.OperationSyncPlatform,
		task.PriorityBackground, map[string]any{"platform": "seed"}))
	require.NoError(t, queue.EnqueueOperation(ctx, task.OperationDeletePlatform,
		task.PriorityBackground, map[string]any{"platform": "seed"}))

	op := task.OperationDeletePlatform
	tasks, err := queue.List(ctx, &TaskListParams{Operation: &op})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, task.OperationDeletePlatform, tasks[0].Operation())
}

func TestQueue_DrainForPlatform(t *testing.T) {
	store := newFakeTaskStore()
	queue := NewQueue(store, testLogger())
	ctx := context.Background()

	require.NoError(t, queue.EnqueueOperation(ctx, task.OperationSyncPlatform,
		task.PriorityBackground, map[string]any{"platform": "seed"}))
	require.NoError(t, queue.EnqueueOperation(ctx, task.OperationSyncPlatform,
		task.PriorityBackground, map[string]any{"platform": "fakestore"}))
	require.NoError(t, queue.EnqueueOperation(ctx, task.OperationRecreateCollection,
		task.PriorityBackground, map[string]any{"collection": "products"}))

	removed, err := queue.DrainForPlatform(ctx, "seed")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	tasks, err := queue.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	for _, tk := range tasks {
		if p, ok := tk.PayloadString("platform"); ok {
			assert.NotEqual(t, "seed", p)
		}
	}
}
