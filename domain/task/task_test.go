package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTask_DedupKey(t *testing.T) {
	tests := []struct {
		name    string
		op      Operation
		payload map[string]any
		want    string
	}{
		{
			name:    "platform payload",
			op:      OperationSyncPlatform,
			payload: map[string]any{"platform": "fakestore", "collection": "products"},
			want:    "shopvec.platform.sync:fakestore",
		},
		{
			name:    "collection payload",
			op:      OperationRecreateCollection,
			payload: map[string]any{"collection": "products"},
			want:    "shopvec.collection.recreate:products",
		},
		{
			name:    "delete platform",
			op:      OperationDeletePlatform,
			payload: map[string]any{"platform": "magento"},
			want:    "shopvec.platform.delete:magento",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := NewTask(tt.op, int(PriorityNormal), tt.payload)
			assert.Equal(t, tt.want, task.DedupKey())
		})
	}
}

func TestNewTask_SamePlatformSameKey(t *testing.T) {
	a := NewTask(OperationSyncPlatform, int(PriorityNormal), map[string]any{
		"platform":   "fakestore",
		"collection": "products",
	})
	b := NewTask(OperationSyncPlatform, int(PriorityCritical), map[string]any{
		"collection": "products",
		"platform":   "fakestore",
	})

	// Key ignores map ordering and priority, so re-enqueueing dedups.
	assert.Equal(t, a.DedupKey(), b.DedupKey())
}

func TestTask_PayloadIsCopied(t *testing.T) {
	payload := map[string]any{"platform": "fakestore"}
	task := NewTask(OperationSyncPlatform, int(PriorityNormal), payload)

	payload["platform"] = "mutated"
	assert.Equal(t, "fakestore", task.Payload()["platform"])

	out := task.Payload()
	out["platform"] = "mutated again"
	assert.Equal(t, "fakestore", task.Payload()["platform"])
}

func TestTask_PayloadString(t *testing.T) {
	task := NewTask(OperationSyncPlatform, int(PriorityNormal), map[string]any{
		"platform": "fakestore",
		"batch":    32,
	})

	got, ok := task.PayloadString("platform")
	require.True(t, ok)
	assert.Equal(t, "fakestore", got)

	_, ok = task.PayloadString("batch")
	assert.False(t, ok, "non-string value should not be returned as string")

	_, ok = task.PayloadString("missing")
	assert.False(t, ok)
}

func TestTask_WithID(t *testing.T) {
	task := NewTask(OperationSyncPlatform, int(PriorityNormal), map[string]any{"platform": "odoo"})
	withID := task.WithID(17)

	assert.Equal(t, int64(17), withID.ID())
	assert.Equal(t, int64(0), task.ID(), "original should be unchanged")
}

func TestTask_WithTimestamps(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	updated := created.Add(time.Minute)

	task := NewTask(OperationSyncPlatform, int(PriorityNormal), map[string]any{"platform": "odoo"}).
		WithTimestamps(created, updated)

	assert.Equal(t, created, task.CreatedAt())
	assert.Equal(t, updated, task.UpdatedAt())
}

func TestTask_PayloadJSON(t *testing.T) {
	task := NewTask(OperationSyncPlatform, int(PriorityNormal), map[string]any{"platform": "seed"})

	data, err := task.PayloadJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"platform":"seed"}`, string(data))
}

func TestNewTaskWithID(t *testing.T) {
	now := time.Now().UTC()
	task := NewTaskWithID(
		42,
		"shopvec.platform.sync:fakestore",
		OperationSyncPlatform,
		int(PriorityUserInitiated),
		map[string]any{"platform": "fakestore"},
		now, now,
	)

	assert.Equal(t, int64(42), task.ID())
	assert.Equal(t, "shopvec.platform.sync:fakestore", task.DedupKey())
	assert.Equal(t, OperationSyncPlatform, task.Operation())
	assert.Equal(t, int(PriorityUserInitiated), task.Priority())
}
