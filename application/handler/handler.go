// Package handler provides task handlers for processing queued operations.
package handler

import (
	"context"
	"fmt"

	"github.com/shopvec/shopvec/domain/task"
	"github.com/shopvec/shopvec/internal/config"
)

// Tracker provides progress tracking for task execution.
type Tracker interface {
	SetTotal(ctx context.Context, total int)
	SetCurrent(ctx context.Context, current int, message string)
	Skip(ctx context.Context, message string)
	Fail(ctx context.Context, message string)
	Complete(ctx context.Context)
}

// TrackerFactory creates trackers for progress reporting.
type TrackerFactory interface {
	ForOperation(operation task.Operation, trackableType task.TrackableType, trackableKey string) Tracker
}

// Handler defines the interface for task operation handlers.
type Handler interface {
	Execute(ctx context.Context, payload map[string]any) error
}

// ExtractString extracts a string value from the payload.
func ExtractString(payload map[string]any, key string) (string, error) {
	val, ok := payload[key]
	if !ok {
		return "", fmt.Errorf("missing required field: %s", key)
	}

	s, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("invalid type for %s: expected string, got %T", key, val)
	}

	return s, nil
}

// SyncPayload holds the fields of a platform sync task payload.
// Only the platform is required; the rest carry defaults.
type SyncPayload struct {
	platform   string
	category   string
	batchSize  int
	withImages bool
}

// Platform returns the platform to sync.
func (p SyncPayload) Platform() string { return p.platform }

// Category returns the optional category filter.
func (p SyncPayload) Category() string { return p.category }

// BatchSize returns the batch size for the sync run.
func (p SyncPayload) BatchSize() int { return p.batchSize }

// WithImages reports whether image embeddings were requested.
func (p SyncPayload) WithImages() bool { return p.withImages }

// ExtractSyncPayload extracts a platform sync payload from a task
// payload. Payloads round-trip through JSON, so numbers may arrive as
// float64.
func ExtractSyncPayload(payload map[string]any) (SyncPayload, error) {
	platform, err := ExtractString(payload, "platform")
	if err != nil {
		return SyncPayload{}, err
	}

	return SyncPayload{
		platform:   platform,
		category:   optionalString(payload, "category"),
		batchSize:  optionalInt(payload, "batch_size", config.DefaultBatchSize),
		withImages: optionalBool(payload, "with_images"),
	}, nil
}

func optionalString(payload map[string]any, key string) string {
	s, _ := payload[key].(string)
	return s
}

func optionalInt(payload map[string]any, key string, fallback int) int {
	switch v := payload[key].(type) {
	case int:
		if v > 0 {
			return v
		}
	case int64:
		if v > 0 {
			return int(v)
		}
	case float64:
		if v > 0 {
			return int(v)
		}
	}
	return fallback
}

func optionalBool(payload map[string]any, key string) bool {
	b, _ := payload[key].(bool)
	return b
}
