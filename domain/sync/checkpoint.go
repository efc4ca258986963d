// Package sync provides the resumable-sync domain model: checkpoints,
// run states, accumulated statistics, and the retry policy.
package sync

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors.
var (
	// ErrCheckpointNotFound indicates no checkpoint exists for a
	// collection; runs treat it as cursor zero.
	ErrCheckpointNotFound = errors.New("checkpoint not found")

	// ErrRunActive indicates a sync run is already active for the
	// collection. Concurrent runs for one collection are rejected, not
	// interleaved.
	ErrRunActive = errors.New("sync run already active for collection")
)

// Checkpoint marks the last successfully processed record id for one
// collection. It only ever advances within a run unless explicitly
// reset.
type Checkpoint struct {
	collection      string
	lastProcessedID int64
	updatedAt       time.Time
}

// NewCheckpoint creates a Checkpoint.
func NewCheckpoint(collection string, lastProcessedID int64) (Checkpoint, error) {
	if collection == "" {
		return Checkpoint{}, errors.New("collection is required")
	}
	if lastProcessedID < 0 {
		return Checkpoint{}, errors.New("last processed id must not be negative")
	}
	return Checkpoint{collection: collection, lastProcessedID: lastProcessedID}, nil
}

// NewCheckpointWithTime creates a Checkpoint with its update time (used
// by persistence when loading).
func NewCheckpointWithTime(collection string, lastProcessedID int64, updatedAt time.Time) (Checkpoint, error) {
	cp, err := NewCheckpoint(collection, lastProcessedID)
	if err != nil {
		return Checkpoint{}, err
	}
	cp.updatedAt = updatedAt
	return cp, nil
}

// Collection returns the collection name.
func (c Checkpoint) Collection() string { return c.collection }

// LastProcessedID returns the cursor of the last committed record.
func (c Checkpoint) LastProcessedID() int64 { return c.lastProcessedID }

// UpdatedAt returns when the checkpoint was last written.
func (c Checkpoint) UpdatedAt() time.Time { return c.updatedAt }

// Advance returns a copy moved forward to id. The cursor is monotonic:
// advancing to an id at or behind the current one returns the receiver
// unchanged.
func (c Checkpoint) Advance(id int64) Checkpoint {
	if id <= c.lastProcessedID {
		return c
	}
	c.lastProcessedID = id
	return c
}

// CheckpointStore persists checkpoints durably across process restarts.
type CheckpointStore interface {
	// Get returns the checkpoint for a collection, or
	// ErrCheckpointNotFound when none was ever written.
	Get(ctx context.Context, collection string) (Checkpoint, error)

	// Save upserts the checkpoint.
	Save(ctx context.Context, checkpoint Checkpoint) (Checkpoint, error)

	// Reset removes the checkpoint so the next run starts from zero.
	Reset(ctx context.Context, collection string) error
}
