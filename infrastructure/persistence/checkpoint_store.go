package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopvec/shopvec/domain/sync"
	"github.com/shopvec/shopvec/internal/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CheckpointStore implements sync.CheckpointStore using GORM.
type CheckpointStore struct {
	db     database.Database
	mapper CheckpointMapper
}

// NewCheckpointStore creates a new CheckpointStore.
func NewCheckpointStore(db database.Database) CheckpointStore {
	return CheckpointStore{
		db:     db,
		mapper: CheckpointMapper{},
	}
}

// Get returns the checkpoint for a collection.
func (s CheckpointStore) Get(ctx context.Context, collection string) (sync.Checkpoint, error) {
	var model SyncCheckpointModel
	result := s.db.Session(ctx).
		Where("collection_name = ?", collection).
		First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return sync.Checkpoint{}, fmt.Errorf("%w: %s", sync.ErrCheckpointNotFound, collection)
		}
		return sync.Checkpoint{}, fmt.Errorf("get checkpoint: %w", result.Error)
	}
	return s.mapper.ToDomain(model)
}

// Save upserts the checkpoint on collection_name.
func (s CheckpointStore) Save(ctx context.Context, checkpoint sync.Checkpoint) (sync.Checkpoint, error) {
	model := s.mapper.ToModel(checkpoint)

	result := s.db.Session(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_processed_id", "updated_at"}),
	}).Create(&model)
	if result.Error != nil {
		return sync.Checkpoint{}, fmt.Errorf("save checkpoint: %w", result.Error)
	}

	return s.mapper.ToDomain(model)
}

// Reset removes the checkpoint so the next run starts from zero.
func (s CheckpointStore) Reset(ctx context.Context, collection string) error {
	result := s.db.Session(ctx).
		Where("collection_name = ?", collection).
		Delete(&SyncCheckpointModel{})
	if result.Error != nil {
		return fmt.Errorf("reset checkpoint: %w", result.Error)
	}
	return nil
}
