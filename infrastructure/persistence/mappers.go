package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/shopvec/shopvec/domain/catalog"
	"github.com/shopvec/shopvec/domain/sync"
	"github.com/shopvec/shopvec/domain/task"
)

// RecordMapper maps between domain catalog records and CatalogRecordModel.
type RecordMapper struct{}

// ToDomain converts a CatalogRecordModel to a domain Record.
func (m RecordMapper) ToDomain(e CatalogRecordModel) (catalog.Record, error) {
	item, err := catalog.NewItem(e.Platform, e.ExternalID, e.Title)
	if err != nil {
		return catalog.Record{}, fmt.Errorf("record %d: %w", e.ID, err)
	}

	item, err = item.WithPrice(e.Price)
	if err != nil {
		return catalog.Record{}, fmt.Errorf("record %d: %w", e.ID, err)
	}

	item = item.
		WithDescription(e.Description).
		WithCategory(e.Category).
		WithImageURL(e.ImageURL).
		WithStock(e.InStock).
		WithSKU(e.SKU).
		WithBrand(e.Brand).
		WithRating(e.Rating, e.RatingCount)

	if len(e.Attributes) > 0 {
		var attrs map[string]string
		if err := json.Unmarshal(e.Attributes, &attrs); err != nil {
			return catalog.Record{}, fmt.Errorf("record %d: unmarshal attributes: %w", e.ID, err)
		}
		item = item.WithAttributes(attrs)
	}

	return catalog.NewRecord(e.ID, item), nil
}

// ToModel converts a domain Item to a CatalogRecordModel. The id is left
// zero; the store assigns it.
func (m RecordMapper) ToModel(item catalog.Item) (CatalogRecordModel, error) {
	var attrs json.RawMessage
	if a := item.Attributes(); len(a) > 0 {
		data, err := json.Marshal(a)
		if err != nil {
			return CatalogRecordModel{}, fmt.Errorf("marshal attributes: %w", err)
		}
		attrs = data
	}

	return CatalogRecordModel{
		Platform:    item.Platform(),
		ExternalID:  item.ExternalID(),
		Title:       item.Title(),
		Description: item.Description(),
		Price:       item.Price(),
		Category:    item.Category(),
		ImageURL:    item.ImageURL(),
		InStock:     item.InStock(),
		SKU:         item.SKU(),
		Brand:       item.Brand(),
		Rating:      item.Rating(),
		RatingCount: item.RatingCount(),
		Attributes:  attrs,
	}, nil
}

// CheckpointMapper maps between domain Checkpoint and SyncCheckpointModel.
type CheckpointMapper struct{}

// ToDomain converts a SyncCheckpointModel to a domain Checkpoint.
func (m CheckpointMapper) ToDomain(e SyncCheckpointModel) (sync.Checkpoint, error) {
	return sync.NewCheckpointWithTime(e.CollectionName, e.LastProcessedID, e.UpdatedAt)
}

// ToModel converts a domain Checkpoint to a SyncCheckpointModel.
func (m CheckpointMapper) ToModel(cp sync.Checkpoint) SyncCheckpointModel {
	return SyncCheckpointModel{
		CollectionName:  cp.Collection(),
		LastProcessedID: cp.LastProcessedID(),
		UpdatedAt:       cp.UpdatedAt(),
	}
}

// TaskMapper maps between domain Task and persistence TaskModel.
type TaskMapper struct{}

// ToDomain converts a TaskModel to a domain Task.
func (m TaskMapper) ToDomain(e TaskModel) (task.Task, error) {
	var payload map[string]any
	if len(e.Payload) > 0 {
		if err := json.Unmarshal(e.Payload, &payload); err != nil {
			return task.Task{}, fmt.Errorf("unmarshal task payload: %w", err)
		}
	}
	if payload == nil {
		payload = make(map[string]any)
	}

	return task.NewTaskWithID(
		e.ID,
		e.DedupKey,
		task.Operation(e.Type),
		e.Priority,
		payload,
		e.CreatedAt,
		e.UpdatedAt,
	), nil
}

// ToModel converts a domain Task to a TaskModel.
func (m TaskMapper) ToModel(t task.Task) (TaskModel, error) {
	payloadJSON, err := json.Marshal(t.Payload())
	if err != nil {
		return TaskModel{}, fmt.Errorf("marshal task payload: %w", err)
	}

	return TaskModel{
		ID:        t.ID(),
		DedupKey:  t.DedupKey(),
		Type:      string(t.Operation()),
		Payload:   payloadJSON,
		Priority:  t.Priority(),
		CreatedAt: t.CreatedAt(),
		UpdatedAt: t.UpdatedAt(),
	}, nil
}

// TaskStatusMapper maps between domain Status and persistence TaskStatusModel.
type TaskStatusMapper struct{}

// ToDomain converts a TaskStatusModel to a domain Status.
func (m TaskStatusMapper) ToDomain(e TaskStatusModel) task.Status {
	var trackableKey string
	var trackableType task.TrackableType

	if e.TrackableKey != nil {
		trackableKey = *e.TrackableKey
	}
	if e.TrackableType != nil {
		trackableType = task.TrackableType(*e.TrackableType)
	}

	return task.NewStatusFull(
		e.ID,
		task.ReportingState(e.State),
		task.Operation(e.Operation),
		e.Message,
		e.CreatedAt,
		e.UpdatedAt,
		e.Total,
		e.Current,
		e.Error,
		nil,
		trackableKey,
		trackableType,
	)
}

// ToModel converts a domain Status to a TaskStatusModel.
func (m TaskStatusMapper) ToModel(s task.Status) TaskStatusModel {
	model := TaskStatusModel{
		ID:        s.ID(),
		CreatedAt: s.CreatedAt(),
		UpdatedAt: s.UpdatedAt(),
		Operation: string(s.Operation()),
		Message:   s.Message(),
		State:     string(s.State()),
		Error:     s.Error(),
		Total:     s.Total(),
		Current:   s.Current(),
	}

	if s.TrackableKey() != "" {
		key := s.TrackableKey()
		model.TrackableKey = &key
	}

	if s.TrackableType() != "" {
		t := string(s.TrackableType())
		model.TrackableType = &t
	}

	if s.Parent() != nil {
		parentID := s.Parent().ID()
		model.ParentID = &parentID
	}

	return model
}
