package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopvec/shopvec/domain/repository"
	"github.com/shopvec/shopvec/domain/task"
	"github.com/shopvec/shopvec/internal/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TaskStore implements task.TaskStore using GORM. Reads go through the
// generic repository; Save and Dequeue stay local because the dedup
// upsert clause and the take-and-delete transaction are specific to
// this table.
type TaskStore struct {
	db     database.Database
	mapper TaskMapper
	repo   database.Repository[task.Task, TaskModel]
}

// NewTaskStore creates a new TaskStore.
func NewTaskStore(db database.Database) TaskStore {
	mapper := TaskMapper{}
	return TaskStore{
		db:     db,
		mapper: mapper,
		repo:   database.NewRepository[task.Task, TaskModel](db, mapper, "task"),
	}
}

// Get retrieves a task by ID.
func (s TaskStore) Get(ctx context.Context, id int64) (task.Task, error) {
	t, err := s.repo.FindOne(ctx, repository.WithID(id))
	if err != nil {
		return task.Task{}, fmt.Errorf("get task %d: %w", id, err)
	}
	return t, nil
}

// queueOrder sorts highest priority first, oldest first within a
// priority.
func queueOrder() []repository.Option {
	return []repository.Option{
		repository.WithOrderDesc("priority"),
		repository.WithOrderAsc("created_at"),
	}
}

// FindAll retrieves all tasks in queue order.
func (s TaskStore) FindAll(ctx context.Context) ([]task.Task, error) {
	tasks, err := s.repo.Find(ctx, queueOrder()...)
	if err != nil {
		return nil, fmt.Errorf("find all tasks: %w", err)
	}
	return tasks, nil
}

// FindPending retrieves pending tasks in queue order.
func (s TaskStore) FindPending(ctx context.Context, options ...repository.Option) ([]task.Task, error) {
	tasks, err := s.repo.Find(ctx, append(queueOrder(), options...)...)
	if err != nil {
		return nil, fmt.Errorf("find pending tasks: %w", err)
	}
	return tasks, nil
}

// Save creates a new task or updates an existing one.
// Uses dedup_key for conflict resolution.
func (s TaskStore) Save(ctx context.Context, t task.Task) (task.Task, error) {
	model, err := s.mapper.ToModel(t)
	if err != nil {
		return task.Task{}, fmt.Errorf("save task: %w", err)
	}

	result := s.db.Session(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dedup_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"priority", "updated_at"}),
	}).Create(&model)
	if result.Error != nil {
		return task.Task{}, fmt.Errorf("save task: %w", result.Error)
	}

	return s.mapper.ToDomain(model)
}

// SaveBulk creates or updates multiple tasks.
func (s TaskStore) SaveBulk(ctx context.Context, tasks []task.Task) ([]task.Task, error) {
	if len(tasks) == 0 {
		return []task.Task{}, nil
	}

	models := make([]TaskModel, len(tasks))
	for i, t := range tasks {
		model, err := s.mapper.ToModel(t)
		if err != nil {
			return nil, fmt.Errorf("save tasks bulk: %w", err)
		}
		models[i] = model
	}

	result := s.db.Session(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dedup_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"priority", "updated_at"}),
	}).Create(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("save tasks bulk: %w", result.Error)
	}

	return s.toDomainAll(models)
}

// Delete removes a task.
func (s TaskStore) Delete(ctx context.Context, t task.Task) error {
	result := s.db.Session(ctx).Delete(&TaskModel{}, t.ID())
	if result.Error != nil {
		return fmt.Errorf("delete task: %w", result.Error)
	}
	return nil
}

// DeleteAll removes all tasks.
func (s TaskStore) DeleteAll(ctx context.Context) error {
	result := s.db.Session(ctx).Where("1 = 1").Delete(&TaskModel{})
	if result.Error != nil {
		return fmt.Errorf("delete all tasks: %w", result.Error)
	}
	return nil
}

// CountPending returns the number of pending tasks.
func (s TaskStore) CountPending(ctx context.Context, options ...repository.Option) (int64, error) {
	count, err := s.repo.Count(ctx, options...)
	if err != nil {
		return 0, fmt.Errorf("count pending tasks: %w", err)
	}
	return count, nil
}

// Exists checks if a task with the given ID exists.
func (s TaskStore) Exists(ctx context.Context, id int64) (bool, error) {
	return s.repo.Exists(ctx, repository.WithID(id))
}

// Dequeue retrieves and removes the highest priority task.
func (s TaskStore) Dequeue(ctx context.Context) (task.Task, bool, error) {
	return s.dequeue(ctx, "")
}

// DequeueByOperation retrieves and removes the highest priority task of a
// specific operation type.
func (s TaskStore) DequeueByOperation(ctx context.Context, operation task.Operation) (task.Task, bool, error) {
	return s.dequeue(ctx, operation.String())
}

func (s TaskStore) dequeue(ctx context.Context, operation string) (task.Task, bool, error) {
	var model TaskModel

	err := s.db.Session(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Order("priority DESC, created_at ASC")
		if operation != "" {
			q = q.Where("type = ?", operation)
		}
		result := q.First(&model)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return nil // No tasks available
			}
			return result.Error
		}

		return tx.Delete(&model).Error
	})
	if err != nil {
		return task.Task{}, false, fmt.Errorf("dequeue task: %w", err)
	}

	if model.ID == 0 {
		return task.Task{}, false, nil
	}

	t, err := s.mapper.ToDomain(model)
	if err != nil {
		return task.Task{}, false, fmt.Errorf("dequeue task: %w", err)
	}
	return t, true, nil
}

func (s TaskStore) toDomainAll(models []TaskModel) ([]task.Task, error) {
	tasks := make([]task.Task, len(models))
	for i, model := range models {
		t, err := s.mapper.ToDomain(model)
		if err != nil {
			return nil, err
		}
		tasks[i] = t
	}
	return tasks, nil
}

// StatusStore implements task.StatusStore using GORM.
type StatusStore struct {
	db     database.Database
	mapper TaskStatusMapper
}

// NewStatusStore creates a new StatusStore.
func NewStatusStore(db database.Database) StatusStore {
	return StatusStore{
		db:     db,
		mapper: TaskStatusMapper{},
	}
}

// Get retrieves a task status by ID.
func (s StatusStore) Get(ctx context.Context, id string) (task.Status, error) {
	var model TaskStatusModel
	result := s.db.Session(ctx).Where("id = ?", id).First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return task.Status{}, fmt.Errorf("%w: status id %s", database.ErrNotFound, id)
		}
		return task.Status{}, fmt.Errorf("get status: %w", result.Error)
	}
	return s.mapper.ToDomain(model), nil
}

// FindByTrackable retrieves task statuses for a trackable entity.
func (s StatusStore) FindByTrackable(ctx context.Context, trackableType task.TrackableType, trackableKey string) ([]task.Status, error) {
	var models []TaskStatusModel
	result := s.db.Session(ctx).
		Where("trackable_type = ? AND trackable_key = ?", string(trackableType), trackableKey).
		Order("created_at ASC").
		Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("find statuses: %w", result.Error)
	}

	statuses := make([]task.Status, len(models))
	for i, model := range models {
		statuses[i] = s.mapper.ToDomain(model)
	}
	return statuses, nil
}

// Save creates a new task status or updates an existing one. If the
// status has a parent, the parent chain is saved first so the parent
// column always references an existing row.
func (s StatusStore) Save(ctx context.Context, status task.Status) (task.Status, error) {
	if status.Parent() != nil {
		if _, err := s.Save(ctx, *status.Parent()); err != nil {
			return task.Status{}, err
		}
	}

	model := s.mapper.ToModel(status)

	result := s.db.Session(ctx).Save(&model)
	if result.Error != nil {
		return task.Status{}, fmt.Errorf("save status: %w", result.Error)
	}

	saved := s.mapper.ToDomain(model)
	return task.NewStatusFull(
		saved.ID(),
		saved.State(),
		saved.Operation(),
		saved.Message(),
		saved.CreatedAt(),
		saved.UpdatedAt(),
		saved.Total(),
		saved.Current(),
		saved.Error(),
		status.Parent(),
		saved.TrackableKey(),
		saved.TrackableType(),
	), nil
}

// Delete removes a task status.
func (s StatusStore) Delete(ctx context.Context, status task.Status) error {
	result := s.db.Session(ctx).Delete(&TaskStatusModel{}, "id = ?", status.ID())
	if result.Error != nil {
		return fmt.Errorf("delete status: %w", result.Error)
	}
	return nil
}

// DeleteByTrackable removes task statuses for a trackable entity.
func (s StatusStore) DeleteByTrackable(ctx context.Context, trackableType task.TrackableType, trackableKey string) error {
	result := s.db.Session(ctx).
		Where("trackable_type = ? AND trackable_key = ?", string(trackableType), trackableKey).
		Delete(&TaskStatusModel{})
	if result.Error != nil {
		return fmt.Errorf("delete statuses: %w", result.Error)
	}
	return nil
}

// Count returns the total number of task statuses.
func (s StatusStore) Count(ctx context.Context) (int64, error) {
	var count int64
	result := s.db.Session(ctx).Model(&TaskStatusModel{}).Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("count statuses: %w", result.Error)
	}
	return count, nil
}
