package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopvec/shopvec/domain/catalog"
	"github.com/shopvec/shopvec/domain/repository"
	"github.com/shopvec/shopvec/internal/database"
	"gorm.io/gorm/clause"
)

// RecordStore implements catalog.RecordStore using GORM. Reads and
// deletes go through the generic repository; the bulk upsert stays
// local because its conflict clause is specific to this table.
type RecordStore struct {
	db     database.Database
	mapper RecordMapper
	repo   database.Repository[catalog.Record, CatalogRecordModel]
}

// NewRecordStore creates a new RecordStore.
func NewRecordStore(db database.Database) RecordStore {
	mapper := RecordMapper{}
	return RecordStore{
		db:     db,
		mapper: mapper,
		repo:   database.NewRepository[catalog.Record, CatalogRecordModel](db, mapper, "catalog record"),
	}
}

// Get retrieves one record by its platform-scoped identity.
func (s RecordStore) Get(ctx context.Context, platform, externalID string) (catalog.Record, error) {
	record, err := s.repo.FindOne(ctx,
		repository.WithPlatform(platform),
		repository.WithExternalID(externalID),
	)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return catalog.Record{}, fmt.Errorf("%w: %s/%s", catalog.ErrNotFound, platform, externalID)
		}
		return catalog.Record{}, fmt.Errorf("get record: %w", err)
	}
	return record, nil
}

// Find retrieves records matching the given query options.
func (s RecordStore) Find(ctx context.Context, options ...repository.Option) ([]catalog.Record, error) {
	return s.repo.Find(ctx, options...)
}

// FindAfter retrieves up to limit records with id greater than afterID,
// in ascending id order. This is the resumable batch path: the caller
// checkpoints the max id of each committed batch and passes it back.
func (s RecordStore) FindAfter(ctx context.Context, afterID int64, limit int, platform string) ([]catalog.Record, error) {
	options := []repository.Option{
		repository.WithIDAfter(afterID),
		repository.WithLimit(limit),
		repository.WithOrderAsc("id"),
	}
	if platform != "" {
		options = append(options, repository.WithPlatform(platform))
	}
	return s.Find(ctx, options...)
}

// SaveBulk upserts items on (platform, external_id). Existing rows keep
// their id; all descriptive columns are refreshed.
func (s RecordStore) SaveBulk(ctx context.Context, items []catalog.Item) ([]catalog.Record, error) {
	if len(items) == 0 {
		return []catalog.Record{}, nil
	}

	models := make([]CatalogRecordModel, len(items))
	for i, item := range items {
		model, err := s.mapper.ToModel(item)
		if err != nil {
			return nil, fmt.Errorf("save records: %w", err)
		}
		models[i] = model
	}

	result := s.db.Session(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "platform"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "description", "price", "category", "image_url",
			"in_stock", "sku", "brand", "rating", "rating_count",
			"attributes", "updated_at",
		}),
	}).Create(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("save records: %w", result.Error)
	}

	return s.toDomainAll(models)
}

// MaxID returns the highest record id, zero when the store is empty.
func (s RecordStore) MaxID(ctx context.Context, platform string) (int64, error) {
	var maxID *int64
	db := s.db.Session(ctx).Model(&CatalogRecordModel{}).Select("MAX(id)")
	if platform != "" {
		db = db.Where("platform = ?", platform)
	}
	if err := db.Scan(&maxID).Error; err != nil {
		return 0, fmt.Errorf("max record id: %w", err)
	}
	if maxID == nil {
		return 0, nil
	}
	return *maxID, nil
}

// Count returns how many records exist.
func (s RecordStore) Count(ctx context.Context, platform string) (int64, error) {
	var options []repository.Option
	if platform != "" {
		options = append(options, repository.WithPlatform(platform))
	}
	return s.repo.Count(ctx, options...)
}

// Categories returns the distinct non-empty categories in sorted order.
func (s RecordStore) Categories(ctx context.Context, platform string) ([]string, error) {
	var categories []string
	db := s.db.Session(ctx).Model(&CatalogRecordModel{}).
		Distinct("category").
		Where("category <> ''").
		Order("category ASC")
	if platform != "" {
		db = db.Where("platform = ?", platform)
	}
	if result := db.Pluck("category", &categories); result.Error != nil {
		return nil, fmt.Errorf("list categories: %w", result.Error)
	}
	return categories, nil
}

// Platforms returns the distinct platforms with stored records in sorted
// order.
func (s RecordStore) Platforms(ctx context.Context) ([]string, error) {
	var platforms []string
	result := s.db.Session(ctx).Model(&CatalogRecordModel{}).
		Distinct("platform").
		Order("platform ASC").
		Pluck("platform", &platforms)
	if result.Error != nil {
		return nil, fmt.Errorf("list platforms: %w", result.Error)
	}
	return platforms, nil
}

// DeleteByPlatform removes all records for a platform.
func (s RecordStore) DeleteByPlatform(ctx context.Context, platform string) (int64, error) {
	return s.repo.DeleteBy(ctx, repository.WithPlatform(platform))
}

func (s RecordStore) toDomainAll(models []CatalogRecordModel) ([]catalog.Record, error) {
	records := make([]catalog.Record, len(models))
	for i, model := range models {
		record, err := s.mapper.ToDomain(model)
		if err != nil {
			return nil, err
		}
		records[i] = record
	}
	return records, nil
}
