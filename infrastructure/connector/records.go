package connector

import (
	"context"
	"fmt"

	"github.com/shopvec/shopvec/domain/catalog"
	"github.com/shopvec/shopvec/domain/repository"
)

// Records replays the local catalog record store as a connector, paging
// in record id order. It backs re-indexing flows where the remote
// platform is not consulted again: items keep the platform tag they
// were stored with. A store error aborts the iteration; local reads are
// not transient.
type Records struct {
	store    catalog.RecordStore
	platform string
}

// NewRecords creates a Records connector. An empty platform serves
// every stored platform.
func NewRecords(store catalog.RecordStore, platform string) *Records {
	return &Records{store: store, platform: platform}
}

// Platform returns "records".
func (r *Records) Platform() string { return PlatformRecords }

// TestConnection probes the store with a count.
func (r *Records) TestConnection(ctx context.Context) bool {
	_, err := r.store.Count(ctx, r.platform)
	return err == nil
}

// FetchBatches pages the store by id cursor. Pages whose items all fail
// the category filter are pulled through until one yields, so a sparse
// category never ends iteration early.
func (r *Records) FetchBatches(ctx context.Context, batchSize int, category string) *catalog.BatchIterator {
	if batchSize <= 0 {
		return errorIterator(errInvalidBatchSize(batchSize))
	}

	var afterID int64

	return catalog.NewBatchIterator(func(ctx context.Context) ([]catalog.Item, error) {
		for {
			records, err := r.store.FindAfter(ctx, afterID, batchSize, r.platform)
			if err != nil {
				return nil, err
			}
			if len(records) == 0 {
				return nil, nil
			}
			afterID = records[len(records)-1].ID()

			items := make([]catalog.Item, 0, len(records))
			for _, record := range records {
				if category != "" && record.Item().Category() != category {
					continue
				}
				items = append(items, record.Item())
			}
			if len(items) > 0 {
				return items, nil
			}
		}
	})
}

// FetchOne retrieves one stored item by external id. Without a platform
// scope the id must be unambiguous across platforms.
func (r *Records) FetchOne(ctx context.Context, externalID string) (catalog.Item, error) {
	if r.platform != "" {
		record, err := r.store.Get(ctx, r.platform, externalID)
		if err != nil {
			return catalog.Item{}, err
		}
		return record.Item(), nil
	}

	records, err := r.store.Find(ctx, repository.WithExternalID(externalID))
	if err != nil {
		return catalog.Item{}, err
	}
	switch len(records) {
	case 0:
		return catalog.Item{}, catalog.ErrNotFound
	case 1:
		return records[0].Item(), nil
	default:
		return catalog.Item{}, fmt.Errorf("external id %q exists on %d platforms", externalID, len(records))
	}
}

// ListCategories returns the distinct stored categories.
func (r *Records) ListCategories(ctx context.Context) ([]string, error) {
	return r.store.Categories(ctx, r.platform)
}

// EstimateTotalCount counts the stored records.
func (r *Records) EstimateTotalCount(ctx context.Context) (int, error) {
	count, err := r.store.Count(ctx, r.platform)
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// Ensure Records implements the connector contract.
var _ catalog.Connector = (*Records)(nil)
