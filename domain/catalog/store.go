package catalog

import (
	"context"

	"github.com/shopvec/shopvec/domain/repository"
)

// RecordStore persists normalized catalog items keyed by
// (platform, external_id) and reads them back in id order for the
// resumable batch path.
type RecordStore interface {
	// Get retrieves one record by its platform-scoped identity.
	// Returns ErrNotFound when absent.
	Get(ctx context.Context, platform, externalID string) (Record, error)

	// Find retrieves records matching the given query options.
	Find(ctx context.Context, options ...repository.Option) ([]Record, error)

	// FindAfter retrieves up to limit records with id greater than
	// afterID, in ascending id order. An empty platform means all
	// platforms.
	FindAfter(ctx context.Context, afterID int64, limit int, platform string) ([]Record, error)

	// SaveBulk upserts items on (platform, external_id).
	SaveBulk(ctx context.Context, items []Item) ([]Record, error)

	// MaxID returns the highest record id, zero when the store is empty.
	// An empty platform means all platforms.
	MaxID(ctx context.Context, platform string) (int64, error)

	// Count returns how many records exist. An empty platform means all
	// platforms.
	Count(ctx context.Context, platform string) (int64, error)

	// Categories returns the distinct categories. An empty platform
	// means all platforms.
	Categories(ctx context.Context, platform string) ([]string, error)

	// Platforms returns the distinct platforms with stored records.
	Platforms(ctx context.Context) ([]string, error)

	// DeleteByPlatform removes all records for a platform and returns
	// how many were deleted.
	DeleteByPlatform(ctx context.Context, platform string) (int64, error)
}
