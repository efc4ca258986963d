package catalog

import "context"

// CountUnknown is returned by EstimateTotalCount when the platform
// cannot report a catalog size. It is a first-class result, not an error.
const CountUnknown = -1

// Connector fetches catalog items from one external platform and
// normalizes them into Items. Implementations are long-lived and safe
// for concurrent use.
//
// Per-batch transport failure policy is implementation-specific and
// documented on each variant: a connector either aborts the iteration
// (the iterator's Err reports the failure) or skips the failing page
// and continues.
type Connector interface {
	// Platform returns the platform tag stamped on fetched items.
	Platform() string

	// TestConnection probes reachability and auth. It never returns an
	// error; any failure reports false.
	TestConnection(ctx context.Context) bool

	// FetchBatches returns a lazy iterator over the catalog. Batches
	// hold at most batchSize items; the final batch may be smaller.
	// An empty category means no category filter.
	FetchBatches(ctx context.Context, batchSize int, category string) *BatchIterator

	// FetchOne retrieves a single item by its platform-scoped ID.
	// Returns ErrNotFound when the item does not exist.
	FetchOne(ctx context.Context, externalID string) (Item, error)

	// ListCategories returns the platform's category names.
	ListCategories(ctx context.Context) ([]string, error)

	// EstimateTotalCount returns the catalog size, or CountUnknown when
	// the platform cannot tell.
	EstimateTotalCount(ctx context.Context) (int, error)
}
