package catalog

import "context"

// FetchFunc produces the next batch of items. Returning an empty batch
// with a nil error ends the iteration. Implementations may hold an open
// connection or pagination state for the iterator's lifetime.
type FetchFunc func(ctx context.Context) ([]Item, error)

// BatchIterator is a finite, forward-only, non-restartable pull over a
// platform catalog. The consumer controls pacing; no path buffers the
// whole catalog at once.
//
// Usage follows the scanner idiom:
//
//	it := conn.FetchBatches(ctx, 32, "")
//	for it.Next(ctx) {
//	    process(it.Batch())
//	}
//	if err := it.Err(); err != nil { ... }
type BatchIterator struct {
	fetch FetchFunc
	batch []Item
	err   error
	done  bool
}

// NewBatchIterator creates a BatchIterator pulling batches from fetch.
func NewBatchIterator(fetch FetchFunc) *BatchIterator {
	return &BatchIterator{fetch: fetch}
}

// Next pulls the next batch. It returns false when the catalog is
// exhausted, the context is cancelled, or the producer fails; Err
// distinguishes the cases.
func (it *BatchIterator) Next(ctx context.Context) bool {
	if it.done {
		return false
	}
	if err := ctx.Err(); err != nil {
		it.err = err
		it.done = true
		return false
	}

	batch, err := it.fetch(ctx)
	if err != nil {
		it.err = err
		it.done = true
		return false
	}
	if len(batch) == 0 {
		it.done = true
		return false
	}
	it.batch = batch
	return true
}

// Batch returns the batch pulled by the last successful Next call.
func (it *BatchIterator) Batch() []Item { return it.batch }

// Err returns the error that ended iteration, nil on normal exhaustion.
func (it *BatchIterator) Err() error { return it.err }
