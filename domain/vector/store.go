package vector

import (
	"context"
	"errors"
)

// Sentinel errors shared by all store backends.
var (
	ErrCollectionNotFound = errors.New("collection not found")
	ErrDimensionMismatch  = errors.New("vector dimension mismatch")
	ErrUnknownSpace       = errors.New("unknown vector space")
	ErrUnindexedField     = errors.New("filter field not indexed")
)

// Result is one ranked search hit.
type Result struct {
	id      string
	score   float64
	payload Payload
}

// NewResult creates a Result.
func NewResult(id string, score float64, payload Payload) Result {
	return Result{id: id, score: score, payload: payload}
}

// ID returns the point ID.
func (r Result) ID() string { return r.id }

// Score returns the similarity score; higher is more similar.
func (r Result) Score() float64 { return r.score }

// Payload returns the stored payload.
func (r Result) Payload() Payload { return r.payload }

// WithScore returns a copy with the score replaced.
func (r Result) WithScore(score float64) Result {
	r.score = score
	return r
}

// Cursor is an opaque scroll position. A nil *Cursor returned from
// Scroll signals exhaustion.
type Cursor struct {
	token string
}

// NewCursor creates a Cursor from an opaque token.
func NewCursor(token string) *Cursor { return &Cursor{token: token} }

// Token returns the opaque position token.
func (c *Cursor) Token() string {
	if c == nil {
		return ""
	}
	return c.token
}

// CollectionInfo reports backend statistics for a collection.
type CollectionInfo struct {
	name   string
	points int
	status string
}

// NewCollectionInfo creates a CollectionInfo.
func NewCollectionInfo(name string, points int, status string) CollectionInfo {
	return CollectionInfo{name: name, points: points, status: status}
}

// Name returns the collection name.
func (i CollectionInfo) Name() string { return i.name }

// Points returns the stored point count.
func (i CollectionInfo) Points() int { return i.points }

// Status returns the backend-reported collection status.
func (i CollectionInfo) Status() string { return i.status }

// Store is the pluggable similarity-search backend. Implementations are
// long-lived and safe for concurrent use.
type Store interface {
	// CreateCollection creates the collection with its declared spaces
	// and payload indexes. With recreate an existing collection is
	// dropped first — destructive and always explicit. Without recreate
	// an existing collection is left untouched.
	CreateCollection(ctx context.Context, schema CollectionSchema, recreate bool) error

	// CollectionExists reports whether the collection exists.
	CollectionExists(ctx context.Context, name string) (bool, error)

	// DeleteCollection drops the collection and all its points.
	DeleteCollection(ctx context.Context, name string) error

	// Info returns collection statistics.
	Info(ctx context.Context, name string) (CollectionInfo, error)

	// Upsert writes points idempotently by point ID and returns how many
	// succeeded. Callers treat succeeded < len(points) as partial
	// failure, not an error.
	Upsert(ctx context.Context, collection string, points []Point) (int, error)

	// DeleteByIDs removes points by ID. Missing IDs are not an error.
	DeleteByIDs(ctx context.Context, collection string, ids []string) error

	// Search returns the limit nearest points in the named space,
	// scored as similarity under the collection's metric and restricted
	// by the filter.
	Search(ctx context.Context, collection string, queryVector []float64, space string, limit int, filter Filter) ([]Result, error)

	// HybridSearch blends vector similarity with lexical term overlap:
	// score = (1-alpha)*vectorSimilarity + alpha*lexicalOverlap.
	HybridSearch(ctx context.Context, collection string, queryVector []float64, queryText, space string, limit int, alpha float64) ([]Result, error)

	// Scroll enumerates points in stable order, limit per page. A nil
	// next cursor means exhaustion. Safe to call with increasing cursors
	// while points are concurrently upserted or deleted.
	Scroll(ctx context.Context, collection string, limit int, cursor *Cursor, filter Filter) ([]Point, *Cursor, error)

	// Count returns the number of points in the collection.
	Count(ctx context.Context, collection string) (int, error)
}
