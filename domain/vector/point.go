package vector

import (
	"fmt"
	"maps"

	"github.com/google/uuid"
)

// VectorSet maps named vector spaces to their embeddings.
type VectorSet map[string][]float64

// Validate checks every vector in the set against the schema's declared
// spaces. A vector for an undeclared space or with the wrong dimension
// is a contract violation.
func (vs VectorSet) Validate(schema CollectionSchema) error {
	for name, vec := range vs {
		space, ok := schema.Space(name)
		if !ok {
			return fmt.Errorf("%w: space %q not declared on collection %q", ErrUnknownSpace, name, schema.Name())
		}
		if len(vec) != space.Dimension() {
			return fmt.Errorf("%w: space %q expects %d dimensions, got %d",
				ErrDimensionMismatch, name, space.Dimension(), len(vec))
		}
	}
	return nil
}

// Payload holds the denormalized item fields stored alongside vectors
// for filtering and display.
type Payload map[string]any

// String returns the named field as a string, empty when absent or of
// another type.
func (p Payload) String(field string) string {
	s, _ := p[field].(string)
	return s
}

// Float returns the named field as a float64, coercing integer types;
// zero when absent or non-numeric.
func (p Payload) Float(field string) float64 {
	f, _ := asFloat(p[field])
	return f
}

// Bool returns the named field as a bool, false when absent or of
// another type.
func (p Payload) Bool(field string) bool {
	b, _ := p[field].(bool)
	return b
}

// Point is the unit persisted to a vector store. Its ID is derived
// deterministically from the item identity so re-upserts overwrite
// rather than duplicate.
type Point struct {
	id      string
	vectors VectorSet
	payload Payload
}

// NewPoint creates a Point. Vectors and payload are copied.
func NewPoint(id string, vectors VectorSet, payload Payload) Point {
	vs := make(VectorSet, len(vectors))
	maps.Copy(vs, vectors)
	pl := make(Payload, len(payload))
	maps.Copy(pl, payload)
	return Point{id: id, vectors: vs, payload: pl}
}

// ID returns the point identifier.
func (p Point) ID() string { return p.id }

// Vectors returns a copy of the point's vector set.
func (p Point) Vectors() VectorSet {
	vs := make(VectorSet, len(p.vectors))
	maps.Copy(vs, p.vectors)
	return vs
}

// Vector returns the embedding for the named space.
func (p Point) Vector(space string) ([]float64, bool) {
	v, ok := p.vectors[space]
	return v, ok
}

// Payload returns a copy of the point's payload.
func (p Point) Payload() Payload {
	pl := make(Payload, len(p.payload))
	maps.Copy(pl, p.payload)
	return pl
}

// PointID derives the stable point identifier for a platform-scoped
// item. The same platform and external ID always map to the same UUID,
// which is what makes re-indexing idempotent.
func PointID(platform, externalID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(platform+":"+externalID)).String()
}
