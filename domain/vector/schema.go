// Package vector provides the vector store contract: collection schemas,
// index points, filters, search results, and hybrid re-ranking.
package vector

import (
	"errors"
	"fmt"
)

// Canonical vector space names. A collection may carry either or both.
const (
	SpaceText  = "text"
	SpaceImage = "image"
)

// Metric identifies the distance metric of a vector space. Backends
// normalize distances so that reported scores are always similarities
// (higher is more similar) regardless of metric.
type Metric string

// Metric values.
const (
	MetricCosine    Metric = "cosine"
	MetricEuclidean Metric = "euclidean"
	MetricDot       Metric = "dot"
)

// SpaceSchema declares one named vector space: its dimension and metric.
type SpaceSchema struct {
	name      string
	dimension int
	metric    Metric
}

// NewSpaceSchema creates a SpaceSchema.
func NewSpaceSchema(name string, dimension int, metric Metric) (SpaceSchema, error) {
	if name == "" {
		return SpaceSchema{}, errors.New("space name is required")
	}
	if dimension <= 0 {
		return SpaceSchema{}, fmt.Errorf("space %q: dimension must be positive, got %d", name, dimension)
	}
	switch metric {
	case MetricCosine, MetricEuclidean, MetricDot:
	default:
		return SpaceSchema{}, fmt.Errorf("space %q: unknown metric %q", name, metric)
	}
	return SpaceSchema{name: name, dimension: dimension, metric: metric}, nil
}

// Name returns the space name.
func (s SpaceSchema) Name() string { return s.name }

// Dimension returns the fixed vector dimension.
func (s SpaceSchema) Dimension() int { return s.dimension }

// Metric returns the distance metric.
func (s SpaceSchema) Metric() Metric { return s.metric }

// IndexKind identifies the payload index type a filterable field needs.
type IndexKind string

// IndexKind values.
const (
	IndexKeyword IndexKind = "keyword"
	IndexFloat   IndexKind = "float"
	IndexBool    IndexKind = "bool"
)

// PayloadIndex declares one payload field that must support
// equality/range filtering.
type PayloadIndex struct {
	field string
	kind  IndexKind
}

// NewPayloadIndex creates a PayloadIndex.
func NewPayloadIndex(field string, kind IndexKind) PayloadIndex {
	return PayloadIndex{field: field, kind: kind}
}

// Field returns the payload field name.
func (p PayloadIndex) Field() string { return p.field }

// Kind returns the index kind.
func (p PayloadIndex) Kind() IndexKind { return p.kind }

// CollectionSchema declares a collection: its named vector spaces and
// the payload fields that must be filterable. Created once per logical
// collection; recreating with force drops all data.
type CollectionSchema struct {
	name    string
	spaces  []SpaceSchema
	indexes []PayloadIndex
}

// NewCollectionSchema creates a CollectionSchema with at least one space.
func NewCollectionSchema(name string, spaces []SpaceSchema, indexes []PayloadIndex) (CollectionSchema, error) {
	if name == "" {
		return CollectionSchema{}, errors.New("collection name is required")
	}
	if len(spaces) == 0 {
		return CollectionSchema{}, fmt.Errorf("collection %q: at least one vector space is required", name)
	}
	seen := make(map[string]struct{}, len(spaces))
	for _, s := range spaces {
		if _, dup := seen[s.Name()]; dup {
			return CollectionSchema{}, fmt.Errorf("collection %q: duplicate space %q", name, s.Name())
		}
		seen[s.Name()] = struct{}{}
	}
	return CollectionSchema{
		name:    name,
		spaces:  append([]SpaceSchema(nil), spaces...),
		indexes: append([]PayloadIndex(nil), indexes...),
	}, nil
}

// Name returns the collection name.
func (c CollectionSchema) Name() string { return c.name }

// Spaces returns a copy of the declared vector spaces.
func (c CollectionSchema) Spaces() []SpaceSchema {
	return append([]SpaceSchema(nil), c.spaces...)
}

// Space returns the schema of the named space.
func (c CollectionSchema) Space(name string) (SpaceSchema, bool) {
	for _, s := range c.spaces {
		if s.Name() == name {
			return s, true
		}
	}
	return SpaceSchema{}, false
}

// PayloadIndexes returns a copy of the declared payload indexes.
func (c CollectionSchema) PayloadIndexes() []PayloadIndex {
	return append([]PayloadIndex(nil), c.indexes...)
}

// IndexedField reports whether the field is declared filterable.
func (c CollectionSchema) IndexedField(field string) bool {
	for _, idx := range c.indexes {
		if idx.Field() == field {
			return true
		}
	}
	return false
}

// DefaultPayloadIndexes returns the payload indexes every product
// collection declares.
func DefaultPayloadIndexes() []PayloadIndex {
	return []PayloadIndex{
		NewPayloadIndex("category", IndexKeyword),
		NewPayloadIndex("platform", IndexKeyword),
		NewPayloadIndex("price", IndexFloat),
		NewPayloadIndex("in_stock", IndexBool),
	}
}

// ProductSchema builds the standard product collection schema from the
// generator's declared dimensions. imageDimension zero omits the image
// space.
func ProductSchema(name string, textDimension, imageDimension int) (CollectionSchema, error) {
	textSpace, err := NewSpaceSchema(SpaceText, textDimension, MetricCosine)
	if err != nil {
		return CollectionSchema{}, err
	}
	spaces := []SpaceSchema{textSpace}
	if imageDimension > 0 {
		imageSpace, err := NewSpaceSchema(SpaceImage, imageDimension, MetricCosine)
		if err != nil {
			return CollectionSchema{}, err
		}
		spaces = append(spaces, imageSpace)
	}
	return NewCollectionSchema(name, spaces, DefaultPayloadIndexes())
}
