package vectorstore

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"

	"github.com/shopvec/shopvec/domain/vector"
)

// Float64Slice is a custom type for JSON serialization of []float64 in
// relational vector columns.
type Float64Slice []float64

// Scan implements sql.Scanner for reading JSON vector columns.
func (f *Float64Slice) Scan(value any) error {
	if value == nil {
		*f = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Float64Slice", value)
	}

	return json.Unmarshal(data, f)
}

// Value implements driver.Valuer for writing JSON vector columns.
func (f Float64Slice) Value() (driver.Value, error) {
	if f == nil {
		return nil, nil
	}
	return json.Marshal(f)
}

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns a value between -1 (opposite) and 1 (identical).
// Returns 0 if either vector has zero magnitude.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, magA, magB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}

	if magA == 0 || magB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(magA) * math.Sqrt(magB))
}

// DotSimilarity computes the dot product of two vectors.
func DotSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot
}

// EuclideanSimilarity converts euclidean distance into a similarity in
// (0, 1]: identical vectors score 1, similarity falls off with distance.
func EuclideanSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return 1.0 / (1.0 + math.Sqrt(sum))
}

// Similarity scores two vectors under the given metric. Higher is always
// more similar, regardless of metric.
func Similarity(metric vector.Metric, a, b []float64) float64 {
	switch metric {
	case vector.MetricDot:
		return DotSimilarity(a, b)
	case vector.MetricEuclidean:
		return EuclideanSimilarity(a, b)
	default:
		return CosineSimilarity(a, b)
	}
}
