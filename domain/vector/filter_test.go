package vector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter_Match(t *testing.T) {
	payload := Payload{
		"platform": "fakestore",
		"category": "clothing",
		"price":    19.99,
		"in_stock": true,
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{name: "empty matches", filter: NewFilter(), want: true},
		{name: "equality match", filter: NewFilter().Eq("platform", "fakestore"), want: true},
		{name: "equality miss", filter: NewFilter().Eq("platform", "odoo"), want: false},
		{name: "bool equality", filter: NewFilter().Eq("in_stock", true), want: true},
		{name: "closed range hit", filter: NewFilter().Gte("price", 10).Lte("price", 20), want: true},
		{name: "below range", filter: NewFilter().Gte("price", 25), want: false},
		{name: "above range", filter: NewFilter().Lte("price", 15), want: false},
		{name: "missing field", filter: NewFilter().Eq("brand", "acme"), want: false},
		{
			name:   "conjunction",
			filter: NewFilter().Eq("category", "clothing").Gte("price", 10).Lte("price", 20),
			want:   true,
		},
		{
			name:   "conjunction with one miss",
			filter: NewFilter().Eq("category", "clothing").Gte("price", 30),
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Match(payload))
		})
	}
}

func TestFilter_Match_JSONNumbers(t *testing.T) {
	// Payloads read back from JSON carry float64 where ints were written.
	payload := Payload{"price": float64(15)}
	assert.True(t, NewFilter().Eq("price", 15).Match(payload))
	assert.True(t, NewFilter().Gte("price", 10).Lte("price", 20).Match(payload))
}

func TestFilter_Validate(t *testing.T) {
	schema, err := ProductSchema("products", 4, 0)
	require.NoError(t, err)

	assert.NoError(t, NewFilter().Eq("platform", "odoo").Gte("price", 1).Validate(schema))

	err = NewFilter().Eq("brand", "acme").Validate(schema)
	assert.ErrorIs(t, err, ErrUnindexedField)
}

func TestFilter_IsImmutable(t *testing.T) {
	base := NewFilter().Eq("platform", "odoo")
	extended := base.Gte("price", 10)

	assert.Len(t, base.Conditions(), 1)
	assert.Len(t, extended.Conditions(), 2)
}
