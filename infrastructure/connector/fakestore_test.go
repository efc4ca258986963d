package connector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shopvec/shopvec/domain/catalog"
	"github.com/shopvec/shopvec/internal/config"
)

// fakeStoreServer mimics the Fake Store API with a fixed five-product
// catalog and tracks how many product-list requests it received.
func fakeStoreServer(t *testing.T, listCounter *atomic.Int64) *httptest.Server {
	t.Helper()

	products := []map[string]interface{}{
		{
			"id": 1, "title": "Red Shirt", "price": 19.99,
			"description": "A bright red cotton shirt",
			"category":    "clothing",
			"image":       "https://img.example.com/1.png",
			"rating":      map[string]interface{}{"rate": 4.5, "count": 120},
		},
		{
			"id": 2, "title": "Blue Shirt", "price": 24.5,
			"description": "A deep blue shirt", "category": "clothing",
			"image": "https://img.example.com/2.png",
		},
		{
			"id": 3, "title": "Gold Ring", "price": 159.0,
			"description": "A thin gold ring", "category": "jewelery",
			"image": "https://img.example.com/3.png",
		},
		{
			"id": 4, "title": "USB Drive", "price": 11.0,
			"description": "64GB flash storage", "category": "electronics",
			"image": "https://img.example.com/4.png",
		},
		{
			"id": 5, "title": "Red Hat", "price": 15.0,
			"description": "A warm red hat", "category": "clothing",
			"image": "https://img.example.com/5.png",
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/products", func(w http.ResponseWriter, r *http.Request) {
		listCounter.Add(1)
		_ = json.NewEncoder(w).Encode(products)
	})
	mux.HandleFunc("/products/categories", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]string{"clothing", "electronics", "jewelery"})
	})
	mux.HandleFunc("/products/category/clothing", func(w http.ResponseWriter, r *http.Request) {
		listCounter.Add(1)
		var matched []map[string]interface{}
		for _, p := range products {
			if p["category"] == "clothing" {
				matched = append(matched, p)
			}
		}
		_ = json.NewEncoder(w).Encode(matched)
	})
	mux.HandleFunc("/products/1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(products[0])
	})
	mux.HandleFunc("/products/999", func(w http.ResponseWriter, r *http.Request) {
		// The public instance answers missing ids with 200 and an empty body.
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	return httptest.NewServer(mux)
}

func newFakeStore(t *testing.T, baseURL string) *FakeStore {
	t.Helper()
	return NewFakeStore(config.NewFakestoreConfig(baseURL), nil)
}

func TestFakeStore_FetchBatchesOneRequest(t *testing.T) {
	var listCounter atomic.Int64
	srv := fakeStoreServer(t, &listCounter)
	defer srv.Close()

	f := newFakeStore(t, srv.URL)
	it := f.FetchBatches(context.Background(), 2, "")

	var sizes []int
	var titles []string
	for it.Next(context.Background()) {
		sizes = append(sizes, len(it.Batch()))
		for _, item := range it.Batch() {
			titles = append(titles, item.Title())
		}
	}
	require.NoError(t, it.Err())
	require.Equal(t, []int{2, 2, 1}, sizes)
	require.Equal(t, []string{"Red Shirt", "Blue Shirt", "Gold Ring", "USB Drive", "Red Hat"}, titles)
	require.Equal(t, int64(1), listCounter.Load(), "the whole catalog comes from one request")
}

func TestFakeStore_FetchBatchesIsLazy(t *testing.T) {
	var listCounter atomic.Int64
	srv := fakeStoreServer(t, &listCounter)
	defer srv.Close()

	f := newFakeStore(t, srv.URL)
	_ = f.FetchBatches(context.Background(), 2, "")
	require.Equal(t, int64(0), listCounter.Load(), "no request before the first pull")
}

func TestFakeStore_FetchBatchesCategory(t *testing.T) {
	var listCounter atomic.Int64
	srv := fakeStoreServer(t, &listCounter)
	defer srv.Close()

	f := newFakeStore(t, srv.URL)
	it := f.FetchBatches(context.Background(), 10, "clothing")

	require.True(t, it.Next(context.Background()))
	require.Len(t, it.Batch(), 3)
	for _, item := range it.Batch() {
		require.Equal(t, "clothing", item.Category())
	}
	require.False(t, it.Next(context.Background()))
	require.NoError(t, it.Err())
}

func TestFakeStore_FetchBatchesServerErrorAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newFakeStore(t, srv.URL)
	it := f.FetchBatches(context.Background(), 2, "")

	require.False(t, it.Next(context.Background()))
	require.Error(t, it.Err())
	require.Contains(t, it.Err().Error(), "unexpected status 500")
}

func TestFakeStore_FetchBatchesInvalidBatchSize(t *testing.T) {
	f := newFakeStore(t, "http://localhost:1")
	it := f.FetchBatches(context.Background(), 0, "")

	require.False(t, it.Next(context.Background()))
	require.Error(t, it.Err())
}

func TestFakeStore_FetchBatchesCancelledContext(t *testing.T) {
	var listCounter atomic.Int64
	srv := fakeStoreServer(t, &listCounter)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := newFakeStore(t, srv.URL)
	it := f.FetchBatches(ctx, 2, "")

	require.False(t, it.Next(ctx))
	require.ErrorIs(t, it.Err(), context.Canceled)
	require.Equal(t, int64(0), listCounter.Load())
}

func TestFakeStore_FetchOne(t *testing.T) {
	var listCounter atomic.Int64
	srv := fakeStoreServer(t, &listCounter)
	defer srv.Close()

	f := newFakeStore(t, srv.URL)
	item, err := f.FetchOne(context.Background(), "1")
	require.NoError(t, err)

	require.Equal(t, "fakestore", item.Platform())
	require.Equal(t, "1", item.ExternalID())
	require.Equal(t, "Red Shirt", item.Title())
	require.Equal(t, "A bright red cotton shirt", item.Description())
	require.Equal(t, 19.99, item.Price())
	require.Equal(t, "clothing", item.Category())
	require.Equal(t, "https://img.example.com/1.png", item.ImageURL())
	require.True(t, item.InStock(), "the demo API has no stock data")
	require.Equal(t, 4.5, item.Rating())
	require.Equal(t, 120, item.RatingCount())
}

func TestFakeStore_FetchOneEmptyBodyIsNotFound(t *testing.T) {
	var listCounter atomic.Int64
	srv := fakeStoreServer(t, &listCounter)
	defer srv.Close()

	f := newFakeStore(t, srv.URL)
	_, err := f.FetchOne(context.Background(), "999")
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestFakeStore_FetchOneNotFoundStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := newFakeStore(t, srv.URL)
	_, err := f.FetchOne(context.Background(), "42")
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestFakeStore_ListCategories(t *testing.T) {
	var listCounter atomic.Int64
	srv := fakeStoreServer(t, &listCounter)
	defer srv.Close()

	f := newFakeStore(t, srv.URL)
	categories, err := f.ListCategories(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"clothing", "electronics", "jewelery"}, categories)
}

func TestFakeStore_EstimateTotalCount(t *testing.T) {
	var listCounter atomic.Int64
	srv := fakeStoreServer(t, &listCounter)
	defer srv.Close()

	f := newFakeStore(t, srv.URL)
	count, err := f.EstimateTotalCount(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, count)
}

func TestFakeStore_TestConnection(t *testing.T) {
	var listCounter atomic.Int64
	srv := fakeStoreServer(t, &listCounter)

	f := newFakeStore(t, srv.URL)
	require.True(t, f.TestConnection(context.Background()))

	srv.Close()
	require.False(t, f.TestConnection(context.Background()))
}

func TestFakeStore_DefaultBaseURL(t *testing.T) {
	f := NewFakeStore(config.NewFakestoreConfig(""), nil)
	require.Equal(t, defaultFakestoreBaseURL, f.baseURL)
}
