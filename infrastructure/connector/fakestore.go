package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopvec/shopvec/domain/catalog"
	"github.com/shopvec/shopvec/internal/config"
)

// defaultFakestoreBaseURL is the public demo instance used when no base
// URL is configured.
const defaultFakestoreBaseURL = "https://fakestoreapi.com"

// FakeStore fetches products from a Fake Store API instance
// (fakestoreapi.com). The API has no pagination, so FetchBatches issues
// one whole-catalog request on the first pull and re-batches the result;
// a transport failure aborts the iteration.
type FakeStore struct {
	baseURL    string
	httpClient *http.Client
}

// NewFakeStore creates a FakeStore connector. A nil httpClient gets a
// default with a 30 second timeout.
func NewFakeStore(cfg config.FakestoreConfig, httpClient *http.Client) *FakeStore {
	baseURL := cfg.BaseURL()
	if baseURL == "" {
		baseURL = defaultFakestoreBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &FakeStore{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// fakestoreProduct is the Fake Store API product shape.
type fakestoreProduct struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Image       string  `json:"image"`
	Rating      struct {
		Rate  float64 `json:"rate"`
		Count int     `json:"count"`
	} `json:"rating"`
}

// Platform returns "fakestore".
func (f *FakeStore) Platform() string { return PlatformFakestore }

// TestConnection probes the products endpoint.
func (f *FakeStore) TestConnection(ctx context.Context) bool {
	_, status, err := f.get(ctx, "/products?limit=1")
	return err == nil && status == http.StatusOK
}

// FetchBatches fetches the whole catalog on the first pull and serves it
// back in batchSize windows.
func (f *FakeStore) FetchBatches(ctx context.Context, batchSize int, category string) *catalog.BatchIterator {
	if batchSize <= 0 {
		return errorIterator(errInvalidBatchSize(batchSize))
	}

	var items []catalog.Item
	fetched := false
	offset := 0

	return catalog.NewBatchIterator(func(ctx context.Context) ([]catalog.Item, error) {
		if !fetched {
			var err error
			items, err = f.fetchAll(ctx, category)
			if err != nil {
				return nil, err
			}
			fetched = true
		}
		if offset >= len(items) {
			return nil, nil
		}
		end := min(offset+batchSize, len(items))
		batch := items[offset:end]
		offset = end
		return batch, nil
	})
}

// FetchOne retrieves one product by id. The demo API reports a missing
// product as 200 with an empty body rather than a 404; both map to
// ErrNotFound.
func (f *FakeStore) FetchOne(ctx context.Context, externalID string) (catalog.Item, error) {
	body, status, err := f.get(ctx, "/products/"+url.PathEscape(externalID))
	if err != nil {
		return catalog.Item{}, err
	}
	if status == http.StatusNotFound {
		return catalog.Item{}, catalog.ErrNotFound
	}
	if status != http.StatusOK {
		return catalog.Item{}, fmt.Errorf("fakestore: unexpected status %d", status)
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return catalog.Item{}, catalog.ErrNotFound
	}

	var product fakestoreProduct
	if err := json.Unmarshal(trimmed, &product); err != nil {
		return catalog.Item{}, fmt.Errorf("decode product: %w", err)
	}
	return product.toItem()
}

// ListCategories returns the store's category names.
func (f *FakeStore) ListCategories(ctx context.Context) ([]string, error) {
	var categories []string
	if err := f.getJSON(ctx, "/products/categories", &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// EstimateTotalCount counts the whole catalog. The API exposes no count
// endpoint, so this fetches the product list and measures it.
func (f *FakeStore) EstimateTotalCount(ctx context.Context) (int, error) {
	var products []fakestoreProduct
	if err := f.getJSON(ctx, "/products", &products); err != nil {
		return 0, err
	}
	return len(products), nil
}

// fetchAll retrieves and normalizes the full catalog, optionally scoped
// to one category.
func (f *FakeStore) fetchAll(ctx context.Context, category string) ([]catalog.Item, error) {
	path := "/products"
	if category != "" {
		path = "/products/category/" + url.PathEscape(category)
	}

	var products []fakestoreProduct
	if err := f.getJSON(ctx, path, &products); err != nil {
		return nil, err
	}

	items := make([]catalog.Item, 0, len(products))
	for _, product := range products {
		item, err := product.toItem()
		if err != nil {
			return nil, fmt.Errorf("product %d: %w", product.ID, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// get performs a GET and returns the raw body and status code.
func (f *FakeStore) get(ctx context.Context, path string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+path, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// getJSON performs a GET and decodes a 200 response into result.
func (f *FakeStore) getJSON(ctx context.Context, path string, result any) error {
	body, status, err := f.get(ctx, path)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("fakestore: unexpected status %d", status)
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (p fakestoreProduct) toItem() (catalog.Item, error) {
	item, err := catalog.NewItem(PlatformFakestore, strconv.Itoa(p.ID), p.Title)
	if err != nil {
		return catalog.Item{}, err
	}
	item, err = item.WithPrice(p.Price)
	if err != nil {
		return catalog.Item{}, err
	}
	// The demo API has no stock data; items stay at the in-stock default.
	item = item.
		WithDescription(p.Description).
		WithCategory(p.Category).
		WithImageURL(p.Image).
		WithRating(p.Rating.Rate, p.Rating.Count)
	return item, nil
}

// Ensure FakeStore implements the connector contract.
var _ catalog.Connector = (*FakeStore)(nil)
