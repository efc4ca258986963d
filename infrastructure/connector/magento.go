package connector

import (
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

// magentoStatusEnabled is the Magento product status for enabled
// products (2 means disabled).
const magentoStatusEnabled = 1

// Magento fetches products from a Magento 2 store over its REST API,
// authenticated with an integration bearer token. FetchBatches pages
// with searchCriteria; a transport failure aborts the iteration.
//
// The configured base URL is the store root: API calls go to
// {base}/rest/V1 and image files resolve under {base}/pub/media.
type Magento struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewMagento creates a Magento connector. A nil httpClient gets a
// default with a 60 second timeout.
func NewMagento(cfg config.MagentoConfig, httpClient *http.Client) *Magento {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Magento{
		baseURL:    strings.TrimSuffix(cfg.BaseURL(), "/"),
		token:      cfg.Token(),
		httpClient: httpClient,
	}
}

// magentoProduct is the Magento catalog product shape. Description,
// category ids, and manufacturer arrive through custom_attributes.
type magentoProduct struct {
	ID                  int                `json:"id"`
	SKU                 string             `json:"sku"`
	Name                string             `json:"name"`
	Price               float64            `json:"price"`
	Status              int                `json:"status"`
	Visibility          int                `json:"visibility"`
	TypeID              string             `json:"type_id"`
	Weight              float64            `json:"weight"`
	MediaGalleryEntries []magentoMediaItem `json:"media_gallery_entries"`
	CustomAttributes    []magentoAttribute `json:"custom_attributes"`
}

type magentoMediaItem struct {
	File string `json:"file"`
}

// magentoAttribute carries one custom attribute. Value is a string for
// scalar attributes and an array for multiselects.
type magentoAttribute struct {
	AttributeCode string `json:"attribute_code"`
	Value         any    `json:"value"`
}

type magentoProductList struct {
	Items      []magentoProduct `json:"items"`
	TotalCount int              `json:"total_count"`
}

type magentoCategory struct {
	Name         string            `json:"name"`
	ChildrenData []magentoCategory `json:"children_data"`
}

// Platform returns "magento".
func (m *Magento) Platform() string { return PlatformMagento }

// TestConnection probes the store config endpoint, which any
// integration token can read.
func (m *Magento) TestConnection(ctx context.Context) bool {
	var raw json.RawMessage
	err := m.getJSON(ctx, "/store/storeConfigs", nil, &raw)
	return err == nil
}

// FetchBatches pages the product list with searchCriteria, one request
// per batch.
func (m *Magento) FetchBatches(ctx context.Context, batchSize int, category string) *catalog.BatchIterator {
	if batchSize <= 0 {
		return errorIterator(errInvalidBatchSize(batchSize))
	}

	page := 1
	done := false

	return catalog.NewBatchIterator(func(ctx context.Context) ([]catalog.Item, error) {
		if done {
			return nil, nil
		}

		query := url.Values{}
		query.Set("searchCriteria[pageSize]", strconv.Itoa(batchSize))
		query.Set("searchCriteria[currentPage]", strconv.Itoa(page))
		if category != "" {
			query.Set("searchCriteria[filter_groups][0][filters][0][field]", "category_id")
			query.Set("searchCriteria[filter_groups][0][filters][0][value]", category)
		}

		var result magentoProductList
		if err := m.getJSON(ctx, "/products", query, &result); err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		if len(result.Items) == 0 {
			return nil, nil
		}

		items := make([]catalog.Item, 0, len(result.Items))
		for _, product := range result.Items {
			item, err := m.toItem(product)
			if err != nil {
				return nil, fmt.Errorf("product %s: %w", product.SKU, err)
			}
			items = append(items, item)
		}

		if page*batchSize >= result.TotalCount {
			done = true
		}
		page++
		return items, nil
	})
}

// FetchOne retrieves one product by SKU.
func (m *Magento) FetchOne(ctx context.Context, externalID string) (catalog.Item, error) {
	var product magentoProduct
	if err := m.getJSON(ctx, "/products/"+url.PathEscape(externalID), nil, &product); err != nil {
		return catalog.Item{}, err
	}
	return m.toItem(product)
}

// ListCategories flattens the store's category tree into names.
func (m *Magento) ListCategories(ctx context.Context) ([]string, error) {
	var root magentoCategory
	if err := m.getJSON(ctx, "/categories", nil, &root); err != nil {
		return nil, err
	}
	var names []string
	collectCategoryNames(root, &names)
	return names, nil
}

// EstimateTotalCount reads total_count from a single-item search page.
func (m *Magento) EstimateTotalCount(ctx context.Context) (int, error) {
	query := url.Values{}
	query.Set("searchCriteria[pageSize]", "1")
	query.Set("searchCriteria[currentPage]", "1")

	var result magentoProductList
	if err := m.getJSON(ctx, "/products", query, &result); err != nil {
		return 0, err
	}
	return result.TotalCount, nil
}

// getJSON performs an authenticated GET against the REST API and
// decodes the response into result. A 404 maps to catalog.ErrNotFound.
func (m *Magento) getJSON(ctx context.Context, path string, query url.Values, result any) error {
	u := m.baseURL + "/rest/V1" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.token != "" {
		req.Header.Set("Authorization", "Bearer "+m.token)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return catalog.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return magentoAPIError(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func magentoAPIError(statusCode int, body []byte) error {
	var envelope struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Message != "" {
		return fmt.Errorf("magento: %s (status %d)", envelope.Message, statusCode)
	}
	return fmt.Errorf("magento: unexpected status %d", statusCode)
}

func (m *Magento) toItem(p magentoProduct) (catalog.Item, error) {
	externalID := p.SKU
	if externalID == "" {
		externalID = strconv.Itoa(p.ID)
	}

	item, err := catalog.NewItem(PlatformMagento, externalID, p.Name)
	if err != nil {
		return catalog.Item{}, err
	}
	item, err = item.WithPrice(p.Price)
	if err != nil {
		return catalog.Item{}, err
	}

	item = item.
		WithDescription(attributeString(p.CustomAttributes, "description")).
		WithCategory(attributeFirst(p.CustomAttributes, "category_ids")).
		WithStock(p.Status == magentoStatusEnabled).
		WithSKU(p.SKU).
		WithBrand(attributeString(p.CustomAttributes, "manufacturer"))

	if len(p.MediaGalleryEntries) > 0 && p.MediaGalleryEntries[0].File != "" {
		item = item.WithImageURL(m.baseURL + "/pub/media/catalog/product" + p.MediaGalleryEntries[0].File)
	}

	attrs := make(map[string]string)
	if p.TypeID != "" {
		attrs["type_id"] = p.TypeID
	}
	if p.Visibility != 0 {
		attrs["visibility"] = strconv.Itoa(p.Visibility)
	}
	if p.Weight != 0 {
		attrs["weight"] = strconv.FormatFloat(p.Weight, 'f', -1, 64)
	}
	if len(attrs) > 0 {
		item = item.WithAttributes(attrs)
	}
	return item, nil
}

// attributeString returns a scalar custom attribute value, empty when
// absent or not a string.
func attributeString(attrs []magentoAttribute, code string) string {
	for _, a := range attrs {
		if a.AttributeCode != code {
			continue
		}
		if s, ok := a.Value.(string); ok {
			return s
		}
	}
	return ""
}

// attributeFirst returns the first value of a multiselect custom
// attribute, accepting a plain string as a one-element list.
func attributeFirst(attrs []magentoAttribute, code string) string {
	for _, a := range attrs {
		if a.AttributeCode != code {
			continue
		}
		switch v := a.Value.(type) {
		case string:
			return v
		case []any:
			if len(v) > 0 {
				if s, ok := v[0].(string); ok {
					return s
				}
			}
		}
	}
	return ""
}

func collectCategoryNames(node magentoCategory, names *[]string) {
	if node.Name != "" {
		*names = append(*names, node.Name)
	}
	for _, child := range node.ChildrenData {
		collectCategoryNames(child, names)
	}
}

// Ensure Magento implements the connector contract.
var _ catalog.Connector = (*Magento)(nil)
