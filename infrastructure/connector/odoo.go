package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopvec/shopvec/domain/catalog"
	"github.com/shopvec/shopvec/internal/config"
)

// odooMaxPageFailures bounds consecutive skipped pages so a dead server
// cannot spin the iterator forever.
const odooMaxPageFailures = 3

// odooProductFields are the product.template fields fetched per batch.
// image_128 is the cheapest field that reveals whether an image exists;
// the full-size image is referenced by URL, never transferred inline.
var odooProductFields = []string{
	"id", "name", "description_sale", "list_price",
	"categ_id", "default_code", "qty_available", "image_128",
}

// Odoo fetches products from an Odoo ERP instance over JSON-RPC. It
// authenticates once and caches the numeric user id for the connector's
// lifetime. FetchBatches skips a failing page with a warning and
// continues at the next offset.
type Odoo struct {
	url        string
	database   string
	username   string
	password   string
	httpClient *http.Client
	logger     *slog.Logger

	nextID atomic.Int64

	mu  sync.Mutex
	uid int
}

// NewOdoo creates an Odoo connector. A nil httpClient gets a default
// with a 60 second timeout.
func NewOdoo(cfg config.OdooConfig, httpClient *http.Client, logger *slog.Logger) *Odoo {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Odoo{
		url:        strings.TrimSuffix(cfg.URL(), "/"),
		database:   cfg.Database(),
		username:   cfg.Username(),
		password:   cfg.Password(),
		httpClient: httpClient,
		logger:     logger,
	}
}

type odooRPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  odooRPCParams `json:"params"`
	ID      int64         `json:"id"`
}

type odooRPCParams struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Args    []any  `json:"args"`
}

type odooRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Message string `json:"message"`
	} `json:"data"`
}

type odooRPCResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *odooRPCError   `json:"error"`
}

// Platform returns "odoo".
func (o *Odoo) Platform() string { return PlatformOdoo }

// TestConnection authenticates against the configured database.
func (o *Odoo) TestConnection(ctx context.Context) bool {
	_, err := o.authenticate(ctx)
	return err == nil
}

// FetchBatches pages product.template with search_read in id order. A
// failing page is skipped with a warning and iteration continues at the
// next offset; odooMaxPageFailures consecutive failures abort the run.
func (o *Odoo) FetchBatches(ctx context.Context, batchSize int, category string) *catalog.BatchIterator {
	if batchSize <= 0 {
		return errorIterator(errInvalidBatchSize(batchSize))
	}

	offset := 0
	failures := 0

	return catalog.NewBatchIterator(func(ctx context.Context) ([]catalog.Item, error) {
		for {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			products, err := o.searchReadProducts(ctx, o.productDomain(category), batchSize, offset)
			if err != nil {
				failures++
				if failures >= odooMaxPageFailures {
					return nil, fmt.Errorf("page at offset %d: %w", offset, err)
				}
				o.logger.Warn("skipping failed product page",
					slog.Int("offset", offset),
					slog.String("error", err.Error()),
				)
				offset += batchSize
				continue
			}
			failures = 0

			if len(products) == 0 {
				return nil, nil
			}
			offset += len(products)

			items := make([]catalog.Item, 0, len(products))
			for _, product := range products {
				item, err := o.toItem(product)
				if err != nil {
					return nil, fmt.Errorf("product %v: %w", product["id"], err)
				}
				items = append(items, item)
			}
			return items, nil
		}
	})
}

// FetchOne retrieves one product by its numeric id. A non-numeric id
// cannot exist in Odoo, so it maps to ErrNotFound.
func (o *Odoo) FetchOne(ctx context.Context, externalID string) (catalog.Item, error) {
	id, err := strconv.Atoi(externalID)
	if err != nil {
		return catalog.Item{}, catalog.ErrNotFound
	}

	domain := []any{[]any{"id", "=", id}}
	products, err := o.searchReadProducts(ctx, domain, 1, 0)
	if err != nil {
		return catalog.Item{}, err
	}
	if len(products) == 0 {
		return catalog.Item{}, catalog.ErrNotFound
	}
	return o.toItem(products[0])
}

// ListCategories returns the product category names.
func (o *Odoo) ListCategories(ctx context.Context) ([]string, error) {
	kwargs := map[string]any{
		"fields": []string{"name"},
		"order":  "name asc",
	}
	var categories []struct {
		Name string `json:"name"`
	}
	if err := o.executeKw(ctx, "product.category", "search_read", []any{[]any{}}, kwargs, &categories); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(categories))
	for _, c := range categories {
		names = append(names, c.Name)
	}
	return names, nil
}

// EstimateTotalCount counts sellable products with search_count.
func (o *Odoo) EstimateTotalCount(ctx context.Context) (int, error) {
	var count int
	if err := o.executeKw(ctx, "product.template", "search_count", []any{o.productDomain("")}, nil, &count); err != nil {
		return 0, err
	}
	return count, nil
}

// authenticate resolves and caches the numeric user id. Odoo answers a
// bad login with a false result rather than an error, so the result
// shape is checked, not just the transport.
func (o *Odoo) authenticate(ctx context.Context) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.uid != 0 {
		return o.uid, nil
	}

	args := []any{o.database, o.username, o.password, map[string]any{}}
	var result json.RawMessage
	if err := o.call(ctx, "common", "authenticate", args, &result); err != nil {
		return 0, err
	}

	var uid int
	if err := json.Unmarshal(result, &uid); err != nil || uid <= 0 {
		return 0, fmt.Errorf("odoo: authentication rejected for user %q on database %q", o.username, o.database)
	}
	o.uid = uid
	return uid, nil
}

// executeKw invokes a model method through the object service,
// authenticating first when needed.
func (o *Odoo) executeKw(ctx context.Context, model, method string, args []any, kwargs map[string]any, result any) error {
	uid, err := o.authenticate(ctx)
	if err != nil {
		return err
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	callArgs := []any{o.database, uid, o.password, model, method, args, kwargs}
	return o.call(ctx, "object", "execute_kw", callArgs, result)
}

// call performs one JSON-RPC round trip.
func (o *Odoo) call(ctx context.Context, service, method string, args []any, result any) error {
	payload := odooRPCRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params:  odooRPCParams{Service: service, Method: method, Args: args},
		ID:      o.nextID.Add(1),
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url+"/jsonrpc", bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("odoo: unexpected status %d", resp.StatusCode)
	}

	var rpcResp odooRPCResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if rpcResp.Error != nil {
		message := rpcResp.Error.Data.Message
		if message == "" {
			message = rpcResp.Error.Message
		}
		return fmt.Errorf("odoo: %s (code %d)", message, rpcResp.Error.Code)
	}

	if result == nil {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, result); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

func (o *Odoo) searchReadProducts(ctx context.Context, domain []any, limit, offset int) ([]map[string]any, error) {
	kwargs := map[string]any{
		"fields": odooProductFields,
		"limit":  limit,
		"offset": offset,
		"order":  "id asc",
	}
	var products []map[string]any
	if err := o.executeKw(ctx, "product.template", "search_read", []any{domain}, kwargs, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// productDomain restricts fetches to sellable products, optionally
// matching a category name.
func (o *Odoo) productDomain(category string) []any {
	domain := []any{[]any{"sale_ok", "=", true}}
	if category != "" {
		domain = append(domain, []any{"categ_id.name", "ilike", category})
	}
	return domain
}

// toItem normalizes one search_read row. Odoo reports empty fields as
// false, so every nullable field goes through a type assertion.
func (o *Odoo) toItem(p map[string]any) (catalog.Item, error) {
	id := int(odooFloat(p["id"]))

	item, err := catalog.NewItem(PlatformOdoo, strconv.Itoa(id), odooString(p["name"]))
	if err != nil {
		return catalog.Item{}, err
	}
	item, err = item.WithPrice(odooFloat(p["list_price"]))
	if err != nil {
		return catalog.Item{}, err
	}

	qty := odooFloat(p["qty_available"])
	item = item.
		WithDescription(odooString(p["description_sale"])).
		WithCategory(odooCategoryName(p["categ_id"])).
		WithStock(qty > 0).
		WithSKU(odooString(p["default_code"])).
		WithAttributes(map[string]string{
			"qty_available": strconv.FormatFloat(qty, 'f', -1, 64),
		})

	if odooString(p["image_128"]) != "" {
		item = item.WithImageURL(fmt.Sprintf("%s/web/image/product.template/%d/image_1920", o.url, id))
	}
	return item, nil
}

func odooString(v any) string {
	s, _ := v.(string)
	return s
}

func odooFloat(v any) float64 {
	f, _ := v.(float64)
	return f
}

// odooCategoryName extracts the name from a categ_id [id, name] pair.
func odooCategoryName(v any) string {
	pair, ok := v.([]any)
	if !ok || len(pair) < 2 {
		return ""
	}
	return odooString(pair[1])
}

// Ensure Odoo implements the connector contract.
var _ catalog.Connector = (*Odoo)(nil)
