package v1

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	shopvec "github.com/shopvec/shopvec"
	"github.com/shopvec/shopvec/domain/catalog"
	"github.com/shopvec/shopvec/domain/repository"
	"github.com/shopvec/shopvec/infrastructure/api/jsonapi"
	"github.com/shopvec/shopvec/infrastructure/api/middleware"
	"github.com/shopvec/shopvec/infrastructure/api/v1/dto"
)

// ProductsRouter exposes the stored catalog records.
type ProductsRouter struct {
	client *shopvec.Client
	logger *slog.Logger
}

// NewProductsRouter creates a new ProductsRouter.
func NewProductsRouter(client *shopvec.Client) *ProductsRouter {
	return &ProductsRouter{
		client: client,
		logger: client.Logger(),
	}
}

// Routes returns the chi router for product endpoints.
func (r *ProductsRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", r.List)
	router.Get("/{platform}/{externalID}", r.Get)

	return router
}

// List handles GET /api/v1/products with pagination and optional
// platform, category, and in_stock filters.
func (r *ProductsRouter) List(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	params := ParsePagination(req)
	options := append(recordFilters(req), params.Options()...)
	options = append(options, repository.WithOrderAsc("id"))

	records, err := r.client.Records.Find(ctx, options...)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	total, err := r.client.Records.Count(ctx, req.URL.Query().Get("platform"))
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	resources := make([]*jsonapi.Resource, len(records))
	for i, rec := range records {
		resources[i] = recordResource(rec)
	}

	doc := jsonapi.NewListResponse(resources)
	doc.Meta = PaginationMeta(params, total)
	doc.Links = PaginationLinks(req, params, total)
	middleware.WriteJSON(w, http.StatusOK, doc)
}

// Get handles GET /api/v1/products/{platform}/{externalID}.
func (r *ProductsRouter) Get(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	platform := chi.URLParam(req, "platform")
	externalID := chi.URLParam(req, "externalID")

	rec, err := r.client.Records.Get(ctx, platform, externalID)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, jsonapi.NewSingleResponse(recordResource(rec)))
}

// recordFilters translates query parameters into repository options.
func recordFilters(req *http.Request) []repository.Option {
	var options []repository.Option
	q := req.URL.Query()
	if platform := q.Get("platform"); platform != "" {
		options = append(options, repository.WithPlatform(platform))
	}
	if category := q.Get("category"); category != "" {
		options = append(options, repository.WithCategory(category))
	}
	if inStock, err := strconv.ParseBool(q.Get("in_stock")); err == nil && inStock {
		options = append(options, repository.WithInStock())
	}
	return options
}

func recordResource(rec catalog.Record) *jsonapi.Resource {
	item := rec.Item()
	return jsonapi.NewResource("product", strconv.FormatInt(rec.ID(), 10), dto.RecordAttributes{
		Platform:    item.Platform(),
		ExternalID:  item.ExternalID(),
		Title:       item.Title(),
		Description: item.Description(),
		Price:       item.Price(),
		Category:    item.Category(),
		ImageURL:    item.ImageURL(),
		InStock:     item.InStock(),
		SKU:         item.SKU(),
		Brand:       item.Brand(),
		Rating:      item.Rating(),
		RatingCount: item.RatingCount(),
		Attributes:  item.Attributes(),
	})
}
