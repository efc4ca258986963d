// Package v1 implements the versioned HTTP API routers.
package v1

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	shopvec "github.com/shopvec/shopvec"
	"github.com/shopvec/shopvec/application/service"
	"github.com/shopvec/shopvec/domain/vector"
	"github.com/shopvec/shopvec/infrastructure/api/middleware"
	"github.com/shopvec/shopvec/infrastructure/api/v1/dto"
)

// SearchRouter handles the product search endpoint.
type SearchRouter struct {
	client *shopvec.Client
	logger *slog.Logger
}

// NewSearchRouter creates a new SearchRouter.
func NewSearchRouter(client *shopvec.Client) *SearchRouter {
	return &SearchRouter{
		client: client,
		logger: client.Logger(),
	}
}

// Routes returns the chi router for search endpoints.
func (r *SearchRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/", r.Search)

	return router
}

// Search handles POST /api/v1/search. Plain requests run filtered
// vector search; hybrid requests blend vector similarity with lexical
// term overlap under the requested alpha.
func (r *SearchRouter) Search(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var body dto.SearchRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "invalid request body", err), r.logger)
		return
	}

	attrs := body.Data.Attributes
	if attrs.Query == "" {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "query is required", nil), r.logger)
		return
	}

	limit := 0
	if attrs.Limit != nil {
		limit = *attrs.Limit
	}

	var results []vector.Result
	var err error
	if attrs.Hybrid {
		alpha := 0.5
		if attrs.Alpha != nil {
			alpha = *attrs.Alpha
		}
		results, err = r.client.Index.HybridSearchProducts(ctx, attrs.Query, limit, alpha)
		if err != nil {
			middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, err.Error(), err), r.logger)
			return
		}
	} else {
		results, err = r.client.Index.SearchProducts(ctx, attrs.Query, searchOptions(attrs)...)
		if err != nil {
			middleware.WriteError(w, req, err, r.logger)
			return
		}
	}

	middleware.WriteJSON(w, http.StatusOK, buildSearchResponse(results))
}

// searchOptions translates request attributes into search options.
func searchOptions(attrs dto.SearchAttributes) []service.SearchOption {
	var opts []service.SearchOption
	if attrs.Limit != nil {
		opts = append(opts, service.WithLimit(*attrs.Limit))
	}

	f := attrs.Filters
	if f == nil {
		return opts
	}
	if f.Category != nil && *f.Category != "" {
		opts = append(opts, service.WithCategory(*f.Category))
	}
	if f.Platform != nil && *f.Platform != "" {
		opts = append(opts, service.WithPlatform(*f.Platform))
	}
	if f.MinPrice != nil {
		opts = append(opts, service.WithMinPrice(*f.MinPrice))
	}
	if f.MaxPrice != nil {
		opts = append(opts, service.WithMaxPrice(*f.MaxPrice))
	}
	if f.InStockOnly {
		opts = append(opts, service.WithInStockOnly())
	}
	return opts
}

func buildSearchResponse(results []vector.Result) dto.SearchResponse {
	data := make([]dto.ProductData, len(results))
	for i, res := range results {
		data[i] = resultToProduct(res)
	}
	return dto.SearchResponse{Data: data}
}

func resultToProduct(res vector.Result) dto.ProductData {
	p := res.Payload()
	return dto.ProductData{
		Type: "product",
		ID:   res.ID(),
		Attributes: dto.ProductAttributes{
			ExternalID:  p.String("external_id"),
			Title:       p.String("title"),
			Description: p.String("description"),
			Price:       p.Float("price"),
			Category:    p.String("category"),
			ImageURL:    p.String("image_url"),
			Platform:    p.String("platform"),
			Rating:      p.Float("rating"),
			InStock:     p.Bool("in_stock"),
			Score:       res.Score(),
		},
	}
}
