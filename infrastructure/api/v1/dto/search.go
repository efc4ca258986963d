// Package dto holds the JSON:API request and response shapes for the
// v1 HTTP surface.
package dto

// SearchFilters restricts a product search by payload fields.
type SearchFilters struct {
	Category    *string  `json:"category,omitempty"`
	Platform    *string  `json:"platform,omitempty"`
	MinPrice    *float64 `json:"min_price,omitempty"`
	MaxPrice    *float64 `json:"max_price,omitempty"`
	InStockOnly bool     `json:"in_stock_only,omitempty"`
}

// SearchAttributes holds the search request attributes.
type SearchAttributes struct {
	Query   string         `json:"query"`
	Limit   *int           `json:"limit,omitempty"`
	Hybrid  bool           `json:"hybrid,omitempty"`
	Alpha   *float64       `json:"alpha,omitempty"`
	Filters *SearchFilters `json:"filters,omitempty"`
}

// SearchData wraps the search attributes in a JSON:API resource.
type SearchData struct {
	Type       string           `json:"type"`
	Attributes SearchAttributes `json:"attributes"`
}

// SearchRequest is the POST /search request body.
type SearchRequest struct {
	Data SearchData `json:"data"`
}

// ProductAttributes carries the denormalized payload of one result.
type ProductAttributes struct {
	ExternalID  string  `json:"external_id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	ImageURL    string  `json:"image_url,omitempty"`
	Platform    string  `json:"platform"`
	Rating      float64 `json:"rating,omitempty"`
	InStock     bool    `json:"in_stock"`
	Score       float64 `json:"score"`
}

// ProductData is one ranked search result in JSON:API format.
type ProductData struct {
	Type       string            `json:"type"`
	ID         string            `json:"id"`
	Attributes ProductAttributes `json:"attributes"`
}

// SearchResponse is the POST /search response body.
type SearchResponse struct {
	Data []ProductData `json:"data"`
}
