// Package service provides application layer services that orchestrate domain operations.
package service

import (
	"context"
	"fmt"

	"github.com/shopvec/shopvec/domain/vector"
	"github.com/shopvec/shopvec/internal/config"
)

// SearchOption configures a product search.
type SearchOption func(*searchConfig)

// searchConfig holds search parameters.
type searchConfig struct {
	limit       int
	category    string
	platform    string
	minPrice    *float64
	maxPrice    *float64
	inStockOnly bool
}

// newSearchConfig creates a searchConfig with defaults.
func newSearchConfig() *searchConfig {
	return &searchConfig{
		limit: config.DefaultSearchLimit,
	}
}

// WithLimit sets the maximum number of results.
func WithLimit(n int) SearchOption {
	return func(c *searchConfig) {
		if n > 0 {
			c.limit = n
		}
	}
}

// WithCategory restricts results to one category.
func WithCategory(category string) SearchOption {
	return func(c *searchConfig) {
		c.category = category
	}
}

// WithPlatform restricts results to items from one source platform.
func WithPlatform(platform string) SearchOption {
	return func(c *searchConfig) {
		c.platform = platform
	}
}

// WithMinPrice sets an inclusive lower price bound.
func WithMinPrice(price float64) SearchOption {
	return func(c *searchConfig) {
		c.minPrice = &price
	}
}

// WithMaxPrice sets an inclusive upper price bound.
func WithMaxPrice(price float64) SearchOption {
	return func(c *searchConfig) {
		c.maxPrice = &price
	}
}

// WithInStockOnly keeps only items currently in stock.
func WithInStockOnly() SearchOption {
	return func(c *searchConfig) {
		c.inStockOnly = true
	}
}

// filter translates the configured constraints into a payload filter.
func (c *searchConfig) filter() vector.Filter {
	f := vector.NewFilter()
	if c.category != "" {
		f = f.Eq("category", c.category)
	}
	if c.platform != "" {
		f = f.Eq("platform", c.platform)
	}
	if c.minPrice != nil {
		f = f.Gte("price", *c.minPrice)
	}
	if c.maxPrice != nil {
		f = f.Lte("price", *c.maxPrice)
	}
	if c.inStockOnly {
		f = f.Eq("in_stock", true)
	}
	return f
}

// SearchProducts embeds the query once and returns the nearest products
// in the text space, restricted by the configured filters and ranked by
// similarity.
func (s *Indexing) SearchProducts(ctx context.Context, query string, opts ...SearchOption) ([]vector.Result, error) {
	cfg := newSearchConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	queryVector, err := s.generator.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := s.store.Search(ctx, s.collection, queryVector, vector.SpaceText, cfg.limit, cfg.filter())
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", s.collection, err)
	}
	return results, nil
}

// HybridSearchProducts blends vector similarity with lexical term
// overlap: alpha 0 is pure vector ranking, alpha 1 pure lexical.
func (s *Indexing) HybridSearchProducts(ctx context.Context, query string, limit int, alpha float64) ([]vector.Result, error) {
	if limit <= 0 {
		limit = config.DefaultSearchLimit
	}
	if alpha < 0 || alpha > 1 {
		return nil, fmt.Errorf("alpha must be between 0 and 1, got %v", alpha)
	}

	queryVector, err := s.generator.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := s.store.HybridSearch(ctx, s.collection, queryVector, query, vector.SpaceText, limit, alpha)
	if err != nil {
		return nil, fmt.Errorf("hybrid search %s: %w", s.collection, err)
	}
	return results, nil
}
