package connector

import (
	"context"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/shopvec/shopvec/domain/catalog"
	"github.com/shopvec/shopvec/internal/config"
)

// Seed serves catalog items from a YAML file. It exists for demos and
// local development where no live platform is reachable; the file is
// loaded once at construction, so batch pulls never hit transport.
type Seed struct {
	path  string
	items []catalog.Item
}

// NewSeed creates a Seed connector by reading and parsing the
// configured file.
func NewSeed(cfg config.SeedConfig) (*Seed, error) {
	data, err := os.ReadFile(cfg.Path())
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	items := make([]catalog.Item, 0, len(file.Products))
	for i, product := range file.Products {
		item, err := product.toItem()
		if err != nil {
			return nil, fmt.Errorf("seed product %d: %w", i, err)
		}
		items = append(items, item)
	}
	return &Seed{path: cfg.Path(), items: items}, nil
}

type seedFile struct {
	Products []seedProduct `yaml:"products"`
}

type seedProduct struct {
	ExternalID  string            `yaml:"external_id"`
	Title       string            `yaml:"title"`
	Description string            `yaml:"description"`
	Price       float64           `yaml:"price"`
	Category    string            `yaml:"category"`
	ImageURL    string            `yaml:"image_url"`
	InStock     *bool             `yaml:"in_stock"`
	SKU         string            `yaml:"sku"`
	Brand       string            `yaml:"brand"`
	Rating      float64           `yaml:"rating"`
	RatingCount int               `yaml:"rating_count"`
	Attributes  map[string]string `yaml:"attributes"`
}

// Platform returns "seed".
func (s *Seed) Platform() string { return PlatformSeed }

// TestConnection always reports true; the file was parsed at
// construction.
func (s *Seed) TestConnection(_ context.Context) bool { return true }

// FetchBatches serves the loaded items in batchSize windows.
func (s *Seed) FetchBatches(_ context.Context, batchSize int, category string) *catalog.BatchIterator {
	if batchSize <= 0 {
		return errorIterator(errInvalidBatchSize(batchSize))
	}

	matched := s.filtered(category)
	offset := 0

	return catalog.NewBatchIterator(func(_ context.Context) ([]catalog.Item, error) {
		if offset >= len(matched) {
			return nil, nil
		}
		end := min(offset+batchSize, len(matched))
		batch := matched[offset:end]
		offset = end
		return batch, nil
	})
}

// FetchOne retrieves one item by external id.
func (s *Seed) FetchOne(_ context.Context, externalID string) (catalog.Item, error) {
	for _, item := range s.items {
		if item.ExternalID() == externalID {
			return item, nil
		}
	}
	return catalog.Item{}, catalog.ErrNotFound
}

// ListCategories returns the distinct categories, sorted.
func (s *Seed) ListCategories(_ context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var categories []string
	for _, item := range s.items {
		if item.Category() == "" || seen[item.Category()] {
			continue
		}
		seen[item.Category()] = true
		categories = append(categories, item.Category())
	}
	sort.Strings(categories)
	return categories, nil
}

// EstimateTotalCount returns the number of loaded items.
func (s *Seed) EstimateTotalCount(_ context.Context) (int, error) {
	return len(s.items), nil
}

func (s *Seed) filtered(category string) []catalog.Item {
	if category == "" {
		return s.items
	}
	var matched []catalog.Item
	for _, item := range s.items {
		if item.Category() == category {
			matched = append(matched, item)
		}
	}
	return matched
}

func (p seedProduct) toItem() (catalog.Item, error) {
	item, err := catalog.NewItem(PlatformSeed, p.ExternalID, p.Title)
	if err != nil {
		return catalog.Item{}, err
	}
	item, err = item.WithPrice(p.Price)
	if err != nil {
		return catalog.Item{}, err
	}

	item = item.
		WithDescription(p.Description).
		WithCategory(p.Category).
		WithImageURL(p.ImageURL).
		WithSKU(p.SKU).
		WithBrand(p.Brand).
		WithRating(p.Rating, p.RatingCount)

	if p.InStock != nil {
		item = item.WithStock(*p.InStock)
	}
	if len(p.Attributes) > 0 {
		item = item.WithAttributes(p.Attributes)
	}
	return item, nil
}

// Ensure Seed implements the connector contract.
var _ catalog.Connector = (*Seed)(nil)
