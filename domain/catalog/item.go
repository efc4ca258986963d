// Package catalog provides the normalized catalog item model and the
// connector contract for fetching items from external platforms.
package catalog

import (
	"errors"
	"fmt"
	"maps"
)

// ErrNotFound indicates a catalog item does not exist on the platform.
var ErrNotFound = errors.New("catalog item not found")

// Item is one normalized catalog entry. Items are produced by a
// Connector fetch and are immutable once built.
type Item struct {
	platform    string
	externalID  string
	title       string
	description string
	price       float64
	category    string
	imageURL    string
	inStock     bool
	sku         string
	brand       string
	rating      float64
	ratingCount int
	attributes  map[string]string
}

// NewItem creates an Item. Platform, external ID, and title are required;
// external IDs are unique within a platform only.
func NewItem(platform, externalID, title string) (Item, error) {
	if platform == "" {
		return Item{}, errors.New("platform is required")
	}
	if externalID == "" {
		return Item{}, errors.New("external id is required")
	}
	if title == "" {
		return Item{}, errors.New("title is required")
	}
	return Item{
		platform:   platform,
		externalID: externalID,
		title:      title,
		inStock:    true,
	}, nil
}

// Platform returns the source platform tag.
func (i Item) Platform() string { return i.platform }

// ExternalID returns the platform-scoped item identifier.
func (i Item) ExternalID() string { return i.externalID }

// Title returns the item title.
func (i Item) Title() string { return i.title }

// Description returns the item description.
func (i Item) Description() string { return i.description }

// Price returns the item price.
func (i Item) Price() float64 { return i.price }

// Category returns the item category.
func (i Item) Category() string { return i.category }

// ImageURL returns the item image reference, empty when none.
func (i Item) ImageURL() string { return i.imageURL }

// InStock reports whether the item is in stock.
func (i Item) InStock() bool { return i.inStock }

// SKU returns the stock keeping unit, empty when unknown.
func (i Item) SKU() string { return i.sku }

// Brand returns the brand, empty when unknown.
func (i Item) Brand() string { return i.brand }

// Rating returns the average rating, zero when unrated.
func (i Item) Rating() float64 { return i.rating }

// RatingCount returns how many ratings contributed to Rating.
func (i Item) RatingCount() int { return i.ratingCount }

// Attributes returns a copy of the free-form attribute map.
func (i Item) Attributes() map[string]string {
	if i.attributes == nil {
		return nil
	}
	out := make(map[string]string, len(i.attributes))
	maps.Copy(out, i.attributes)
	return out
}

// WithDescription returns a copy with the description set.
func (i Item) WithDescription(description string) Item {
	i.description = description
	return i
}

// WithPrice returns a copy with the price set. Negative prices are a
// contract violation.
func (i Item) WithPrice(price float64) (Item, error) {
	if price < 0 {
		return Item{}, fmt.Errorf("price must be non-negative, got %v", price)
	}
	i.price = price
	return i, nil
}

// WithCategory returns a copy with the category set.
func (i Item) WithCategory(category string) Item {
	i.category = category
	return i
}

// WithImageURL returns a copy with the image reference set.
func (i Item) WithImageURL(url string) Item {
	i.imageURL = url
	return i
}

// WithStock returns a copy with the stock flag set.
func (i Item) WithStock(inStock bool) Item {
	i.inStock = inStock
	return i
}

// WithSKU returns a copy with the SKU set.
func (i Item) WithSKU(sku string) Item {
	i.sku = sku
	return i
}

// WithBrand returns a copy with the brand set.
func (i Item) WithBrand(brand string) Item {
	i.brand = brand
	return i
}

// WithRating returns a copy with the rating and rating count set.
func (i Item) WithRating(rating float64, count int) Item {
	i.rating = rating
	i.ratingCount = count
	return i
}

// WithAttributes returns a copy with the attribute map replaced.
// The input map is copied.
func (i Item) WithAttributes(attrs map[string]string) Item {
	if attrs == nil {
		i.attributes = nil
		return i
	}
	cp := make(map[string]string, len(attrs))
	maps.Copy(cp, attrs)
	i.attributes = cp
	return i
}
