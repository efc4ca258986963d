// Package embedding defines the embedding generator contract and the
// pinned text composition used for indexing and querying.
package embedding

import (
	"context"
	"fmt"

	"github.com/shopvec/shopvec/domain/catalog"
)

// Generator turns text and image references into fixed-dimension
// vectors. Implementations are long-lived, safe for concurrent use, and
// memoize expensive model loading process-wide.
type Generator interface {
	// EmbedText embeds a single text.
	EmbedText(ctx context.Context, text string) ([]float64, error)

	// EmbedTexts embeds a batch in one upstream call. The response
	// preserves input order and length.
	EmbedTexts(ctx context.Context, texts []string) ([][]float64, error)

	// EmbedImage embeds the image behind the URL. Best-effort: fetch or
	// decode failures return (nil, nil), never a fatal error.
	EmbedImage(ctx context.Context, imageURL string) ([]float64, error)

	// TextDimension returns the fixed text vector dimension.
	TextDimension() int

	// ImageDimension returns the fixed image vector dimension, zero when
	// image embedding is not configured.
	ImageDimension() int
}

// ComposeText builds the text embedded for an item. The field order is
// part of the contract: changing it silently changes nearest-neighbor
// results across re-indexing, so tests pin this exact format.
func ComposeText(item catalog.Item) string {
	return fmt.Sprintf("%s. %s. Category: %s", item.Title(), item.Description(), item.Category())
}
