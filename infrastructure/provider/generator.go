package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopvec/shopvec/domain/embedding"
)

// Generator composes a text Embedder and an optional ImageEmbedder into
// the embedding.Generator contract. Text batches larger than the
// embedder's capacity are split into sequential upstream calls. Image
// embedding is best-effort: provider failures are logged and downgraded
// to a missing vector so a bad image never fails a batch.
type Generator struct {
	embedder       Embedder
	imageEmbedder  ImageEmbedder
	textDimension  int
	imageDimension int
	logger         *slog.Logger
}

// NewGenerator creates a Generator. imageEmbedder may be nil, in which
// case ImageDimension reports zero and EmbedImage always returns no
// vector.
func NewGenerator(embedder Embedder, imageEmbedder ImageEmbedder, textDimension, imageDimension int, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if imageEmbedder == nil {
		imageDimension = 0
	}
	return &Generator{
		embedder:       embedder,
		imageEmbedder:  imageEmbedder,
		textDimension:  textDimension,
		imageDimension: imageDimension,
		logger:         logger,
	}
}

// EmbedText embeds a single text.
func (g *Generator) EmbedText(ctx context.Context, text string) ([]float64, error) {
	vecs, err := g.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedTexts embeds a batch of texts, preserving input order and length.
// Embedders with a bounded Capacity receive sequential sub-batches.
func (g *Generator) EmbedTexts(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	capacity := len(texts)
	if c, ok := g.embedder.(interface{ Capacity() int }); ok && c.Capacity() > 0 {
		capacity = c.Capacity()
	}

	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += capacity {
		end := min(start+capacity, len(texts))

		resp, err := g.embedder.Embed(ctx, NewEmbeddingRequest(texts[start:end]))
		if err != nil {
			return nil, fmt.Errorf("embed texts [%d:%d]: %w", start, end, err)
		}

		batch := resp.Embeddings()
		if len(batch) != end-start {
			return nil, fmt.Errorf("embed texts [%d:%d]: got %d vectors for %d texts", start, end, len(batch), end-start)
		}
		for i, vec := range batch {
			if len(vec) != g.textDimension {
				return nil, fmt.Errorf("embed texts: vector %d has dimension %d, want %d", start+i, len(vec), g.textDimension)
			}
		}
		out = append(out, batch...)
	}

	return out, nil
}

// EmbedImage embeds the image behind the URL. Provider failures and
// dimension mismatches return (nil, nil) so callers index the item
// without an image vector. Context cancellation still propagates.
func (g *Generator) EmbedImage(ctx context.Context, imageURL string) ([]float64, error) {
	if g.imageEmbedder == nil || imageURL == "" {
		return nil, nil
	}

	vec, err := g.imageEmbedder.EmbedImage(ctx, imageURL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		g.logger.Warn("image embedding failed",
			slog.String("url", imageURL),
			slog.String("error", err.Error()))
		return nil, nil
	}

	if len(vec) != g.imageDimension {
		g.logger.Warn("image embedding dimension mismatch",
			slog.String("url", imageURL),
			slog.Int("got", len(vec)),
			slog.Int("want", g.imageDimension))
		return nil, nil
	}

	return vec, nil
}

// TextDimension returns the fixed text vector dimension.
func (g *Generator) TextDimension() int { return g.textDimension }

// ImageDimension returns the fixed image vector dimension, zero when no
// image embedder is configured.
func (g *Generator) ImageDimension() int { return g.imageDimension }

// Close releases the underlying embedders.
func (g *Generator) Close() error {
	errs := []error{g.embedder.Close()}
	if g.imageEmbedder != nil {
		errs = append(errs, g.imageEmbedder.Close())
	}
	return errors.Join(errs...)
}

var _ embedding.Generator = (*Generator)(nil)
