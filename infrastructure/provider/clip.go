package provider

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopvec/shopvec/internal/config"
)

// ClipEmbedder generates image embeddings through a CLIP service exposed
// via an OpenAI-compatible embeddings API (e.g. infinity, LocalAI). Such
// services accept image URLs as embedding input.
type ClipEmbedder struct {
	provider *OpenAIProvider
}

// NewClipEmbedder creates a ClipEmbedder from an image endpoint config.
// A non-nil httpClient overrides the default client, e.g. to add a
// CachingTransport.
func NewClipEmbedder(e config.Endpoint, httpClient *http.Client) *ClipEmbedder {
	p := NewOpenAIProviderFromEndpoint(e, httpClient)
	// CLIP servers usually serve a single model; do not inherit the text
	// embedding default when no model is configured.
	p.model = e.Model()
	return &ClipEmbedder{provider: p}
}

// EmbedImage generates an embedding for the image at the given URL.
func (c *ClipEmbedder) EmbedImage(ctx context.Context, imageURL string) ([]float64, error) {
	resp, err := c.provider.Embed(ctx, NewEmbeddingRequest([]string{imageURL}))
	if err != nil {
		return nil, err
	}

	embeddings := resp.Embeddings()
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("image embedding: got %d vectors for one image", len(embeddings))
	}
	return embeddings[0], nil
}

// Close releases the underlying provider.
func (c *ClipEmbedder) Close() error {
	return c.provider.Close()
}

var _ ImageEmbedder = (*ClipEmbedder)(nil)
