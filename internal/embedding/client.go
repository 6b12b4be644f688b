// Package embedding converts text into fixed-dimension vectors through
// a genkit embedder.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"google.golang.org/genai"
)

// embedTimeout caps a single embedding call. The provider occasionally
// stalls; a bounded call lets the caller apply its degrade policy
// instead of hanging the request.
const embedTimeout = 15 * time.Second

// ErrEmptyResponse indicates the provider returned no embedding for
// the input.
var ErrEmptyResponse = errors.New("embedding: provider returned no embeddings")

// Client wraps an ai.Embedder with dimension validation and a timeout.
type Client struct {
	embedder  ai.Embedder
	dimension int
}

// NewClient creates a Client that validates every returned vector
// against dimension.
func NewClient(embedder ai.Embedder, dimension int) (*Client, error) {
	if embedder == nil {
		return nil, errors.New("embedding: embedder is required")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("embedding: dimension must be positive, got %d", dimension)
	}
	return &Client{embedder: embedder, dimension: dimension}, nil
}

// Dimension returns the vector dimension this client produces.
func (c *Client) Dimension() int { return c.dimension }

// options asks the provider for the configured output dimensionality.
// gemini-embedding-001 returns 3072-dim vectors unless truncated.
func (c *Client) options() *genai.EmbedContentConfig {
	return &genai.EmbedContentConfig{
		OutputDimensionality: genai.Ptr(int32(c.dimension)),
	}
}

// Embed returns the embedding vector for text. An empty text is still
// embedded; degrading on blank input is the caller's decision.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, embedTimeout)
	defer cancel()

	resp, err := c.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			{Content: []*ai.Part{ai.NewTextPart(text)}},
		},
		Options: c.options(),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, ErrEmptyResponse
	}

	vec := resp.Embeddings[0].Embedding
	if len(vec) != c.dimension {
		return nil, fmt.Errorf("embedding: provider returned dimension %d, want %d", len(vec), c.dimension)
	}
	return vec, nil
}

// EmbedBatch embeds texts in one request, preserving order. Used by
// the ingestion pipeline.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, embedTimeout)
	defer cancel()

	input := make([]*ai.Document, len(texts))
	for i, text := range texts {
		input[i] = &ai.Document{Content: []*ai.Part{ai.NewTextPart(text)}}
	}

	resp, err := c.embedder.Embed(ctx, &ai.EmbedRequest{Input: input, Options: c.options()})
	if err != nil {
		return nil, fmt.Errorf("embedding batch: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding: provider returned %d embeddings for %d texts",
			len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if len(emb.Embedding) != c.dimension {
			return nil, fmt.Errorf("embedding: provider returned dimension %d, want %d",
				len(emb.Embedding), c.dimension)
		}
		vectors[i] = emb.Embedding
	}
	return vectors, nil
}
