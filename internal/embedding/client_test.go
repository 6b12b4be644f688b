package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// stubEmbedder implements ai.Embedder with scripted responses.
type stubEmbedder struct {
	resp *ai.EmbedResponse
	err  error

	requests []*ai.EmbedRequest
}

func (s *stubEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func (s *stubEmbedder) Name() string            { return "stub/embedder" }
func (s *stubEmbedder) Register(_ api.Registry) {}

func embeddingsOf(vectors ...[]float32) *ai.EmbedResponse {
	resp := &ai.EmbedResponse{}
	for _, v := range vectors {
		resp.Embeddings = append(resp.Embeddings, &ai.Embedding{Embedding: v})
	}
	return resp
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(nil, 3)
	assert.Error(t, err)

	_, err = NewClient(&stubEmbedder{}, 0)
	assert.Error(t, err)

	c, err := NewClient(&stubEmbedder{}, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Dimension())
}

func TestEmbed(t *testing.T) {
	stub := &stubEmbedder{resp: embeddingsOf([]float32{0.1, 0.2, 0.3})}
	c, err := NewClient(stub, 3)
	require.NoError(t, err)

	vec, err := c.Embed(context.Background(), "when is the next grand prix?")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)

	require.Len(t, stub.requests, 1)
	require.Len(t, stub.requests[0].Input, 1)
	assert.Equal(t, "when is the next grand prix?", stub.requests[0].Input[0].Content[0].Text)
}

// requestedDimensionality extracts the output dimensionality the
// request asks the provider for, or nil when unset.
func requestedDimensionality(t *testing.T, req *ai.EmbedRequest) *int32 {
	t.Helper()
	if req.Options == nil {
		return nil
	}
	cfg, ok := req.Options.(*genai.EmbedContentConfig)
	require.True(t, ok, "options have type %T", req.Options)
	return cfg.OutputDimensionality
}

// truncatingEmbedder behaves like gemini-embedding-001: it returns its
// native dimension unless the request asks for a smaller one.
type truncatingEmbedder struct {
	stubEmbedder
	nativeDim int
}

func (s *truncatingEmbedder) Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	dim := s.nativeDim
	if cfg, ok := req.Options.(*genai.EmbedContentConfig); ok && cfg.OutputDimensionality != nil {
		dim = int(*cfg.OutputDimensionality)
	}
	s.requests = append(s.requests, req)
	resp := &ai.EmbedResponse{}
	for range req.Input {
		resp.Embeddings = append(resp.Embeddings, &ai.Embedding{Embedding: make([]float32, dim)})
	}
	return resp, nil
}

func TestEmbed_RequestsConfiguredDimensionality(t *testing.T) {
	stub := &stubEmbedder{resp: embeddingsOf(make([]float32, 1536))}
	c, err := NewClient(stub, 1536)
	require.NoError(t, err)

	_, err = c.Embed(context.Background(), "Where is the next race?")
	require.NoError(t, err)

	require.Len(t, stub.requests, 1)
	dim := requestedDimensionality(t, stub.requests[0])
	require.NotNil(t, dim, "request must ask the provider to truncate")
	assert.Equal(t, int32(1536), *dim)
}

func TestEmbedBatch_RequestsConfiguredDimensionality(t *testing.T) {
	stub := &stubEmbedder{resp: embeddingsOf(make([]float32, 8), make([]float32, 8))}
	c, err := NewClient(stub, 8)
	require.NoError(t, err)

	_, err = c.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	require.Len(t, stub.requests, 1)
	dim := requestedDimensionality(t, stub.requests[0])
	require.NotNil(t, dim)
	assert.Equal(t, int32(8), *dim)
}

func TestEmbed_TruncatingProviderMatchesConfig(t *testing.T) {
	// A provider with a larger native dimension must be told to
	// truncate, otherwise every vector fails validation.
	stub := &truncatingEmbedder{nativeDim: 3072}
	c, err := NewClient(stub, 1536)
	require.NoError(t, err)

	vec, err := c.Embed(context.Background(), "Where is the next race?")
	require.NoError(t, err)
	assert.Len(t, vec, 1536)

	vectors, err := c.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Len(t, vectors[0], 1536)
}

func TestEmbed_EmptyTextStillEmbedded(t *testing.T) {
	stub := &stubEmbedder{resp: embeddingsOf([]float32{0, 0, 1})}
	c, err := NewClient(stub, 3)
	require.NoError(t, err)

	_, err = c.Embed(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, stub.requests, 1)
}

func TestEmbed_ProviderError(t *testing.T) {
	wantErr := errors.New("quota exceeded")
	c, err := NewClient(&stubEmbedder{err: wantErr}, 3)
	require.NoError(t, err)

	_, err = c.Embed(context.Background(), "query")
	require.Error(t, err)
	assert.ErrorIs(t, err, wantErr)
}

func TestEmbed_EmptyResponse(t *testing.T) {
	c, err := NewClient(&stubEmbedder{resp: &ai.EmbedResponse{}}, 3)
	require.NoError(t, err)

	_, err = c.Embed(context.Background(), "query")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestEmbed_DimensionMismatch(t *testing.T) {
	c, err := NewClient(&stubEmbedder{resp: embeddingsOf([]float32{1, 2})}, 3)
	require.NoError(t, err)

	_, err = c.Embed(context.Background(), "query")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension")
}

func TestEmbedBatch(t *testing.T) {
	stub := &stubEmbedder{resp: embeddingsOf([]float32{1, 0}, []float32{0, 1})}
	c, err := NewClient(stub, 2)
	require.NoError(t, err)

	vectors, err := c.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{1, 0}, vectors[0])
	assert.Equal(t, []float32{0, 1}, vectors[1])

	require.Len(t, stub.requests, 1)
	assert.Len(t, stub.requests[0].Input, 2)
}

func TestEmbedBatch_Empty(t *testing.T) {
	stub := &stubEmbedder{}
	c, err := NewClient(stub, 2)
	require.NoError(t, err)

	vectors, err := c.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
	assert.Empty(t, stub.requests, "no provider call for empty input")
}

func TestEmbedBatch_CountMismatch(t *testing.T) {
	c, err := NewClient(&stubEmbedder{resp: embeddingsOf([]float32{1, 0})}, 2)
	require.NoError(t, err)

	_, err = c.EmbedBatch(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 texts")
}
