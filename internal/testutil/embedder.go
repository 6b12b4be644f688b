package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// FakeEmbedder produces deterministic vectors for tests. By default a
// text hashes to a stable unit vector; explicit vectors can be pinned
// per text to control cosine similarity exactly. Safe for concurrent
// use.
type FakeEmbedder struct {
	mu      sync.Mutex
	pinned  map[string][]float32
	err     error
	dim     int
	queries []string
}

// NewFakeEmbedder creates a FakeEmbedder producing vectors of the
// given dimension.
func NewFakeEmbedder(dim int) *FakeEmbedder {
	return &FakeEmbedder{pinned: make(map[string][]float32), dim: dim}
}

// Pin fixes the vector returned for an exact text.
func (e *FakeEmbedder) Pin(text string, vec []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pinned[text] = vec
}

// Fail makes every subsequent Embed call return err. Pass nil to
// restore normal behavior.
func (e *FakeEmbedder) Fail(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

// Queries returns the texts embedded so far, in call order.
func (e *FakeEmbedder) Queries() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.queries...)
}

// Register registers the fake as a genkit embedder named
// "fake/embedder".
func (e *FakeEmbedder) Register(g *genkit.Genkit) ai.Embedder {
	return genkit.DefineEmbedder(g, "fake/embedder", &ai.EmbedderOptions{
		Label:      "Fake Embedder",
		Dimensions: e.dim,
	}, e.embed)
}

func (e *FakeEmbedder) embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.err != nil {
		return nil, e.err
	}

	embeddings := make([]*ai.Embedding, len(req.Input))
	for i, doc := range req.Input {
		text := documentText(doc)
		e.queries = append(e.queries, text)

		vec, ok := e.pinned[text]
		if !ok {
			vec = hashVector(text, e.dim)
		}
		embeddings[i] = &ai.Embedding{Embedding: vec}
	}
	return &ai.EmbedResponse{Embeddings: embeddings}, nil
}

func documentText(doc *ai.Document) string {
	var sb strings.Builder
	for _, p := range doc.Content {
		if p.Kind == ai.PartText {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// hashVector maps text to a stable unit vector via SHA-256, so equal
// texts are always nearest neighbors of themselves.
func hashVector(text string, dim int) []float32 {
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, dim)
	for i := range vec {
		idx := (i * 4) % len(sum)
		bits := binary.LittleEndian.Uint32([]byte{
			sum[idx%32], sum[(idx+1)%32], sum[(idx+2)%32], sum[(idx+3)%32],
		})
		vec[i] = (float32(bits)/float32(math.MaxUint32))*2 - 1
	}

	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		scale := 1 / float32(math.Sqrt(float64(norm)))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec
}
