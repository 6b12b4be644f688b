// Package chat implements the retrieval-augmented answer pipeline: it
// embeds the latest user message, searches the vector store, builds
// the system prompt, and streams the model's answer.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"

	"github.com/pitlane/f1gpt/internal/rag"
	"github.com/pitlane/f1gpt/internal/vectorstore"
)

// Generation defaults. Low temperature favors factual answers; the
// token cap keeps streamed responses bounded.
const (
	DefaultTemperature = 0.2
	DefaultMaxTokens   = 1500
)

// ErrStoreUnavailable indicates the vector collection could not be
// fetched or created. The request cannot proceed to generation.
var ErrStoreUnavailable = errors.New("vector store unavailable")

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one turn of the conversation. CreatedAt is set on
// messages loaded from storage and ignored on inbound requests.
type Message struct {
	ID        string    `json:"id,omitempty"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// StreamCallback receives each text chunk as the model produces it.
// Returning an error aborts the stream.
type StreamCallback func(ctx context.Context, text string) error

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Retriever is the vector store surface the pipeline depends on.
type Retriever interface {
	GetOrCreateCollection(ctx context.Context, name string, dimension int) (*vectorstore.Collection, error)
	Search(ctx context.Context, coll *vectorstore.Collection, vector []float32, limit int) ([]vectorstore.Document, error)
}

// Generator produces model responses. Satisfied by a thin adapter over
// genkit.Generate in production and by fakes in tests.
type Generator interface {
	Generate(ctx context.Context, opts ...ai.GenerateOption) (*ai.ModelResponse, error)
}

// Config carries the pipeline's dependencies and generation settings.
type Config struct {
	Embedder  Embedder
	Store     Retriever
	Generator Generator
	Logger    *slog.Logger

	Collection  string
	TopK        int
	ModelName   string
	Temperature float64
	MaxTokens   int

	// Now overrides the prompt time anchor. Nil means time.Now.
	Now func() time.Time
}

func (cfg Config) validate() error {
	if cfg.Embedder == nil {
		return errors.New("embedder is required")
	}
	if cfg.Store == nil {
		return errors.New("store is required")
	}
	if cfg.Generator == nil {
		return errors.New("generator is required")
	}
	if cfg.Collection == "" {
		return errors.New("collection name is required")
	}
	if cfg.TopK <= 0 {
		return errors.New("topK must be positive")
	}
	return nil
}

// Pipeline is the per-request answer flow. Stateless and safe for
// concurrent use; all configuration is captured at construction.
type Pipeline struct {
	embedder  Embedder
	store     Retriever
	generator Generator
	logger    *slog.Logger

	collection  string
	topK        int
	modelName   string
	temperature float64
	maxTokens   int
	now         func() time.Time
}

// New creates a Pipeline from cfg, applying generation defaults for
// unset sampling values.
func New(cfg Config) (*Pipeline, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Pipeline{
		embedder:    cfg.Embedder,
		store:       cfg.Store,
		generator:   cfg.Generator,
		logger:      logger,
		collection:  cfg.Collection,
		topK:        cfg.TopK,
		modelName:   cfg.ModelName,
		temperature: temperature,
		maxTokens:   maxTokens,
		now:         now,
	}, nil
}

// Response is the completed answer after the stream has finished.
type Response struct {
	Text string
}

// Respond runs the full pipeline for one conversation and streams the
// answer through cb. cb may be nil for non-streaming use.
//
// Failure policy: an embedding or search failure degrades to an empty
// context and generation still runs; a collection fetch/create failure
// is terminal and returns ErrStoreUnavailable. Cancellation of ctx
// stops generation promptly.
func (p *Pipeline) Respond(ctx context.Context, messages []Message, cb StreamCallback) (*Response, error) {
	query := LastUserQuery(messages)

	docs, err := p.retrieve(ctx, query)
	if err != nil {
		return nil, err
	}

	blob := rag.AssembleContext(docs)
	prompt := rag.BuildSystemPrompt(blob, p.now())

	resp, err := p.generate(ctx, prompt, messages, cb)
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}
	return &Response{Text: resp.Text()}, nil
}

// retrieve embeds the query and searches the collection. Only a
// collection fetch/create failure is returned; embedding and search
// failures degrade to no documents.
func (p *Pipeline) retrieve(ctx context.Context, query string) ([]vectorstore.Document, error) {
	vector, err := p.embedder.Embed(ctx, query)
	if err != nil {
		p.logger.Warn("embedding failed, continuing without context", "error", err)
		return nil, nil
	}

	coll, err := p.store.GetOrCreateCollection(ctx, p.collection, p.embedder.Dimension())
	if err != nil {
		p.logger.Error("fetching vector collection", "collection", p.collection, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	docs, err := p.store.Search(ctx, coll, vector, p.topK)
	if err != nil {
		p.logger.Warn("vector search failed, continuing without context", "error", err)
		return nil, nil
	}
	return docs, nil
}

func (p *Pipeline) generate(ctx context.Context, prompt string, messages []Message, cb StreamCallback) (*ai.ModelResponse, error) {
	opts := []ai.GenerateOption{
		ai.WithSystem(prompt),
		ai.WithMessages(toModelMessages(messages)...),
		ai.WithConfig(p.generationConfig()),
	}
	if p.modelName != "" {
		opts = append(opts, ai.WithModelName(p.modelName))
	}
	if cb != nil {
		opts = append(opts, ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
			text := chunk.Text()
			if text == "" {
				return nil
			}
			return cb(ctx, text)
		}))
	}
	return p.generator.Generate(ctx, opts...)
}

// toModelMessages maps the inbound conversation onto model messages.
// Client-supplied system messages are dropped: the system prompt is
// owned by the pipeline.
func toModelMessages(messages []Message) []*ai.Message {
	out := make([]*ai.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleUser:
			out = append(out, ai.NewUserMessage(ai.NewTextPart(msg.Content)))
		case RoleAssistant:
			out = append(out, ai.NewModelMessage(ai.NewTextPart(msg.Content)))
		}
	}
	return out
}

// LastUserQuery returns the content of the last user message, or the
// empty string when the conversation has none.
func LastUserQuery(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return strings.TrimSpace(messages[i].Content)
		}
	}
	return ""
}
