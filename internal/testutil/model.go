package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// FakeModel returns scripted text for tests. The reply to a request is
// chosen by case-insensitive substring match on the last user message;
// unmatched requests get the fallback. Replies are streamed word by
// word so callers exercise real multi-chunk behavior. Safe for
// concurrent use.
type FakeModel struct {
	mu       sync.Mutex
	rules    []modelRule
	fallback string
	err      error
	calls    []ModelCall
}

type modelRule struct {
	pattern string
	reply   string
}

// ModelCall records one generation request as seen by the fake.
type ModelCall struct {
	System      string
	UserMessage string
	Config      any
	Reply       string
}

// NewFakeModel creates a FakeModel with the given fallback reply.
func NewFakeModel(fallback string) *FakeModel {
	return &FakeModel{fallback: fallback}
}

// Reply registers a pattern-reply pair. First match wins.
func (m *FakeModel) Reply(pattern, reply string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, modelRule{pattern: strings.ToLower(pattern), reply: reply})
}

// Fail makes every subsequent generation return err. Pass nil to
// restore normal behavior.
func (m *FakeModel) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns a copy of the recorded generation requests.
func (m *FakeModel) Calls() []ModelCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ModelCall(nil), m.calls...)
}

// Register registers the fake as a genkit model named "fake/model".
func (m *FakeModel) Register(g *genkit.Genkit) ai.Model {
	return genkit.DefineModel(g, "fake/model", &ai.ModelOptions{
		Label: "Fake Model",
		Supports: &ai.ModelSupports{
			Multiturn:  true,
			SystemRole: true,
		},
	}, m.generate)
}

func (m *FakeModel) generate(ctx context.Context, req *ai.ModelRequest, cb ai.ModelStreamCallback) (*ai.ModelResponse, error) {
	system, user := splitRequest(req)

	m.mu.Lock()
	if m.err != nil {
		err := m.err
		m.mu.Unlock()
		return nil, err
	}

	reply := m.fallback
	lower := strings.ToLower(user)
	for _, rule := range m.rules {
		if strings.Contains(lower, rule.pattern) {
			reply = rule.reply
			break
		}
	}
	m.calls = append(m.calls, ModelCall{
		System:      system,
		UserMessage: user,
		Config:      req.Config,
		Reply:       reply,
	})
	m.mu.Unlock()

	if cb != nil {
		for _, word := range strings.SplitAfter(reply, " ") {
			if err := cb(ctx, &ai.ModelResponseChunk{
				Content: []*ai.Part{ai.NewTextPart(word)},
			}); err != nil {
				return nil, err
			}
		}
	}

	return &ai.ModelResponse{
		Request: req,
		Message: &ai.Message{
			Role:    ai.RoleModel,
			Content: []*ai.Part{ai.NewTextPart(reply)},
		},
	}, nil
}

// splitRequest extracts the system prompt and the last user message
// from a model request.
func splitRequest(req *ai.ModelRequest) (system, user string) {
	for _, msg := range req.Messages {
		if msg.Role == ai.RoleSystem {
			system = msg.Text()
		}
	}
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == ai.RoleUser {
			user = req.Messages[i].Text()
			break
		}
	}
	return system, user
}
