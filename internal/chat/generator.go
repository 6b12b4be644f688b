package chat

import (
	"context"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"google.golang.org/genai"
)

// GenkitGenerator adapts a genkit instance to the Generator interface.
type GenkitGenerator struct {
	G *genkit.Genkit
}

func (g GenkitGenerator) Generate(ctx context.Context, opts ...ai.GenerateOption) (*ai.ModelResponse, error) {
	return genkit.Generate(ctx, g.G, opts...)
}

// generationConfig builds the provider sampling config. No custom stop
// sequences are set.
func (p *Pipeline) generationConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(p.temperature)),
		MaxOutputTokens: int32(p.maxTokens),
	}
}
