package agent

import (
	"context"
	"fmt"
)

// ModelProvider is an interface for vision-language model endpoints.
type ModelProvider interface {
	// Call sends one multimodal request and returns the full reply text.
	Call(ctx context.Context, request ModelRequest) (*ModelResponse, error)

	// Provider returns the provider name.
	Provider() string
}

// ModelMessage is one conversation turn. Images are base64-encoded PNG
// frames attached before the text.
type ModelMessage struct {
	Role   string
	Text   string
	Images []string
}

// ModelRequest contains the request parameters for a model call.
type ModelRequest struct {
	System           string
	Messages         []ModelMessage
	MaxTokens        int
	Temperature      float64
	TopP             float64
	FrequencyPenalty float64
}

// ModelResponse contains the reply from the model.
type ModelResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
}

// NewProvider creates a provider from model configuration. An empty
// provider name defaults to the OpenAI-compatible client, which covers
// every self-hosted endpoint that speaks that wire format.
func NewProvider(cfg ModelConfig) (ModelProvider, error) {
	switch cfg.Provider {
	case "", "openai":
		return NewOpenAIProvider(cfg), nil
	case "anthropic":
		return NewAnthropicProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}
