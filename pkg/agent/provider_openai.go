package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/luthfi/sentuh/internal/observability"
)

// OpenAIProvider implements ModelProvider for OpenAI-compatible
// endpoints, including self-hosted servers reached via base_url.
type OpenAIProvider struct {
	client openai.Client
	model  string
}

// NewOpenAIProvider creates a new OpenAI-compatible provider.
func NewOpenAIProvider(cfg ModelConfig) *OpenAIProvider {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIProvider{
		client: openai.NewClient(opts...),
		model:  cfg.ModelName,
	}
}

// Provider returns the provider name.
func (p *OpenAIProvider) Provider() string {
	return "openai"
}

// Call makes an API call to the endpoint.
func (p *OpenAIProvider) Call(ctx context.Context, request ModelRequest) (*ModelResponse, error) {
	messages := []openai.ChatCompletionMessageParamUnion{}

	if request.System != "" {
		messages = append(messages, openai.SystemMessage(request.System))
	}

	for _, msg := range request.Messages {
		switch msg.Role {
		case "user":
			if len(msg.Images) == 0 {
				messages = append(messages, openai.UserMessage(msg.Text))
				continue
			}
			parts := []openai.ChatCompletionContentPartUnionParam{}
			for _, img := range msg.Images {
				parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: "data:image/png;base64," + img,
				}))
			}
			parts = append(parts, openai.TextContentPart(msg.Text))
			messages = append(messages, openai.UserMessage(parts))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(msg.Text))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(p.model),
		Messages: messages,
	}
	if request.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(request.MaxTokens))
	}
	if request.Temperature > 0 {
		params.Temperature = openai.Float(request.Temperature)
	}
	if request.TopP > 0 {
		params.TopP = openai.Float(request.TopP)
	}
	if request.FrequencyPenalty != 0 {
		params.FrequencyPenalty = openai.Float(request.FrequencyPenalty)
	}

	start := time.Now()
	response, err := p.client.Chat.Completions.New(ctx, params)
	observability.RecordModelCall("openai", time.Since(start), err == nil)
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no response choices returned")
	}

	return &ModelResponse{
		Content:      response.Choices[0].Message.Content,
		InputTokens:  int(response.Usage.PromptTokens),
		OutputTokens: int(response.Usage.CompletionTokens),
	}, nil
}
