package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/luthfi/sentuh/internal/observability"
)

// AnthropicProvider implements ModelProvider for Anthropic Claude.
type AnthropicProvider struct {
	client    anthropic.Client
	model     string
	maxTokens int
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(cfg ModelConfig) *AnthropicProvider {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &AnthropicProvider{
		client:    anthropic.NewClient(opts...),
		model:     cfg.ModelName,
		maxTokens: maxTokens,
	}
}

// Provider returns the provider name.
func (p *AnthropicProvider) Provider() string {
	return "anthropic"
}

// Call makes an API call to Anthropic Claude.
func (p *AnthropicProvider) Call(ctx context.Context, request ModelRequest) (*ModelResponse, error) {
	anthropicMessages := []anthropic.MessageParam{}

	for _, msg := range request.Messages {
		switch msg.Role {
		case "user":
			blocks := []anthropic.ContentBlockParamUnion{}
			for _, img := range msg.Images {
				blocks = append(blocks, anthropic.NewImageBlockBase64("image/png", img))
			}
			blocks = append(blocks, anthropic.NewTextBlock(msg.Text))
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(blocks...))
		case "assistant":
			anthropicMessages = append(anthropicMessages, anthropic.MessageParam{
				Role: anthropic.MessageParamRoleAssistant,
				Content: []anthropic.ContentBlockParamUnion{
					anthropic.NewTextBlock(msg.Text),
				},
			})
		}
	}

	maxTokens := request.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.maxTokens
	}
	reqParams := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		Messages:  anthropicMessages,
		MaxTokens: int64(maxTokens),
	}
	if request.System != "" {
		reqParams.System = []anthropic.TextBlockParam{{Text: request.System}}
	}
	if request.Temperature > 0 {
		reqParams.Temperature = anthropic.Float(request.Temperature)
	}
	if request.TopP > 0 {
		reqParams.TopP = anthropic.Float(request.TopP)
	}

	start := time.Now()
	response, err := p.client.Messages.New(ctx, reqParams)
	observability.RecordModelCall("anthropic", time.Since(start), err == nil)
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}

	content := ""
	for _, block := range response.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	return &ModelResponse{
		Content:      content,
		InputTokens:  int(response.Usage.InputTokens),
		OutputTokens: int(response.Usage.OutputTokens),
	}, nil
}
