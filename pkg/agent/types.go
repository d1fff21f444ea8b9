// Package agent runs the perceive-think-act loop against a device: it
// captures the screen, prompts a vision model, parses the reply into an
// action, and dispatches it.
package agent

import (
	"context"
	"time"

	"github.com/luthfi/sentuh/pkg/parser"
)

// ModelConfig locates and tunes the model endpoint behind an agent.
type ModelConfig struct {
	Provider         string  `json:"provider,omitempty"` // "openai" (any compatible endpoint) or "anthropic"
	BaseURL          string  `json:"base_url,omitempty"`
	APIKey           string  `json:"api_key"`
	ModelName        string  `json:"model_name"`
	MaxTokens        int     `json:"max_tokens,omitempty"`
	Temperature      float64 `json:"temperature,omitempty"`
	TopP             float64 `json:"top_p,omitempty"`
	FrequencyPenalty float64 `json:"frequency_penalty,omitempty"`
}

// Config configures one device agent.
type Config struct {
	AgentType    string      `json:"agent_type"`
	DeviceID     string      `json:"device_id"`
	Lang         string      `json:"lang,omitempty"`
	MaxSteps     int         `json:"max_steps,omitempty"`
	HistoryN     int         `json:"history_n,omitempty"`
	SystemPrompt string      `json:"system_prompt,omitempty"`
	Verbose      bool        `json:"verbose,omitempty"`
	Model        ModelConfig `json:"model"`
}

// DefaultConfig returns the baseline agent configuration.
func DefaultConfig() Config {
	return Config{
		Lang:     "en",
		MaxSteps: 25,
		HistoryN: 4,
	}
}

// StepResult is the outcome of one agent step.
type StepResult struct {
	Step        int           `json:"step"`
	Thinking    string        `json:"thinking,omitempty"`
	RawResponse string        `json:"raw_response,omitempty"`
	Action      parser.Action `json:"action"`
	Finished    bool          `json:"finished"`
	Message     string        `json:"message,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// RunResult summarizes a completed task run.
type RunResult struct {
	TaskID  string `json:"task_id"`
	Steps   int    `json:"steps"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// TakeoverFunc is invoked when the model asks a human to take over the
// device (logins, captchas, payment confirmations). Returning an error
// aborts the run.
type TakeoverFunc func(ctx context.Context, deviceID, message string) error
