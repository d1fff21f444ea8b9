package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validator validates configuration values.
type Validator struct{}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{}
}

var validLogLevels = []string{"trace", "debug", "info", "warn", "error", "fatal"}

var validAgentTypes = []string{"glm", "phone", "mai"}

// ValidateLogLevel validates a zerolog level name.
func (v *Validator) ValidateLogLevel(level string) error {
	for _, known := range validLogLevels {
		if level == known {
			return nil
		}
	}
	return fmt.Errorf("invalid log level %q (one of: %s)", level, strings.Join(validLogLevels, ", "))
}

// ValidateAgentType validates a built-in agent type name.
func (v *Validator) ValidateAgentType(agentType string) error {
	for _, known := range validAgentTypes {
		if agentType == known {
			return nil
		}
	}
	return fmt.Errorf("invalid agent type %q (one of: %s)", agentType, strings.Join(validAgentTypes, ", "))
}

// ValidateBaseURL validates a model endpoint URL.
func (v *Validator) ValidateBaseURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("base_url has no host")
	}
	return nil
}

// Validate checks the whole configuration and returns the first problem
// found.
func (v *Validator) Validate(cfg *Config) error {
	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		return err
	}
	if err := v.ValidateAgentType(cfg.Agent.Type); err != nil {
		return err
	}
	if cfg.Agent.MaxSteps <= 0 {
		return fmt.Errorf("agent max_steps must be positive, got %d", cfg.Agent.MaxSteps)
	}
	if cfg.Agent.HistoryN < 0 {
		return fmt.Errorf("agent history_n cannot be negative, got %d", cfg.Agent.HistoryN)
	}

	for name, model := range cfg.Models {
		if model.ModelName == "" {
			return fmt.Errorf("model %q has no model_name", name)
		}
		if model.APIKey == "" {
			return fmt.Errorf("model %q has no api_key", name)
		}
		if err := v.ValidateBaseURL(model.BaseURL); err != nil {
			return fmt.Errorf("model %q: %w", name, err)
		}
		switch model.Provider {
		case "", "openai", "anthropic":
		default:
			return fmt.Errorf("model %q has unsupported provider %q", name, model.Provider)
		}
	}

	if cfg.Agent.DefaultModel != "" {
		if _, ok := cfg.Models[cfg.Agent.DefaultModel]; !ok {
			return fmt.Errorf("default_model %q is not defined in models", cfg.Agent.DefaultModel)
		}
	}

	if cfg.Janitor.Enabled && cfg.Janitor.Schedule == "" {
		return fmt.Errorf("janitor is enabled but has no schedule")
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		return fmt.Errorf("metrics are enabled but no addr is set")
	}
	return nil
}
