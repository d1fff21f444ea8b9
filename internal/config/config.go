// Package config defines the daemon configuration and its loading,
// validation, and hot reload.
package config

import (
	"time"

	"github.com/luthfi/sentuh/pkg/agent"
)

// Config is the main sentuh configuration.
type Config struct {
	// Data directory for logs, the trajectory archive, and audit output
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// Agent defaults applied when a session init omits them
	Agent AgentConfig `json:"agent" mapstructure:"agent"`

	// Named model endpoints; sessions reference them by key
	Models map[string]agent.ModelConfig `json:"models" mapstructure:"models"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Trajectory archive
	Archive ArchiveConfig `json:"archive" mapstructure:"archive"`

	// Idle session janitor
	Janitor JanitorConfig `json:"janitor" mapstructure:"janitor"`

	// Prometheus endpoint
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// OpenTelemetry tracing
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`
}

// AgentConfig holds default agent settings.
type AgentConfig struct {
	Type         string `json:"type" mapstructure:"type"` // glm, phone, mai
	DefaultModel string `json:"default_model" mapstructure:"default_model"`
	MaxSteps     int    `json:"max_steps" mapstructure:"max_steps"`
	HistoryN     int    `json:"history_n" mapstructure:"history_n"`
	Lang         string `json:"lang" mapstructure:"lang"`
	Verbose      bool   `json:"verbose" mapstructure:"verbose"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
	AuditFile string `json:"audit_file" mapstructure:"audit_file"`
}

// ArchiveConfig holds trajectory archive settings.
type ArchiveConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" mapstructure:"path"`
}

// JanitorConfig holds idle-session sweep settings.
type JanitorConfig struct {
	Enabled  bool          `json:"enabled" mapstructure:"enabled"`
	Schedule string        `json:"schedule" mapstructure:"schedule"`
	IdleAge  time.Duration `json:"idle_age" mapstructure:"idle_age"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled" mapstructure:"enabled"`
	ServiceName string `json:"service_name" mapstructure:"service_name"`
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			Type:     "glm",
			MaxSteps: 25,
			HistoryN: 4,
			Lang:     "en",
		},
		Models: map[string]agent.ModelConfig{},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Redaction: true,
		},
		Archive: ArchiveConfig{
			Enabled: true,
		},
		Janitor: JanitorConfig{
			Enabled:  true,
			Schedule: "@every 10m",
			IdleAge:  2 * time.Hour,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9464",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "sentuh",
		},
	}
}

// ResolveModel returns the named model endpoint, falling back to the
// agent default when name is empty.
func (c *Config) ResolveModel(name string) (agent.ModelConfig, bool) {
	if name == "" {
		name = c.Agent.DefaultModel
	}
	m, ok := c.Models[name]
	return m, ok
}
