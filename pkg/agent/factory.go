package agent

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/luthfi/sentuh/pkg/device"
	"github.com/luthfi/sentuh/pkg/parser"
)

// UnknownAgentTypeError reports a request for an unregistered agent type
// and carries the registered ones for the caller's error message.
type UnknownAgentTypeError struct {
	AgentType string
	Known     []string
}

func (e *UnknownAgentTypeError) Error() string {
	return fmt.Sprintf("unknown agent type %q (registered: %s)", e.AgentType, strings.Join(e.Known, ", "))
}

// Builder constructs an agent of one type from validated configuration.
type Builder func(cfg Config, dev device.Device) (Agent, error)

type registration struct {
	builder Builder
	schema  *gojsonschema.Schema
}

// Factory creates agents by type name. New types register a builder and
// an optional JSON schema validated against the configuration before the
// builder runs.
type Factory struct {
	mu      sync.RWMutex
	parsers *parser.Registry
	types   map[string]registration
}

// NewFactory creates a factory with the built-in agent types registered.
func NewFactory() *Factory {
	f := &Factory{
		parsers: parser.NewRegistry(),
		types:   make(map[string]registration),
	}
	for _, name := range []string{"glm", "phone", "mai"} {
		dialect := name
		if err := f.Register(dialect, modelConfigSchema, func(cfg Config, dev device.Device) (Agent, error) {
			p, err := f.parsers.Get(dialect)
			if err != nil {
				return nil, err
			}
			provider, err := NewProvider(cfg.Model)
			if err != nil {
				return nil, err
			}
			return NewDeviceAgent(cfg, dev, provider, p), nil
		}); err != nil {
			panic(err)
		}
	}
	return f
}

// modelConfigSchema is shared by the built-in types: they all need an
// endpoint and differ only in dialect.
const modelConfigSchema = `{
	"type": "object",
	"properties": {
		"model": {
			"type": "object",
			"properties": {
				"provider": {"enum": ["", "openai", "anthropic"]},
				"base_url": {"type": "string"},
				"api_key": {"type": "string", "minLength": 1},
				"model_name": {"type": "string", "minLength": 1},
				"max_tokens": {"type": "integer", "minimum": 0},
				"temperature": {"type": "number", "minimum": 0, "maximum": 2},
				"top_p": {"type": "number", "minimum": 0, "maximum": 1}
			},
			"required": ["api_key", "model_name"]
		},
		"max_steps": {"type": "integer", "minimum": 0},
		"history_n": {"type": "integer", "minimum": 0}
	},
	"required": ["model"]
}`

// Register adds an agent type. An empty schema skips config validation.
func (f *Factory) Register(agentType, schemaJSON string, builder Builder) error {
	var schema *gojsonschema.Schema
	if schemaJSON != "" {
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
		if err != nil {
			return fmt.Errorf("invalid schema for agent type %s: %w", agentType, err)
		}
		schema = compiled
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.types[agentType] = registration{builder: builder, schema: schema}
	return nil
}

// IsRegistered reports whether an agent type exists.
func (f *Factory) IsRegistered(agentType string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.types[agentType]
	return ok
}

// List returns the registered agent types in sorted order.
func (f *Factory) List() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.types))
	for name := range f.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Parsers exposes the dialect registry backing the built-in types.
func (f *Factory) Parsers() *parser.Registry {
	return f.parsers
}

// Create validates the configuration and builds an agent of the given
// type bound to the given device.
func (f *Factory) Create(agentType string, cfg Config, dev device.Device) (Agent, error) {
	f.mu.RLock()
	reg, ok := f.types[agentType]
	f.mu.RUnlock()
	if !ok {
		return nil, &UnknownAgentTypeError{AgentType: agentType, Known: f.List()}
	}

	if reg.schema != nil {
		result, err := reg.schema.Validate(gojsonschema.NewGoLoader(cfg))
		if err != nil {
			return nil, fmt.Errorf("failed to validate agent config: %w", err)
		}
		if !result.Valid() {
			msgs := make([]string, 0, len(result.Errors()))
			for _, desc := range result.Errors() {
				msgs = append(msgs, desc.String())
			}
			return nil, fmt.Errorf("invalid config for agent type %s: %s", agentType, strings.Join(msgs, "; "))
		}
	}

	cfg.AgentType = agentType
	return reg.builder(cfg, dev)
}
