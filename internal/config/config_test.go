package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luthfi/sentuh/pkg/agent"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "glm", cfg.Agent.Type)
	assert.Equal(t, 25, cfg.Agent.MaxSteps)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Redaction)
	assert.True(t, cfg.Janitor.Enabled)
}

func TestResolveModel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Agent.DefaultModel = "local"
	cfg.Models = map[string]agent.ModelConfig{
		"local":  {ModelName: "autoglm-phone", APIKey: "k", BaseURL: "http://localhost:8000/v1"},
		"cloud":  {ModelName: "claude-sonnet-4-5", APIKey: "k", Provider: "anthropic"},
	}

	t.Run("should resolve by name", func(t *testing.T) {
		m, ok := cfg.ResolveModel("cloud")
		require.True(t, ok)
		assert.Equal(t, "anthropic", m.Provider)
	})

	t.Run("should fall back to the default model", func(t *testing.T) {
		m, ok := cfg.ResolveModel("")
		require.True(t, ok)
		assert.Equal(t, "autoglm-phone", m.ModelName)
	})

	t.Run("should miss unknown names", func(t *testing.T) {
		_, ok := cfg.ResolveModel("nope")
		assert.False(t, ok)
	})
}

func TestLoader(t *testing.T) {
	t.Run("should return defaults when file is missing", func(t *testing.T) {
		loader := NewLoader(filepath.Join(t.TempDir(), "sentuh.json"))

		cfg, err := loader.Load()
		require.NoError(t, err)
		assert.Equal(t, "glm", cfg.Agent.Type)
		assert.NotEmpty(t, cfg.Logging.File)
		assert.NotEmpty(t, cfg.Archive.Path)
	})

	t.Run("should load values from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sentuh.json")
		require.NoError(t, os.WriteFile(path, []byte(`{
			"agent": {"type": "mai", "max_steps": 10},
			"models": {"local": {"model_name": "mai-1", "api_key": "k"}}
		}`), 0644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "mai", cfg.Agent.Type)
		assert.Equal(t, 10, cfg.Agent.MaxSteps)
		assert.Equal(t, "mai-1", cfg.Models["local"].ModelName)
		// untouched defaults survive
		assert.Equal(t, "info", cfg.Logging.Level)
	})

	t.Run("should fail on malformed json", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sentuh.json")
		require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0644))

		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("should round trip through save", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sentuh.json")
		loader := NewLoader(path)

		cfg := DefaultConfig()
		cfg.DataDir = t.TempDir()
		cfg.Agent.Type = "phone"
		require.NoError(t, loader.Save(cfg))

		loaded, err := loader.Load()
		require.NoError(t, err)
		assert.Equal(t, "phone", loaded.Agent.Type)
	})
}

func TestValidator(t *testing.T) {
	v := NewValidator()

	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Models = map[string]agent.ModelConfig{
			"local": {ModelName: "autoglm-phone", APIKey: "k", BaseURL: "http://localhost:8000/v1"},
		}
		cfg.Agent.DefaultModel = "local"
		return cfg
	}

	t.Run("should accept a valid config", func(t *testing.T) {
		assert.NoError(t, v.Validate(valid()))
	})

	t.Run("should reject unknown log level", func(t *testing.T) {
		cfg := valid()
		cfg.Logging.Level = "loud"
		assert.ErrorContains(t, v.Validate(cfg), "log level")
	})

	t.Run("should reject unknown agent type", func(t *testing.T) {
		cfg := valid()
		cfg.Agent.Type = "gpt9"
		assert.ErrorContains(t, v.Validate(cfg), "agent type")
	})

	t.Run("should reject non-positive max steps", func(t *testing.T) {
		cfg := valid()
		cfg.Agent.MaxSteps = 0
		assert.ErrorContains(t, v.Validate(cfg), "max_steps")
	})

	t.Run("should reject model without api key", func(t *testing.T) {
		cfg := valid()
		m := cfg.Models["local"]
		m.APIKey = ""
		cfg.Models["local"] = m
		assert.ErrorContains(t, v.Validate(cfg), "api_key")
	})

	t.Run("should reject bad base url", func(t *testing.T) {
		cfg := valid()
		m := cfg.Models["local"]
		m.BaseURL = "ftp://example.com"
		cfg.Models["local"] = m
		assert.ErrorContains(t, v.Validate(cfg), "base_url")
	})

	t.Run("should reject dangling default model", func(t *testing.T) {
		cfg := valid()
		cfg.Agent.DefaultModel = "missing"
		assert.ErrorContains(t, v.Validate(cfg), "default_model")
	})

	t.Run("should reject unsupported provider", func(t *testing.T) {
		cfg := valid()
		m := cfg.Models["local"]
		m.Provider = "carrier-pigeon"
		cfg.Models["local"] = m
		assert.ErrorContains(t, v.Validate(cfg), "provider")
	})
}
