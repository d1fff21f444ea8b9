package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luthfi/sentuh/pkg/device"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.DeviceID = "emulator-5554"
	cfg.Model = ModelConfig{
		APIKey:    "test-key",
		ModelName: "autoglm-phone",
		BaseURL:   "http://localhost:8000/v1",
	}
	return cfg
}

func TestFactory(t *testing.T) {
	f := NewFactory()

	t.Run("should list built-in types", func(t *testing.T) {
		assert.Equal(t, []string{"glm", "mai", "phone"}, f.List())
		assert.True(t, f.IsRegistered("glm"))
		assert.False(t, f.IsRegistered("gpt9"))
	})

	t.Run("should create agents of each built-in type", func(t *testing.T) {
		for _, agentType := range f.List() {
			a, err := f.Create(agentType, validConfig(), newFakeDevice())
			require.NoError(t, err, agentType)
			assert.Equal(t, agentType, a.AgentType())
		}
	})

	t.Run("should fail on unknown type with known list", func(t *testing.T) {
		_, err := f.Create("gpt9", validConfig(), newFakeDevice())

		var unknownErr *UnknownAgentTypeError
		require.ErrorAs(t, err, &unknownErr)
		assert.Equal(t, "gpt9", unknownErr.AgentType)
		assert.Equal(t, []string{"glm", "mai", "phone"}, unknownErr.Known)
	})

	t.Run("should reject config without api key", func(t *testing.T) {
		cfg := validConfig()
		cfg.Model.APIKey = ""

		_, err := f.Create("glm", cfg, newFakeDevice())
		assert.ErrorContains(t, err, "invalid config")
	})

	t.Run("should reject config without model name", func(t *testing.T) {
		cfg := validConfig()
		cfg.Model.ModelName = ""

		_, err := f.Create("phone", cfg, newFakeDevice())
		assert.ErrorContains(t, err, "invalid config")
	})

	t.Run("should reject unknown provider", func(t *testing.T) {
		cfg := validConfig()
		cfg.Model.Provider = "carrier-pigeon"

		_, err := f.Create("glm", cfg, newFakeDevice())
		assert.Error(t, err)
	})

	t.Run("should allow registering custom types", func(t *testing.T) {
		f := NewFactory()
		require.NoError(t, f.Register("custom", "", func(cfg Config, dev device.Device) (Agent, error) {
			p, err := f.Parsers().Get("glm")
			if err != nil {
				return nil, err
			}
			return NewDeviceAgent(cfg, dev, &scriptedProvider{}, p), nil
		}))

		assert.True(t, f.IsRegistered("custom"))
	})

	t.Run("should reject invalid schema json", func(t *testing.T) {
		f := NewFactory()
		err := f.Register("broken", `{"type":`, func(cfg Config, dev device.Device) (Agent, error) {
			return nil, nil
		})
		assert.Error(t, err)
	})
}
