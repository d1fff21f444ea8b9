package agent

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luthfi/sentuh/pkg/device"
	"github.com/luthfi/sentuh/pkg/parser"
)

type fakeDevice struct {
	mu      sync.Mutex
	actions []string
	width   int
	height  int
	app     string
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{width: 1080, height: 2400, app: "com.android.launcher"}
}

func (d *fakeDevice) record(s string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.actions = append(d.actions, s)
}

func (d *fakeDevice) recorded() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.actions))
	copy(out, d.actions)
	return out
}

func (d *fakeDevice) Screenshot(ctx context.Context) (device.Screenshot, error) {
	return device.Screenshot{Width: d.width, Height: d.height, Base64Data: "frame"}, nil
}

func (d *fakeDevice) CurrentApp(ctx context.Context) (string, error) { return d.app, nil }

func (d *fakeDevice) Tap(ctx context.Context, x, y int) error {
	d.record(fmt.Sprintf("tap %d,%d", x, y))
	return nil
}

func (d *fakeDevice) LongPress(ctx context.Context, x, y int) error {
	d.record(fmt.Sprintf("longpress %d,%d", x, y))
	return nil
}

func (d *fakeDevice) Swipe(ctx context.Context, x1, y1, x2, y2 int) error {
	d.record(fmt.Sprintf("swipe %d,%d->%d,%d", x1, y1, x2, y2))
	return nil
}

func (d *fakeDevice) TypeText(ctx context.Context, text string) error {
	d.record("type " + text)
	return nil
}

func (d *fakeDevice) Back(ctx context.Context) error {
	d.record("back")
	return nil
}

func (d *fakeDevice) Launch(ctx context.Context, app string) error {
	d.record("launch " + app)
	return nil
}

type scriptedProvider struct {
	mu      sync.Mutex
	replies []string
	calls   []ModelRequest
}

func (p *scriptedProvider) Provider() string { return "scripted" }

func (p *scriptedProvider) Call(ctx context.Context, request ModelRequest) (*ModelResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, request)
	if len(p.replies) == 0 {
		return nil, fmt.Errorf("no scripted reply left")
	}
	reply := p.replies[0]
	p.replies = p.replies[1:]
	return &ModelResponse{Content: reply}, nil
}

func newTestAgent(t *testing.T, dev *fakeDevice, replies ...string) *DeviceAgent {
	t.Helper()
	cfg := DefaultConfig()
	cfg.AgentType = "glm"
	cfg.DeviceID = "emulator-5554"
	return NewDeviceAgent(cfg, dev, &scriptedProvider{replies: replies}, parser.NewGLMParser())
}

func TestDeviceAgentStep(t *testing.T) {
	t.Run("should dispatch a tap scaled to screen pixels", func(t *testing.T) {
		dev := newFakeDevice()
		a := newTestAgent(t, dev, `Tapping the center.
do(action="Tap", coordinate=[500, 500])`)
		a.Begin("tap the center")

		result, err := a.Step(t.Context())
		require.NoError(t, err)

		assert.Equal(t, 0, result.Step)
		assert.False(t, result.Finished)
		// unit 0.5 on a 1080x2400 screen
		assert.Equal(t, []string{"tap 540,1200"}, dev.recorded())
		assert.Equal(t, 1, a.StepCount())
	})

	t.Run("should finish without touching the device", func(t *testing.T) {
		dev := newFakeDevice()
		a := newTestAgent(t, dev, `finish(message="All done")`)
		a.Begin("finish up")

		result, err := a.Step(t.Context())
		require.NoError(t, err)

		assert.True(t, result.Finished)
		assert.Equal(t, "All done", result.Message)
		assert.Empty(t, dev.recorded())
	})

	t.Run("should refuse to step before begin", func(t *testing.T) {
		a := newTestAgent(t, newFakeDevice())

		_, err := a.Step(t.Context())
		assert.ErrorContains(t, err, "no active task")
	})

	t.Run("should refuse to step after finish", func(t *testing.T) {
		a := newTestAgent(t, newFakeDevice(), `finish(message="done")`)
		a.Begin("goal")

		_, err := a.Step(t.Context())
		require.NoError(t, err)

		_, err = a.Step(t.Context())
		assert.ErrorContains(t, err, "already finished")
	})

	t.Run("should surface parse failures", func(t *testing.T) {
		a := newTestAgent(t, newFakeDevice(), "I refuse to answer in the expected format.")
		a.Begin("goal")

		_, err := a.Step(t.Context())
		var perr *parser.ParseError
		assert.ErrorAs(t, err, &perr)
	})

	t.Run("should include bounded history in the prompt", func(t *testing.T) {
		dev := newFakeDevice()
		provider := &scriptedProvider{replies: []string{
			"step one\ndo(action=\"Back\")",
			"step two\ndo(action=\"Back\")",
			"step three\ndo(action=\"Back\")",
			"step four\ndo(action=\"Back\")",
		}}
		cfg := DefaultConfig()
		cfg.AgentType = "glm"
		cfg.HistoryN = 2
		a := NewDeviceAgent(cfg, dev, provider, parser.NewGLMParser())
		a.Begin("go back a lot")

		for i := 0; i < 4; i++ {
			_, err := a.Step(t.Context())
			require.NoError(t, err)
		}

		last := provider.calls[3].Messages[0].Text
		assert.NotContains(t, last, "step one")
		assert.Contains(t, last, "step two")
		assert.Contains(t, last, "step three")
	})

	t.Run("should attach the current screenshot", func(t *testing.T) {
		provider := &scriptedProvider{replies: []string{`do(action="Back")`}}
		cfg := DefaultConfig()
		cfg.AgentType = "glm"
		a := NewDeviceAgent(cfg, newFakeDevice(), provider, parser.NewGLMParser())
		a.Begin("goal")

		_, err := a.Step(t.Context())
		require.NoError(t, err)

		require.Len(t, provider.calls, 1)
		assert.Equal(t, []string{"frame"}, provider.calls[0].Messages[0].Images)
	})

	t.Run("should invoke the takeover handler", func(t *testing.T) {
		a := newTestAgent(t, newFakeDevice(), `do(action="Takeover", message="please log in")`)
		var gotDevice, gotMessage string
		a.SetTakeover(func(ctx context.Context, deviceID, message string) error {
			gotDevice, gotMessage = deviceID, message
			return nil
		})
		a.Begin("buy something")

		_, err := a.Step(t.Context())
		require.NoError(t, err)

		assert.Equal(t, "emulator-5554", gotDevice)
		assert.Equal(t, "please log in", gotMessage)
	})

	t.Run("should fail takeover without a handler", func(t *testing.T) {
		a := newTestAgent(t, newFakeDevice(), `do(action="Takeover", message="help")`)
		a.Begin("goal")

		_, err := a.Step(t.Context())
		assert.ErrorContains(t, err, "takeover")
	})

	t.Run("should reject unsupported actions", func(t *testing.T) {
		a := newTestAgent(t, newFakeDevice(), `do(action="Teleport", coordinate=[1, 2])`)
		a.Begin("goal")

		_, err := a.Step(t.Context())
		assert.ErrorContains(t, err, "unsupported action")
	})
}

func TestDeviceAgentRun(t *testing.T) {
	t.Run("should run until finish", func(t *testing.T) {
		dev := newFakeDevice()
		a := newTestAgent(t, dev,
			`open the app
do(action="Launch", app="Settings")`,
			`tap wifi
do(action="Tap", coordinate=[100, 200])`,
			`finish(message="Wifi enabled")`,
		)

		result, err := a.Run(t.Context(), "enable wifi")
		require.NoError(t, err)

		assert.True(t, result.Success)
		assert.Equal(t, 3, result.Steps)
		assert.Equal(t, "Wifi enabled", result.Message)
		assert.Equal(t, []string{"launch Settings", "tap 108,480"}, dev.recorded())
	})

	t.Run("should stop at the step limit", func(t *testing.T) {
		replies := make([]string, 5)
		for i := range replies {
			replies[i] = `do(action="Back")`
		}
		cfg := DefaultConfig()
		cfg.AgentType = "glm"
		cfg.MaxSteps = 3
		a := NewDeviceAgent(cfg, newFakeDevice(), &scriptedProvider{replies: replies}, parser.NewGLMParser())

		result, err := a.Run(t.Context(), "never finishes")
		require.NoError(t, err)

		assert.False(t, result.Success)
		assert.Equal(t, 3, result.Steps)
	})

	t.Run("should honor context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		a := newTestAgent(t, newFakeDevice(), `do(action="Back")`)
		_, err := a.Run(ctx, "goal")
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("should start a fresh trajectory per run", func(t *testing.T) {
		a := newTestAgent(t, newFakeDevice(),
			`finish(message="one")`,
			`finish(message="two")`,
		)

		first, err := a.Run(t.Context(), "task one")
		require.NoError(t, err)
		second, err := a.Run(t.Context(), "task two")
		require.NoError(t, err)

		assert.NotEqual(t, first.TaskID, second.TaskID)
		assert.Equal(t, 1, a.StepCount())
	})
}
