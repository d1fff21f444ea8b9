package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/luthfi/sentuh/internal/observability"
	"github.com/luthfi/sentuh/pkg/device"
	"github.com/luthfi/sentuh/pkg/parser"
	"github.com/luthfi/sentuh/pkg/trajectory"
)

// Agent is one task-scoped controller bound to a device.
type Agent interface {
	// AgentType returns the dialect this agent speaks.
	AgentType() string

	// Begin starts a new task, discarding any previous trajectory.
	Begin(task string)

	// Step performs one perceive-think-act cycle.
	Step(ctx context.Context) (*StepResult, error)

	// Run executes steps until the task finishes or MaxSteps is reached.
	Run(ctx context.Context, task string) (*RunResult, error)

	// StepCount returns the number of completed steps in the current task.
	StepCount() int

	// Reset clears all task state.
	Reset()

	// Trajectory exposes the recorded task history.
	Trajectory() *trajectory.Memory
}

// DeviceAgent is the standard Agent implementation: screenshot in, one
// parsed action out, dispatched to the device.
type DeviceAgent struct {
	cfg      Config
	device   device.Device
	provider ModelProvider
	parser   parser.ActionParser
	memory   *trajectory.Memory
	takeover TakeoverFunc

	mu       sync.Mutex
	goal     string
	finished bool

	log zerolog.Logger
}

// NewDeviceAgent creates an agent over the given device and model.
func NewDeviceAgent(cfg Config, dev device.Device, provider ModelProvider, p parser.ActionParser) *DeviceAgent {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultConfig().MaxSteps
	}
	if cfg.HistoryN <= 0 {
		cfg.HistoryN = DefaultConfig().HistoryN
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt(cfg.AgentType)
	}
	return &DeviceAgent{
		cfg:      cfg,
		device:   dev,
		provider: provider,
		parser:   p,
		memory:   trajectory.NewMemory(""),
		log: log.With().
			Str("device_id", cfg.DeviceID).
			Str("agent_type", cfg.AgentType).
			Logger(),
	}
}

// SetTakeover installs the human-takeover callback.
func (a *DeviceAgent) SetTakeover(fn TakeoverFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.takeover = fn
}

// AgentType returns the dialect this agent speaks.
func (a *DeviceAgent) AgentType() string {
	return a.cfg.AgentType
}

// Begin starts a new task, discarding any previous trajectory.
func (a *DeviceAgent) Begin(task string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.goal = task
	a.finished = false
	a.memory.Reset(task)
	a.log.Info().Str("task_id", a.memory.TaskID()).Str("goal", task).Msg("task started")
}

// StepCount returns the number of completed steps in the current task.
func (a *DeviceAgent) StepCount() int {
	return a.memory.Len()
}

// Trajectory exposes the recorded task history.
func (a *DeviceAgent) Trajectory() *trajectory.Memory {
	return a.memory
}

// Reset clears all task state.
func (a *DeviceAgent) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.goal = ""
	a.finished = false
	a.memory.Reset("")
}

// Step performs one perceive-think-act cycle.
func (a *DeviceAgent) Step(ctx context.Context) (*StepResult, error) {
	a.mu.Lock()
	goal, finished := a.goal, a.finished
	a.mu.Unlock()

	if goal == "" {
		return nil, fmt.Errorf("no active task: call Begin first")
	}
	if finished {
		return nil, fmt.Errorf("task already finished")
	}
	if a.memory.Len() >= a.cfg.MaxSteps {
		return nil, fmt.Errorf("step limit reached: %d", a.cfg.MaxSteps)
	}

	start := time.Now()
	result, err := a.step(ctx, goal)
	observability.RecordStep(a.cfg.AgentType, time.Since(start), err == nil)
	if err != nil {
		return nil, err
	}
	result.Duration = time.Since(start)

	if result.Finished {
		a.mu.Lock()
		a.finished = true
		a.mu.Unlock()
	}
	return result, nil
}

func (a *DeviceAgent) step(ctx context.Context, goal string) (*StepResult, error) {
	shot, err := a.device.Screenshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}

	// Foreground app is advisory context; drivers that cannot report it
	// just leave it out of the prompt.
	currentApp, err := a.device.CurrentApp(ctx)
	if err != nil {
		currentApp = ""
	}

	prompt := buildStepPrompt(a.cfg, goal, currentApp, a.memory.HistoryThoughts(a.cfg.HistoryN))
	response, err := a.provider.Call(ctx, ModelRequest{
		System:           a.cfg.SystemPrompt,
		Messages:         []ModelMessage{{Role: "user", Text: prompt, Images: []string{shot.Base64Data}}},
		MaxTokens:        a.cfg.Model.MaxTokens,
		Temperature:      a.cfg.Model.Temperature,
		TopP:             a.cfg.Model.TopP,
		FrequencyPenalty: a.cfg.Model.FrequencyPenalty,
	})
	if err != nil {
		return nil, err
	}

	parsed, err := a.parser.ParseWithThinking(response.Content)
	observability.RecordParse(a.parser.Name(), err == nil)
	if err != nil {
		return nil, err
	}

	if a.cfg.Verbose {
		a.log.Debug().
			Int("step", a.memory.Len()).
			Str("thinking", parsed.Thinking).
			Str("action", parsed.Action.Name).
			Msg("step decided")
	}

	if !parsed.Action.IsFinish() {
		if err := a.dispatch(ctx, parsed.Action, shot); err != nil {
			return nil, err
		}
	}

	actionJSON, _ := json.Marshal(parsed.Action)
	step := trajectory.Step{
		Screenshot: shot.Base64Data,
		Thinking:   parsed.Thinking,
		Prediction: response.Content,
		ActionJSON: string(actionJSON),
		App:        currentApp,
		AgentType:  a.cfg.AgentType,
		ModelName:  a.cfg.Model.ModelName,
	}
	if parsed.Action.IsFinish() {
		step.Conclusion = parsed.Action.Message
	}
	a.memory.AddStep(step)

	return &StepResult{
		Step:        a.memory.Len() - 1,
		Thinking:    parsed.Thinking,
		RawResponse: response.Content,
		Action:      parsed.Action,
		Finished:    parsed.Action.IsFinish(),
		Message:     parsed.Action.Message,
	}, nil
}

// Run executes steps until the task finishes or MaxSteps is reached.
func (a *DeviceAgent) Run(ctx context.Context, task string) (*RunResult, error) {
	a.Begin(task)

	for i := 0; i < a.cfg.MaxSteps; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := a.Step(ctx)
		if err != nil {
			return nil, err
		}
		if result.Finished {
			a.log.Info().Int("steps", a.memory.Len()).Msg("task finished")
			return &RunResult{
				TaskID:  a.memory.TaskID(),
				Steps:   a.memory.Len(),
				Success: true,
				Message: result.Message,
			}, nil
		}
	}

	a.log.Warn().Int("max_steps", a.cfg.MaxSteps).Msg("task hit step limit")
	return &RunResult{
		TaskID:  a.memory.TaskID(),
		Steps:   a.memory.Len(),
		Success: false,
		Message: fmt.Sprintf("stopped after %d steps without finishing", a.cfg.MaxSteps),
	}, nil
}

// dispatch executes one parsed action against the device, resolving
// normalized geometry to the screenshot's pixel space.
func (a *DeviceAgent) dispatch(ctx context.Context, action parser.Action, shot device.Screenshot) error {
	status := "ok"
	err := a.dispatchAction(ctx, action, shot)
	if err != nil {
		status = "error"
	}
	observability.RecordActionAudit(ctx, a.cfg.DeviceID, action.Name, status, map[string]interface{}{
		"agent_type": a.cfg.AgentType,
		"step":       a.memory.Len(),
	})
	return err
}

func (a *DeviceAgent) dispatchAction(ctx context.Context, action parser.Action, shot device.Screenshot) error {
	switch action.Name {
	case "Tap":
		x, y, err := a.pixelPoint(action.UnitPoint, shot)
		if err != nil {
			return err
		}
		return a.device.Tap(ctx, x, y)

	case "LongPress":
		x, y, err := a.pixelPoint(action.UnitPoint, shot)
		if err != nil {
			return err
		}
		return a.device.LongPress(ctx, x, y)

	case "Swipe":
		x1, y1, err := a.pixelPoint(action.UnitPoint, shot)
		if err != nil {
			return err
		}
		x2, y2, err := a.pixelPoint(action.UnitEnd, shot)
		if err != nil {
			return fmt.Errorf("swipe missing end point: %w", err)
		}
		return a.device.Swipe(ctx, x1, y1, x2, y2)

	case "Type":
		return a.device.TypeText(ctx, action.Text)

	case "Back":
		return a.device.Back(ctx)

	case "Launch":
		if action.App == "" {
			return fmt.Errorf("launch action missing app name")
		}
		return a.device.Launch(ctx, action.App)

	case "Wait":
		select {
		case <-time.After(time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}

	case "Takeover", "CallUser":
		a.mu.Lock()
		fn := a.takeover
		a.mu.Unlock()
		if fn == nil {
			return fmt.Errorf("model requested human takeover but no handler is installed")
		}
		return fn(ctx, a.cfg.DeviceID, action.Message)

	default:
		return fmt.Errorf("unsupported action: %s", action.Name)
	}
}

func (a *DeviceAgent) pixelPoint(resolve func() (float64, float64, bool), shot device.Screenshot) (int, int, error) {
	ux, uy, ok := resolve()
	if !ok {
		return 0, 0, fmt.Errorf("action missing geometry")
	}
	x := int(math.Round(ux * float64(shot.Width-1)))
	y := int(math.Round(uy * float64(shot.Height-1)))
	return x, y, nil
}
