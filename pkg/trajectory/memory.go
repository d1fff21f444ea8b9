// Package trajectory records what an agent saw, thought, and did during
// one task, and serves bounded history windows back to prompt builders.
package trajectory

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Step is one completed agent step. Prediction holds the raw model
// output the action was parsed from; Conclusion is set on finishing
// steps only.
type Step struct {
	Index      int       `json:"index"`
	Screenshot string    `json:"screenshot,omitempty"`
	Thinking   string    `json:"thinking,omitempty"`
	Prediction string    `json:"prediction,omitempty"`
	ActionJSON string    `json:"action_json,omitempty"`
	Conclusion string    `json:"conclusion,omitempty"`
	App        string    `json:"app,omitempty"`
	AgentType  string    `json:"agent_type,omitempty"`
	ModelName  string    `json:"model_name,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Memory is the per-task trajectory. It is safe for concurrent use; the
// streaming path reads it while the agent loop appends.
type Memory struct {
	mu       sync.RWMutex
	taskID   string
	taskGoal string
	steps    []Step
}

// NewMemory starts an empty trajectory for the given goal.
func NewMemory(taskGoal string) *Memory {
	return &Memory{
		taskID:   uuid.NewString(),
		taskGoal: taskGoal,
	}
}

// TaskID returns the unique identifier assigned to this task.
func (m *Memory) TaskID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.taskID
}

// TaskGoal returns the natural-language goal.
func (m *Memory) TaskGoal() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.taskGoal
}

// AddStep appends a completed step.
func (m *Memory) AddStep(step Step) {
	m.mu.Lock()
	defer m.mu.Unlock()
	step.Index = len(m.steps)
	if step.Timestamp.IsZero() {
		step.Timestamp = time.Now()
	}
	m.steps = append(m.steps, step)
}

// Len returns the number of recorded steps.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.steps)
}

// Steps returns a copy of all recorded steps in order.
func (m *Memory) Steps() []Step {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Step, len(m.steps))
	copy(out, m.steps)
	return out
}

// HistoryImages returns the screenshots of the last n steps, oldest
// first. Fewer recorded steps than n yields all of them.
func (m *Memory) HistoryImages(n int) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	window := m.window(n)
	out := make([]string, 0, len(window))
	for _, s := range window {
		out = append(out, s.Screenshot)
	}
	return out
}

// HistoryThoughts returns the thinking text of the last n steps, oldest
// first.
func (m *Memory) HistoryThoughts(n int) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	window := m.window(n)
	out := make([]string, 0, len(window))
	for _, s := range window {
		out = append(out, s.Thinking)
	}
	return out
}

// window returns the last n steps; callers hold the lock.
func (m *Memory) window(n int) []Step {
	if n <= 0 {
		return nil
	}
	if n > len(m.steps) {
		n = len(m.steps)
	}
	return m.steps[len(m.steps)-n:]
}

// Reset discards all steps and assigns a fresh task identity.
func (m *Memory) Reset(taskGoal string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.taskID = uuid.NewString()
	m.taskGoal = taskGoal
	m.steps = nil
}
