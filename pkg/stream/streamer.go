// Package stream turns an agent run into an ordered event feed with a
// cooperative abort checked at step boundaries.
package stream

import (
	"context"
	"sync/atomic"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"

	"github.com/luthfi/sentuh/internal/observability"
	"github.com/luthfi/sentuh/pkg/agent"
)

// Event types, in the order a consumer may see them.
const (
	EventStep    = "step"
	EventResult  = "result"
	EventError   = "error"
	EventAborted = "aborted"
)

// Event is one streamed item. Role is always "assistant"; the consumer
// multiplexes streams from several devices and renders them as agent
// output.
type Event struct {
	Type     string `json:"type"`
	Role     string `json:"role"`
	RunID    string `json:"run_id"`
	Step     int    `json:"step"`
	Thinking string `json:"thinking,omitempty"`
	Action   string `json:"action,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Streamer drives one agent run and emits its progress as events. A
// Streamer is single-use.
type Streamer struct {
	agent   agent.Agent
	runID   string
	aborted atomic.Bool
}

// NewStreamer wraps an agent for one streamed run.
func NewStreamer(a agent.Agent) *Streamer {
	runID, err := gonanoid.New()
	if err != nil {
		// gonanoid only fails when the OS entropy source does.
		panic(err)
	}
	return &Streamer{agent: a, runID: runID}
}

// RunID identifies this run in events and abort handlers.
func (s *Streamer) RunID() string {
	return s.runID
}

// Abort requests a cooperative stop. The run ends at the next step
// boundary; the in-flight step is never interrupted.
func (s *Streamer) Abort() {
	if s.aborted.CompareAndSwap(false, true) {
		observability.RecordAbort()
		log.Info().Str("run_id", s.runID).Msg("abort requested")
	}
}

// Aborted reports whether an abort has been requested.
func (s *Streamer) Aborted() bool {
	return s.aborted.Load()
}

// Run executes the task and returns the event channel. The channel is
// unbuffered, so producers advance one consumed event at a time, and is
// closed after a single terminal event (result, error, or aborted).
//
// The first event is a synthetic step with Step -1, emitted before any
// model call so consumers render an active run immediately. Outer layers
// decide whether to surface it.
func (s *Streamer) Run(ctx context.Context, task string) <-chan Event {
	events := make(chan Event)

	go func() {
		defer close(events)

		s.agent.Begin(task)

		if !s.emit(ctx, events, Event{Type: EventStep, Step: -1}) {
			return
		}

		for {
			if s.aborted.Load() {
				s.emit(ctx, events, Event{Type: EventAborted, Step: s.agent.StepCount()})
				return
			}
			// A cancelled consumer gets no terminal event; it is gone.
			if ctx.Err() != nil {
				return
			}

			result, err := s.agent.Step(ctx)
			if err != nil {
				s.emit(ctx, events, Event{
					Type:  EventError,
					Step:  s.agent.StepCount(),
					Error: err.Error(),
				})
				return
			}

			if result.Finished {
				s.emit(ctx, events, Event{
					Type:    EventResult,
					Step:    result.Step,
					Message: result.Message,
				})
				return
			}

			ok := s.emit(ctx, events, Event{
				Type:     EventStep,
				Step:     result.Step,
				Thinking: result.Thinking,
				Action:   result.Action.Name,
			})
			if !ok {
				return
			}
		}
	}()

	return events
}

// emit delivers one event, filling the constant fields. It returns false
// when the consumer is gone.
func (s *Streamer) emit(ctx context.Context, events chan<- Event, ev Event) bool {
	ev.Role = "assistant"
	ev.RunID = s.runID
	observability.RecordStreamEvent(ev.Type)

	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
