// Package parser translates raw model text into a normalized device
// action. Each supported model family speaks its own textual dialect with
// its own coordinate convention; parsers are selected by explicit registry
// lookup, never by sniffing the text.
package parser

import (
	"fmt"
	"sort"
	"sync"
)

// Discriminator values carried in the `_metadata` field of every parsed
// action.
const (
	MetaDo     = "do"
	MetaFinish = "finish"
)

// outputScale is the integer grid parser outputs express geometry on,
// regardless of the grid the raw response used.
const outputScale = 1000

// Action is the dialect-independent result of parsing one model response.
// Exactly one of the Do shape (Name plus geometry/text) or the Finish
// shape (Message) is populated, discriminated by Meta.
type Action struct {
	Meta       string    `json:"_metadata"`
	Name       string    `json:"action,omitempty"`
	Coordinate []float64 `json:"coordinate,omitempty"`
	Element    []float64 `json:"element,omitempty"`
	End        []float64 `json:"end,omitempty"`
	Text       string    `json:"text,omitempty"`
	App        string    `json:"app,omitempty"`
	Message    string    `json:"message,omitempty"`
}

// ParsedResponse pairs the model's reasoning text with its action.
type ParsedResponse struct {
	Thinking string `json:"thinking"`
	Action   Action `json:"raw_action"`
}

// IsFinish reports whether the action ends the task.
func (a Action) IsFinish() bool {
	return a.Meta == MetaFinish
}

// Geometry returns the action's primary geometry, whichever parameter
// name the dialect used.
func (a Action) Geometry() ([]float64, bool) {
	if len(a.Coordinate) > 0 {
		return a.Coordinate, true
	}
	if len(a.Element) > 0 {
		return a.Element, true
	}
	return nil, false
}

// UnitPoint resolves the primary geometry to a point in the closed unit
// square. A 4-value bounding box collapses to its midpoint.
func (a Action) UnitPoint() (x, y float64, ok bool) {
	geom, ok := a.Geometry()
	if !ok {
		return 0, 0, false
	}
	return unitPoint(geom)
}

// UnitEnd resolves the swipe target geometry to the unit square.
func (a Action) UnitEnd() (x, y float64, ok bool) {
	if len(a.End) == 0 {
		return 0, 0, false
	}
	return unitPoint(a.End)
}

func unitPoint(geom []float64) (float64, float64, bool) {
	switch len(geom) {
	case 2:
		return clampUnit(geom[0] / outputScale), clampUnit(geom[1] / outputScale), true
	case 4:
		return clampUnit((geom[0] + geom[2]) / 2 / outputScale),
			clampUnit((geom[1] + geom[3]) / 2 / outputScale), true
	default:
		return 0, 0, false
	}
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ActionParser is the capability set every dialect implements.
type ActionParser interface {
	// Name is the registry key for this dialect.
	Name() string

	// CoordinateScale is the integer grid size raw responses express
	// coordinates on (e.g. 1000 or 999).
	CoordinateScale() int

	// Parse extracts the action from a raw model response.
	Parse(raw string) (Action, error)

	// ParseWithThinking extracts both the reasoning text and the action.
	ParseWithThinking(raw string) (ParsedResponse, error)
}

// ParseError reports a malformed model response. Parsers never retry;
// retry policy belongs to callers.
type ParseError struct {
	Dialect string
	Reason  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s response: %s", e.Dialect, e.Reason)
}

func newParseError(dialect, format string, args ...interface{}) *ParseError {
	return &ParseError{Dialect: dialect, Reason: fmt.Sprintf(format, args...)}
}

// Registry maps dialect names to parsers.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]ActionParser
}

// NewRegistry creates a registry with the built-in dialects registered.
func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]ActionParser)}
	r.Register(NewGLMParser())
	r.Register(NewPhoneParser())
	r.Register(NewMAIParser())
	return r
}

// Register adds or replaces a parser under its name.
func (r *Registry) Register(p ActionParser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers[p.Name()] = p
}

// Get returns the parser registered under name.
func (r *Registry) Get(name string) (ActionParser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.parsers[name]
	if !ok {
		return nil, fmt.Errorf("unknown parser dialect: %s", name)
	}
	return p, nil
}

// Names lists registered dialects in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.parsers))
	for name := range r.parsers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
