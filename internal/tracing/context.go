package tracing

import (
	"context"

	"github.com/google/uuid"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID
	TraceIDKey ContextKey = "trace_id"
	// RunIDKey is the context key for a single task run ID
	RunIDKey ContextKey = "run_id"
	// DeviceIDKey is the context key for the device serial
	DeviceIDKey ContextKey = "device_id"
	// AgentTypeKey is the context key for the agent type name
	AgentTypeKey ContextKey = "agent_type"
)

// TraceContext holds tracing information
type TraceContext struct {
	TraceID   string
	RunID     string
	DeviceID  string
	AgentType string
}

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithRunID adds a run ID to the context
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// WithDeviceID adds a device ID to the context
func WithDeviceID(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, DeviceIDKey, deviceID)
}

// WithAgentType adds an agent type to the context
func WithAgentType(ctx context.Context, agentType string) context.Context {
	return context.WithValue(ctx, AgentTypeKey, agentType)
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// GetRunID retrieves the run ID from the context
func GetRunID(ctx context.Context) string {
	if runID, ok := ctx.Value(RunIDKey).(string); ok {
		return runID
	}
	return ""
}

// GetDeviceID retrieves the device ID from the context
func GetDeviceID(ctx context.Context) string {
	if deviceID, ok := ctx.Value(DeviceIDKey).(string); ok {
		return deviceID
	}
	return ""
}

// GetAgentType retrieves the agent type from the context
func GetAgentType(ctx context.Context) string {
	if agentType, ok := ctx.Value(AgentTypeKey).(string); ok {
		return agentType
	}
	return ""
}

// FromContext extracts all tracing information from the context
func FromContext(ctx context.Context) *TraceContext {
	return &TraceContext{
		TraceID:   GetTraceID(ctx),
		RunID:     GetRunID(ctx),
		DeviceID:  GetDeviceID(ctx),
		AgentType: GetAgentType(ctx),
	}
}

// NewContext creates a new context with tracing information
func NewContext(ctx context.Context, tc *TraceContext) context.Context {
	if tc.TraceID != "" {
		ctx = WithTraceID(ctx, tc.TraceID)
	}
	if tc.RunID != "" {
		ctx = WithRunID(ctx, tc.RunID)
	}
	if tc.DeviceID != "" {
		ctx = WithDeviceID(ctx, tc.DeviceID)
	}
	if tc.AgentType != "" {
		ctx = WithAgentType(ctx, tc.AgentType)
	}
	return ctx
}

// NewRequestContext creates a new context for a request with a new trace ID
func NewRequestContext(ctx context.Context) context.Context {
	return WithTraceID(ctx, NewTraceID())
}
