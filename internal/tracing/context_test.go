package tracing

import (
	"context"
	"testing"
)

func TestNewTraceID(t *testing.T) {
	id1 := NewTraceID()
	id2 := NewTraceID()

	if id1 == "" {
		t.Error("NewTraceID returned empty string")
	}

	if id1 == id2 {
		t.Error("NewTraceID returned duplicate IDs")
	}
}

func TestWithTraceID(t *testing.T) {
	ctx := context.Background()
	traceID := "test-trace-id"

	ctx = WithTraceID(ctx, traceID)

	retrieved := GetTraceID(ctx)
	if retrieved != traceID {
		t.Errorf("Expected trace ID %s, got %s", traceID, retrieved)
	}
}

func TestWithDeviceID(t *testing.T) {
	ctx := context.Background()

	ctx = WithDeviceID(ctx, "emulator-5554")

	if GetDeviceID(ctx) != "emulator-5554" {
		t.Errorf("Expected device ID emulator-5554, got %s", GetDeviceID(ctx))
	}
}

func TestWithAgentType(t *testing.T) {
	ctx := context.Background()

	ctx = WithAgentType(ctx, "mai")

	if GetAgentType(ctx) != "mai" {
		t.Errorf("Expected agent type mai, got %s", GetAgentType(ctx))
	}
}

func TestGetFromEmptyContext(t *testing.T) {
	ctx := context.Background()

	if GetTraceID(ctx) != "" {
		t.Error("Expected empty trace ID")
	}
	if GetRunID(ctx) != "" {
		t.Error("Expected empty run ID")
	}
	if GetDeviceID(ctx) != "" {
		t.Error("Expected empty device ID")
	}
	if GetAgentType(ctx) != "" {
		t.Error("Expected empty agent type")
	}
}

func TestFromContextRoundTrip(t *testing.T) {
	tc := &TraceContext{
		TraceID:   "trace-1",
		RunID:     "run-1",
		DeviceID:  "device-1",
		AgentType: "glm",
	}

	ctx := NewContext(context.Background(), tc)
	got := FromContext(ctx)

	if *got != *tc {
		t.Errorf("Expected %+v, got %+v", tc, got)
	}
}

func TestNewRequestContext(t *testing.T) {
	ctx := NewRequestContext(context.Background())

	if GetTraceID(ctx) == "" {
		t.Error("NewRequestContext did not set a trace ID")
	}
}
