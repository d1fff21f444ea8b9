package session

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/luthfi/sentuh/internal/tracing"
	"github.com/luthfi/sentuh/pkg/stream"
)

// ChatResult is the outcome of one blocking chat turn.
type ChatResult struct {
	TaskID  string `json:"task_id"`
	Steps   int    `json:"steps"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Chat runs one task to completion. It waits for the device lock as long
// as the context allows, so queued chats on the same device serialize.
// The agent is reset afterward: each chat turn is a fresh task.
func (r *Registry) Chat(ctx context.Context, deviceID, task string) (*ChatResult, error) {
	sess, err := r.Get(deviceID)
	if err != nil {
		return nil, err
	}

	ctx = tracing.WithDeviceID(ctx, deviceID)
	ctx, span := tracing.StartSpan(ctx, "session", "chat",
		attribute.String("device_id", deviceID),
		attribute.String("agent_type", sess.agentType),
	)
	defer span.End()

	lease, err := sess.lock.Acquire(ctx, Forever)
	if err != nil {
		return nil, err
	}
	defer sess.lock.Release(lease)
	sess.touch()

	result, runErr := sess.agent.Run(ctx, task)
	steps := sess.agent.StepCount()

	status := "completed"
	if runErr != nil {
		status = "error"
	} else if !result.Success {
		status = "incomplete"
	}
	r.archive(context.WithoutCancel(ctx), sess, status)
	sess.agent.Reset()

	if runErr != nil {
		span.SetStatus(codes.Error, runErr.Error())
		return nil, runErr
	}
	span.SetStatus(codes.Ok, status)
	return &ChatResult{
		TaskID:  result.TaskID,
		Steps:   steps,
		Success: result.Success,
		Message: result.Message,
	}, nil
}

// ChatStream starts a task and returns its event feed. The lock is
// probed, not awaited: a busy device fails immediately with
// DeviceBusyError instead of queueing a surprise run.
//
// The synthetic Step -1 event the streamer emits is internal and
// filtered out here. The feed closes after its terminal event, at which
// point the lock is released and the agent reset.
func (r *Registry) ChatStream(ctx context.Context, deviceID, task string) (<-chan stream.Event, error) {
	sess, err := r.Get(deviceID)
	if err != nil {
		return nil, err
	}

	lease, err := sess.lock.Acquire(ctx, 0)
	if err != nil {
		return nil, err
	}
	sess.touch()

	streamer := stream.NewStreamer(sess.agent)
	sess.registerAbort(streamer.RunID(), streamer.Abort)

	inner := streamer.Run(ctx, task)
	out := make(chan stream.Event)

	go func() {
		lastType := ""
		defer close(out)
		defer func() {
			status := "completed"
			switch {
			case streamer.Aborted():
				status = "aborted"
			case lastType == stream.EventError:
				status = "error"
			}
			// Cleanup must survive consumer cancellation; the archive
			// write cannot ride on the dead request context.
			r.archive(context.WithoutCancel(ctx), sess, status)
			sess.agent.Reset()
			sess.unregisterAbort(streamer.RunID())
			if err := sess.lock.Release(lease); err != nil {
				log.Error().Err(err).Str("device_id", deviceID).Msg("failed to release device lock")
			}
		}()

		for ev := range inner {
			lastType = ev.Type
			if ev.Type == stream.EventStep && ev.Step < 0 {
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				// Drain so the streamer can reach its own ctx check.
				for range inner {
				}
				return
			}
		}
	}()

	return out, nil
}

// archive persists the finished trajectory when an archiver is wired.
func (r *Registry) archive(ctx context.Context, sess *Session, status string) {
	if r.archiver == nil {
		return
	}
	mem := sess.agent.Trajectory()
	if mem.Len() == 0 {
		return
	}
	if err := r.archiver.Archive(ctx, sess.deviceID, sess.agentType, status, mem); err != nil {
		log.Error().Err(err).Str("device_id", sess.deviceID).Msg("failed to archive trajectory")
	}
}
