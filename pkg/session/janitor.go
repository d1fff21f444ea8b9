package session

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// DefaultIdleAge is how long a session may sit unused before the janitor
// removes it.
const DefaultIdleAge = 2 * time.Hour

// Janitor periodically removes idle sessions so abandoned devices do not
// pin agents and their trajectories forever. Running sessions are never
// touched.
type Janitor struct {
	registry *Registry
	idleAge  time.Duration
	cron     *cron.Cron
	entryID  cron.EntryID
}

// NewJanitor creates a janitor over the registry.
func NewJanitor(registry *Registry, idleAge time.Duration) *Janitor {
	if idleAge <= 0 {
		idleAge = DefaultIdleAge
	}
	return &Janitor{
		registry: registry,
		idleAge:  idleAge,
		cron:     cron.New(),
	}
}

// Start schedules the sweep. The spec is a standard cron expression;
// "@every 10m" style intervals work too.
func (j *Janitor) Start(spec string) error {
	id, err := j.cron.AddFunc(spec, j.Sweep)
	if err != nil {
		return fmt.Errorf("invalid janitor schedule %q: %w", spec, err)
	}
	j.entryID = id
	j.cron.Start()

	log.Info().Str("schedule", spec).Dur("idle_age", j.idleAge).Msg("session janitor started")
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
	log.Info().Msg("session janitor stopped")
}

// Sweep removes every idle, non-running session past the idle age.
func (j *Janitor) Sweep() {
	cutoff := time.Now().Add(-j.idleAge)
	removed := 0

	for _, status := range j.registry.List() {
		if status.Running || status.LastUsed.After(cutoff) {
			continue
		}
		if err := j.registry.Remove(context.Background(), status.DeviceID); err != nil {
			log.Error().Err(err).Str("device_id", status.DeviceID).Msg("failed to remove idle session")
			continue
		}
		removed++
	}

	if removed > 0 {
		log.Info().Int("removed", removed).Msg("idle sessions swept")
	}
}
