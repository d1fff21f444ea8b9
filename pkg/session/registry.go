// Package session owns the per-device lifecycle: one agent, one lock,
// and one abort surface per connected device.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/luthfi/sentuh/internal/observability"
	"github.com/luthfi/sentuh/pkg/agent"
	"github.com/luthfi/sentuh/pkg/device"
	"github.com/luthfi/sentuh/pkg/trajectory"
)

// Session binds one device to one agent. All cross-goroutine access to
// the agent goes through the session's lock.
type Session struct {
	deviceID  string
	agentType string
	agent     agent.Agent
	device    device.Device
	lock      *deviceLock
	createdAt time.Time

	mu       sync.Mutex
	lastUsed time.Time
	aborts   map[string]func()
}

// Agent returns the session's agent. Callers must hold the device lock.
func (s *Session) Agent() agent.Agent { return s.agent }

// Device returns the injected device driver.
func (s *Session) Device() device.Device { return s.device }

func (s *Session) touch() {
	s.mu.Lock()
	s.lastUsed = time.Now()
	s.mu.Unlock()
}

func (s *Session) registerAbort(runID string, fn func()) {
	s.mu.Lock()
	s.aborts[runID] = fn
	s.mu.Unlock()
}

func (s *Session) unregisterAbort(runID string) {
	s.mu.Lock()
	delete(s.aborts, runID)
	s.mu.Unlock()
}

// abortAll fires every registered abort handler once.
func (s *Session) abortAll() int {
	s.mu.Lock()
	handlers := make([]func(), 0, len(s.aborts))
	for _, fn := range s.aborts {
		handlers = append(handlers, fn)
	}
	s.aborts = make(map[string]func())
	s.mu.Unlock()

	for _, fn := range handlers {
		fn()
	}
	return len(handlers)
}

// Status is a point-in-time snapshot of one session.
type Status struct {
	DeviceID  string    `json:"device_id"`
	AgentType string    `json:"agent_type"`
	Running   bool      `json:"running"`
	StepCount int       `json:"step_count"`
	TaskID    string    `json:"task_id,omitempty"`
	TaskGoal  string    `json:"task_goal,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	LastUsed  time.Time `json:"last_used"`
}

// Provisioner supplies a default agent config and device driver for a
// device that has no session yet. Used by the auto-initialize path.
type Provisioner func(ctx context.Context, deviceID string) (agent.Config, device.Device, error)

// Registry holds every initialized device session. It is the injected
// root object of the module; there is no package-level instance.
type Registry struct {
	factory   *agent.Factory
	archiver  *trajectory.Archiver
	takeover  agent.TakeoverFunc
	provision Provisioner

	mu       sync.RWMutex
	sessions map[string]*Session
}

// Option configures a Registry.
type Option func(*Registry)

// WithArchiver persists finished trajectories.
func WithArchiver(a *trajectory.Archiver) Option {
	return func(r *Registry) { r.archiver = a }
}

// WithTakeover installs the human-takeover callback on every agent.
func WithTakeover(fn agent.TakeoverFunc) Option {
	return func(r *Registry) { r.takeover = fn }
}

// WithProvisioner enables auto-initialization: WithSession on an
// unknown device creates its session from the provisioner's defaults
// instead of failing with NotInitializedError.
func WithProvisioner(fn Provisioner) Option {
	return func(r *Registry) { r.provision = fn }
}

// NewRegistry creates an empty registry backed by the given factory.
func NewRegistry(factory *agent.Factory, opts ...Option) *Registry {
	observability.EnsureRegistered()
	r := &Registry{
		factory:  factory,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Initialize creates the session for a device. With force, any existing
// session is aborted, waited out, and replaced; without it, an existing
// session is an error.
func (r *Registry) Initialize(ctx context.Context, cfg agent.Config, dev device.Device, force bool) error {
	deviceID := cfg.DeviceID

	r.mu.Lock()
	existing, exists := r.sessions[deviceID]
	r.mu.Unlock()
	if exists && !force {
		return &AlreadyInitializedError{DeviceID: deviceID}
	}

	if exists {
		// Forced replacement signals any active run, then takes the old
		// session's lock so an in-flight device action finishes before
		// the replacement's fresh lock becomes acquirable. The old lock
		// is never released; it dies with the session.
		existing.abortAll()
		if _, err := existing.lock.Acquire(ctx, Forever); err != nil {
			return err
		}
		log.Warn().Str("device_id", deviceID).Msg("existing session replaced")
	}

	a, err := r.factory.Create(cfg.AgentType, cfg, dev)
	if err != nil {
		return err
	}
	if da, ok := a.(*agent.DeviceAgent); ok && r.takeover != nil {
		da.SetTakeover(r.takeover)
	}

	now := time.Now()
	sess := &Session{
		deviceID:  deviceID,
		agentType: cfg.AgentType,
		agent:     a,
		device:    dev,
		lock:      newDeviceLock(deviceID),
		createdAt: now,
		lastUsed:  now,
		aborts:    make(map[string]func()),
	}

	r.mu.Lock()
	if _, ok := r.sessions[deviceID]; ok && !force {
		// A concurrent non-forced Initialize won while the agent was
		// being built; one session per device, the loser yields.
		r.mu.Unlock()
		return &AlreadyInitializedError{DeviceID: deviceID}
	}
	r.sessions[deviceID] = sess
	count := len(r.sessions)
	r.mu.Unlock()

	observability.RecordSessionInit(cfg.AgentType)
	observability.SetActiveSessions(count)
	observability.RecordLockAudit(ctx, deviceID, "initialize", "ok", map[string]interface{}{
		"agent_type": cfg.AgentType,
		"force":      force,
	})
	log.Info().Str("device_id", deviceID).Str("agent_type", cfg.AgentType).Msg("session initialized")
	return nil
}

// Get returns the session for a device.
func (r *Registry) Get(deviceID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[deviceID]
	if !ok {
		return nil, &NotInitializedError{DeviceID: deviceID}
	}
	return sess, nil
}

// IsInitialized reports whether a device has a session.
func (r *Registry) IsInitialized(deviceID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[deviceID]
	return ok
}

// Status snapshots one session.
func (r *Registry) Status(deviceID string) (Status, error) {
	sess, err := r.Get(deviceID)
	if err != nil {
		return Status{}, err
	}
	return r.snapshot(sess), nil
}

// List snapshots every session, ordered by device identifier on the
// caller's side if needed.
func (r *Registry) List() []Status {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	r.mu.RUnlock()

	out := make([]Status, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, r.snapshot(sess))
	}
	return out
}

func (r *Registry) snapshot(sess *Session) Status {
	sess.mu.Lock()
	lastUsed := sess.lastUsed
	sess.mu.Unlock()

	mem := sess.agent.Trajectory()
	return Status{
		DeviceID:  sess.deviceID,
		AgentType: sess.agentType,
		Running:   sess.lock.Held(),
		StepCount: sess.agent.StepCount(),
		TaskID:    mem.TaskID(),
		TaskGoal:  mem.TaskGoal(),
		CreatedAt: sess.createdAt,
		LastUsed:  lastUsed,
	}
}

// Acquire takes a device's lock and returns the lease token.
func (r *Registry) Acquire(ctx context.Context, deviceID string, timeout time.Duration) (string, error) {
	sess, err := r.Get(deviceID)
	if err != nil {
		return "", err
	}
	lease, err := sess.lock.Acquire(ctx, timeout)
	if err != nil {
		return "", err
	}
	sess.touch()
	return lease, nil
}

// Release unlocks a device with its lease token.
func (r *Registry) Release(deviceID, lease string) error {
	sess, err := r.Get(deviceID)
	if err != nil {
		return err
	}
	return sess.lock.Release(lease)
}

// ForceRelease unlocks a device regardless of lease holder. Audited;
// meant for cleanup paths, not ordinary flow control.
func (r *Registry) ForceRelease(ctx context.Context, deviceID string) (bool, error) {
	sess, err := r.Get(deviceID)
	if err != nil {
		return false, err
	}
	released := sess.lock.ForceRelease()
	if released {
		observability.RecordLockAudit(ctx, deviceID, "force_release", "ok", nil)
		log.Warn().Str("device_id", deviceID).Msg("device lock force released")
	}
	return released, nil
}

// ensureSession returns the device's session, auto-initializing it
// when a provisioner is configured.
func (r *Registry) ensureSession(ctx context.Context, deviceID string) (*Session, error) {
	sess, err := r.Get(deviceID)
	if err == nil || r.provision == nil {
		return sess, err
	}

	cfg, dev, provErr := r.provision(ctx, deviceID)
	if provErr != nil {
		return nil, provErr
	}
	cfg.DeviceID = deviceID
	if initErr := r.Initialize(ctx, cfg, dev, false); initErr != nil {
		// A concurrent caller may have initialized first; use theirs.
		var already *AlreadyInitializedError
		if !errors.As(initErr, &already) {
			return nil, initErr
		}
	}
	return r.Get(deviceID)
}

// WithSession runs fn while holding the device lock. Unknown devices
// are auto-initialized when the registry has a provisioner.
func (r *Registry) WithSession(ctx context.Context, deviceID string, timeout time.Duration, fn func(*Session) error) error {
	sess, err := r.ensureSession(ctx, deviceID)
	if err != nil {
		return err
	}
	lease, err := sess.lock.Acquire(ctx, timeout)
	if err != nil {
		return err
	}
	defer sess.lock.Release(lease)
	sess.touch()
	return fn(sess)
}

// Abort fires the abort handlers of every active run on a device and
// reports how many were signalled.
func (r *Registry) Abort(ctx context.Context, deviceID string) (int, error) {
	sess, err := r.Get(deviceID)
	if err != nil {
		return 0, err
	}
	n := sess.abortAll()
	observability.RecordLockAudit(ctx, deviceID, "abort", "ok", map[string]interface{}{"runs": n})
	return n, nil
}

// Reset clears the agent's task state. The device must be idle; a
// running task makes this fail with DeviceBusyError rather than pulling
// state out from under it. Unknown devices are an error, never
// auto-initialized.
func (r *Registry) Reset(ctx context.Context, deviceID string) error {
	sess, err := r.Get(deviceID)
	if err != nil {
		return err
	}
	lease, err := sess.lock.Acquire(ctx, 0)
	if err != nil {
		return err
	}
	defer sess.lock.Release(lease)

	sess.agent.Reset()
	sess.touch()
	log.Info().Str("device_id", deviceID).Msg("session reset")
	return nil
}

// Remove aborts, unlocks, and deletes a device's session.
func (r *Registry) Remove(ctx context.Context, deviceID string) error {
	sess, err := r.Get(deviceID)
	if err != nil {
		return err
	}

	sess.abortAll()
	sess.lock.ForceRelease()

	r.mu.Lock()
	delete(r.sessions, deviceID)
	count := len(r.sessions)
	r.mu.Unlock()

	observability.SetActiveSessions(count)
	observability.RecordLockAudit(ctx, deviceID, "remove", "ok", nil)
	log.Info().Str("device_id", deviceID).Msg("session removed")
	return nil
}
