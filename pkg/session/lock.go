package session

import (
	"context"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/luthfi/sentuh/internal/observability"
)

// Forever makes Acquire wait indefinitely for the lock.
const Forever time.Duration = -1

// deviceLock is a timed mutex with lease tokens. Acquire hands out a
// token; only that token (or a forced release) can unlock. A zero
// timeout probes without waiting, Forever blocks until acquired or the
// context ends.
type deviceLock struct {
	deviceID string
	slot     chan struct{}

	mu    sync.Mutex
	lease string
}

func newDeviceLock(deviceID string) *deviceLock {
	return &deviceLock{
		deviceID: deviceID,
		slot:     make(chan struct{}, 1),
	}
}

// Acquire takes the lock and returns the lease token.
func (l *deviceLock) Acquire(ctx context.Context, timeout time.Duration) (string, error) {
	start := time.Now()
	err := l.wait(ctx, timeout)
	observability.RecordLockWait(time.Since(start), err == nil)
	if err != nil {
		return "", err
	}

	lease, genErr := gonanoid.New()
	if genErr != nil {
		<-l.slot
		return "", genErr
	}

	l.mu.Lock()
	l.lease = lease
	l.mu.Unlock()
	return lease, nil
}

func (l *deviceLock) wait(ctx context.Context, timeout time.Duration) error {
	if timeout == 0 {
		select {
		case l.slot <- struct{}{}:
			return nil
		default:
			return &DeviceBusyError{DeviceID: l.deviceID}
		}
	}

	if timeout < 0 {
		select {
		case l.slot <- struct{}{}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case l.slot <- struct{}{}:
		return nil
	case <-timer.C:
		return &DeviceBusyError{DeviceID: l.deviceID}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release unlocks if lease matches the current holder.
func (l *deviceLock) Release(lease string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lease == "" || lease != l.lease {
		return &LeaseMismatchError{DeviceID: l.deviceID}
	}
	l.lease = ""
	<-l.slot
	return nil
}

// ForceRelease unlocks regardless of lease, returning whether the lock
// was held. Reserved for abort and cleanup paths.
func (l *deviceLock) ForceRelease() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lease == "" {
		return false
	}
	l.lease = ""
	<-l.slot
	observability.RecordForcedRelease()
	return true
}

// Held reports whether the lock is currently taken.
func (l *deviceLock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lease != ""
}
