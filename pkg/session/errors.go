package session

import "fmt"

// DeviceBusyError reports that the device's lock is held by another
// operation.
type DeviceBusyError struct {
	DeviceID string
}

func (e *DeviceBusyError) Error() string {
	return fmt.Sprintf("device %s is busy", e.DeviceID)
}

// NotInitializedError reports an operation against a device with no
// session.
type NotInitializedError struct {
	DeviceID string
}

func (e *NotInitializedError) Error() string {
	return fmt.Sprintf("device %s has no initialized session", e.DeviceID)
}

// AlreadyInitializedError reports a non-forced initialization of a
// device that already has a session.
type AlreadyInitializedError struct {
	DeviceID string
}

func (e *AlreadyInitializedError) Error() string {
	return fmt.Sprintf("device %s already has a session (use force to replace it)", e.DeviceID)
}

// LeaseMismatchError reports a release with a stale or foreign lease.
type LeaseMismatchError struct {
	DeviceID string
}

func (e *LeaseMismatchError) Error() string {
	return fmt.Sprintf("lease does not hold the lock for device %s", e.DeviceID)
}
