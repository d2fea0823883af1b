// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDevice is returned when a backend finds no loopback capable device.
	ErrNoDevice = errors.New("no loopback device found")
	// ErrNoData marks an empty or short read. The worker skips the iteration.
	ErrNoData = errors.New("no audio data available")
	// ErrStreamStopped is returned once the host API has stopped a stream.
	ErrStreamStopped = errors.New("capture stream stopped")
	// ErrUnavailable is recorded when every backend failed to open.
	ErrUnavailable = errors.New("audio capture unavailable")
	// ErrAlreadyRunning is returned by Start while a worker is active.
	ErrAlreadyRunning = errors.New("engine already running")
	// ErrNoBackends is returned when an engine is started without backends.
	ErrNoBackends = errors.New("no capture backends configured")
)

// EnumerationError means a backend could not list a usable device.
type EnumerationError struct {
	Backend string
	Err     error
}

func (e *EnumerationError) Error() string {
	return fmt.Sprintf("%s: enumerate devices: %v", e.Backend, e.Err)
}

func (e *EnumerationError) Unwrap() error { return e.Err }

// OpenError means a device was found but its stream could not be opened.
type OpenError struct {
	Backend string
	Device  string
	Err     error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("%s: open %q: %v", e.Backend, e.Device, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// ReadError means a running stream failed. It ends the session.
type ReadError struct {
	Backend string
	Err     error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("%s: read: %v", e.Backend, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }
