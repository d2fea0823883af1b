// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"fmt"
)

// Device describes a capture endpoint found during enumeration. It is never
// mutated after discovery.
type Device struct {
	Name       string
	SampleRate float64
	Channels   int
	Default    bool   // matches the system default output
	Backend    string // name of the backend that found it

	// handle is the backend specific identifier used by Open.
	handle any
}

func (d Device) String() string {
	return fmt.Sprintf("%s [%s, %.0f Hz, %d ch]", d.Name, d.Backend, d.SampleRate, d.Channels)
}

// Backend is one way of capturing what the system is playing.
//
// Devices lazily initialises the host API; Close releases it and must be safe
// to call after a failed Devices or Open.
type Backend interface {
	Name() string
	Devices() ([]Device, error)
	Open(dev Device, frames int) (Session, error)
	Close() error
}

// Session is an open capture stream bound to one Device.
//
// Read blocks for at most one bounded wait and returns exactly one mono
// frame. It returns ErrNoData for a benign empty or short read and io.EOF
// when the stream has ended. Any other error is fatal for the session.
type Session interface {
	Device() Device
	Read(ctx context.Context) ([]float64, error)
	Close() error
}

// Flusher is implemented by sessions whose host keeps buffering audio while
// nobody reads. The engine flushes on resume so the first frames after a
// pause are live.
type Flusher interface {
	Flush()
}

// FrameTap observes every mono frame read by the worker, before analysis.
type FrameTap interface {
	Begin(dev Device) error
	Write(frame []float64) error
	End() error
}
