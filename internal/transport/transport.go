// SPDX-License-Identifier: MIT

// Package transport forwards capture snapshots to consumers outside the
// process.
package transport

import "deskviz/internal/audio"

// Transport defines a generic interface for sending snapshots or events.
// Implementations should be thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}

// Source is read by the Publisher at its own cadence. *audio.Sink
// implements it.
type Source interface {
	Snapshot() audio.Snapshot
}

// Controller lets remote clients pause and resume capture. *audio.Gate
// implements it.
type Controller interface {
	Pause()
	Resume()
	Toggle() bool
	Paused() bool
}

var (
	_ Source     = (*audio.Sink)(nil)
	_ Controller = (*audio.Gate)(nil)
)
