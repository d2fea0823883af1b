// SPDX-License-Identifier: MIT
package audio

import (
	"sync/atomic"
	"time"

	"deskviz/internal/analysis"
)

// Snapshot is the externally visible capture state: the smoothed levels, the
// active device label and whether capture is available at all.
type Snapshot struct {
	analysis.Levels
	Device    string    `json:"device"`
	Available bool      `json:"available"`
	Seq       uint64    `json:"seq"`
	Updated   time.Time `json:"updated"`
}

// Publisher receives every snapshot the worker produces.
type Publisher interface {
	Publish(Snapshot)
}

// Sink holds the latest Snapshot. It has a single writer, the capture
// worker, and any number of readers. Each Publish swaps in a whole new
// value so readers never see fields from two different snapshots.
type Sink struct {
	current atomic.Pointer[Snapshot]
	seq     atomic.Uint64
}

// NewSink returns a Sink holding an unavailable, zeroed snapshot.
func NewSink() *Sink {
	s := &Sink{}
	s.current.Store(&Snapshot{})
	return s
}

// Publish stamps s with the next sequence number and the current time and
// makes it visible to readers.
func (k *Sink) Publish(s Snapshot) {
	s.Seq = k.seq.Add(1)
	s.Updated = time.Now()
	k.current.Store(&s)
}

// Snapshot returns a copy of the latest published snapshot.
func (k *Sink) Snapshot() Snapshot {
	return *k.current.Load()
}
