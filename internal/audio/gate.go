// SPDX-License-Identifier: MIT
package audio

import "sync/atomic"

// Gate is the pause token shared between the host and the capture worker.
// While it is closed the worker keeps its session open but stops reading.
type Gate struct {
	paused atomic.Bool
}

// NewGate returns an open gate.
func NewGate() *Gate {
	return &Gate{}
}

func (g *Gate) Pause() {
	g.paused.Store(true)
}

func (g *Gate) Resume() {
	g.paused.Store(false)
}

// Toggle flips the gate and reports whether it is now paused.
func (g *Gate) Toggle() bool {
	for {
		old := g.paused.Load()
		if g.paused.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// Set pauses or resumes the gate.
func (g *Gate) Set(paused bool) {
	g.paused.Store(paused)
}

func (g *Gate) Paused() bool {
	return g.paused.Load()
}
