// SPDX-License-Identifier: MIT

// Package metrics exposes capture engine metrics to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"deskviz/internal/analysis"
)

// States reported by the capture_state gauge, in order.
var states = []string{"idle", "starting", "running", "paused", "stopped", "failed"}

// Engine contains Prometheus metrics for the capture engine. A nil *Engine
// is valid and records nothing.
type Engine struct {
	framesProcessed prometheus.Counter
	framesSkipped   *prometheus.CounterVec
	backendFailures *prometheus.CounterVec
	state           *prometheus.GaugeVec
	levels          *prometheus.GaugeVec
}

// NewEngine creates the engine metrics and registers them with registry.
func NewEngine(registry prometheus.Registerer) (*Engine, error) {
	m := &Engine{
		framesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deskviz_frames_processed_total",
			Help: "Frames analyzed and published",
		}),
		framesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deskviz_frames_skipped_total",
			Help: "Reads skipped without publishing",
		}, []string{"reason"}), // reason: no_data, short, analysis
		backendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deskviz_backend_failures_total",
			Help: "Capture backends that failed to start a session",
		}, []string{"backend", "stage"}), // stage: enumerate, open
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "deskviz_capture_state",
			Help: "1 for the current capture state, 0 otherwise",
		}, []string{"state"}),
		levels: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "deskviz_level",
			Help: "Latest smoothed level per band (0.0 to 1.0)",
		}, []string{"band"}),
	}
	m.StateChanged(states[0])

	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// FrameProcessed counts a published frame and records its levels.
func (m *Engine) FrameProcessed(l analysis.Levels) {
	if m == nil {
		return
	}
	m.framesProcessed.Inc()
	m.levels.WithLabelValues("volume").Set(l.Volume)
	m.levels.WithLabelValues("bass").Set(l.Bass)
	m.levels.WithLabelValues("mid").Set(l.Mid)
	m.levels.WithLabelValues("treble").Set(l.Treble)
}

// FrameSkipped counts a read that produced no snapshot.
func (m *Engine) FrameSkipped(reason string) {
	if m == nil {
		return
	}
	m.framesSkipped.WithLabelValues(reason).Inc()
}

// BackendFailed counts a backend that could not start a session.
func (m *Engine) BackendFailed(backend, stage string) {
	if m == nil {
		return
	}
	m.backendFailures.WithLabelValues(backend, stage).Inc()
}

// StateChanged marks state as the current capture state.
func (m *Engine) StateChanged(state string) {
	if m == nil {
		return
	}
	for _, s := range states {
		v := 0.0
		if s == state {
			v = 1
		}
		m.state.WithLabelValues(s).Set(v)
	}
}

// Describe implements prometheus.Collector.
func (m *Engine) Describe(ch chan<- *prometheus.Desc) {
	m.framesProcessed.Describe(ch)
	m.framesSkipped.Describe(ch)
	m.backendFailures.Describe(ch)
	m.state.Describe(ch)
	m.levels.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Engine) Collect(ch chan<- prometheus.Metric) {
	m.framesProcessed.Collect(ch)
	m.framesSkipped.Collect(ch)
	m.backendFailures.Collect(ch)
	m.state.Collect(ch)
	m.levels.Collect(ch)
}
