// SPDX-License-Identifier: MIT
/*
Package audio captures what the system is playing and turns it into smoothed
level snapshots.

Capture goes through a Backend: the direct loopback backend (miniaudio
WASAPI loopback) is tried first and the mixer loopback backend (a PortAudio
monitor input at a fixed rate) second. The Engine runs one worker goroutine
per session that reads frames, analyzes and smooths them, and publishes
whole Snapshots into a Sink.

Thread Safety:
- The worker is the only owner of the session, backend and smoothing state
- Sink publishes by atomic pointer swap
- Gate and engine state are atomics; no locks on the frame path
*/
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"deskviz/internal/analysis"
	"deskviz/internal/log"
)

// State is the supervisor's lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StatePaused
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

const (
	DefaultFramesPerBuffer = 2048
	DefaultPausePoll       = 100 * time.Millisecond
)

// EngineConfig holds the per-session capture and analysis settings.
type EngineConfig struct {
	FramesPerBuffer int
	Smoothing       float64
	PausePoll       time.Duration
	Device          string // preferred device name substring, empty for default
	Tuning          analysis.Tuning
}

// DefaultEngineConfig returns the stock capture settings.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		FramesPerBuffer: DefaultFramesPerBuffer,
		Smoothing:       analysis.DefaultSmoothing,
		PausePoll:       DefaultPausePoll,
		Tuning:          analysis.DefaultTuning(),
	}
}

// Observer is notified of worker events. metrics.Engine implements it.
type Observer interface {
	FrameProcessed(levels analysis.Levels)
	FrameSkipped(reason string)
	BackendFailed(backend, stage string)
	StateChanged(state string)
}

type nopObserver struct{}

func (nopObserver) FrameProcessed(analysis.Levels) {}
func (nopObserver) FrameSkipped(string)            {}
func (nopObserver) BackendFailed(string, string)   {}
func (nopObserver) StateChanged(string)            {}

// Option customises an Engine.
type Option func(*Engine)

// WithPause shares g with the host as the pause token.
func WithPause(g *Gate) Option {
	return func(e *Engine) {
		if g != nil {
			e.gate = g
		}
	}
}

// WithMetrics reports worker events to o.
func WithMetrics(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.obs = o
		}
	}
}

// WithTap passes every captured frame to t before analysis.
func WithTap(t FrameTap) Option {
	return func(e *Engine) { e.tap = t }
}

// Engine supervises capture sessions. Backends are tried in order on every
// start; a session that fails mid-stream is not reopened.
type Engine struct {
	cfg      EngineConfig
	backends []Backend
	sink     Publisher
	gate     *Gate
	obs      Observer
	tap      FrameTap

	state atomic.Int32

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	lastErr error

	// Worker owned.
	levels analysis.Levels
}

// NewEngine creates an idle engine that publishes into sink.
func NewEngine(cfg EngineConfig, backends []Backend, sink Publisher, opts ...Option) *Engine {
	if cfg.PausePoll <= 0 {
		cfg.PausePoll = DefaultPausePoll
	}
	e := &Engine{
		cfg:      cfg,
		backends: backends,
		sink:     sink,
		gate:     NewGate(),
		obs:      nopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Gate returns the engine's pause token.
func (e *Engine) Gate() *Gate { return e.gate }

// State returns the current lifecycle state.
func (e *Engine) State() State { return State(e.state.Load()) }

// Err returns the error that ended the last session, if any.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

func (e *Engine) setState(s State) {
	if State(e.state.Swap(int32(s))) == s {
		return
	}
	log.Debugw("capture state", "state", s.String())
	e.obs.StateChanged(s.String())
}

// activeLocked reports whether a worker is still running. e.mu must be held.
func (e *Engine) activeLocked() bool {
	if e.done == nil {
		return false
	}
	select {
	case <-e.done:
		return false
	default:
		return true
	}
}

// Start launches a capture worker. It returns once the worker is running;
// backend failures surface later through State and the sink.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.activeLocked() {
		return ErrAlreadyRunning
	}
	if len(e.backends) == 0 {
		return ErrNoBackends
	}
	if e.cfg.Smoothing < 0 || e.cfg.Smoothing > 1 {
		return fmt.Errorf("smoothing must be within [0, 1], got %g", e.cfg.Smoothing)
	}
	analyzer, err := analysis.NewAnalyzer(e.cfg.FramesPerBuffer, e.cfg.Tuning)
	if err != nil {
		return fmt.Errorf("create analyzer: %w", err)
	}

	if e.cancel != nil {
		e.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	e.cancel = cancel
	e.done = done
	e.lastErr = nil
	e.setState(StateStarting)

	go e.run(runCtx, analyzer, done)
	return nil
}

// Stop signals the worker and waits until it has released its session and
// backend. It is safe to call repeatedly and on an idle engine.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Wait blocks until the current worker, if any, has exited.
func (e *Engine) Wait() {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	if done != nil {
		<-done
	}
}

// SetEnabled reconciles the engine with the audio enabled setting: it starts
// a worker when enabled and none is active and stops it when disabled.
func (e *Engine) SetEnabled(ctx context.Context, enabled bool) error {
	e.mu.Lock()
	active := e.activeLocked()
	e.mu.Unlock()

	switch {
	case enabled && !active:
		return e.Start(ctx)
	case !enabled && active:
		e.Stop()
	}
	return nil
}

func (e *Engine) run(ctx context.Context, analyzer *analysis.Analyzer, done chan<- struct{}) {
	defer close(done)

	final, err := e.capture(ctx, analyzer)

	e.mu.Lock()
	e.lastErr = err
	e.mu.Unlock()

	e.sink.Publish(Snapshot{Available: false})
	e.setState(final)
}

// capture runs one session from backend selection to release and returns
// the terminal state.
func (e *Engine) capture(ctx context.Context, analyzer *analysis.Analyzer) (State, error) {
	backend, session, err := e.open(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return StateStopped, nil
		}
		log.Errorw("audio capture unavailable", "error", err)
		return StateFailed, err
	}

	dev := session.Device()
	tap := e.beginTap(dev)

	var releaseOnce sync.Once
	release := func() {
		releaseOnce.Do(func() {
			if err := session.Close(); err != nil {
				log.Warnw("close capture session", "backend", backend.Name(), "error", err)
			}
			if err := backend.Close(); err != nil {
				log.Warnw("close capture backend", "backend", backend.Name(), "error", err)
			}
			if tap != nil {
				if err := tap.End(); err != nil {
					log.Warnw("close recording", "error", err)
				}
			}
			log.Debugw("capture session released", "backend", backend.Name(), "device", dev.Name)
		})
	}
	defer release()

	log.Infow("audio capture started", "backend", backend.Name(), "device", dev.Name,
		"rate", dev.SampleRate, "channels", dev.Channels)

	e.levels = analysis.Levels{}
	e.sink.Publish(Snapshot{Device: dev.Name, Available: true})
	e.setState(StateRunning)

	frames := analyzer.Size()
	pause := time.NewTimer(e.cfg.PausePoll)
	pause.Stop()
	defer pause.Stop()

	for {
		if ctx.Err() != nil {
			log.Infow("audio capture stopped", "device", dev.Name)
			return StateStopped, nil
		}

		if e.gate.Paused() {
			if e.State() != StatePaused {
				log.Infow("audio capture paused", "device", dev.Name)
				e.setState(StatePaused)
			}
			pause.Reset(e.cfg.PausePoll)
			select {
			case <-ctx.Done():
			case <-pause.C:
			}
			continue
		}
		if e.State() == StatePaused {
			if f, ok := session.(Flusher); ok {
				f.Flush()
			}
			log.Infow("audio capture resumed", "device", dev.Name)
			e.setState(StateRunning)
		}

		frame, err := session.Read(ctx)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			continue
		case errors.Is(err, ErrNoData):
			e.obs.FrameSkipped("no_data")
			continue
		case errors.Is(err, io.EOF):
			log.Infow("audio stream ended", "device", dev.Name)
			return StateStopped, nil
		default:
			err = &ReadError{Backend: backend.Name(), Err: err}
			log.Errorw("audio capture failed", "device", dev.Name, "error", err)
			return StateFailed, err
		}

		if len(frame) != frames {
			e.obs.FrameSkipped("short")
			continue
		}

		if tap != nil {
			if err := tap.Write(frame); err != nil {
				log.Warnw("recording disabled", "error", err)
				_ = tap.End()
				tap = nil
			}
		}

		raw, err := analyzer.Analyze(frame, dev.SampleRate)
		if err != nil {
			log.Debugw("frame skipped", "error", err)
			e.obs.FrameSkipped("analysis")
			continue
		}

		e.levels = analysis.Smooth(e.levels, raw, e.cfg.Smoothing)
		e.sink.Publish(Snapshot{Levels: e.levels, Device: dev.Name, Available: true})
		e.obs.FrameProcessed(e.levels)
	}
}

// open walks the backends in order and returns the first that yields a
// session. Every failed backend is closed before the next is tried.
func (e *Engine) open(ctx context.Context) (Backend, Session, error) {
	var errs []error
	for _, b := range e.backends {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		session, stage, err := e.openBackend(b)
		if err == nil {
			return b, session, nil
		}

		log.Warnw("capture backend failed", "backend", b.Name(), "stage", stage, "error", err)
		e.obs.BackendFailed(b.Name(), stage)
		if cerr := b.Close(); cerr != nil {
			log.Warnw("close capture backend", "backend", b.Name(), "error", cerr)
		}
		errs = append(errs, err)
	}
	return nil, nil, fmt.Errorf("%w: %w", ErrUnavailable, errors.Join(errs...))
}

func (e *Engine) openBackend(b Backend) (Session, string, error) {
	devices, err := b.Devices()
	if err != nil {
		return nil, "enumerate", &EnumerationError{Backend: b.Name(), Err: err}
	}
	dev, err := SelectDevice(devices, e.cfg.Device)
	if err != nil {
		return nil, "enumerate", &EnumerationError{Backend: b.Name(), Err: err}
	}
	log.Debugw("capture device selected", "backend", b.Name(), "device", dev.Name)

	session, err := b.Open(dev, e.cfg.FramesPerBuffer)
	if err != nil {
		return nil, "open", &OpenError{Backend: b.Name(), Device: dev.Name, Err: err}
	}
	return session, "", nil
}

func (e *Engine) beginTap(dev Device) FrameTap {
	if e.tap == nil {
		return nil
	}
	if err := e.tap.Begin(dev); err != nil {
		log.Warnw("recording not started", "device", dev.Name, "error", err)
		return nil
	}
	return e.tap
}
