// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"deskviz/internal/log"
	"deskviz/pkg/bitint"

	"github.com/gen2brain/malgo"
	"github.com/smallnest/ringbuffer"
)

const (
	LoopbackBackendName = "loopback"

	// DefaultReadTimeout bounds a single Read when the ring holds too little
	// audio, e.g. while nothing is playing.
	DefaultReadTimeout = 500 * time.Millisecond

	bytesPerS16 = 2
	ringFrames  = 8 // ring capacity in frames of lookahead
)

// LoopbackOptions configures the direct loopback backend.
type LoopbackOptions struct {
	ReadTimeout time.Duration
}

// endpoint is a playback device as reported by miniaudio.
type endpoint struct {
	name      string
	isDefault bool
	id        malgo.DeviceID
}

var (
	initMalgoContext = func() (*malgo.AllocatedContext, error) {
		return malgo.InitContext([]malgo.Backend{malgo.BackendWasapi}, malgo.ContextConfig{}, func(message string) {
			log.Debugf("miniaudio: %s", message)
		})
	}

	listPlayback = func(ctx *malgo.AllocatedContext) ([]endpoint, error) {
		infos, err := ctx.Devices(malgo.Playback)
		if err != nil {
			return nil, err
		}
		eps := make([]endpoint, 0, len(infos))
		for _, info := range infos {
			eps = append(eps, endpoint{name: info.Name(), isDefault: info.IsDefault == 1, id: info.ID})
		}
		return eps, nil
	}
)

// LoopbackBackend captures the render mix of a playback device through
// miniaudio's WASAPI loopback mode. It opens at the device's native rate and
// channel count and downmixes to mono.
type LoopbackBackend struct {
	opts LoopbackOptions

	mu  sync.Mutex
	ctx *malgo.AllocatedContext
}

// NewLoopbackBackend returns a backend that initialises miniaudio on first use.
func NewLoopbackBackend(opts LoopbackOptions) *LoopbackBackend {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	return &LoopbackBackend{opts: opts}
}

func (b *LoopbackBackend) Name() string { return LoopbackBackendName }

func (b *LoopbackBackend) context() (*malgo.AllocatedContext, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx != nil {
		return b.ctx, nil
	}
	ctx, err := initMalgoContext()
	if err != nil {
		return nil, fmt.Errorf("init miniaudio context: %w", err)
	}
	b.ctx = ctx
	return ctx, nil
}

// Devices lists playback devices that can be captured in loopback mode.
func (b *LoopbackBackend) Devices() ([]Device, error) {
	ctx, err := b.context()
	if err != nil {
		return nil, err
	}
	eps, err := listPlayback(ctx)
	if err != nil {
		return nil, fmt.Errorf("list playback devices: %w", err)
	}
	devices := loopbackDevices(eps)
	if len(devices) == 0 {
		return nil, ErrNoDevice
	}
	return devices, nil
}

// loopbackDevices converts miniaudio endpoints into Devices. Rate and
// channels stay zero until the stream reports the native format.
func loopbackDevices(eps []endpoint) []Device {
	devices := make([]Device, 0, len(eps))
	for _, ep := range eps {
		name := loopbackLabel(ep.name)
		if name == "" {
			continue
		}
		devices = append(devices, Device{
			Name:    name,
			Default: ep.isDefault,
			Backend: LoopbackBackendName,
			handle:  ep.id,
		})
	}
	return devices
}

// Open starts a loopback stream on dev that yields frames of the given size.
func (b *LoopbackBackend) Open(dev Device, frames int) (Session, error) {
	id, ok := dev.handle.(malgo.DeviceID)
	if !ok {
		return nil, fmt.Errorf("device %q was not listed by %s", dev.Name, LoopbackBackendName)
	}
	ctx, err := b.context()
	if err != nil {
		return nil, err
	}

	s := &loopbackSession{
		id:      id,
		ready:   make(chan struct{}, 1),
		timeout: b.opts.ReadTimeout,
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Loopback)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.DeviceID = s.id.Pointer()
	cfg.Capture.Channels = 0 // native
	cfg.SampleRate = 0       // native

	device, err := malgo.InitDevice(ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: s.onData,
		Stop: s.onStop,
	})
	if err != nil {
		return nil, fmt.Errorf("init loopback device: %w", err)
	}

	channels := int(device.CaptureChannels())
	if channels < 1 {
		channels = 1
	}
	need := frames * channels * bytesPerS16
	s.device = device
	s.ring = ringbuffer.New(bitint.NextPowerOfTwo(need * ringFrames))
	s.raw = make([]byte, need)
	s.frame = make([]float64, frames)
	s.channels = channels

	dev.SampleRate = float64(device.SampleRate())
	dev.Channels = channels
	s.dev = dev

	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("start loopback device: %w", err)
	}
	log.Debugw("loopback stream started", "device", dev.Name, "rate", dev.SampleRate, "channels", channels)
	return s, nil
}

// Close releases the miniaudio context. A later Devices call initialises a
// fresh one.
func (b *LoopbackBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx == nil {
		return nil
	}
	err := b.ctx.Uninit()
	b.ctx.Free()
	b.ctx = nil
	return err
}

type loopbackSession struct {
	dev      Device
	id       malgo.DeviceID
	device   *malgo.Device
	channels int
	timeout  time.Duration

	ring    *ringbuffer.RingBuffer
	ready   chan struct{}
	stopped atomic.Bool
	dropped atomic.Uint64

	raw   []byte
	frame []float64

	closeOnce sync.Once
}

// onData runs on the audio thread. It never blocks: a callback that does not
// fit into the ring is dropped whole.
func (s *loopbackSession) onData(_, in []byte, _ uint32) {
	if len(in) == 0 {
		return
	}
	if s.ring.Free() < len(in) {
		s.dropped.Add(1)
		return
	}
	_, _ = s.ring.Write(in)
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

func (s *loopbackSession) onStop() {
	s.stopped.Store(true)
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

func (s *loopbackSession) Device() Device { return s.dev }

// Read returns the next mono frame. The slice is reused by the next call.
func (s *loopbackSession) Read(ctx context.Context) ([]float64, error) {
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	for s.ring.Length() < len(s.raw) {
		if s.stopped.Load() {
			return nil, ErrStreamStopped
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, ErrNoData
		case <-s.ready:
		}
	}

	n, err := s.ring.Read(s.raw)
	if err != nil || n < len(s.raw) {
		return nil, ErrNoData
	}
	downmixS16(s.frame, s.raw, s.channels)
	return s.frame, nil
}

// Flush discards everything buffered so far.
func (s *loopbackSession) Flush() {
	for n := s.ring.Length(); n > 0; {
		chunk := min(n, len(s.raw))
		read, err := s.ring.Read(s.raw[:chunk])
		if err != nil || read == 0 {
			break
		}
		n -= read
	}
	select {
	case <-s.ready:
	default:
	}
}

func (s *loopbackSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.device == nil {
			return
		}
		err = s.device.Stop()
		s.device.Uninit()
		if d := s.dropped.Load(); d > 0 {
			log.Debugf("loopback %s dropped %d callbacks", s.dev.Name, d)
		}
	})
	return err
}
