// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"deskviz/internal/log"

	"github.com/gordonklaus/portaudio"
)

const (
	MixerBackendName = "mixer"

	// DefaultMixerSampleRate is the fixed rate the mixer loopback is opened at.
	DefaultMixerSampleRate = 48000.0

	maxMixerChannels = 2

	// mixerPollInterval is how often a waiting Read checks the stream.
	mixerPollInterval = 5 * time.Millisecond
)

// Substrings that identify an input exposing the output mix.
var loopbackInputNames = []string{
	"loopback",
	"monitor of",
	"stereo mix",
	"what u hear",
	"wave out mix",
	"blackhole",
}

// MixerOptions configures the mixer loopback backend.
type MixerOptions struct {
	SampleRate  float64
	LowLatency  bool
	ReadTimeout time.Duration // bound on waiting for one buffer
}

// paStream is the subset of *portaudio.Stream used by a mixer session.
type paStream interface {
	Start() error
	Read() error
	AvailableToRead() (int, error)
	Stop() error
	Close() error
}

var paOpenStreamFunc = func(p portaudio.StreamParameters, buf []float32) (paStream, error) {
	return portaudio.OpenStream(p, buf)
}

// MixerBackend captures a virtual loopback microphone (a monitor source,
// "Stereo Mix" and the like) through PortAudio at a fixed sample rate.
type MixerBackend struct {
	opts MixerOptions

	mu          sync.Mutex
	initialized bool
}

// NewMixerBackend returns a backend that initialises PortAudio on first use.
func NewMixerBackend(opts MixerOptions) *MixerBackend {
	if opts.SampleRate <= 0 {
		opts.SampleRate = DefaultMixerSampleRate
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	return &MixerBackend{opts: opts}
}

func (b *MixerBackend) Name() string { return MixerBackendName }

func (b *MixerBackend) init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.initialized {
		return nil
	}
	if err := Initialize(); err != nil {
		return err
	}
	b.initialized = true
	return nil
}

// isLoopbackInput reports whether an input device name looks like a
// capture of the output mix.
func isLoopbackInput(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range loopbackInputNames {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// Devices lists loopback capable inputs. The one matching the default
// output device by name is flagged Default.
func (b *MixerBackend) Devices() ([]Device, error) {
	if err := b.init(); err != nil {
		return nil, err
	}

	infos, err := paDevicesFunc()
	if err != nil {
		return nil, err
	}

	var defaultOut string
	if out, err := paDefaultOutputFunc(); err == nil && out != nil {
		defaultOut = out.Name
	}

	var devices []Device
	for _, info := range infos {
		if info == nil || info.MaxInputChannels < 1 || !isLoopbackInput(info.Name) {
			continue
		}
		devices = append(devices, Device{
			Name:       mixerLabel(info.Name),
			SampleRate: b.opts.SampleRate,
			Channels:   min(info.MaxInputChannels, maxMixerChannels),
			Default:    nameMatches(info.Name, defaultOut),
			Backend:    MixerBackendName,
			handle:     info,
		})
	}
	if len(devices) == 0 {
		return nil, ErrNoDevice
	}
	return devices, nil
}

// Open starts a blocking input stream on dev.
func (b *MixerBackend) Open(dev Device, frames int) (Session, error) {
	info, ok := dev.handle.(*portaudio.DeviceInfo)
	if !ok || info == nil {
		return nil, fmt.Errorf("device %q was not listed by %s", dev.Name, MixerBackendName)
	}
	if err := b.init(); err != nil {
		return nil, err
	}

	channels := max(dev.Channels, 1)
	latency := info.DefaultHighInputLatency
	if b.opts.LowLatency {
		latency = info.DefaultLowInputLatency
	}

	buf := make([]float32, frames*channels)
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   info,
			Channels: channels,
			Latency:  latency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: frames,
		SampleRate:      b.opts.SampleRate,
	}

	stream, err := paOpenStreamFunc(params, buf)
	if err != nil {
		return nil, err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, err
	}

	dev.Channels = channels
	log.Debugw("mixer stream started", "device", dev.Name, "rate", dev.SampleRate, "channels", channels)
	return &mixerSession{
		dev:     dev,
		stream:  stream,
		buf:     buf,
		frame:   make([]float64, frames),
		timeout: b.opts.ReadTimeout,
	}, nil
}

// Close terminates PortAudio if this backend initialised it.
func (b *MixerBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return nil
	}
	b.initialized = false
	return Terminate()
}

type mixerSession struct {
	dev     Device
	stream  paStream
	buf     []float32
	frame   []float64
	timeout time.Duration

	closeOnce sync.Once
}

func (s *mixerSession) Device() Device { return s.dev }

// Read waits until PortAudio holds one full buffer, then reads it without
// blocking. The wait is bounded by the read timeout (ErrNoData) and by ctx.
// An input overflow still delivers a full buffer and is not treated as an
// error.
func (s *mixerSession) Read(ctx context.Context) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.waitBuffer(ctx); err != nil {
		return nil, err
	}
	if err := s.readBuffer(); err != nil {
		return nil, err
	}
	downmixFloat32(s.frame, s.buf, s.dev.Channels)
	return s.frame, nil
}

func (s *mixerSession) readBuffer() error {
	if err := s.stream.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
		return err
	}
	return nil
}

func (s *mixerSession) waitBuffer(ctx context.Context) error {
	frames := len(s.frame)
	deadline := time.NewTimer(s.timeout)
	defer deadline.Stop()
	var poll *time.Ticker

	for {
		avail, err := s.stream.AvailableToRead()
		if err != nil && !errors.Is(err, portaudio.InputOverflowed) {
			return err
		}
		if avail >= frames {
			return nil
		}
		if poll == nil {
			poll = time.NewTicker(mixerPollInterval)
			defer poll.Stop()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return ErrNoData
		case <-poll.C:
		}
	}
}

// Flush reads and discards the buffers PortAudio queued while paused.
func (s *mixerSession) Flush() {
	avail, err := s.stream.AvailableToRead()
	if err != nil {
		return
	}
	for range avail / len(s.frame) {
		if err := s.readBuffer(); err != nil {
			return
		}
	}
}

func (s *mixerSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = errors.Join(s.stream.Stop(), s.stream.Close())
	})
	return err
}
