// SPDX-License-Identifier: MIT
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePortAudio replaces the PortAudio seams for one test.
type fakePortAudio struct {
	devices    []*portaudio.DeviceInfo
	defaultOut *portaudio.DeviceInfo
	openErr    error
	readErr    error

	inits, terms int
	params       portaudio.StreamParameters
	stream       *fakeStream
}

type fakeStream struct {
	buf                []float32
	fill               float32
	readErr            error
	avail              atomic.Int32 // frames queued; negative means always one buffer
	started, stopped   int
	closed, readsCount int
}

func (s *fakeStream) AvailableToRead() (int, error) {
	if n := s.avail.Load(); n >= 0 {
		return int(n), nil
	}
	return len(s.buf), nil
}

func (s *fakeStream) Start() error { s.started++; return nil }
func (s *fakeStream) Stop() error  { s.stopped++; return nil }
func (s *fakeStream) Close() error { s.closed++; return nil }
func (s *fakeStream) Read() error {
	s.readsCount++
	for i := range s.buf {
		s.buf[i] = s.fill
	}
	return s.readErr
}

func installFakePortAudio(t *testing.T, pa *fakePortAudio) {
	t.Helper()
	origInit, origTerm := paInitializeFunc, paTerminateFunc
	origDevices, origDefault, origOpen := paDevicesFunc, paDefaultOutputFunc, paOpenStreamFunc
	t.Cleanup(func() {
		paInitializeFunc, paTerminateFunc = origInit, origTerm
		paDevicesFunc, paDefaultOutputFunc, paOpenStreamFunc = origDevices, origDefault, origOpen
	})

	paInitializeFunc = func() error { pa.inits++; return nil }
	paTerminateFunc = func() error { pa.terms++; return nil }
	paDevicesFunc = func() ([]*portaudio.DeviceInfo, error) { return pa.devices, nil }
	paDefaultOutputFunc = func() (*portaudio.DeviceInfo, error) {
		if pa.defaultOut == nil {
			return nil, errors.New("no default output")
		}
		return pa.defaultOut, nil
	}
	paOpenStreamFunc = func(p portaudio.StreamParameters, buf []float32) (paStream, error) {
		if pa.openErr != nil {
			return nil, pa.openErr
		}
		pa.params = p
		pa.stream = &fakeStream{buf: buf, fill: 0.25, readErr: pa.readErr}
		pa.stream.avail.Store(-1)
		return pa.stream, nil
	}
}

func hostDevicesFixture() *fakePortAudio {
	speakers := &portaudio.DeviceInfo{Name: "Speakers", MaxOutputChannels: 2}
	return &fakePortAudio{
		devices: []*portaudio.DeviceInfo{
			{Name: "Microphone", MaxInputChannels: 1},
			{Name: "Stereo Mix (Realtek)", MaxInputChannels: 2},
			speakers,
			{Name: "Monitor of Speakers", MaxInputChannels: 6},
			{Name: "Loopback (output only)", MaxOutputChannels: 2},
		},
		defaultOut: speakers,
	}
}

func TestMixerDevices(t *testing.T) {
	pa := hostDevicesFixture()
	installFakePortAudio(t, pa)

	b := NewMixerBackend(MixerOptions{})
	devices, err := b.Devices()
	require.NoError(t, err)
	require.Len(t, devices, 2)

	assert.Equal(t, "Stereo Mix (Realtek) (loopback)", devices[0].Name)
	assert.False(t, devices[0].Default)
	assert.Equal(t, 2, devices[0].Channels)

	assert.Equal(t, "Monitor of Speakers (loopback)", devices[1].Name)
	assert.True(t, devices[1].Default, "monitor of the default output is preferred")
	assert.Equal(t, maxMixerChannels, devices[1].Channels)
	assert.Equal(t, DefaultMixerSampleRate, devices[1].SampleRate)
	assert.Equal(t, MixerBackendName, devices[1].Backend)

	d, err := SelectDevice(devices, "")
	require.NoError(t, err)
	assert.Equal(t, "Monitor of Speakers (loopback)", d.Name)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	assert.Equal(t, 1, pa.inits)
	assert.Equal(t, 1, pa.terms)
}

func TestMixerDevicesNone(t *testing.T) {
	pa := &fakePortAudio{devices: []*portaudio.DeviceInfo{{Name: "Microphone", MaxInputChannels: 1}}}
	installFakePortAudio(t, pa)

	_, err := NewMixerBackend(MixerOptions{}).Devices()
	assert.ErrorIs(t, err, ErrNoDevice)
}

func TestMixerDevicesError(t *testing.T) {
	installFakePortAudio(t, &fakePortAudio{})
	paDevicesFunc = func() ([]*portaudio.DeviceInfo, error) {
		return nil, fmt.Errorf("mock error")
	}

	_, err := NewMixerBackend(MixerOptions{}).Devices()
	if err == nil || !strings.Contains(err.Error(), "mock error") {
		t.Errorf("expected mock error, got %v", err)
	}
}

func TestMixerSession(t *testing.T) {
	pa := hostDevicesFixture()
	installFakePortAudio(t, pa)

	b := NewMixerBackend(MixerOptions{SampleRate: 44100})
	devices, err := b.Devices()
	require.NoError(t, err)

	s, err := b.Open(devices[1], 512)
	require.NoError(t, err)
	assert.Equal(t, 44100.0, pa.params.SampleRate)
	assert.Equal(t, 512, pa.params.FramesPerBuffer)
	assert.Equal(t, 2, pa.params.Input.Channels)
	assert.Len(t, pa.stream.buf, 1024)
	assert.Equal(t, 1, pa.stream.started)

	frame, err := s.Read(context.Background())
	require.NoError(t, err)
	require.Len(t, frame, 512)
	assert.InDelta(t, 0.25, frame[0], 1e-9)

	pa.stream.readErr = portaudio.InputOverflowed
	_, err = s.Read(context.Background())
	assert.NoError(t, err, "overflow still delivers a buffer")

	pa.stream.readErr = errors.New("device unplugged")
	_, err = s.Read(context.Background())
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reads := pa.stream.readsCount
	_, err = s.Read(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, reads, pa.stream.readsCount)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, pa.stream.stopped)
	assert.Equal(t, 1, pa.stream.closed)
}

func TestMixerSessionWaitIsBounded(t *testing.T) {
	pa := hostDevicesFixture()
	installFakePortAudio(t, pa)

	b := NewMixerBackend(MixerOptions{ReadTimeout: 20 * time.Millisecond})
	devices, err := b.Devices()
	require.NoError(t, err)
	s, err := b.Open(devices[1], 512)
	require.NoError(t, err)
	defer s.Close()

	// The device stops delivering buffers.
	pa.stream.avail.Store(100)

	start := time.Now()
	_, err = s.Read(context.Background())
	assert.ErrorIs(t, err, ErrNoData)
	assert.Less(t, time.Since(start), time.Second)
	assert.Zero(t, pa.stream.readsCount, "a short queue is never read")

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(5*time.Millisecond, cancel)
	s.(*mixerSession).timeout = time.Minute
	_, err = s.Read(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	pa.stream.avail.Store(512)
	frame, err := s.Read(context.Background())
	require.NoError(t, err)
	assert.Len(t, frame, 512)
}

func TestMixerSessionFlush(t *testing.T) {
	pa := hostDevicesFixture()
	installFakePortAudio(t, pa)

	b := NewMixerBackend(MixerOptions{})
	devices, err := b.Devices()
	require.NoError(t, err)
	s, err := b.Open(devices[1], 256)
	require.NoError(t, err)
	defer s.Close()

	pa.stream.avail.Store(3*256 + 100)
	s.(Flusher).Flush()
	assert.Equal(t, 3, pa.stream.readsCount, "only whole queued buffers are discarded")
}

func TestMixerOpenErrors(t *testing.T) {
	pa := hostDevicesFixture()
	pa.openErr = errors.New("device busy")
	installFakePortAudio(t, pa)

	b := NewMixerBackend(MixerOptions{})
	devices, err := b.Devices()
	require.NoError(t, err)

	_, err = b.Open(devices[0], 256)
	assert.ErrorContains(t, err, "device busy")

	_, err = b.Open(Device{Name: "foreign"}, 256)
	assert.Error(t, err)
}

func TestHostDevices(t *testing.T) {
	ok := newFakeBackend("direct")
	broken := newFakeBackend("mixer")
	broken.devErr = errFakeDevice

	groups, err := HostDevices(ok, broken)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Len(t, groups[0].Devices, 1)
	assert.NoError(t, groups[0].Err)
	assert.ErrorIs(t, groups[1].Err, errFakeDevice)
	assert.Equal(t, int32(1), ok.closeCalls.Load())
	assert.Equal(t, int32(1), broken.closeCalls.Load())

	var out bytes.Buffer
	ListDevices(&out, groups)
	assert.Contains(t, out.String(), "direct speakers *")
	assert.Contains(t, out.String(), "unavailable")
}

func TestHostDevicesAllFail(t *testing.T) {
	broken := newFakeBackend("direct")
	broken.devErr = errFakeDevice

	_, err := HostDevices(broken)
	assert.ErrorIs(t, err, errFakeDevice)

	_, err = HostDevices()
	assert.ErrorIs(t, err, ErrNoBackends)
}
