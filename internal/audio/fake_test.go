// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"deskviz/pkg/utils"
)

const (
	testFrameSize  = 256
	testSampleRate = 48000.0
)

var errFakeDevice = errors.New("fake device failure")

// fakeBackend is a scripted Backend.
type fakeBackend struct {
	name    string
	devices []Device
	devErr  error
	openErr error
	newRead func() readFunc

	devCalls   atomic.Int32
	openCalls  atomic.Int32
	closeCalls atomic.Int32

	mu       sync.Mutex
	sessions []*fakeSession
}

type readFunc func(ctx context.Context) ([]float64, error)

func newFakeBackend(name string) *fakeBackend {
	return &fakeBackend{
		name: name,
		devices: []Device{
			{Name: name + " speakers", SampleRate: testSampleRate, Channels: 2, Default: true, Backend: name},
		},
		newRead: func() readFunc { return steadyReads(utils.SineWave(testFrameSize, testSampleRate, 100, 0.1)) },
	}
}

func (b *fakeBackend) Name() string { return b.name }

func (b *fakeBackend) Devices() ([]Device, error) {
	b.devCalls.Add(1)
	if b.devErr != nil {
		return nil, b.devErr
	}
	return b.devices, nil
}

func (b *fakeBackend) Open(dev Device, frames int) (Session, error) {
	b.openCalls.Add(1)
	if b.openErr != nil {
		return nil, b.openErr
	}
	s := &fakeSession{dev: dev, read: b.newRead()}
	b.mu.Lock()
	b.sessions = append(b.sessions, s)
	b.mu.Unlock()
	return s, nil
}

func (b *fakeBackend) Close() error {
	b.closeCalls.Add(1)
	return nil
}

func (b *fakeBackend) session(i int) *fakeSession {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i >= len(b.sessions) {
		return nil
	}
	return b.sessions[i]
}

type fakeSession struct {
	dev        Device
	read       readFunc
	reads      atomic.Int32
	closeCalls atomic.Int32
	flushes    atomic.Int32
}

func (s *fakeSession) Flush() { s.flushes.Add(1) }

func (s *fakeSession) Device() Device { return s.dev }

func (s *fakeSession) Read(ctx context.Context) ([]float64, error) {
	s.reads.Add(1)
	return s.read(ctx)
}

func (s *fakeSession) Close() error {
	s.closeCalls.Add(1)
	return nil
}

// pace blocks for one simulated buffer period or until ctx is done.
func pace(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Millisecond):
		return nil
	}
}

// steadyReads returns frame on every read.
func steadyReads(frame []float64) readFunc {
	return func(ctx context.Context) ([]float64, error) {
		if err := pace(ctx); err != nil {
			return nil, err
		}
		return frame, nil
	}
}

// scriptedReads plays results in order and then ends the stream.
func scriptedReads(results ...readResult) readFunc {
	var i int
	return func(ctx context.Context) ([]float64, error) {
		if err := pace(ctx); err != nil {
			return nil, err
		}
		if i >= len(results) {
			return nil, io.EOF
		}
		r := results[i]
		i++
		return r.frame, r.err
	}
}

type readResult struct {
	frame []float64
	err   error
}

// recordingSink records every published snapshot in order.
type recordingSink struct {
	*Sink

	mu        sync.Mutex
	published []Snapshot
}

func newRecordingSink() *recordingSink {
	return &recordingSink{Sink: NewSink()}
}

func (r *recordingSink) Publish(s Snapshot) {
	r.Sink.Publish(s)
	r.mu.Lock()
	r.published = append(r.published, r.Sink.Snapshot())
	r.mu.Unlock()
}

func (r *recordingSink) all() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Snapshot(nil), r.published...)
}

// countingTap is a FrameTap that counts calls.
type countingTap struct {
	begins, writes, ends atomic.Int32
	beginErr             error
}

func (t *countingTap) Begin(Device) error {
	t.begins.Add(1)
	return t.beginErr
}

func (t *countingTap) Write([]float64) error {
	t.writes.Add(1)
	return nil
}

func (t *countingTap) End() error {
	t.ends.Add(1)
	return nil
}
