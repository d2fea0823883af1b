// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	recordingBitDepth = 16
	recordingMaxValue = 32767
)

// Recorder is a FrameTap that writes the mono capture of each session to a
// 16-bit WAV file in dir.
type Recorder struct {
	dir string

	mu         sync.Mutex
	outputFile *os.File
	wavEncoder *wav.Encoder
	sampleBuf  *audio.IntBuffer
	path       string
}

// NewRecorder returns a Recorder writing into dir. The directory is created
// on the first session.
func NewRecorder(dir string) *Recorder {
	return &Recorder{dir: dir}
}

// Begin opens a new file for dev.
func (r *Recorder) Begin(dev Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.wavEncoder != nil {
		return fmt.Errorf("already recording to %s", r.path)
	}
	if !(dev.SampleRate > 0) {
		return fmt.Errorf("recording %q: unknown sample rate", dev.Name)
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return err
	}

	r.path = filepath.Join(r.dir, recordingName(dev, time.Now()))
	file, err := os.Create(r.path)
	if err != nil {
		return err
	}
	r.outputFile = file

	rate := int(dev.SampleRate)
	r.wavEncoder = wav.NewEncoder(file, rate, recordingBitDepth, 1, 1)
	r.sampleBuf = &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		SourceBitDepth: recordingBitDepth,
	}
	return nil
}

// Write appends one frame, clipping samples to full scale.
func (r *Recorder) Write(frame []float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.wavEncoder == nil {
		return nil
	}
	if cap(r.sampleBuf.Data) < len(frame) {
		r.sampleBuf.Data = make([]int, len(frame))
	}
	r.sampleBuf.Data = r.sampleBuf.Data[:len(frame)]
	for i, s := range frame {
		s = max(-1, min(1, s))
		r.sampleBuf.Data[i] = int(s * recordingMaxValue)
	}
	return r.wavEncoder.Write(r.sampleBuf)
}

// End finalises the WAV header and closes the file.
func (r *Recorder) End() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.wavEncoder == nil {
		return nil
	}
	err := r.wavEncoder.Close()
	r.wavEncoder = nil
	err = errors.Join(err, r.outputFile.Close())
	r.outputFile = nil
	return err
}

// Path returns the file of the current or most recent session.
func (r *Recorder) Path() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path
}

func recordingName(dev Device, now time.Time) string {
	label := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '_'
		}
	}, dev.Backend)
	if label == "" {
		label = "capture"
	}
	return fmt.Sprintf("deskviz-%s-%s.wav", label, now.Format("20060102-150405.000"))
}
