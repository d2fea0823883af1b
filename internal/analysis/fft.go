// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

var (
	// ErrEmptyFrame is returned for frames too short to window (fewer than two samples).
	ErrEmptyFrame = errors.New("analysis: empty frame")
	// ErrFrameSize is returned when a frame does not match the analyzer size.
	ErrFrameSize = errors.New("analysis: frame size mismatch")
	// ErrSampleRate is returned for a non-positive sample rate.
	ErrSampleRate = errors.New("analysis: sample rate must be positive")
)

// Pre-allocated buffers for one frame size.
type workspace struct {
	input  []float64    // windowed samples
	coeffs []complex128 // FFT output, size/2+1 bins
	power  []float64    // |coeff|^2 per bin
	window []float64    // Hann coefficients
}

// Analyzer turns a mono frame into Levels. It owns its buffers and is not
// safe for concurrent use; the capture worker keeps one per session.
type Analyzer struct {
	fft       *fourier.FFT
	size      int
	tuning    Tuning
	workspace workspace
}

// NewAnalyzer prepares an Analyzer for frames of exactly size samples.
func NewAnalyzer(size int, tuning Tuning) (*Analyzer, error) {
	if size < 2 {
		return nil, fmt.Errorf("%w: size %d", ErrEmptyFrame, size)
	}
	if err := tuning.Validate(); err != nil {
		return nil, err
	}

	coeffs := make([]float64, size)
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	// w[i] = 0.5*(1 - cos(2*pi*i/(N-1)))
	window.Hann(coeffs)

	bins := size/2 + 1
	return &Analyzer{
		fft:    fourier.NewFFT(size),
		size:   size,
		tuning: tuning,
		workspace: workspace{
			input:  make([]float64, size),
			coeffs: make([]complex128, bins),
			power:  make([]float64, bins),
			window: coeffs,
		},
	}, nil
}

// Size returns the frame length the analyzer accepts.
func (a *Analyzer) Size() int { return a.size }

// Analyze windows frame, measures its RMS and spectral balance and returns
// the clamped Levels. Frames of the wrong length are rejected, never padded.
func (a *Analyzer) Analyze(frame []float64, sampleRate float64) (Levels, error) {
	if len(frame) < 2 {
		return Levels{}, ErrEmptyFrame
	}
	if len(frame) != a.size {
		return Levels{}, fmt.Errorf("%w: got %d, want %d", ErrFrameSize, len(frame), a.size)
	}
	if !(sampleRate > 0) {
		return Levels{}, ErrSampleRate
	}

	ws := &a.workspace
	var sumSquares float64
	for i, s := range frame {
		v := s * ws.window[i]
		ws.input[i] = v
		sumSquares += v * v
	}
	rms := math.Sqrt(sumSquares / float64(a.size))

	a.fft.Coefficients(ws.coeffs, ws.input)
	for i, c := range ws.coeffs {
		re, im := real(c), imag(c)
		ws.power[i] = re*re + im*im
	}

	// fft.Freq(1) is the bin spacing in cycles per sample.
	bands := integrateBands(ws.power, a.fft.Freq(1)*sampleRate, a.tuning)

	return Levels{
		Volume: rms * a.tuning.VolumeGain,
		Bass:   bands.bass * a.tuning.BandGain,
		Mid:    bands.mid * a.tuning.BandGain,
		Treble: bands.treble * a.tuning.BandGain,
	}.Clamp(), nil
}

// Analyze is a convenience wrapper that builds a one-off Analyzer with the
// default tuning for len(frame).
func Analyze(frame []float64, sampleRate float64) (Levels, error) {
	if len(frame) < 2 {
		return Levels{}, ErrEmptyFrame
	}
	a, err := NewAnalyzer(len(frame), DefaultTuning())
	if err != nil {
		return Levels{}, err
	}
	return a.Analyze(frame, sampleRate)
}
