// Package utils holds deterministic signal generators shared by tests.
package utils

import "math"

// SineWave returns size samples of a sine at frequency Hz with the given
// peak amplitude, sampled at sampleRate.
func SineWave(size int, sampleRate, frequency, amplitude float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = amplitude * math.Sin(2*math.Pi*frequency*t)
	}
	return buffer
}

// ComplexWave returns a 440 Hz fundamental with two harmonics, peaking
// below full scale.
func ComplexWave(size int, sampleRate float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		buffer[i] = 0.9 * (math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2)
	}
	return buffer
}

// Silence returns size zero samples.
func Silence(size int) []float64 {
	return make([]float64, size)
}

// FullScale returns size samples alternating between +1 and -1.
func FullScale(size int) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		if i%2 == 0 {
			buffer[i] = 1
		} else {
			buffer[i] = -1
		}
	}
	return buffer
}

// Interleave repeats each mono sample across channels, scaling channel c by
// gains[c] when provided.
func Interleave(mono []float64, channels int, gains ...float64) []float64 {
	out := make([]float64, len(mono)*channels)
	for i, s := range mono {
		for c := range channels {
			g := 1.0
			if c < len(gains) {
				g = gains[c]
			}
			out[i*channels+c] = s * g
		}
	}
	return out
}
