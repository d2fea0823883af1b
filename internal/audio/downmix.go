// SPDX-License-Identifier: MIT
package audio

import "encoding/binary"

const int16Scale = 1.0 / 32768.0

// downmixS16 averages interleaved little-endian S16 frames into dst.
// in must hold len(dst)*channels samples.
func downmixS16(dst []float64, in []byte, channels int) {
	if channels < 1 {
		channels = 1
	}
	inv := 1.0 / float64(channels)
	for i := range dst {
		var sum float64
		base := i * channels * 2
		for c := range channels {
			off := base + c*2
			sum += float64(int16(binary.LittleEndian.Uint16(in[off:off+2]))) * int16Scale
		}
		dst[i] = sum * inv
	}
}

// downmixFloat32 averages interleaved float32 frames into dst.
func downmixFloat32(dst []float64, in []float32, channels int) {
	if channels < 1 {
		channels = 1
	}
	inv := 1.0 / float64(channels)
	for i := range dst {
		var sum float64
		base := i * channels
		for c := range channels {
			sum += float64(in[base+c])
		}
		dst[i] = sum * inv
	}
}
