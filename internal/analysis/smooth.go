// SPDX-License-Identifier: MIT
package analysis

// Smooth applies one step of an exponential moving average to each channel:
//
//	next = alpha*prev + (1-alpha)*raw
//
// It is a first-order recursive filter, so callers must feed frames one at a
// time and in capture order. alpha outside [0, 1] is clamped.
func Smooth(prev, raw Levels, alpha float64) Levels {
	alpha = clamp01(alpha)
	fresh := 1.0 - alpha
	return Levels{
		Volume: alpha*prev.Volume + fresh*raw.Volume,
		Bass:   alpha*prev.Bass + fresh*raw.Bass,
		Mid:    alpha*prev.Mid + fresh*raw.Mid,
		Treble: alpha*prev.Treble + fresh*raw.Treble,
	}
}
