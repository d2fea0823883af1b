// SPDX-License-Identifier: MIT
package analysis

// Levels holds the four normalized scalars produced for one frame: overall
// volume plus the bass, mid and treble energy shares. Every field is in [0, 1].
type Levels struct {
	Volume float64 `json:"volume"`
	Bass   float64 `json:"bass"`
	Mid    float64 `json:"mid"`
	Treble float64 `json:"treble"`
}

// Clamp returns a copy of l with every field limited to [0, 1].
func (l Levels) Clamp() Levels {
	return Levels{
		Volume: clamp01(l.Volume),
		Bass:   clamp01(l.Bass),
		Mid:    clamp01(l.Mid),
		Treble: clamp01(l.Treble),
	}
}

// clamp01 limits v to [0, 1]. NaN maps to 0.
func clamp01(v float64) float64 {
	if !(v > 0) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
