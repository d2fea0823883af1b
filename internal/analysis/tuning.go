// SPDX-License-Identifier: MIT
package analysis

import "fmt"

// Empirical tuning constants. They are kept at the values that give the
// overlay its established look rather than derived from any loudness model.
const (
	DefaultVolumeGain   = 10.0    // RMS multiplier for the volume level
	DefaultBandGain     = 8.0     // Multiplier applied to each band's energy share
	DefaultBassLowHz    = 20.0    // Bass band lower edge (inclusive)
	DefaultBassHighHz   = 250.0   // Bass/mid boundary
	DefaultMidHighHz    = 2000.0  // Mid/treble boundary
	DefaultTrebleHighHz = 16000.0 // Treble band upper edge (exclusive)
	DefaultSmoothing    = 0.6     // Share of the previous value kept by Smooth

	// powerFloor keeps the band normalization finite for silent frames.
	powerFloor = 1e-12
)

// Tuning groups the gain constants and band cutoffs used by the Analyzer.
type Tuning struct {
	VolumeGain   float64
	BandGain     float64
	BassLowHz    float64
	BassHighHz   float64
	MidHighHz    float64
	TrebleHighHz float64
}

// DefaultTuning returns the stock gains and cutoffs.
func DefaultTuning() Tuning {
	return Tuning{
		VolumeGain:   DefaultVolumeGain,
		BandGain:     DefaultBandGain,
		BassLowHz:    DefaultBassLowHz,
		BassHighHz:   DefaultBassHighHz,
		MidHighHz:    DefaultMidHighHz,
		TrebleHighHz: DefaultTrebleHighHz,
	}
}

// Validate reports whether the cutoffs are ascending and the gains positive.
func (t Tuning) Validate() error {
	if t.VolumeGain <= 0 || t.BandGain <= 0 {
		return fmt.Errorf("gains must be positive, got volume=%g band=%g", t.VolumeGain, t.BandGain)
	}
	if !(t.BassLowHz >= 0 && t.BassLowHz < t.BassHighHz && t.BassHighHz < t.MidHighHz && t.MidHighHz < t.TrebleHighHz) {
		return fmt.Errorf("band cutoffs must be ascending, got %g/%g/%g/%g",
			t.BassLowHz, t.BassHighHz, t.MidHighHz, t.TrebleHighHz)
	}
	return nil
}
