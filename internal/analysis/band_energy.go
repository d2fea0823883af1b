// SPDX-License-Identifier: MIT
package analysis

// bandShares holds each band's share of the total spectral power.
type bandShares struct {
	bass   float64
	mid    float64
	treble float64
}

// integrateBands sums power into the three disjoint bands
// [BassLow, BassHigh), [BassHigh, MidHigh) and [MidHigh, TrebleHigh) and
// divides each by the power of all bins, where bin i sits at i*binHz. Bins
// outside every band (DC, sub-bass, above TrebleHigh) still count towards
// the total.
func integrateBands(power []float64, binHz float64, t Tuning) bandShares {
	var bass, mid, treble, total float64
	for i, p := range power {
		total += p

		freq := float64(i) * binHz
		switch {
		case freq < t.BassLowHz:
		case freq < t.BassHighHz:
			bass += p
		case freq < t.MidHighHz:
			mid += p
		case freq < t.TrebleHighHz:
			treble += p
		}
	}

	if total < powerFloor {
		total = powerFloor
	}
	return bandShares{
		bass:   bass / total,
		mid:    mid / total,
		treble: treble / total,
	}
}
