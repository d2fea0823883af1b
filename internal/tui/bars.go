// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"math"
	"strings"
)

// DefaultBarWidth is the character width of a level bar.
const DefaultBarWidth = 30

// Bar renders value in [0, 1] as width characters of '|' followed by '-'.
// Values outside the range are clamped; NaN renders empty.
func Bar(value float64, width int) string {
	if width <= 0 {
		return ""
	}
	v := clamp01(value)
	filled := int(math.RoundToEven(v * float64(width)))
	return strings.Repeat("|", filled) + strings.Repeat("-", width-filled)
}

// LevelColor maps value in [0, 1] to a hex colour running from green
// through yellow at 0.5 to red.
func LevelColor(value float64) string {
	v := clamp01(value)
	var r, g int
	if v <= 0.5 {
		r = int(255 * (v / 0.5))
		g = 255
	} else {
		r = 255
		g = int(255 * (1 - (v-0.5)/0.5))
	}
	return fmt.Sprintf("#%02x%02x00", r, g)
}

func clamp01(v float64) float64 {
	if !(v > 0) {
		return 0
	}
	return min(v, 1)
}
