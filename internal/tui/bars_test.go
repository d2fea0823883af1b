// SPDX-License-Identifier: MIT
package tui

import (
	"math"
	"strings"
	"testing"
)

func TestBar(t *testing.T) {
	tests := []struct {
		value float64
		width int
		want  string
	}{
		{0, 10, "----------"},
		{1, 10, "||||||||||"},
		{0.5, 10, "|||||-----"},
		{0.25, 10, "||--------"}, // 2.5 rounds half to even
		{0.75, 4, "|||-"},
		{-1, 4, "----"},
		{7, 4, "||||"},
		{math.NaN(), 4, "----"},
		{0.5, 0, ""},
	}

	for _, tt := range tests {
		if got := Bar(tt.value, tt.width); got != tt.want {
			t.Errorf("Bar(%v, %d) = %q, want %q", tt.value, tt.width, got, tt.want)
		}
	}
}

func TestBarWidth(t *testing.T) {
	for _, v := range []float64{0, 0.1, 0.33, 0.5, 0.77, 1} {
		got := Bar(v, DefaultBarWidth)
		if len(got) != DefaultBarWidth {
			t.Errorf("Bar(%v) has width %d", v, len(got))
		}
		if strings.Contains(strings.TrimLeft(got, "|"), "|") {
			t.Errorf("Bar(%v) = %q is not a prefix fill", v, got)
		}
	}
}

func TestLevelColor(t *testing.T) {
	tests := []struct {
		value float64
		want  string
	}{
		{0, "#00ff00"},
		{0.25, "#7fff00"},
		{0.5, "#ffff00"},
		{0.75, "#ff7f00"},
		{1, "#ff0000"},
		{-2, "#00ff00"},
		{3, "#ff0000"},
	}
	for _, tt := range tests {
		if got := LevelColor(tt.value); got != tt.want {
			t.Errorf("LevelColor(%v) = %s, want %s", tt.value, got, tt.want)
		}
	}
}
