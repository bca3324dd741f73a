package tui

import (
	"testing"

	"overtone/tuning"
)

func TestNoteName(t *testing.T) {
	tests := []struct {
		note float64
		want string
	}{
		{60, "C4"},
		{40, "E2"},
		{55.14, "G3+14c"},
		{63.86, "E4-14c"},
		{69, "A4"},
	}
	for _, tt := range tests {
		if got := noteName(tt.note); got != tt.want {
			t.Errorf("noteName(%v) = %q, want %q", tt.note, got, tt.want)
		}
	}
}

func TestRangeKey(t *testing.T) {
	tests := []struct {
		key   string
		class tuning.Class
		delta int
	}{
		{"+", tuning.Harmonic, 1},
		{"-", tuning.Harmonic, -1},
		{">", tuning.Fundamental, 1},
		{"<", tuning.Fundamental, -1},
	}
	for _, tt := range tests {
		class, delta := rangeKey(tt.key)
		if class != tt.class || delta != tt.delta {
			t.Errorf("rangeKey(%q) = %s %d", tt.key, class, delta)
		}
	}
}
