package spectrum

import (
	"math"
	"testing"

	"github.com/lucasb-eyer/go-colorful"
)

func TestDecay_Style(t *testing.T) {
	d := DefaultDecay()

	tests := []struct {
		index   int
		opacity float64
		accent  bool
	}{
		{0, 1.0, true},
		{1, 0.9, false},
		{5, 0.5, false},
		{9, 0.1, false},
		{15, DefaultMinOpacity, false},
	}

	for _, tc := range tests {
		s := d.Style(tc.index)
		if math.Abs(s.Opacity-tc.opacity) > 1e-9 {
			t.Errorf("Index %d: expected opacity %v, got %v", tc.index, tc.opacity, s.Opacity)
		}
		if s.Accent != tc.accent {
			t.Errorf("Index %d: expected accent %v, got %v", tc.index, tc.accent, s.Accent)
		}

		want := DefaultNeutralColor
		if tc.accent {
			want = DefaultAccentColor
		}
		if got := s.Color.Hex(); got != want {
			t.Errorf("Index %d: expected color %s, got %s", tc.index, want, got)
		}
	}
}

func TestDecay_MonotoneWithFloor(t *testing.T) {
	for _, params := range []struct{ step, floor float64 }{
		{0.1, 0.1}, {0.25, 0.3}, {0, 0.5}, {1, 0},
	} {
		d, err := NewDecay(params.step, params.floor, DefaultAccentColor, DefaultNeutralColor)
		if err != nil {
			t.Fatalf("Failed to create decay: %v", err)
		}

		prev := math.Inf(1)
		for i := 0; i < 50; i++ {
			o := d.Style(i).Opacity
			if o > prev {
				t.Errorf("step %v: opacity increased at %d", params.step, i)
			}
			if o < params.floor {
				t.Errorf("step %v: opacity %v below floor %v", params.step, o, params.floor)
			}
			prev = o
		}
	}
}

func TestNewDecay_Invalid(t *testing.T) {
	tests := []struct {
		name            string
		step, floor     float64
		accent, neutral string
	}{
		{"negative step", -0.1, 0.1, DefaultAccentColor, DefaultNeutralColor},
		{"floor above one", 0.1, 1.5, DefaultAccentColor, DefaultNeutralColor},
		{"bad accent", 0.1, 0.1, "indigo", DefaultNeutralColor},
		{"bad neutral", 0.1, 0.1, DefaultAccentColor, "#12"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewDecay(tc.step, tc.floor, tc.accent, tc.neutral); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

func TestStyle_Over(t *testing.T) {
	white := colorful.Color{R: 1, G: 1, B: 1}
	s := Style{Opacity: 1, Color: colorful.Color{R: 0, G: 0, B: 0}}

	if got := s.Over(white); got.Hex() != "#000000" {
		t.Errorf("Full opacity: expected #000000, got %s", got.Hex())
	}

	s.Opacity = 0
	if got := s.Over(white); got.Hex() != "#ffffff" {
		t.Errorf("Zero opacity: expected #ffffff, got %s", got.Hex())
	}
}
