package spectrum

import (
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

const (
	DefaultDecayStep    = 0.1
	DefaultMinOpacity   = 0.1
	DefaultAccentColor  = "#4f46e5"
	DefaultNeutralColor = "#475569"
)

// Style is the visual rank of a sweep, derived from its position in History.
type Style struct {
	Opacity float64        // 1 for the newest sweep, decaying with age
	Color   colorful.Color // Accent for the newest sweep, neutral otherwise
	Accent  bool
}

// Over returns the style color composited over the background at the style opacity.
func (s Style) Over(background colorful.Color) colorful.Color {
	return background.BlendRgb(s.Color, s.Opacity).Clamped()
}

// Decay maps a history index to a Style.
type Decay struct {
	Step       float64
	MinOpacity float64
	Accent     colorful.Color
	Neutral    colorful.Color
}

// DefaultDecay returns the decay used when none is configured.
func DefaultDecay() Decay {
	d, _ := NewDecay(DefaultDecayStep, DefaultMinOpacity, DefaultAccentColor, DefaultNeutralColor)
	return d
}

// NewDecay validates the parameters and parses the hex colors.
func NewDecay(step, minOpacity float64, accent, neutral string) (Decay, error) {
	if step < 0 {
		return Decay{}, fmt.Errorf("decay step must not be negative: %v", step)
	}
	if minOpacity < 0 || minOpacity > 1 {
		return Decay{}, fmt.Errorf("minimum opacity must be within [0, 1]: %v", minOpacity)
	}

	a, err := colorful.Hex(accent)
	if err != nil {
		return Decay{}, fmt.Errorf("parsing accent color: %w", err)
	}
	n, err := colorful.Hex(neutral)
	if err != nil {
		return Decay{}, fmt.Errorf("parsing neutral color: %w", err)
	}

	return Decay{Step: step, MinOpacity: minOpacity, Accent: a, Neutral: n}, nil
}

// Style returns the style for the sweep at index, where 0 is the newest.
func (d Decay) Style(index int) Style {
	s := Style{
		Opacity: math.Max(d.MinOpacity, 1-float64(index)*d.Step),
		Color:   d.Neutral,
	}
	if index == 0 {
		s.Color = d.Accent
		s.Accent = true
	}

	return s
}
