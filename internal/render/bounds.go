package render

import (
	"math"

	"github.com/roman-kulish/spectrum-watch/internal/spectrum"
)

const (
	defaultMinPower = -100.0 // dBm
	defaultMaxPower = -20.0  // dBm

	// Below this many points the percentiles are meaningless.
	minimumSampleCount = 20

	// minimumRange keeps flat spectra from filling the plot with noise.
	minimumRange = 30
)

// PowerBounds is the power range mapped onto the vertical axis.
type PowerBounds struct {
	Min float64 // dBm
	Max float64 // dBm
}

// Span returns Max - Min, never less than 1 dB.
func (b PowerBounds) Span() float64 {
	return math.Max(1, b.Max-b.Min)
}

// Normalize maps power into [0, 1] within the bounds.
func (b PowerBounds) Normalize(power float64) float64 {
	return math.Max(0, math.Min(1, (power-b.Min)/b.Span()))
}

func defaultPowerBounds() PowerBounds {
	return PowerBounds{Min: defaultMinPower, Max: defaultMaxPower}
}

// powerHistogram counts power readings in 1 dBm bins.
type powerHistogram struct {
	bins   map[int]int
	total  int
	minBin int
	maxBin int
}

func newPowerHistogram() *powerHistogram {
	return &powerHistogram{
		bins:   make(map[int]int),
		minBin: math.MaxInt32,
		maxBin: math.MinInt32,
	}
}

func (h *powerHistogram) update(power float64) {
	if math.IsNaN(power) || math.IsInf(power, 0) {
		return
	}

	bin := int(math.Floor(power))
	h.bins[bin]++
	h.total++

	h.minBin = min(h.minBin, bin)
	h.maxBin = max(h.maxBin, bin)
}

// percentileBounds returns the 5th..95th percentile range plus a 10% margin.
func (h *powerHistogram) percentileBounds() PowerBounds {
	if h.total < minimumSampleCount {
		return defaultPowerBounds()
	}

	target := h.total * 5 / 100

	var count, lo, hi int
	for bin := h.minBin; bin <= h.maxBin; bin++ {
		count += h.bins[bin]
		if count >= target {
			lo = bin
			break
		}
	}

	count = 0
	for bin := h.maxBin; bin >= h.minBin; bin-- {
		count += h.bins[bin]
		if count >= target {
			hi = bin + 1
			break
		}
	}

	if hi-lo < minimumRange {
		center := (hi + lo) / 2
		lo = center - minimumRange/2
		hi = center + minimumRange/2
	}

	margin := (hi - lo) / 10
	return PowerBounds{Min: float64(lo - margin), Max: float64(hi + margin)}
}

// FrameBounds computes power bounds over every point of the given sweeps.
func FrameBounds(sweeps []spectrum.SweepView) PowerBounds {
	h := newPowerHistogram()
	for _, s := range sweeps {
		for _, p := range s.Points {
			h.update(p.Power)
		}
	}
	return h.percentileBounds()
}

// SmoothBounds eases bounds between frames so the axis does not jump with
// every sweep.
type SmoothBounds struct {
	alpha   float64 // smoothing factor in (0, 1]
	current PowerBounds
	primed  bool
}

// NewSmoothBounds creates a smoother. An alpha outside (0, 1] disables
// smoothing.
func NewSmoothBounds(alpha float64) *SmoothBounds {
	if alpha <= 0 || alpha > 1 {
		alpha = 1
	}
	return &SmoothBounds{alpha: alpha, current: defaultPowerBounds()}
}

// Update blends next into the current bounds and returns the result. The
// first update is taken as is.
func (s *SmoothBounds) Update(next PowerBounds) PowerBounds {
	if !s.primed {
		s.current, s.primed = next, true
		return s.current
	}

	s.current.Min = s.current.Min*(1-s.alpha) + next.Min*s.alpha
	s.current.Max = s.current.Max*(1-s.alpha) + next.Max*s.alpha
	return s.current
}

// Current returns the current smoothed bounds.
func (s *SmoothBounds) Current() PowerBounds {
	return s.current
}

// Clear resets to the default bounds.
func (s *SmoothBounds) Clear() {
	s.current = defaultPowerBounds()
	s.primed = false
}
