package render

import (
	"math"

	plot "github.com/chriskim06/drawille-go"

	"github.com/roman-kulish/spectrum-watch/internal/spectrum"
	"github.com/roman-kulish/spectrum-watch/internal/stream"
)

// TerminalPlot draws frames as a braille line chart. Each sweep is resampled
// into one value per plot column: the peak power of the points in that
// frequency bin, offset so the bounds minimum sits on the baseline.
type TerminalPlot struct {
	canvas    *plot.Canvas
	bounds    *SmoothBounds
	highlight plot.Color
	dim       plot.Color
	empty     bool
}

// NewTerminalPlot creates a plot of the given size in terminal cells.
func NewTerminalPlot(width, height int, dark bool) *TerminalPlot {
	t := &TerminalPlot{bounds: NewSmoothBounds(defaultSmoothing), empty: true}
	if dark {
		t.highlight, t.dim = plot.Red, plot.DimGray
	} else {
		t.highlight, t.dim = plot.Black, plot.LightGray
	}
	t.Resize(width, height)
	return t
}

// Resize rebuilds the canvas for a new size. The next Update redraws it.
func (t *TerminalPlot) Resize(width, height int) {
	p := plot.NewCanvas(max(width, 2), max(height, 2))
	p.NumDataPoints = max(width, 2) * 2 // two braille dots per cell
	p.ShowAxis = false
	t.canvas = &p
	t.empty = true
}

// Bounds returns the power range of the last update.
func (t *TerminalPlot) Bounds() PowerBounds {
	return t.bounds.Current()
}

// Update fills the canvas from the frame, oldest sweep first so the newest
// is drawn last.
func (t *TerminalPlot) Update(frame stream.Frame) {
	lo, hi, ok := frequencyRange(frame.Band, frame.Sweeps)
	if !ok {
		t.empty = true
		return
	}

	bounds := t.bounds.Update(FrameBounds(frame.Sweeps))
	n := t.canvas.NumDataPoints

	series := make([][]float64, 0, len(frame.Sweeps))
	colors := make([]plot.Color, 0, len(frame.Sweeps))
	for i := len(frame.Sweeps) - 1; i >= 0; i-- {
		s := frame.Sweeps[i]
		if len(s.Points) == 0 {
			continue
		}
		series = append(series, Resample(s.Points, lo, hi, n, bounds))
		if s.Style.Accent {
			colors = append(colors, t.highlight)
		} else {
			colors = append(colors, t.dim)
		}
	}
	if len(series) == 0 {
		t.empty = true
		return
	}

	t.canvas.LineColors = colors
	t.canvas.Fill(series)
	t.empty = false
}

// String renders the canvas, or an empty string when there is nothing to show.
func (t *TerminalPlot) String() string {
	if t.empty {
		return ""
	}
	return t.canvas.String()
}

// Resample maps points onto n frequency bins spanning [lo, hi]. Each bin
// holds the peak power within it minus bounds.Min, clamped to the bounds.
// Empty bins repeat the previous value so lines stay continuous.
func Resample(points []spectrum.Point, lo, hi float64, n int, bounds PowerBounds) []float64 {
	out := make([]float64, n)
	if n == 0 || hi <= lo {
		return out
	}

	filled := make([]bool, n)
	width := (hi - lo) / float64(n)
	for _, p := range points {
		if p.Frequency < lo || p.Frequency > hi {
			continue
		}
		bin := min(n-1, int((p.Frequency-lo)/width))
		v := math.Max(0, math.Min(bounds.Span(), p.Power-bounds.Min))
		if !filled[bin] || v > out[bin] {
			out[bin] = v
			filled[bin] = true
		}
	}

	for i := 1; i < n; i++ {
		if !filled[i] && filled[i-1] {
			out[i] = out[i-1]
			filled[i] = true
		}
	}
	return out
}
