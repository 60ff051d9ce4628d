package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"time"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font/gofont/gomono"

	"github.com/roman-kulish/spectrum-watch/internal/spectrum"
	"github.com/roman-kulish/spectrum-watch/internal/stream"
)

const (
	defaultWidth      = 1024
	defaultHeight     = 480
	defaultFontSize   = 10.0
	defaultBackground = "#0f172a"
	defaultForeground = "#cbd5e1"
	defaultTimeFormat = "15:04:05"
	defaultSmoothing  = 0.3

	defaultTopBorder    = 20
	defaultLeftBorder   = 70
	defaultBottomBorder = 50
	defaultRightBorder  = 20

	tickMarkLength = 5
	powerStep      = 10.0 // dB between power ticks
)

// ErrEmptyFrame is returned when a frame has no points to plot.
var ErrEmptyFrame = errors.New("frame has no points")

// BorderConfig defines the space around the plot area.
type BorderConfig struct {
	Top    int
	Left   int // power scale
	Bottom int // frequency scale and info bar
	Right  int
}

// Config configures a FrameRenderer. Zero values take defaults.
type Config struct {
	Width      int     // plot area width in pixels
	Height     int     // plot area height in pixels
	FontSize   float64 // points
	Background string  // hex color
	Foreground string  // hex color for scales and text
	TimeFormat string
	Location   *time.Location
	Smoothing  float64 // power bounds smoothing factor in (0, 1]
	Borders    BorderConfig
}

func (c *Config) applyDefaults() {
	if c.Width <= 0 {
		c.Width = defaultWidth
	}
	if c.Height <= 0 {
		c.Height = defaultHeight
	}
	if c.FontSize <= 0 {
		c.FontSize = defaultFontSize
	}
	if c.Background == "" {
		c.Background = defaultBackground
	}
	if c.Foreground == "" {
		c.Foreground = defaultForeground
	}
	if c.TimeFormat == "" {
		c.TimeFormat = defaultTimeFormat
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	if c.Smoothing == 0 {
		c.Smoothing = defaultSmoothing
	}
	if c.Borders.Top == 0 {
		c.Borders.Top = defaultTopBorder
	}
	if c.Borders.Left == 0 {
		c.Borders.Left = defaultLeftBorder
	}
	if c.Borders.Bottom == 0 {
		c.Borders.Bottom = defaultBottomBorder
	}
	if c.Borders.Right == 0 {
		c.Borders.Right = defaultRightBorder
	}
}

// FrameRenderer draws History frames as overlaid power lines: the newest
// sweep in the accent color on top, older sweeps fading towards the
// background.
//
// FrameRenderer is not safe for concurrent use.
type FrameRenderer struct {
	config     Config
	background colorful.Color
	foreground colorful.Color
	font       *truetype.Font
	bounds     *SmoothBounds
}

// NewFrameRenderer creates a renderer with the given configuration.
func NewFrameRenderer(config Config) (*FrameRenderer, error) {
	config.applyDefaults()

	bg, err := colorful.Hex(config.Background)
	if err != nil {
		return nil, fmt.Errorf("parsing background color: %w", err)
	}
	fg, err := colorful.Hex(config.Foreground)
	if err != nil {
		return nil, fmt.Errorf("parsing foreground color: %w", err)
	}

	parsedFont, err := freetype.ParseFont(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	return &FrameRenderer{
		config:     config,
		background: bg,
		foreground: fg,
		font:       parsedFont,
		bounds:     NewSmoothBounds(config.Smoothing),
	}, nil
}

// plotArea maps frequency and power onto pixels.
type plotArea struct {
	rect    image.Rectangle
	freqMin float64
	freqMax float64
	power   PowerBounds
}

func (a plotArea) x(freq float64) int {
	ratio := (freq - a.freqMin) / math.Max(a.freqMax-a.freqMin, 1e-9)
	return a.rect.Min.X + int(math.Round(ratio*float64(a.rect.Dx()-1)))
}

func (a plotArea) y(power float64) int {
	return a.rect.Max.Y - 1 - int(math.Round(a.power.Normalize(power)*float64(a.rect.Dy()-1)))
}

// frequencyRange returns the band range, or the span of the data when the
// band does not describe one.
func frequencyRange(band spectrum.Band, sweeps []spectrum.SweepView) (lo, hi float64, ok bool) {
	if band.FrequencyEnd > band.FrequencyStart {
		return band.FrequencyStart, band.FrequencyEnd, true
	}

	lo, hi = math.Inf(1), math.Inf(-1)
	for _, s := range sweeps {
		if len(s.Points) == 0 {
			continue
		}
		lo = math.Min(lo, s.Points[0].Frequency)
		hi = math.Max(hi, s.Points[len(s.Points)-1].Frequency)
	}
	if math.IsInf(lo, 0) {
		return 0, 0, false
	}
	if hi <= lo {
		lo, hi = lo-0.5, hi+0.5
	}
	return lo, hi, true
}

// Render draws the frame. It returns ErrEmptyFrame when no sweep has points.
func (r *FrameRenderer) Render(frame stream.Frame) (*image.RGBA, error) {
	lo, hi, ok := frequencyRange(frame.Band, frame.Sweeps)
	if !ok {
		return nil, ErrEmptyFrame
	}

	cfg := r.config
	img := image.NewRGBA(image.Rect(0, 0,
		cfg.Width+cfg.Borders.Left+cfg.Borders.Right,
		cfg.Height+cfg.Borders.Top+cfg.Borders.Bottom,
	))
	draw.Draw(img, img.Bounds(), image.NewUniform(r.background), image.Point{}, draw.Src)

	area := plotArea{
		rect: image.Rect(
			cfg.Borders.Left,
			cfg.Borders.Top,
			cfg.Borders.Left+cfg.Width,
			cfg.Borders.Top+cfg.Height,
		),
		freqMin: lo,
		freqMax: hi,
		power:   r.bounds.Update(FrameBounds(frame.Sweeps)),
	}

	ann, err := newAnnotator(r.font, cfg, r.foreground)
	if err != nil {
		return nil, fmt.Errorf("creating annotator: %w", err)
	}
	defer ann.Close()

	if err = ann.annotate(img, area, frame); err != nil {
		return nil, fmt.Errorf("drawing annotations: %w", err)
	}

	// Oldest first so the newest sweep ends up on top.
	for i := len(frame.Sweeps) - 1; i >= 0; i-- {
		s := frame.Sweeps[i]
		r.drawSweep(img, area, s.Points, s.Style.Over(r.background))
	}

	return img, nil
}

func (r *FrameRenderer) drawSweep(img *image.RGBA, area plotArea, points []spectrum.Point, c color.Color) {
	if len(points) == 1 {
		img.Set(area.x(points[0].Frequency), area.y(points[0].Power), c)
		return
	}

	for i := 1; i < len(points); i++ {
		p0, p1 := points[i-1], points[i]
		drawLine(img, area.rect,
			area.x(p0.Frequency), area.y(p0.Power),
			area.x(p1.Frequency), area.y(p1.Power),
			c)
	}
}

// drawLine draws a line with Bresenham's algorithm, clipped to clip.
func drawLine(img *image.RGBA, clip image.Rectangle, x0, y0, x1, y1 int, c color.Color) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}

	e := dx + dy
	for {
		if (image.Point{X: x0, Y: y0}).In(clip) {
			img.Set(x0, y0, c)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
