package render

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"

	"github.com/roman-kulish/spectrum-watch/internal/stream"
)

const (
	dpi            = 96.0
	pixelsPerLabel = 120.0
)

type annotator struct {
	context    *freetype.Context
	face       font.Face
	config     Config
	foreground color.Color
}

func newAnnotator(f *truetype.Font, config Config, foreground color.Color) (*annotator, error) {
	if f == nil {
		return nil, fmt.Errorf("font required")
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(f)
	ctx.SetFontSize(config.FontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.NewUniform(foreground))

	return &annotator{
		context: ctx,
		face: truetype.NewFace(f, &truetype.Options{
			Size:    config.FontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
		config:     config,
		foreground: foreground,
	}, nil
}

func (a *annotator) Close() error {
	if a.face != nil {
		return a.face.Close()
	}
	return nil
}

func (a *annotator) annotate(img *image.RGBA, area plotArea, frame stream.Frame) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	ops := []struct {
		msg string
		fn  func(*image.RGBA, plotArea, stream.Frame) error
	}{
		{"drawing frequency scale", a.drawFrequencyScale},
		{"drawing power scale", a.drawPowerScale},
		{"drawing info bar", a.drawInfoBar},
	}
	for _, op := range ops {
		if err := op.fn(img, area, frame); err != nil {
			return fmt.Errorf("%s: %w", op.msg, err)
		}
	}

	return nil
}

func (a *annotator) fontHeight() int {
	m := a.face.Metrics()
	return (m.Ascent + m.Descent).Round()
}

func (a *annotator) drawFrequencyScale(img *image.RGBA, area plotArea, _ stream.Frame) error {
	step := niceFrequencyStep(area.freqMax-area.freqMin, area.rect.Dx())
	start := math.Ceil(area.freqMin/step) * step
	textY := area.rect.Max.Y + tickMarkLength + a.fontHeight()

	for freq := start; freq <= area.freqMax+step/1e6; freq += step {
		x := area.x(freq)
		for y := area.rect.Max.Y; y < area.rect.Max.Y+tickMarkLength; y++ {
			img.Set(x, y, a.foreground)
		}

		label := formatFrequency(freq)
		width := font.MeasureString(a.face, label).Round()
		if _, err := a.context.DrawString(label, freetype.Pt(x-width/2, textY)); err != nil {
			return fmt.Errorf("drawing frequency label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawPowerScale(img *image.RGBA, area plotArea, _ stream.Frame) error {
	metrics := a.face.Metrics()
	start := math.Ceil(area.power.Min/powerStep) * powerStep

	for power := start; power <= area.power.Max; power += powerStep {
		y := area.y(power)
		for x := area.rect.Min.X - tickMarkLength; x < area.rect.Min.X; x++ {
			img.Set(x, y, a.foreground)
		}

		label := fmt.Sprintf("%.0f dBm", power)
		width := font.MeasureString(a.face, label).Round()
		textY := y + a.fontHeight()/2 - metrics.Descent.Round()
		pt := freetype.Pt(area.rect.Min.X-tickMarkLength-3-width, textY)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing power label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawInfoBar(img *image.RGBA, area plotArea, frame stream.Frame) error {
	var sb strings.Builder

	name := frame.Band.Label
	if name == "" {
		name = frame.Band.Name
	}
	sb.WriteString(fmt.Sprintf("Band %s: %s", name, formatFrequencyRange(area.freqMin, area.freqMax)))
	sb.WriteString(fmt.Sprintf("; sweeps: %d", len(frame.Sweeps)))
	if !frame.At.IsZero() {
		sb.WriteString("; ")
		sb.WriteString(frame.At.In(a.config.Location).Format(a.config.TimeFormat))
	}
	if frame.Final {
		sb.WriteString("; stopped")
	}

	metrics := a.face.Metrics()
	textY := img.Bounds().Max.Y - metrics.Descent.Round() - 4
	if _, err := a.context.DrawString(sb.String(), freetype.Pt(area.rect.Min.X, textY)); err != nil {
		return fmt.Errorf("drawing info text: %w", err)
	}
	return nil
}

// niceFrequencyStep returns a decimal step in MHz giving roughly one label
// per pixelsPerLabel pixels.
func niceFrequencyStep(span float64, width int) float64 {
	if span <= 0 || width <= 0 {
		return 1
	}

	target := span / math.Max(1, float64(width)/pixelsPerLabel)
	magnitude := math.Pow(10, math.Floor(math.Log10(target)))
	for _, m := range []float64{1, 2, 5, 10} {
		if step := m * magnitude; step >= target {
			return step
		}
	}
	return 10 * magnitude
}

// formatFrequency formats a frequency given in MHz with an SI prefix.
func formatFrequency(mhz float64) string {
	value, prefix := humanize.ComputeSI(mhz * 1e6)
	return fmt.Sprintf("%s %sHz", humanize.FtoaWithDigits(value, 3), prefix)
}

func formatFrequencyRange(lo, hi float64) string {
	return fmt.Sprintf("%s - %s", formatFrequency(lo), formatFrequency(hi))
}
