package render

import (
	"errors"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/roman-kulish/spectrum-watch/internal/spectrum"
	"github.com/roman-kulish/spectrum-watch/internal/stream"
)

var testBand = spectrum.Band{Name: "2.4", Label: "2.4 GHz", FrequencyStart: 2400, FrequencyEnd: 2500}

func testFrame() stream.Frame {
	decay := spectrum.DefaultDecay()
	newest := make([]spectrum.Point, 0, 101)
	older := make([]spectrum.Point, 0, 101)
	for i := 0; i <= 100; i++ {
		f := 2400 + float64(i)
		newest = append(newest, spectrum.Point{Frequency: f, Power: -80 + 40*math.Sin(float64(i)/10)})
		older = append(older, spectrum.Point{Frequency: f, Power: -90})
	}

	return stream.Frame{
		Band: testBand,
		Sweeps: []spectrum.SweepView{
			{ID: 2, Index: 0, Points: newest, Style: decay.Style(0)},
			{ID: 1, Index: 1, Points: older, Style: decay.Style(1)},
		},
		At: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestFrameBounds(t *testing.T) {
	tests := []struct {
		name   string
		powers []float64
		want   PowerBounds
	}{
		{name: "too few points", powers: []float64{-50, -40}, want: defaultPowerBounds()},
		{name: "flat spectrum widened", powers: repeat(-70, 40), want: PowerBounds{Min: -87, Max: -51}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points := make([]spectrum.Point, len(tt.powers))
			for i, p := range tt.powers {
				points[i] = spectrum.Point{Frequency: float64(i), Power: p}
			}
			got := FrameBounds([]spectrum.SweepView{{Points: points}})
			if got != tt.want {
				t.Errorf("FrameBounds() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestSmoothBounds(t *testing.T) {
	s := NewSmoothBounds(0.5)

	if got := s.Update(PowerBounds{Min: -100, Max: -50}); got != (PowerBounds{Min: -100, Max: -50}) {
		t.Fatalf("first Update() = %+v, want input", got)
	}
	if got := s.Update(PowerBounds{Min: -80, Max: -30}); got != (PowerBounds{Min: -90, Max: -40}) {
		t.Fatalf("second Update() = %+v, want halfway", got)
	}

	s.Clear()
	if s.Current() != defaultPowerBounds() {
		t.Errorf("Current() after Clear = %+v, want defaults", s.Current())
	}
}

func TestResample(t *testing.T) {
	bounds := PowerBounds{Min: -100, Max: -20}
	points := []spectrum.Point{
		{Frequency: 0, Power: -90},
		{Frequency: 1, Power: -60}, // same bin as 0, higher
		{Frequency: 5, Power: -200},
		{Frequency: 9.9, Power: 0},
		{Frequency: 50, Power: -10}, // out of range
	}

	got := Resample(points, 0, 10, 5, bounds)
	want := []float64{40, 40, 0, 0, 80}
	if len(got) != len(want) {
		t.Fatalf("Resample() returned %d values, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Resample()[%d] = %v, want %v (all: %v)", i, got[i], want[i], got)
		}
	}
}

func TestNiceFrequencyStep(t *testing.T) {
	tests := []struct {
		span  float64
		width int
		want  float64
	}{
		{span: 100, width: 1200, want: 10},
		{span: 83.5, width: 1024, want: 10},
		{span: 700, width: 960, want: 100},
		{span: 1, width: 600, want: 0.2},
		{span: 0, width: 600, want: 1},
	}

	for _, tt := range tests {
		if got := niceFrequencyStep(tt.span, tt.width); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("niceFrequencyStep(%v, %d) = %v, want %v", tt.span, tt.width, got, tt.want)
		}
	}
}

func TestFormatFrequency(t *testing.T) {
	tests := []struct {
		mhz  float64
		want string
	}{
		{mhz: 2400, want: "2.4 GHz"},
		{mhz: 5180, want: "5.18 GHz"},
		{mhz: 433.92, want: "433.92 MHz"},
		{mhz: 0.5, want: "500 kHz"},
	}

	for _, tt := range tests {
		if got := formatFrequency(tt.mhz); got != tt.want {
			t.Errorf("formatFrequency(%v) = %q, want %q", tt.mhz, got, tt.want)
		}
	}
}

func TestFrameRenderer_Render(t *testing.T) {
	r, err := NewFrameRenderer(Config{Width: 200, Height: 100, Location: time.UTC})
	if err != nil {
		t.Fatalf("NewFrameRenderer() error = %v", err)
	}

	frame := testFrame()
	img, err := r.Render(frame)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	wantW := 200 + defaultLeftBorder + defaultRightBorder
	wantH := 100 + defaultTopBorder + defaultBottomBorder
	if img.Bounds() != image.Rect(0, 0, wantW, wantH) {
		t.Fatalf("image bounds = %v, want %dx%d", img.Bounds(), wantW, wantH)
	}

	// The newest sweep is drawn last, so its first point has the accent color.
	bg, _ := colorful.Hex(defaultBackground)
	accent := frame.Sweeps[0].Style.Over(bg)

	area := plotArea{
		rect:    image.Rect(defaultLeftBorder, defaultTopBorder, defaultLeftBorder+200, defaultTopBorder+100),
		freqMin: testBand.FrequencyStart,
		freqMax: testBand.FrequencyEnd,
		power:   r.bounds.Current(),
	}
	p0 := frame.Sweeps[0].Points[0]

	gotR, gotG, gotB, _ := img.At(area.x(p0.Frequency), area.y(p0.Power)).RGBA()
	wantR, wantG, wantB, _ := accent.RGBA()
	if gotR>>8 != wantR>>8 || gotG>>8 != wantG>>8 || gotB>>8 != wantB>>8 {
		t.Errorf("first point color = %v,%v,%v, want accent %v,%v,%v",
			gotR>>8, gotG>>8, gotB>>8, wantR>>8, wantG>>8, wantB>>8)
	}
}

func TestFrameRenderer_Errors(t *testing.T) {
	if _, err := NewFrameRenderer(Config{Background: "not a color"}); err == nil {
		t.Error("NewFrameRenderer() with invalid color succeeded, want error")
	}

	r, err := NewFrameRenderer(Config{})
	if err != nil {
		t.Fatalf("NewFrameRenderer() error = %v", err)
	}
	_, err = r.Render(stream.Frame{Band: spectrum.Band{Name: "x"}})
	if !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("Render() of empty frame error = %v, want ErrEmptyFrame", err)
	}

	// Band range is optional when the frame has points.
	frame := testFrame()
	frame.Band = spectrum.Band{Name: "custom"}
	if _, err = r.Render(frame); err != nil {
		t.Errorf("Render() without band range error = %v", err)
	}
}

func TestDrawLine(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	c := colorful.Color{R: 1}

	drawLine(img, img.Bounds(), 0, 0, 9, 9, c)
	for i := 0; i < 10; i++ {
		if r, _, _, _ := img.At(i, i).RGBA(); r == 0 {
			t.Errorf("pixel (%d,%d) not set", i, i)
		}
	}

	// Clipped segments do not panic or draw outside.
	drawLine(img, image.Rect(0, 0, 5, 5), -5, 2, 20, 2, c)
	if r, _, _, _ := img.At(7, 2).RGBA(); r != 0 {
		t.Error("pixel outside clip was set")
	}
}

func TestPNGWriter(t *testing.T) {
	r, err := NewFrameRenderer(Config{Width: 120, Height: 60})
	if err != nil {
		t.Fatalf("NewFrameRenderer() error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "frame.png")
	written := make(chan stream.Frame, 16)
	w, err := NewPNGWriter(path, r, WithOnWritten(func(f stream.Frame) { written <- f }))
	if err != nil {
		t.Fatalf("NewPNGWriter() error = %v", err)
	}

	for i := 0; i < 5; i++ {
		frame := testFrame()
		frame.Final = i == 4
		w.Render(frame)
	}
	if err = w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	close(written)

	// Intermediate frames may be coalesced, the last one always lands.
	var last stream.Frame
	n := 0
	for f := range written {
		last = f
		n++
	}
	if n == 0 || !last.Final {
		t.Fatalf("written %d frames, last final = %v; want the final frame written last", n, last.Final)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening output: %v", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if img.Bounds().Dx() != 120+defaultLeftBorder+defaultRightBorder {
		t.Errorf("output width = %d", img.Bounds().Dx())
	}

	// Render after Close is ignored.
	w.Render(testFrame())
}

func TestNewPNGWriter_Invalid(t *testing.T) {
	r, _ := NewFrameRenderer(Config{})
	if _, err := NewPNGWriter("", r); err == nil {
		t.Error("NewPNGWriter() with empty path succeeded, want error")
	}
	if _, err := NewPNGWriter("x.png", nil); err == nil {
		t.Error("NewPNGWriter() without renderer succeeded, want error")
	}
}

func TestTerminalPlot(t *testing.T) {
	p := NewTerminalPlot(40, 10, true)
	if p.String() != "" {
		t.Fatal("String() before Update is not empty")
	}

	p.Update(testFrame())
	if p.String() == "" {
		t.Fatal("String() after Update is empty")
	}

	p.Resize(20, 5)
	if p.String() != "" {
		t.Error("String() after Resize is not empty")
	}

	p.Update(stream.Frame{Band: spectrum.Band{Name: "x"}})
	if p.String() != "" {
		t.Error("String() of empty frame is not empty")
	}
}
