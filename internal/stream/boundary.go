package stream

import (
	"fmt"

	"github.com/roman-kulish/spectrum-watch/internal/spectrum"
)

// Decision is the outcome of classifying an arrival.
type Decision int

const (
	Continue Decision = iota
	NewSweep
)

func (d Decision) String() string {
	if d == NewSweep {
		return "new_sweep"
	}
	return "continue"
}

// BoundaryMode selects how sweep boundaries are detected.
type BoundaryMode string

const (
	// BoundaryAuto uses the frequency heuristic until the first sweep marker
	// is seen, then trusts markers for the rest of the run.
	BoundaryAuto BoundaryMode = "auto"

	// BoundaryMarker only starts sweeps on explicit markers.
	BoundaryMarker BoundaryMode = "marker"

	// BoundaryFrequency starts a sweep whenever the frequency goes backwards.
	BoundaryFrequency BoundaryMode = "frequency"
)

// ParseBoundaryMode validates a configured mode name. Empty means auto.
func ParseBoundaryMode(s string) (BoundaryMode, error) {
	switch m := BoundaryMode(s); m {
	case "":
		return BoundaryAuto, nil
	case BoundaryAuto, BoundaryMarker, BoundaryFrequency:
		return m, nil
	default:
		return "", fmt.Errorf("unknown boundary mode '%s'", s)
	}
}

// Detector decides whether an arrival continues the current sweep or starts a new one.
// The frequency heuristic misreads a single out-of-order point as a boundary.
type Detector struct {
	mode       BoundaryMode
	markerSeen bool
	started    bool    // a sweep exists in this run
	last       float64 // last seen frequency of the current sweep
}

// NewDetector creates a Detector in the given mode.
func NewDetector(mode BoundaryMode) *Detector {
	if mode == "" {
		mode = BoundaryAuto
	}
	return &Detector{mode: mode}
}

// Reset forgets everything observed in the previous run.
func (d *Detector) Reset() {
	d.markerSeen = false
	d.started = false
	d.last = 0
}

// MarkerMode reports whether markers are currently trusted.
func (d *Detector) MarkerMode() bool {
	switch d.mode {
	case BoundaryMarker:
		return true
	case BoundaryFrequency:
		return false
	default:
		return d.markerSeen
	}
}

// Marker classifies an explicit sweep-started marker. In frequency mode markers
// are ignored.
func (d *Detector) Marker() Decision {
	if d.mode == BoundaryFrequency {
		return Continue
	}

	d.markerSeen = true
	d.started = true
	d.last = 0
	return NewSweep
}

// Points classifies a batch of points. The first arrival of a run always
// starts a sweep.
func (d *Detector) Points(points []spectrum.Point) Decision {
	if len(points) == 0 {
		return Continue
	}

	lo, hi := points[0].Frequency, points[0].Frequency
	for _, p := range points[1:] {
		lo = min(lo, p.Frequency)
		hi = max(hi, p.Frequency)
	}

	decision := Continue
	switch {
	case !d.started:
		decision = NewSweep
	case d.MarkerMode():
		// markers alone delimit sweeps
	case lo < d.last:
		decision = NewSweep
	}

	d.started = true
	if decision == NewSweep {
		d.last = hi
	} else {
		d.last = max(d.last, hi)
	}

	return decision
}
