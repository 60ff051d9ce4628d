package spectrum

import (
	"cmp"
	"slices"
	"time"
)

// Point represents a single measurement at a specific frequency.
type Point struct {
	Frequency float64 `json:"frequency"` // Frequency in MHz
	Power     float64 `json:"power"`     // Measured power level in dBm
}

// Band is a frequency range selectable for scanning.
type Band struct {
	Name           string  `json:"name" yaml:"name"`                     // Identifier used in the stream endpoint, e.g. "2.4"
	Label          string  `json:"label" yaml:"label"`                   // Human readable name, e.g. "2.4 GHz"
	FrequencyStart float64 `json:"frequencyStart" yaml:"frequencyStart"` // Lower plot bound in MHz
	FrequencyEnd   float64 `json:"frequencyEnd" yaml:"frequencyEnd"`     // Upper plot bound in MHz
}

// Batch is a timestamped group of points belonging to one sweep.
type Batch struct {
	Timestamp time.Time
	Points    []Point
}

func comparePoints(a, b Point) int {
	return cmp.Compare(a.Frequency, b.Frequency)
}

// Sweep is one pass across a band. Points are kept sorted by frequency.
// A sweep is only mutated while it is the active (newest) sweep of a History.
type Sweep struct {
	ID        uint64
	StartedAt time.Time
	points    []Point
}

func newSweep(id uint64, startedAt time.Time, capacity int) *Sweep {
	return &Sweep{
		ID:        id,
		StartedAt: startedAt,
		points:    make([]Point, 0, capacity),
	}
}

// Points returns the sweep points in frequency order. The returned slice must
// not be modified.
func (s *Sweep) Points() []Point {
	return s.points
}

// Len returns the number of points in the sweep.
func (s *Sweep) Len() int {
	return len(s.points)
}

// insert adds points keeping the frequency order. A single point is placed
// with a binary search; larger batches are appended and re-sorted only when
// they break the order. Growth is left to append, which is amortized.
func (s *Sweep) insert(points ...Point) {
	switch len(points) {
	case 0:
		return

	case 1:
		p := points[0]
		if n := len(s.points); n == 0 || s.points[n-1].Frequency <= p.Frequency {
			s.points = append(s.points, p)
			return
		}
		i, _ := slices.BinarySearchFunc(s.points, p, comparePoints)
		for i < len(s.points) && s.points[i].Frequency == p.Frequency {
			i++ // equal frequencies keep arrival order
		}
		s.points = slices.Insert(s.points, i, p)

	default:
		n := len(s.points)
		s.points = append(s.points, points...)
		if (n > 0 && s.points[n-1].Frequency > s.points[n].Frequency) || !slices.IsSortedFunc(s.points[n:], comparePoints) {
			slices.SortStableFunc(s.points, comparePoints)
		}
	}
}

// Summary describes a finished sweep.
type Summary struct {
	SweepID        uint64
	StartedAt      time.Time
	Points         int
	FrequencyStart float64 // MHz
	FrequencyEnd   float64 // MHz
	PeakFrequency  float64 // MHz
	PeakPower      float64 // dBm
}

// Summarize reports the span and peak of the sweep. It returns false for an
// empty sweep.
func (s *Sweep) Summarize() (Summary, bool) {
	if len(s.points) == 0 {
		return Summary{}, false
	}

	sum := Summary{
		SweepID:        s.ID,
		StartedAt:      s.StartedAt,
		Points:         len(s.points),
		FrequencyStart: s.points[0].Frequency,
		FrequencyEnd:   s.points[len(s.points)-1].Frequency,
		PeakFrequency:  s.points[0].Frequency,
		PeakPower:      s.points[0].Power,
	}
	for _, p := range s.points[1:] {
		if p.Power > sum.PeakPower {
			sum.PeakPower = p.Power
			sum.PeakFrequency = p.Frequency
		}
	}

	return sum, true
}
