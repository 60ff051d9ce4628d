package spectrum

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

const (
	// DefaultCapacity is the number of sweeps retained by default.
	DefaultCapacity = 10

	minSweepCapacity = 64
)

var (
	// ErrInvalidCapacity is returned when the history capacity is not positive
	ErrInvalidCapacity = errors.New("history capacity must be positive")

	// ErrNoActiveSweep is returned when points arrive before any sweep has begun
	ErrNoActiveSweep = errors.New("no active sweep")

	// ErrStaleSweep is returned when points are appended to a superseded sweep
	ErrStaleSweep = errors.New("sweep is no longer active")
)

// SweepView is one entry of a History snapshot.
type SweepView struct {
	ID     uint64
	Index  int // 0 is the newest sweep
	Points []Point
	Style  Style
}

// History is a fixed-capacity ring of sweeps ordered newest-first. Only the
// newest sweep accepts points.
//
// History is not safe for concurrent use; it is owned by a single event loop.
type History struct {
	sweeps []*Sweep
	head   int // ring position of the newest sweep
	count  int
	nextID uint64
	decay  Decay
}

// NewHistory creates a History that retains at most capacity sweeps.
func NewHistory(capacity int, decay Decay) (*History, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}

	return &History{
		sweeps: make([]*Sweep, capacity),
		head:   capacity - 1,
		decay:  decay,
	}, nil
}

// Cap returns the maximum number of retained sweeps.
func (h *History) Cap() int {
	return len(h.sweeps)
}

// Len returns the number of retained sweeps.
func (h *History) Len() int {
	return h.count
}

// At returns the sweep at index, where 0 is the newest, or nil.
func (h *History) At(index int) *Sweep {
	if index < 0 || index >= h.count {
		return nil
	}
	return h.sweeps[(h.head-index+len(h.sweeps))%len(h.sweeps)]
}

// Active returns the sweep accepting points, or nil if none has begun.
func (h *History) Active() *Sweep {
	return h.At(0)
}

// Begin starts a new sweep at index 0. At capacity the oldest sweep is evicted
// first and returned. The new sweep is pre-sized to the length of the sweep it
// supersedes.
func (h *History) Begin(at time.Time) (id uint64, evicted *Sweep) {
	capacity := minSweepCapacity
	if active := h.Active(); active != nil {
		capacity = max(capacity, active.Len())
	}

	h.head = (h.head + 1) % len(h.sweeps)
	if h.count == len(h.sweeps) {
		evicted = h.sweeps[h.head]
	} else {
		h.count++
	}

	h.nextID++
	h.sweeps[h.head] = newSweep(h.nextID, at, capacity)

	return h.nextID, evicted
}

// Append adds points to the active sweep identified by id.
func (h *History) Append(id uint64, points ...Point) error {
	active := h.Active()
	if active == nil {
		return ErrNoActiveSweep
	}
	if active.ID != id {
		return fmt.Errorf("%w: sweep %d, active %d", ErrStaleSweep, id, active.ID)
	}

	active.insert(points...)
	return nil
}

// Reset discards every sweep.
func (h *History) Reset() {
	clear(h.sweeps)
	h.head = len(h.sweeps) - 1
	h.count = 0
}

// Snapshot returns the sweeps newest-first with their current style. The
// active sweep points are copied; superseded sweeps are immutable and shared.
func (h *History) Snapshot() []SweepView {
	views := make([]SweepView, h.count)
	for i := range views {
		sweep := h.At(i)

		points := sweep.Points()
		if i == 0 {
			points = slices.Clone(points)
		}

		views[i] = SweepView{
			ID:     sweep.ID,
			Index:  i,
			Points: points,
			Style:  h.decay.Style(i),
		}
	}

	return views
}
