package stream

import (
	"time"
)

// DefaultDrawInterval is the minimum time between two throttled renders.
const DefaultDrawInterval = 100 * time.Millisecond

// Clock provides the current time to the scheduler.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// Scheduler throttles renders to at most one per interval. There is no
// trailing timer: data suppressed by throttling is only drawn by the next
// qualifying OnData call or by Flush.
type Scheduler struct {
	interval time.Duration
	clock    Clock
	render   func(final bool)

	last     time.Time
	rendered bool

	suppressed uint64
}

// NewScheduler creates a Scheduler calling render when a frame is due.
func NewScheduler(interval time.Duration, clock Clock, render func(final bool)) *Scheduler {
	if interval < 0 {
		interval = 0
	}
	if clock == nil {
		clock = SystemClock
	}

	return &Scheduler{
		interval: interval,
		clock:    clock,
		render:   render,
	}
}

// OnData notifies that new data is available and renders if the interval has
// elapsed since the last render. It reports whether a render happened.
func (s *Scheduler) OnData() bool {
	now := s.clock.Now()
	if s.rendered && now.Sub(s.last) < s.interval {
		s.suppressed++
		return false
	}

	s.fire(now, false)
	return true
}

// Flush renders unconditionally.
func (s *Scheduler) Flush() {
	s.fire(s.clock.Now(), true)
}

// Reset forgets the last render time.
func (s *Scheduler) Reset() {
	s.rendered = false
	s.last = time.Time{}
}

// Suppressed returns the number of OnData calls that did not render.
func (s *Scheduler) Suppressed() uint64 {
	return s.suppressed
}

func (s *Scheduler) fire(now time.Time, final bool) {
	s.last = now
	s.rendered = true
	s.render(final)
}
