package stream

import (
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Set(base time.Time, offset time.Duration) { c.now = base.Add(offset) }

func TestScheduler_Throttle(t *testing.T) {
	clock := newFakeClock()
	base := clock.now

	var renders []time.Duration
	s := NewScheduler(100*time.Millisecond, clock, func(final bool) {
		renders = append(renders, clock.now.Sub(base))
	})

	for _, at := range []time.Duration{0, 40 * time.Millisecond, 130 * time.Millisecond} {
		clock.Set(base, at)
		s.OnData()
	}

	if len(renders) != 2 {
		t.Fatalf("Expected 2 renders, got %d: %v", len(renders), renders)
	}
	if renders[0] != 0 || renders[1] != 130*time.Millisecond {
		t.Errorf("Expected renders at 0 and 130ms, got %v", renders)
	}
	if delta := renders[1] - renders[0]; delta < 100*time.Millisecond {
		t.Errorf("Renders too close: %v", delta)
	}
	if s.Suppressed() != 1 {
		t.Errorf("Expected 1 suppressed notification, got %d", s.Suppressed())
	}
}

func TestScheduler_FlushAlwaysRenders(t *testing.T) {
	tests := []struct {
		name   string
		events []time.Duration
		want   int // renders including the flush
	}{
		{"no data", nil, 1},
		{"last data suppressed", []time.Duration{0, 10 * time.Millisecond}, 2},
		{"last data rendered", []time.Duration{0, 200 * time.Millisecond}, 3},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clock := newFakeClock()
			base := clock.now

			var count, finals int
			s := NewScheduler(100*time.Millisecond, clock, func(final bool) {
				count++
				if final {
					finals++
				}
			})

			for _, at := range tc.events {
				clock.Set(base, at)
				s.OnData()
			}
			s.Flush()

			if count != tc.want {
				t.Errorf("Expected %d renders, got %d", tc.want, count)
			}
			if finals != 1 {
				t.Errorf("Expected exactly 1 final render, got %d", finals)
			}
		})
	}
}

func TestScheduler_FlushRestartsInterval(t *testing.T) {
	clock := newFakeClock()
	base := clock.now

	var count int
	s := NewScheduler(100*time.Millisecond, clock, func(bool) { count++ })

	s.Flush()
	clock.Set(base, 50*time.Millisecond)
	if s.OnData() {
		t.Error("Render within the interval after a flush")
	}

	s.Reset()
	if !s.OnData() {
		t.Error("Expected a render after reset")
	}
	if count != 2 {
		t.Errorf("Expected 2 renders, got %d", count)
	}
}
