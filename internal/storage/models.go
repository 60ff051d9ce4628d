package storage

import (
	"time"

	"github.com/google/uuid"

	"github.com/roman-kulish/spectrum-watch/internal/spectrum"
)

// Run is one journaled stream run, from Start to the close confirmation.
type Run struct {
	ID        uuid.UUID  `json:"id"`
	Band      string     `json:"band"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"` // nil while running or if the process died
	Outcome   string     `json:"outcome,omitempty"`
	Reason    string     `json:"reason,omitempty"` // failure text, verbatim
}

// Duration returns how long the run lasted, or zero if it never ended.
func (r *Run) Duration() time.Duration {
	if r.EndedAt == nil {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// SweepRecord is a journaled sweep summary.
type SweepRecord struct {
	RunID uuid.UUID `json:"runID"`
	spectrum.Summary
}
