package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/roman-kulish/spectrum-watch/internal/spectrum"
)

// ErrRunNotFound is returned when a run does not exist
var ErrRunNotFound = errors.New("run not found")

// Store journals stream runs and the summaries of their sweeps. The journal
// is write-mostly; nothing read from it is fed back into a live history.
type Store interface {
	// CreateRun records the start of a run.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - run: Run identifier, band and start time; end fields are ignored
	CreateRun(ctx context.Context, run *Run) error

	// EndRun records how and when a run ended. reason is empty for a normal stop.
	EndRun(ctx context.Context, id uuid.UUID, endedAt time.Time, outcome, reason string) error

	// StoreSweeps saves sweep summaries of a run in a single transaction.
	StoreSweeps(ctx context.Context, id uuid.UUID, sweeps []spectrum.Summary) error

	// Run returns a single run or ErrRunNotFound.
	Run(ctx context.Context, id uuid.UUID) (*Run, error)

	// Runs returns all runs ordered by start time.
	Runs(ctx context.Context) ([]*Run, error)

	// Close releases all database connections. It is safe to call Close
	// multiple times.
	Close() error
}
