package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roman-kulish/spectrum-watch/internal/spectrum"
)

const (
	maxBatchSize   = 100
	recorderBuffer = 256
)

// WithRecorderLogger sets the logger used to report dropped and failed writes.
func WithRecorderLogger(logger *slog.Logger) func(*Recorder) {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// WithMaxBatchSize sets the maximum number of sweep summaries stored within
// a single database transaction.
func WithMaxBatchSize(size int) func(*Recorder) {
	return func(r *Recorder) {
		if size > 0 {
			r.maxBatchSize = size
		}
	}
}

// WithRecorderBuffer sets how many journal operations may be queued before
// new ones are dropped.
func WithRecorderBuffer(size int) func(*Recorder) {
	return func(r *Recorder) {
		if size > 0 {
			r.bufferSize = size
		}
	}
}

type opKind int

const (
	opRunStarted opKind = iota
	opSweep
	opRunEnded
)

func (k opKind) String() string {
	switch k {
	case opRunStarted:
		return "run_started"
	case opSweep:
		return "sweep"
	case opRunEnded:
		return "run_ended"
	default:
		return "unknown"
	}
}

type op struct {
	kind    opKind
	run     uuid.UUID
	band    string
	at      time.Time
	summary spectrum.Summary
	outcome string
	reason  string
}

// Recorder journals session runs into a Store from a background goroutine.
// Its methods never block the caller: when the queue is full the operation
// is dropped and logged.
type Recorder struct {
	store  Store
	logger *slog.Logger

	maxBatchSize int
	bufferSize   int

	mu     sync.Mutex
	closed bool
	ops    chan op
	done   chan struct{}

	pending map[uuid.UUID][]spectrum.Summary
}

// NewRecorder creates a Recorder and starts its writer goroutine.
func NewRecorder(store Store, options ...func(*Recorder)) *Recorder {
	r := Recorder{
		store:        store,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
		maxBatchSize: maxBatchSize,
		bufferSize:   recorderBuffer,
		done:         make(chan struct{}),
		pending:      make(map[uuid.UUID][]spectrum.Summary),
	}

	for _, option := range options {
		option(&r)
	}

	r.ops = make(chan op, r.bufferSize)
	go r.loop()

	return &r
}

// RunStarted queues the creation of a run.
func (r *Recorder) RunStarted(run uuid.UUID, band string, at time.Time) {
	r.enqueue(op{kind: opRunStarted, run: run, band: band, at: at})
}

// SweepCompleted queues a sweep summary. Summaries are written in batches of
// up to the maximum batch size, and when their run ends.
func (r *Recorder) SweepCompleted(run uuid.UUID, summary spectrum.Summary) {
	r.enqueue(op{kind: opSweep, run: run, summary: summary})
}

// RunEnded flushes the queued summaries of the run and records its end.
func (r *Recorder) RunEnded(run uuid.UUID, at time.Time, outcome string, reason string) {
	r.enqueue(op{kind: opRunEnded, run: run, at: at, outcome: outcome, reason: reason})
}

func (r *Recorder) enqueue(o op) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	select {
	case r.ops <- o:
	default:
		r.logger.Warn("journal queue full, dropping operation",
			slog.String("run", o.run.String()),
			slog.String("kind", o.kind.String()),
		)
	}
}

func (r *Recorder) loop() {
	defer close(r.done)

	ctx := context.Background()
	for o := range r.ops {
		switch o.kind {
		case opRunStarted:
			if err := r.store.CreateRun(ctx, &Run{ID: o.run, Band: o.band, StartedAt: o.at}); err != nil {
				r.logger.Error(fmt.Sprintf("creating run: %s", err.Error()), slog.String("run", o.run.String()))
			}

		case opSweep:
			r.pending[o.run] = append(r.pending[o.run], o.summary)
			if len(r.pending[o.run]) >= r.maxBatchSize {
				r.flush(ctx, o.run)
			}

		case opRunEnded:
			r.flush(ctx, o.run)
			if err := r.store.EndRun(ctx, o.run, o.at, o.outcome, o.reason); err != nil {
				r.logger.Error(fmt.Sprintf("ending run: %s", err.Error()), slog.String("run", o.run.String()))
			}
		}
	}

	// Runs still open when the recorder closes keep their sweeps but no end.
	for run := range r.pending {
		r.flush(ctx, run)
	}
}

func (r *Recorder) flush(ctx context.Context, run uuid.UUID) {
	sweeps := r.pending[run]
	delete(r.pending, run)

	for batch := range slices.Chunk(sweeps, r.maxBatchSize) {
		if err := r.store.StoreSweeps(ctx, run, batch); err != nil {
			r.logger.Error(fmt.Sprintf("storing sweeps: %s", err.Error()),
				slog.String("run", run.String()),
				slog.Int("count", len(batch)),
			)
		}
	}
}

// Close stops accepting operations, drains the queue and waits for the
// writer to finish. It does not close the Store.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.ops)
	}
	r.mu.Unlock()

	<-r.done
	return nil
}
