package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ReaderOption configures a SweepReader with specific filtering criteria.
type ReaderOption func(*SweepReader)

// WithStartTime excludes sweeps that started before t.
func WithStartTime(t time.Time) ReaderOption {
	return func(r *SweepReader) {
		r.startTime = &t
	}
}

// WithEndTime excludes sweeps that started after t.
func WithEndTime(t time.Time) ReaderOption {
	return func(r *SweepReader) {
		r.endTime = &t
	}
}

// WithTimeRange sets both start and end time filters.
func WithTimeRange(startTime, endTime time.Time) ReaderOption {
	return func(r *SweepReader) {
		r.startTime = &startTime
		r.endTime = &endTime
	}
}

// WithLimit caps the number of sweeps returned.
func WithLimit(n int) ReaderOption {
	return func(r *SweepReader) {
		r.limit = n
	}
}

// SweepReader iterates over the journaled sweep summaries of a run in
// sweep order.
type SweepReader struct {
	runID uuid.UUID

	startTime *time.Time
	endTime   *time.Time
	limit     int
	read      int

	rows    *sql.Rows
	current *SweepRecord
	err     error
}

func newSweepReader(ctx context.Context, db *sql.DB, runID uuid.UUID, opts ...ReaderOption) (*SweepReader, error) {
	if db == nil {
		return nil, errors.New("database connection required")
	}

	sr := &SweepReader{runID: runID}
	for _, opt := range opts {
		opt(sr)
	}

	if sr.startTime != nil && sr.endTime != nil && sr.startTime.After(*sr.endTime) {
		return nil, fmt.Errorf("start time %s is after end time %s", sr.startTime, sr.endTime)
	}
	if sr.limit < 0 {
		return nil, fmt.Errorf("invalid limit %d", sr.limit)
	}

	rows, err := db.QueryContext(ctx, selectSweepsSQL, runID.String())
	if err != nil {
		return nil, fmt.Errorf("querying sweeps: %w", err)
	}
	sr.rows = rows

	return sr, nil
}

func (sr *SweepReader) accept(t time.Time) bool {
	if sr.startTime != nil && t.Before(*sr.startTime) {
		return false
	}
	if sr.endTime != nil && t.After(*sr.endTime) {
		return false
	}
	return true
}

// Next advances the iterator and returns true if there is another sweep to
// read. When it returns false, Err distinguishes the end of data from a
// failure.
func (sr *SweepReader) Next(ctx context.Context) bool {
	if sr.err != nil || sr.rows == nil {
		return false
	}
	if sr.limit > 0 && sr.read >= sr.limit {
		return false
	}

	for sr.rows.Next() {
		select {
		case <-ctx.Done():
			sr.err = ctx.Err()
			return false
		default:
		}

		var (
			rec   SweepRecord
			runID string
		)
		err := sr.rows.Scan(
			&runID,
			&rec.SweepID,
			&rec.StartedAt,
			&rec.Points,
			&rec.FrequencyStart,
			&rec.FrequencyEnd,
			&rec.PeakFrequency,
			&rec.PeakPower,
		)
		if err != nil {
			sr.err = fmt.Errorf("scanning sweep: %w", err)
			return false
		}

		rec.RunID = sr.runID
		rec.StartedAt = rec.StartedAt.UTC()
		if !sr.accept(rec.StartedAt) {
			continue
		}

		sr.current = &rec
		sr.read++
		return true
	}

	return false
}

// Current returns the sweep read by the last successful call to Next.
func (sr *SweepReader) Current() *SweepRecord {
	return sr.current
}

// Err returns any error that occurred during iteration.
func (sr *SweepReader) Err() error {
	if sr.err != nil {
		return sr.err
	}
	if sr.rows != nil {
		return sr.rows.Err()
	}
	return nil
}

// Close releases the underlying rows. The reader must not be used after.
func (sr *SweepReader) Close() error {
	if sr.rows == nil {
		return nil
	}
	err := sr.rows.Close()
	sr.rows = nil
	sr.current = nil
	return err
}
