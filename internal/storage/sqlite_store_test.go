package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/roman-kulish/spectrum-watch/internal/spectrum"
)

func newTestStore(t *testing.T) *SqliteStore {
	t.Helper()

	s := NewSqliteStore(filepath.Join(t.TempDir(), "journal.db"))
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing store: %v", err)
		}
	})
	return s
}

func summaries(base time.Time, n int) []spectrum.Summary {
	out := make([]spectrum.Summary, n)
	for i := range out {
		out[i] = spectrum.Summary{
			SweepID:        uint64(i + 1),
			StartedAt:      base.Add(time.Duration(i) * time.Second),
			Points:         100 + i,
			FrequencyStart: 2400,
			FrequencyEnd:   2483.5,
			PeakFrequency:  2437 + float64(i),
			PeakPower:      -40 - float64(i),
		}
	}
	return out
}

func TestSqliteStore_RunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	started := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	id := uuid.New()

	if err := s.CreateRun(ctx, &Run{ID: id, Band: "2.4", StartedAt: started}); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}

	run, err := s.Run(ctx, id)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if run.EndedAt != nil {
		t.Errorf("EndedAt = %v, want nil for a running run", run.EndedAt)
	}
	if run.Duration() != 0 {
		t.Errorf("Duration() = %v, want 0", run.Duration())
	}

	ended := started.Add(90 * time.Second)
	if err = s.EndRun(ctx, id, ended, "server_error", "Error: device busy"); err != nil {
		t.Fatalf("EndRun() error = %v", err)
	}

	run, err = s.Run(ctx, id)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if run.ID != id || run.Band != "2.4" {
		t.Errorf("Run() = %+v, want id %s band 2.4", run, id)
	}
	if !run.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", run.StartedAt, started)
	}
	if run.EndedAt == nil || !run.EndedAt.Equal(ended) {
		t.Errorf("EndedAt = %v, want %v", run.EndedAt, ended)
	}
	if run.Outcome != "server_error" || run.Reason != "Error: device busy" {
		t.Errorf("Outcome/Reason = %q/%q", run.Outcome, run.Reason)
	}
	if run.Duration() != 90*time.Second {
		t.Errorf("Duration() = %v, want 90s", run.Duration())
	}
}

func TestSqliteStore_NotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// Create the schema first; the read connection is read-only.
	if err := s.CreateRun(ctx, &Run{ID: uuid.New(), Band: "5", StartedAt: time.Now()}); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}

	if _, err := s.Run(ctx, uuid.New()); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Run() error = %v, want ErrRunNotFound", err)
	}
	if err := s.EndRun(ctx, uuid.New(), time.Now(), "stopped", ""); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("EndRun() error = %v, want ErrRunNotFound", err)
	}
}

func TestSqliteStore_RunsOrdered(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

	// Insert out of order.
	for _, i := range []int{2, 0, 1} {
		run := &Run{ID: ids[i], Band: "2.4", StartedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := s.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun() error = %v", err)
		}
	}

	runs, err := s.Runs(ctx)
	if err != nil {
		t.Fatalf("Runs() error = %v", err)
	}
	if len(runs) != len(ids) {
		t.Fatalf("Runs() returned %d runs, want %d", len(runs), len(ids))
	}
	for i, run := range runs {
		if run.ID != ids[i] {
			t.Errorf("runs[%d].ID = %s, want %s", i, run.ID, ids[i])
		}
	}
}

func TestSqliteStore_Sweeps(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	id := uuid.New()

	if err := s.CreateRun(ctx, &Run{ID: id, Band: "2.4", StartedAt: base}); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}
	if err := s.StoreSweeps(ctx, id, nil); err != nil {
		t.Fatalf("StoreSweeps(nil) error = %v", err)
	}

	want := summaries(base, 5)
	if err := s.StoreSweeps(ctx, id, want[:3]); err != nil {
		t.Fatalf("StoreSweeps() error = %v", err)
	}
	if err := s.StoreSweeps(ctx, id, want[3:]); err != nil {
		t.Fatalf("StoreSweeps() error = %v", err)
	}

	tests := []struct {
		name    string
		opts    []ReaderOption
		wantIDs []uint64
	}{
		{name: "all", wantIDs: []uint64{1, 2, 3, 4, 5}},
		{name: "limit", opts: []ReaderOption{WithLimit(2)}, wantIDs: []uint64{1, 2}},
		{
			name:    "time range",
			opts:    []ReaderOption{WithTimeRange(base.Add(time.Second), base.Add(3*time.Second))},
			wantIDs: []uint64{2, 3, 4},
		},
		{
			name:    "start time and limit",
			opts:    []ReaderOption{WithStartTime(base.Add(2 * time.Second)), WithLimit(1)},
			wantIDs: []uint64{3},
		},
		{name: "end time", opts: []ReaderOption{WithEndTime(base)}, wantIDs: []uint64{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := s.ReadSweeps(ctx, id, tt.opts...)
			if err != nil {
				t.Fatalf("ReadSweeps() error = %v", err)
			}
			defer r.Close()

			var got []uint64
			for r.Next(ctx) {
				rec := r.Current()
				if rec.RunID != id {
					t.Errorf("RunID = %s, want %s", rec.RunID, id)
				}
				w := want[rec.SweepID-1]
				if !rec.StartedAt.Equal(w.StartedAt) || rec.Points != w.Points || rec.PeakPower != w.PeakPower {
					t.Errorf("sweep %d = %+v, want %+v", rec.SweepID, rec.Summary, w)
				}
				got = append(got, rec.SweepID)
			}
			if err = r.Err(); err != nil {
				t.Fatalf("Err() = %v", err)
			}

			if len(got) != len(tt.wantIDs) {
				t.Fatalf("got sweeps %v, want %v", got, tt.wantIDs)
			}
			for i := range got {
				if got[i] != tt.wantIDs[i] {
					t.Errorf("got sweeps %v, want %v", got, tt.wantIDs)
					break
				}
			}
		})
	}
}

func TestSqliteStore_ReaderInvalidOptions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.CreateRun(ctx, &Run{ID: uuid.New(), Band: "5", StartedAt: time.Now()}); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}

	now := time.Now()
	if _, err := s.ReadSweeps(ctx, uuid.New(), WithTimeRange(now, now.Add(-time.Second))); err == nil {
		t.Error("ReadSweeps() with inverted range succeeded, want error")
	}
	if _, err := s.ReadSweeps(ctx, uuid.New(), WithLimit(-1)); err == nil {
		t.Error("ReadSweeps() with negative limit succeeded, want error")
	}
}

func TestSqliteStore_CloseTwice(t *testing.T) {
	s := NewSqliteStore(filepath.Join(t.TempDir(), "journal.db"))
	if err := s.CreateRun(context.Background(), &Run{ID: uuid.New(), Band: "5", StartedAt: time.Now()}); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}
