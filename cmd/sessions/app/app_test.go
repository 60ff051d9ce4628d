package app

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/roman-kulish/spectrum-watch/internal/spectrum"
	"github.com/roman-kulish/spectrum-watch/internal/storage"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func seedJournal(t *testing.T) (string, uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "journal.sqlite")
	store := storage.NewSqliteStore(path)
	defer store.Close()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	id := uuid.New()
	if err := store.CreateRun(ctx, &storage.Run{ID: id, Band: "2.4", StartedAt: base}); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}

	sweeps := make([]spectrum.Summary, 3)
	for i := range sweeps {
		sweeps[i] = spectrum.Summary{
			SweepID:        uint64(i + 1),
			StartedAt:      base.Add(time.Duration(i) * time.Second),
			Points:         1200,
			FrequencyStart: 2400,
			FrequencyEnd:   2500,
			PeakFrequency:  2437,
			PeakPower:      -42.5,
		}
	}
	if err := store.StoreSweeps(ctx, id, sweeps); err != nil {
		t.Fatalf("StoreSweeps() error = %v", err)
	}
	if err := store.EndRun(ctx, id, base.Add(95*time.Second), "server_error", "Error: device busy"); err != nil {
		t.Fatalf("EndRun() error = %v", err)
	}

	open := uuid.New()
	if err := store.CreateRun(ctx, &storage.Run{ID: open, Band: "5", StartedAt: base.Add(time.Hour)}); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}

	return path, id
}

func TestRun_ListRuns(t *testing.T) {
	path, id := seedJournal(t)

	var out bytes.Buffer
	if err := Run(context.Background(), &Config{DBPath: path}, &out, discard); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := out.String()
	for _, want := range []string{id.String(), "1m35s", "server_error", "Error: device busy", "unfinished"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestRun_ListSweeps(t *testing.T) {
	path, id := seedJournal(t)

	var out bytes.Buffer
	config := &Config{DBPath: path, RunID: &id, Limit: 2}
	if err := Run(context.Background(), config, &out, discard); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := out.String()
	for _, want := range []string{"band 2.4", "1,200", "2437.000", "-42.5", "2 sweeps"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestRun_UnknownRun(t *testing.T) {
	path, _ := seedJournal(t)

	id := uuid.New()
	err := Run(context.Background(), &Config{DBPath: path, RunID: &id}, io.Discard, discard)
	if err == nil {
		t.Fatal("Run() succeeded for an unknown run, want error")
	}
}

func TestRun_MissingDatabase(t *testing.T) {
	config := &Config{DBPath: filepath.Join(t.TempDir(), "missing.sqlite")}
	if err := Run(context.Background(), config, io.Discard, discard); err == nil {
		t.Fatal("Run() succeeded without a database, want error")
	}
}

func TestConfig_Parse(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		run     string
		since   string
		until   string
		wantErr bool
	}{
		{name: "runs", config: Config{DBPath: "j.sqlite"}},
		{name: "sweeps", config: Config{DBPath: "j.sqlite", Limit: 5}, run: uuid.NewString(), since: "2025-03-01T12:00:00Z"},
		{name: "no db", wantErr: true},
		{name: "bad run", config: Config{DBPath: "j.sqlite"}, run: "seven", wantErr: true},
		{name: "bad time", config: Config{DBPath: "j.sqlite"}, run: uuid.NewString(), until: "yesterday", wantErr: true},
		{name: "limit without run", config: Config{DBPath: "j.sqlite", Limit: 1}, wantErr: true},
		{name: "negative limit", config: Config{DBPath: "j.sqlite", Limit: -1}, run: uuid.NewString(), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.config
			err := c.parse(tt.run, tt.since, tt.until)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parse() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
