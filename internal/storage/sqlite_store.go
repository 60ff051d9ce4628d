package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/spectrum-watch/internal/spectrum"
)

// SqliteStore handles database operations
type SqliteStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

var _ Store = (*SqliteStore)(nil)

// NewSqliteStore creates a store backed by the Sqlite database at dbPath.
// Connections are opened on first use.
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}
		db.SetMaxOpenConns(1)

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SqliteStore) CreateRun(ctx context.Context, run *Run) error {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	if _, err = db.ExecContext(ctx, insertRunSQL, run.ID.String(), run.Band, run.StartedAt.UTC()); err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

func (s *SqliteStore) EndRun(ctx context.Context, id uuid.UUID, endedAt time.Time, outcome, reason string) error {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	result, err := db.ExecContext(ctx, endRunSQL, endedAt.UTC(), outcome, toNullString(reason), id.String())
	if err != nil {
		return fmt.Errorf("updating run: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

func (s *SqliteStore) StoreSweeps(ctx context.Context, id uuid.UUID, sweeps []spectrum.Summary) (err error) {
	if len(sweeps) == 0 {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	const valuesPlaceholder = "(?, ?, ?, ?, ?, ?, ?, ?)"

	values := make([]any, 0, len(sweeps)*8)

	var sb strings.Builder
	sb.WriteString(insertSweepSQL)

	runID := id.String()
	for i, sweep := range sweeps {
		values = append(values,
			runID,
			sweep.SweepID,
			sweep.StartedAt.UTC(),
			sweep.Points,
			sweep.FrequencyStart,
			sweep.FrequencyEnd,
			sweep.PeakFrequency,
			sweep.PeakPower,
		)

		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(valuesPlaceholder)
	}

	// Single batch insert
	if _, err = tx.ExecContext(ctx, sb.String(), values...); err != nil {
		return fmt.Errorf("batch inserting sweeps: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func scanRun(row interface{ Scan(...any) error }) (*Run, error) {
	var (
		run     Run
		id      string
		endedAt sql.NullTime
		outcome sql.NullString
		reason  sql.NullString
	)

	if err := row.Scan(&id, &run.Band, &run.StartedAt, &endedAt, &outcome, &reason); err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parsing run ID '%s': %w", id, err)
	}

	run.ID = parsed
	run.StartedAt = run.StartedAt.UTC()
	run.EndedAt = fromNullTime(endedAt)
	run.Outcome = outcome.String
	run.Reason = reason.String

	return &run, nil
}

func (s *SqliteStore) Run(ctx context.Context, id uuid.UUID) (*Run, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	run, err := scanRun(db.QueryRowContext(ctx, selectRunSQL, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning run: %w", err)
	}

	return run, nil
}

func (s *SqliteStore) Runs(ctx context.Context) (runs []*Run, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectRunsSQL)
	if err != nil {
		err = fmt.Errorf("querying runs: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var run *Run
		if run, err = scanRun(rows); err != nil {
			err = fmt.Errorf("scanning run: %w", err)
			return
		}
		runs = append(runs, run)
	}

	err = rows.Err()
	return
}

// ReadSweeps creates a SweepReader over the sweep summaries of a run.
// The reader must be closed after use.
func (s *SqliteStore) ReadSweeps(ctx context.Context, id uuid.UUID, opts ...ReaderOption) (*SweepReader, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}
	return newSweepReader(ctx, db, id, opts...)
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			_ = runSQLCommand(s.writeDB, initIndexesSQL)

			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		s.closeErr = errors.Join(writeErr, readErr)
	})

	return s.closeErr
}
