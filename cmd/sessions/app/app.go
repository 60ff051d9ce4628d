package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/spectrum-watch/internal/storage"
)

// Run prints the journaled runs, or the sweeps of one run, to out.
func Run(ctx context.Context, config *Config, out io.Writer, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	if config.RunID == nil {
		return listRuns(ctx, store, out)
	}
	return listSweeps(ctx, store, config, out, logger)
}

func listRuns(ctx context.Context, store storage.Store, out io.Writer) error {
	runs, err := store.Runs(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tBAND\tSTARTED\tDURATION\tOUTCOME\tREASON")
	for _, run := range runs {
		duration, outcome := "-", run.Outcome
		if run.EndedAt != nil {
			duration = run.Duration().Round(time.Second).String()
		} else {
			outcome = "unfinished"
		}
		fmt.Fprintf(w, "%s\t%s\t%s (%s)\t%s\t%s\t%s\n",
			run.ID,
			run.Band,
			run.StartedAt.Local().Format(time.DateTime),
			humanize.Time(run.StartedAt),
			duration,
			outcome,
			run.Reason,
		)
	}
	return w.Flush()
}

func listSweeps(ctx context.Context, store *storage.SqliteStore, config *Config, out io.Writer, logger *slog.Logger) error {
	run, err := store.Run(ctx, *config.RunID)
	if err != nil {
		return err
	}

	var (
		opts    []storage.ReaderOption
		filters []any
	)
	switch {
	case config.Since != nil && config.Until != nil:
		opts = append(opts, storage.WithTimeRange(*config.Since, *config.Until))
		filters = append(filters,
			slog.String("since", config.Since.Format(time.DateTime)),
			slog.String("until", config.Until.Format(time.DateTime)))

	case config.Since != nil:
		opts = append(opts, storage.WithStartTime(*config.Since))
		filters = append(filters, slog.String("since", config.Since.Format(time.DateTime)))

	case config.Until != nil:
		opts = append(opts, storage.WithEndTime(*config.Until))
		filters = append(filters, slog.String("until", config.Until.Format(time.DateTime)))
	}
	if config.Limit > 0 {
		opts = append(opts, storage.WithLimit(config.Limit))
		filters = append(filters, slog.Int("limit", config.Limit))
	}

	logger.Debug("reader configuration", filters...)

	r, err := store.ReadSweeps(ctx, run.ID, opts...)
	if err != nil {
		return err
	}
	defer r.Close()

	fmt.Fprintf(out, "Run %s, band %s, started %s\n", run.ID, run.Band, run.StartedAt.Local().Format(time.DateTime))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "SWEEP\tSTARTED\tPOINTS\tSPAN MHz\tPEAK MHz\tPEAK dBm\t")

	var count int
	for r.Next(ctx) {
		s := r.Current()
		fmt.Fprintf(w, "%d\t%s\t%s\t%.3f-%.3f\t%.3f\t%.1f\t\n",
			s.SweepID,
			s.StartedAt.Local().Format(time.TimeOnly),
			humanize.Comma(int64(s.Points)),
			s.FrequencyStart, s.FrequencyEnd,
			s.PeakFrequency,
			s.PeakPower,
		)
		count++
	}
	if err = r.Err(); err != nil {
		return err
	}

	if err = w.Flush(); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s sweeps\n", humanize.Comma(int64(count)))
	return err
}
