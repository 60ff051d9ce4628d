package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roman-kulish/spectrum-watch/internal/stream"
)

// ErrStopTimeout is returned when the server does not confirm a close in time.
var ErrStopTimeout = errors.New("timed out waiting for the stream to close")

func runHeadless(ctx context.Context, config *Config, opts Options, deps sessionDeps, logger *slog.Logger) error {
	var failure error
	onStatus := func(st stream.Status) {
		if st.Err != nil {
			failure = st.Err
			logger.Error(st.Text, slog.String("state", st.State.String()))
			return
		}
		logger.Info(st.Text, slog.String("state", st.State.String()))
	}

	var renderer stream.Renderer = stream.RendererFunc(func(frame stream.Frame) {
		logger.Debug("frame",
			slog.Int("sweeps", len(frame.Sweeps)),
			slog.Bool("final", frame.Final),
		)
	})
	if deps.png != nil {
		renderer = deps.png
	}

	session, dialer, err := newSession(config, renderer, onStatus, deps, logger)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	defer dialer.Close()

	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	return drive(ctx, session, opts.Band, config.Stream.StopTimeout.Duration(), func() error { return failure })
}

// drive starts band and feeds session events until the run is over. When ctx
// is done the session is asked to stop and drive waits up to stopTimeout for
// the close confirmation.
func drive(ctx context.Context, session *stream.Session, band string, stopTimeout time.Duration, failure func() error) error {
	if err := session.Start(band); err != nil {
		return fmt.Errorf("starting stream: %w", err)
	}

	events := session.Events()
	done := ctx.Done()

	var deadline <-chan time.Time
	for {
		select {
		case ev := <-events:
			session.Handle(ev)
			if _, running := session.Band(); !running {
				return failure()
			}

		case <-done:
			done = nil
			session.Stop()

			timer := time.NewTimer(stopTimeout)
			defer timer.Stop()
			deadline = timer.C

		case <-deadline:
			return ErrStopTimeout
		}
	}
}
