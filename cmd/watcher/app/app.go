package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/roman-kulish/spectrum-watch/internal/dashboard"
	"github.com/roman-kulish/spectrum-watch/internal/metrics"
	"github.com/roman-kulish/spectrum-watch/internal/render"
	"github.com/roman-kulish/spectrum-watch/internal/storage"
	"github.com/roman-kulish/spectrum-watch/internal/stream"
	"github.com/roman-kulish/spectrum-watch/internal/transport"
)

const (
	// JournalFile is the session journal inside the storage directory.
	JournalFile = "spectrum_watch.sqlite"

	shutdownTimeout = 5 * time.Second
)

// Options are the command line overrides of a single invocation.
type Options struct {
	Band         string        // band to start right away; required in headless mode
	Headless     bool          // run without the terminal UI
	Duration     time.Duration // headless: stop after this long; zero runs until interrupted
	Output       string        // overrides render.output
	BoundaryMode string        // overrides stream.boundaryMode
}

// Run builds the stream session and runs it headless or behind the terminal UI
// until ctx is cancelled or the user quits.
func Run(ctx context.Context, config *Config, opts Options, logger *slog.Logger) error {
	if opts.Headless && opts.Band == "" {
		return errors.New("headless mode requires a band")
	}
	if opts.Output != "" {
		config.Render.Output = opts.Output
	}
	if opts.BoundaryMode != "" {
		config.Stream.BoundaryMode = opts.BoundaryMode
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	if config.Metrics.Listen != "" {
		stop := serveMetrics(config.Metrics.Listen, reg, logger)
		defer stop()
	}

	var recorder *storage.Recorder
	if config.Storage.Enabled {
		store, err := createStorage(&config.Storage)
		if err != nil {
			return fmt.Errorf("failed to create storage: %w", err)
		}
		defer store.Close()

		recorder = storage.NewRecorder(store,
			storage.WithRecorderLogger(logger),
			storage.WithMaxBatchSize(config.Storage.MaxBatchSize),
		)
		defer recorder.Close()
	}

	var pngWriter *render.PNGWriter
	if config.Render.Output != "" {
		w, err := createPNGWriter(&config.Render, logger)
		if err != nil {
			return fmt.Errorf("failed to create frame writer: %w", err)
		}
		pngWriter = w
		defer pngWriter.Close()
	}

	if opts.Headless {
		return runHeadless(ctx, config, opts, sessionDeps{
			metrics:  m,
			recorder: recorder,
			png:      pngWriter,
		}, logger)
	}

	var client *dashboard.Client
	if config.Dashboard.URL != "" {
		c, err := dashboard.NewClient(config.Dashboard.URL, dashboard.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("failed to create dashboard client: %w", err)
		}
		client = c
	}

	return runTUI(ctx, config, opts, sessionDeps{
		metrics:   m,
		recorder:  recorder,
		png:       pngWriter,
		dashboard: client,
	}, logger)
}

// sessionDeps are the optional collaborators of a session.
type sessionDeps struct {
	metrics   *metrics.Metrics
	recorder  *storage.Recorder
	png       *render.PNGWriter
	dashboard *dashboard.Client
}

// newSession builds the session and its dialer. Closing the dialer releases
// connection readers once nothing drains the session events any more.
func newSession(config *Config, renderer stream.Renderer, onStatus func(stream.Status), deps sessionDeps, logger *slog.Logger) (*stream.Session, *transport.Dialer, error) {
	dialerOptions := []func(*transport.Dialer){
		transport.WithLogger(logger),
		transport.WithStreamPath(config.Server.StreamPath),
		transport.WithReadTimeout(config.Server.ReadTimeout.Duration()),
	}
	if config.Server.HandshakeTimeout > 0 {
		dialerOptions = append(dialerOptions, transport.WithHandshakeTimeout(config.Server.HandshakeTimeout.Duration()))
	}

	dialer, err := transport.NewDialer(config.Server.URL, dialerOptions...)
	if err != nil {
		return nil, nil, fmt.Errorf("creating dialer: %w", err)
	}

	mode, err := stream.ParseBoundaryMode(config.Stream.BoundaryMode)
	if err != nil {
		return nil, nil, err
	}

	decay, err := config.Stream.Decay()
	if err != nil {
		return nil, nil, err
	}

	options := []func(*stream.Session){
		stream.WithLogger(logger),
		stream.WithDrawInterval(config.Stream.DrawInterval.Duration()),
		stream.WithBoundaryMode(mode),
		stream.WithHistory(config.Stream.HistorySize, decay),
		stream.WithStatusHandler(onStatus),
		stream.WithMetrics(deps.metrics),
		stream.WithMalformedThreshold(config.Stream.MalformedThreshold),
	}
	if config.Stream.EventBuffer > 0 {
		options = append(options, stream.WithEventBuffer(config.Stream.EventBuffer))
	}
	if deps.recorder != nil {
		options = append(options, stream.WithRecorder(deps.recorder))
	}

	session, err := stream.NewSession(dialer, config.Bands, renderer, options...)
	if err != nil {
		return nil, nil, err
	}
	return session, dialer, nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("serving metrics", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(fmt.Sprintf("metrics server: %s", err.Error()))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func createPNGWriter(config *RenderConfig, logger *slog.Logger) (*render.PNGWriter, error) {
	renderer, err := render.NewFrameRenderer(render.Config{
		Width:      config.Width,
		Height:     config.Height,
		FontSize:   config.FontSize,
		Background: config.Background,
	})
	if err != nil {
		return nil, err
	}

	return render.NewPNGWriter(config.Output, renderer, render.WithLogger(logger))
}

func createStorage(config *StorageConfig) (*storage.SqliteStore, error) {
	dir := config.DataDirectory
	if !filepath.IsAbs(dir) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current working directory: %w", err)
		}
		dir = filepath.Join(wd, dir)
	}

	stat, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("storage directory '%s' does not exist: %w", dir, err)
		}
		return nil, fmt.Errorf("checking storage directory '%s': %w", dir, err)
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("invalid storage directory '%s'", dir)
	}

	return storage.NewSqliteStore(filepath.Join(dir, JournalFile)), nil
}
