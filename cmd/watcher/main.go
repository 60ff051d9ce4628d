package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/roman-kulish/spectrum-watch/cmd/watcher/app"
)

func main() {
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel}))

	var (
		configPath string
		opts       app.Options
	)
	flag.StringVar(&configPath, "c", "", "Path to the configuration file")
	flag.StringVar(&opts.Band, "band", "", "Band to scan right away, e.g. 2.4")
	flag.BoolVar(&opts.Headless, "headless", false, "Run without the terminal UI")
	flag.DurationVar(&opts.Duration, "duration", 0, "Headless: stop scanning after this long")
	flag.StringVar(&opts.Output, "output", "", "PNG file replaced with every rendered frame")
	flag.StringVar(&opts.BoundaryMode, "mode", "", "Sweep boundary detection: auto, marker or frequency")
	flag.Parse()

	if configPath == "" {
		logger.Error("no configuration file provided")
		os.Exit(1)
	}

	config, err := app.LoadConfig(configPath)
	if err != nil {
		logger.Error(fmt.Sprintf("failed to load configuration file: %s", err.Error()), slog.String("path", configPath))
		os.Exit(1)
	}

	level, _ := config.Settings.Level() // validated by LoadConfig
	logLevel.Set(level)

	// The terminal UI owns stdout.
	if !opts.Headless {
		var out io.Writer = io.Discard
		if config.Settings.LogFile != "" {
			f, err := os.OpenFile(config.Settings.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				logger.Error(fmt.Sprintf("failed to open log file: %s", err.Error()), slog.String("path", config.Settings.LogFile))
				os.Exit(1)
			}
			defer f.Close()
			out = f
		}
		logger = slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: &logLevel}))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err = app.Run(ctx, config, opts, logger); err != nil {
		logger.Error(err.Error())
		if !opts.Headless {
			fmt.Fprintln(os.Stderr, err)
		}

		cancel()
		os.Exit(1)
	}
}
