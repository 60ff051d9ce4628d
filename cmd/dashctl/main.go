package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/roman-kulish/spectrum-watch/cmd/dashctl/app"
	"github.com/roman-kulish/spectrum-watch/internal/dashboard"
)

func main() {
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &logLevel}))

	var (
		baseURL string
		timeout time.Duration
		verbose bool
	)
	flag.StringVar(&baseURL, "url", "http://localhost:5000", "Capture dashboard base URL")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")
	flag.BoolVar(&verbose, "verbose", false, "Log requests")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <command> [args]\n\n%s\nFlags:\n", os.Args[0], app.Commands)
		flag.PrintDefaults()
	}
	flag.Parse()

	if verbose {
		logLevel.Set(slog.LevelDebug)
	}

	client, err := dashboard.NewClient(baseURL, dashboard.WithLogger(logger))
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ctx, cancelTimeout := context.WithTimeout(ctx, timeout)
	defer cancelTimeout()

	if err = app.Run(ctx, client, flag.Args(), os.Stdout); err != nil {
		logger.Error(err.Error())

		cancelTimeout()
		cancel()
		os.Exit(1)
	}
}
