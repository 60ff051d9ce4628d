package app

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Config struct {
	DBPath string
	RunID  *uuid.UUID // nil lists runs
	Limit  int
	Since  *time.Time
	Until  *time.Time
}

func NewConfigFromCLI() (*Config, error) {
	var (
		c            Config
		run          string
		since, until string
	)
	flag.StringVar(&c.DBPath, "db", "", "Path to the session journal")
	flag.StringVar(&run, "run", "", "Run ID to list sweeps of; lists runs when empty")
	flag.IntVar(&c.Limit, "limit", 0, "Maximum number of sweeps to list")
	flag.StringVar(&since, "since", "", "List sweeps started at or after this time (RFC 3339)")
	flag.StringVar(&until, "until", "", "List sweeps started at or before this time (RFC 3339)")
	flag.Parse()

	if err := c.parse(run, since, until); err != nil {
		flag.Usage()
		return nil, err
	}
	return &c, nil
}

func (c *Config) parse(run, since, until string) error {
	if c.DBPath == "" {
		return errors.New("db path is required")
	}
	if c.Limit < 0 {
		return fmt.Errorf("invalid limit: %d", c.Limit)
	}

	if run != "" {
		id, err := uuid.Parse(run)
		if err != nil {
			return fmt.Errorf("invalid run id '%s': %w", run, err)
		}
		c.RunID = &id
	}

	for _, f := range []struct {
		value string
		dst   **time.Time
	}{{since, &c.Since}, {until, &c.Until}} {
		if f.value == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, f.value)
		if err != nil {
			return fmt.Errorf("invalid time '%s': %w", f.value, err)
		}
		*f.dst = &t
	}

	if c.RunID == nil && (c.Since != nil || c.Until != nil || c.Limit > 0) {
		return errors.New("-since, -until and -limit require -run")
	}
	return nil
}
