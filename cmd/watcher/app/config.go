package app

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/spectrum-watch/internal/spectrum"
	"github.com/roman-kulish/spectrum-watch/internal/stream"
	"github.com/roman-kulish/spectrum-watch/internal/transport"
)

const (
	defaultStorageDir       = "data"
	defaultStopTimeout      = 5 * time.Second
	defaultStatusInterval   = 2 * time.Second
	defaultSignalsInterval  = 10 * time.Second
	defaultPassesInterval   = 30 * time.Second
	defaultRenderBackground = "#0f172a"
)

// TimeDuration is a time.Duration read from strings such as "100ms" or "2s".
type TimeDuration time.Duration

func (d *TimeDuration) UnmarshalYAML(value *yaml.Node) error {
	duration, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("app.TimeDuration: failed to parse: %s", err)
	}

	*d = TimeDuration(duration)
	return nil
}

func (d TimeDuration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// Validate reports a negative duration.
func (d TimeDuration) Validate() error {
	if d < 0 {
		return fmt.Errorf("app.TimeDuration: must not be negative: %s", time.Duration(d))
	}
	return nil
}

func (d TimeDuration) Duration() time.Duration {
	return time.Duration(d)
}

func (d TimeDuration) String() string {
	return time.Duration(d).String()
}

// Config represents the main application configuration
type Config struct {
	Settings  Settings        `yaml:"settings"`
	Server    ServerConfig    `yaml:"server"`
	Bands     []spectrum.Band `yaml:"bands"`
	Stream    StreamConfig    `yaml:"stream"`
	Render    RenderConfig    `yaml:"render"`
	Storage   StorageConfig   `yaml:"storage"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Dashboard DashboardConfig `yaml:"dashboard"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
	LogFile  string `yaml:"logFile"` // TUI mode logs here instead of stdout
}

// Level parses the configured log level. An empty level is info.
func (s *Settings) Level() (slog.Level, error) {
	var level slog.Level
	if s.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level '%s': %w", s.LogLevel, err)
	}
	return level, nil
}

// ServerConfig represents the spectrum stream server
type ServerConfig struct {
	URL              string       `yaml:"url"`
	StreamPath       string       `yaml:"streamPath"`
	HandshakeTimeout TimeDuration `yaml:"handshakeTimeout"`
	ReadTimeout      TimeDuration `yaml:"readTimeout"`
}

// StreamConfig represents the stream session settings
type StreamConfig struct {
	DrawInterval       TimeDuration `yaml:"drawInterval"`
	BoundaryMode       string       `yaml:"boundaryMode"`
	HistorySize        int          `yaml:"historySize"`
	DecayStep          *float64     `yaml:"decayStep"`
	MinOpacity         *float64     `yaml:"minOpacity"`
	AccentColor        string       `yaml:"accentColor"`
	NeutralColor       string       `yaml:"neutralColor"`
	EventBuffer        int          `yaml:"eventBuffer"`
	MalformedThreshold int          `yaml:"malformedThreshold"`
	StopTimeout        TimeDuration `yaml:"stopTimeout"`
}

// Decay builds the sweep styling from the configuration.
func (c *StreamConfig) Decay() (spectrum.Decay, error) {
	return spectrum.NewDecay(*c.DecayStep, *c.MinOpacity, c.AccentColor, c.NeutralColor)
}

// RenderConfig represents the frame image output
type RenderConfig struct {
	Output     string  `yaml:"output"` // PNG file replaced with every frame; empty disables
	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
	FontSize   float64 `yaml:"fontSize"`
	Background string  `yaml:"background"`
}

// StorageConfig represents storage settings
type StorageConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DataDirectory string `yaml:"dataDirectory"`
	MaxBatchSize  int    `yaml:"maxBatchSize"`
}

// MetricsConfig represents the Prometheus endpoint
type MetricsConfig struct {
	Listen string `yaml:"listen"` // empty disables the endpoint
}

// DashboardConfig represents the capture dashboard REST API
type DashboardConfig struct {
	URL             string       `yaml:"url"` // empty disables polling
	StatusInterval  TimeDuration `yaml:"statusInterval"`
	SignalsInterval TimeDuration `yaml:"signalsInterval"`
	PassesInterval  TimeDuration `yaml:"passesInterval"`
}

// DefaultBands are the bands streamed by the scan server.
func DefaultBands() []spectrum.Band {
	return []spectrum.Band{
		{Name: "2.4", Label: "2.4 GHz", FrequencyStart: 2400, FrequencyEnd: 2500},
		{Name: "5", Label: "5 GHz", FrequencyStart: 5150, FrequencyEnd: 5850},
	}
}

// LoadConfig reads, defaults and validates the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig decodes, defaults and validates a YAML configuration.
func ParseConfig(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.StreamPath == "" {
		c.Server.StreamPath = transport.DefaultStreamPath
	}
	if len(c.Bands) == 0 {
		c.Bands = DefaultBands()
	}
	for i := range c.Bands {
		if c.Bands[i].Label == "" {
			c.Bands[i].Label = c.Bands[i].Name
		}
	}

	s := &c.Stream
	if s.DrawInterval == 0 {
		s.DrawInterval = TimeDuration(stream.DefaultDrawInterval)
	}
	if s.HistorySize == 0 {
		s.HistorySize = spectrum.DefaultCapacity
	}
	if s.DecayStep == nil {
		step := spectrum.DefaultDecayStep
		s.DecayStep = &step
	}
	if s.MinOpacity == nil {
		opacity := spectrum.DefaultMinOpacity
		s.MinOpacity = &opacity
	}
	if s.AccentColor == "" {
		s.AccentColor = spectrum.DefaultAccentColor
	}
	if s.NeutralColor == "" {
		s.NeutralColor = spectrum.DefaultNeutralColor
	}
	if s.MalformedThreshold == 0 {
		s.MalformedThreshold = stream.MalformedThreshold
	}
	if s.StopTimeout == 0 {
		s.StopTimeout = TimeDuration(defaultStopTimeout)
	}

	if c.Render.Background == "" {
		c.Render.Background = defaultRenderBackground
	}

	if c.Storage.DataDirectory == "" {
		c.Storage.DataDirectory = defaultStorageDir
	}

	d := &c.Dashboard
	if d.StatusInterval == 0 {
		d.StatusInterval = TimeDuration(defaultStatusInterval)
	}
	if d.SignalsInterval == 0 {
		d.SignalsInterval = TimeDuration(defaultSignalsInterval)
	}
	if d.PassesInterval == 0 {
		d.PassesInterval = TimeDuration(defaultPassesInterval)
	}
}

// Validate checks the configuration after defaults are applied.
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.Settings.Level(); err != nil {
		errs = append(errs, err)
	}

	if c.Server.URL == "" {
		errs = append(errs, errors.New("server.url is required"))
	} else if u, err := url.Parse(c.Server.URL); err != nil || u.Host == "" {
		errs = append(errs, fmt.Errorf("server.url '%s' is not a valid URL", c.Server.URL))
	}
	if !strings.Contains(c.Server.StreamPath, "{band}") {
		errs = append(errs, fmt.Errorf("server.streamPath '%s' has no {band} placeholder", c.Server.StreamPath))
	}
	for name, d := range map[string]TimeDuration{
		"server.handshakeTimeout":   c.Server.HandshakeTimeout,
		"server.readTimeout":        c.Server.ReadTimeout,
		"stream.drawInterval":       c.Stream.DrawInterval,
		"stream.stopTimeout":        c.Stream.StopTimeout,
		"dashboard.statusInterval":  c.Dashboard.StatusInterval,
		"dashboard.signalsInterval": c.Dashboard.SignalsInterval,
		"dashboard.passesInterval":  c.Dashboard.PassesInterval,
	} {
		if err := d.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	seen := make(map[string]struct{}, len(c.Bands))
	for i, b := range c.Bands {
		if b.Name == "" {
			errs = append(errs, fmt.Errorf("bands[%d]: name is required", i))
			continue
		}
		if _, ok := seen[b.Name]; ok {
			errs = append(errs, fmt.Errorf("bands[%d]: duplicate band '%s'", i, b.Name))
		}
		seen[b.Name] = struct{}{}
		if b.FrequencyEnd < b.FrequencyStart {
			errs = append(errs, fmt.Errorf("bands[%d]: frequency end %v is below start %v", i, b.FrequencyEnd, b.FrequencyStart))
		}
	}

	if _, err := stream.ParseBoundaryMode(c.Stream.BoundaryMode); err != nil {
		errs = append(errs, fmt.Errorf("stream.boundaryMode: %w", err))
	}
	if c.Stream.HistorySize < 0 {
		errs = append(errs, fmt.Errorf("stream.historySize must be positive: %d", c.Stream.HistorySize))
	}
	if c.Stream.EventBuffer < 0 {
		errs = append(errs, fmt.Errorf("stream.eventBuffer must not be negative: %d", c.Stream.EventBuffer))
	}
	if c.Stream.MalformedThreshold < 0 {
		errs = append(errs, fmt.Errorf("stream.malformedThreshold must not be negative: %d", c.Stream.MalformedThreshold))
	}
	if _, err := c.Stream.Decay(); err != nil {
		errs = append(errs, fmt.Errorf("stream: %w", err))
	}

	if c.Render.Width < 0 || c.Render.Height < 0 {
		errs = append(errs, fmt.Errorf("render size must not be negative: %dx%d", c.Render.Width, c.Render.Height))
	}

	if c.Storage.MaxBatchSize < 0 {
		errs = append(errs, fmt.Errorf("storage.maxBatchSize must not be negative: %d", c.Storage.MaxBatchSize))
	}

	if c.Dashboard.URL != "" {
		if u, err := url.Parse(c.Dashboard.URL); err != nil || u.Host == "" {
			errs = append(errs, fmt.Errorf("dashboard.url '%s' is not a valid URL", c.Dashboard.URL))
		}
	}

	return errors.Join(errs...)
}
