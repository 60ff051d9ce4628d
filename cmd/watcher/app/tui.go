package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tui "github.com/charmbracelet/bubbletea"
	styles "github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/spectrum-watch/internal/dashboard"
	"github.com/roman-kulish/spectrum-watch/internal/render"
	"github.com/roman-kulish/spectrum-watch/internal/spectrum"
	"github.com/roman-kulish/spectrum-watch/internal/stream"
)

const (
	defaultPlotWidth  = 80
	defaultPlotHeight = 20
	dashboardTimeout  = 5 * time.Second
	maxListedSignals  = 5

	manualCaptureSeconds = 10
)

var (
	accentColor = styles.AdaptiveColor{Light: "#4f46e5", Dark: "#818cf8"}
	mutedColor  = styles.AdaptiveColor{Light: "#555", Dark: "#777"}
	errorColor  = styles.AdaptiveColor{Light: "1", Dark: "9"}

	titleStyle    = styles.NewStyle().Bold(true)
	selectedStyle = styles.NewStyle().Foreground(accentColor).Bold(true)
	mutedStyle    = styles.NewStyle().Foreground(mutedColor)
	errorStyle    = styles.NewStyle().Foreground(errorColor)
	plotStyle     = styles.NewStyle().
			BorderStyle(styles.NormalBorder()).
			BorderForeground(mutedColor)
)

type keyMap struct {
	Prev    key.Binding
	Next    key.Binding
	Start   key.Binding
	Stop    key.Binding
	Scanner key.Binding
	Capture key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Start, k.Stop, k.Next, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Prev, k.Next, k.Start, k.Stop},
		{k.Scanner, k.Capture, k.Help, k.Quit},
	}
}

var keys = keyMap{
	Prev: key.NewBinding(
		key.WithKeys("left", "h"),
		key.WithHelp("←/h", "prev band"),
	),
	Next: key.NewBinding(
		key.WithKeys("right", "l", "tab"),
		key.WithHelp("→/l", "next band"),
	),
	Start: key.NewBinding(
		key.WithKeys("enter", "s"),
		key.WithHelp("enter/s", "start"),
	),
	Stop: key.NewBinding(
		key.WithKeys("x", "esc"),
		key.WithHelp("x", "stop"),
	),
	Scanner: key.NewBinding(
		key.WithKeys("t"),
		key.WithHelp("t", "toggle scanner"),
	),
	Capture: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "capture peak"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q/ctrl+c", "quit"),
	),
}

type (
	eventMsg       stream.Event
	startMsg       string
	interruptMsg   struct{}
	stopTimeoutMsg struct{}

	pollKind int
	pollMsg  pollKind

	dashStatusMsg struct {
		status *dashboard.Status
		err    error
	}
	dashSignalsMsg struct {
		signals []dashboard.Signal
		err     error
	}
	dashPassesMsg struct {
		passes []dashboard.Pass
		err    error
	}
	dashActionMsg struct {
		text string
		err  error
	}
)

const (
	pollStatus pollKind = iota
	pollSignals
	pollPasses
)

// dashState is the last known dashboard state.
type dashState struct {
	status  *dashboard.Status
	signals []dashboard.Signal
	passes  []dashboard.Pass
	notice  string
	err     error
}

type model struct {
	session  *stream.Session
	bands    []spectrum.Band
	selected int

	status stream.Status
	frame  stream.Frame
	plot   *render.TerminalPlot
	png    *render.PNGWriter

	client    *dashboard.Client
	intervals DashboardConfig
	dash      dashState

	help   help.Model
	width  int
	height int

	autoStart   string
	stopTimeout time.Duration
	quitting    bool
	logger      *slog.Logger
}

func newModel(config *Config, opts Options, deps sessionDeps, logger *slog.Logger) *model {
	m := &model{
		bands:       config.Bands,
		plot:        render.NewTerminalPlot(defaultPlotWidth, defaultPlotHeight, styles.HasDarkBackground()),
		png:         deps.png,
		client:      deps.dashboard,
		intervals:   config.Dashboard,
		help:        help.New(),
		autoStart:   opts.Band,
		stopTimeout: config.Stream.StopTimeout.Duration(),
		logger:      logger,
		status:      stream.Status{Text: "Select a band to start."},
	}

	for i, b := range m.bands {
		if b.Name == opts.Band {
			m.selected = i
		}
	}

	return m
}

// Render receives frames from the session. It runs inside Update.
func (m *model) Render(frame stream.Frame) {
	m.frame = frame
	m.plot.Update(frame)
	if m.png != nil {
		m.png.Render(frame)
	}
}

func (m *model) onStatus(st stream.Status) {
	m.status = st
}

func runTUI(ctx context.Context, config *Config, opts Options, deps sessionDeps, logger *slog.Logger) error {
	m := newModel(config, opts, deps, logger)

	session, dialer, err := newSession(config, m, m.onStatus, deps, logger)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	defer dialer.Close()
	m.session = session

	p := tui.NewProgram(m, tui.WithAltScreen())

	go func() {
		<-ctx.Done()
		p.Send(interruptMsg{})
	}()

	if _, err = p.Run(); err != nil {
		return fmt.Errorf("running terminal UI: %w", err)
	}
	return nil
}

func waitForEvent(events <-chan stream.Event) tui.Cmd {
	return func() tui.Msg {
		return eventMsg(<-events)
	}
}

func (m *model) Init() tui.Cmd {
	cmds := []tui.Cmd{waitForEvent(m.session.Events())}
	if m.autoStart != "" {
		band := m.autoStart
		cmds = append(cmds, func() tui.Msg { return startMsg(band) })
	}
	if m.client != nil {
		cmds = append(cmds, m.fetch(pollStatus), m.fetch(pollSignals), m.fetch(pollPasses))
	}
	return tui.Batch(cmds...)
}

func (m *model) Update(msg tui.Msg) (tui.Model, tui.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		m.session.Handle(stream.Event(msg))
		if m.quitting && m.idle() {
			return m, tui.Quit
		}
		return m, waitForEvent(m.session.Events())

	case startMsg:
		m.start(string(msg))
		return m, nil

	case interruptMsg:
		return m, m.quit()

	case stopTimeoutMsg:
		m.logger.Warn(ErrStopTimeout.Error())
		return m, tui.Quit

	case pollMsg:
		return m, m.fetch(pollKind(msg))

	case dashStatusMsg:
		m.dash.err = msg.err
		if msg.err == nil {
			m.dash.status = msg.status
		}
		return m, m.schedule(pollStatus, m.intervals.StatusInterval)

	case dashSignalsMsg:
		if msg.err == nil {
			m.dash.signals = msg.signals
		}
		return m, m.schedule(pollSignals, m.intervals.SignalsInterval)

	case dashPassesMsg:
		if msg.err == nil {
			m.dash.passes = msg.passes
		}
		return m, m.schedule(pollPasses, m.intervals.PassesInterval)

	case dashActionMsg:
		m.dash.notice, m.dash.err = msg.text, msg.err
		return m, m.fetch(pollStatus)

	case tui.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		// header, status, info, dashboard and help lines plus the plot border
		plotHeight := max(2, m.height-10)
		m.plot.Resize(max(2, m.width-2), plotHeight)
		m.plot.Update(m.frame)
		return m, nil

	case tui.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, m.quit()
		case key.Matches(msg, keys.Prev):
			m.selected = (m.selected - 1 + len(m.bands)) % len(m.bands)
		case key.Matches(msg, keys.Next):
			m.selected = (m.selected + 1) % len(m.bands)
		case key.Matches(msg, keys.Start):
			m.start(m.bands[m.selected].Name)
		case key.Matches(msg, keys.Stop):
			m.session.Stop()
		case key.Matches(msg, keys.Scanner):
			return m, m.toggleScanner()
		case key.Matches(msg, keys.Capture):
			return m, m.capturePeak()
		case key.Matches(msg, keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
		return m, nil
	}

	return m, nil
}

func (m *model) idle() bool {
	_, running := m.session.Band()
	return m.session.State() == stream.Idle && !running
}

func (m *model) start(band string) {
	if err := m.session.Start(band); err != nil {
		switch {
		case errors.Is(err, stream.ErrInvalidState):
			m.status.Text = "Stop the current scan before starting another band."
		default:
			m.status.Text = err.Error()
		}
		m.status.Err = err
	}
}

// quit stops the session and exits once the close is confirmed.
func (m *model) quit() tui.Cmd {
	if m.quitting {
		return tui.Quit
	}
	m.quitting = true

	if m.idle() {
		return tui.Quit
	}

	m.session.Stop()
	return tui.Tick(m.stopTimeout, func(time.Time) tui.Msg { return stopTimeoutMsg{} })
}

func (m *model) schedule(kind pollKind, interval TimeDuration) tui.Cmd {
	if m.client == nil || interval <= 0 {
		return nil
	}
	return tui.Tick(interval.Duration(), func(time.Time) tui.Msg { return pollMsg(kind) })
}

func (m *model) fetch(kind pollKind) tui.Cmd {
	c := m.client
	if c == nil {
		return nil
	}

	return func() tui.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), dashboardTimeout)
		defer cancel()

		switch kind {
		case pollSignals:
			signals, err := c.Signals(ctx)
			return dashSignalsMsg{signals: signals, err: err}
		case pollPasses:
			passes, err := c.Passes(ctx)
			return dashPassesMsg{passes: passes, err: err}
		default:
			status, err := c.Status(ctx)
			return dashStatusMsg{status: status, err: err}
		}
	}
}

func (m *model) toggleScanner() tui.Cmd {
	c := m.client
	if c == nil {
		return nil
	}

	return func() tui.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), dashboardTimeout)
		defer cancel()

		state, err := c.ToggleScanner(ctx)
		return dashActionMsg{text: "Scanner: " + state, err: err}
	}
}

// capturePeak asks the dashboard to record the strongest frequency of the
// newest sweep.
func (m *model) capturePeak() tui.Cmd {
	c := m.client
	if c == nil || len(m.frame.Sweeps) == 0 {
		return nil
	}

	peak, ok := peakOf(m.frame.Sweeps[0].Points)
	if !ok {
		return nil
	}

	req := dashboard.ManualCapture{
		FrequencyMHz: peak.Frequency,
		DurationSec:  manualCaptureSeconds,
		Mode:         "RAW",
		AmpEnabled:   true,
	}

	return func() tui.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), dashboardTimeout)
		defer cancel()

		err := c.StartManualCapture(ctx, req)
		if errors.Is(err, dashboard.ErrCaptureBusy) {
			return dashActionMsg{text: "Another capture is already in progress."}
		}
		return dashActionMsg{text: fmt.Sprintf("Capture started at %.3f MHz.", req.FrequencyMHz), err: err}
	}
}

func peakOf(points []spectrum.Point) (spectrum.Point, bool) {
	if len(points) == 0 {
		return spectrum.Point{}, false
	}
	peak := points[0]
	for _, p := range points[1:] {
		if p.Power > peak.Power {
			peak = p
		}
	}
	return peak, true
}

func (m *model) View() string {
	lines := []string{
		m.headerView(),
		m.statusView(),
	}

	if plot := m.plot.String(); plot != "" {
		lines = append(lines, plotStyle.Render(plot), m.infoView())
	} else {
		lines = append(lines, mutedStyle.Render("No data."))
	}

	if m.client != nil {
		lines = append(lines, m.dashboardView()...)
	}

	lines = append(lines, m.help.View(keys))
	return styles.JoinVertical(styles.Left, lines...)
}

func (m *model) headerView() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("spectrum-watch"))
	for i, b := range m.bands {
		sb.WriteString("  ")
		if i == m.selected {
			sb.WriteString(selectedStyle.Render("[" + b.Label + "]"))
		} else {
			sb.WriteString(mutedStyle.Render(" " + b.Label + " "))
		}
	}
	sb.WriteString(mutedStyle.Render("  " + m.session.State().String()))
	return sb.String()
}

func (m *model) statusView() string {
	if m.status.Err != nil {
		return errorStyle.Render(m.status.Text)
	}
	return m.status.Text
}

func (m *model) infoView() string {
	parts := []string{fmt.Sprintf("sweeps %d", len(m.frame.Sweeps))}
	if len(m.frame.Sweeps) > 0 {
		newest := m.frame.Sweeps[0]
		parts = append(parts, fmt.Sprintf("newest %d pts", len(newest.Points)))
		if peak, ok := peakOf(newest.Points); ok {
			parts = append(parts, fmt.Sprintf("peak %.3f MHz %.1f dBm", peak.Frequency, peak.Power))
		}
	}
	b := m.plot.Bounds()
	parts = append(parts, fmt.Sprintf("scale %.0f..%.0f dBm", b.Min, b.Max))
	return mutedStyle.Render(strings.Join(parts, " · "))
}

func (m *model) dashboardView() []string {
	var lines []string

	if s := m.dash.status; s != nil {
		device := "disconnected"
		if s.Device.Connected {
			device = "connected"
		}
		line := fmt.Sprintf("Device: %s (%s) · scanner %s", s.Device.StatusText, device, s.Scanner)
		if s.Capturing() {
			line += " · capturing"
		}
		if s.NextPass != nil {
			line += fmt.Sprintf(" · next pass %s %s", s.NextPass.Name, humanize.Time(s.NextPass.Start))
		}
		lines = append(lines, line)
	}

	if len(m.dash.passes) > 0 && (m.dash.status == nil || m.dash.status.NextPass == nil) {
		p := m.dash.passes[0]
		lines = append(lines, fmt.Sprintf("Next pass: %s %s", p.Name, humanize.Time(p.Start)))
	}

	for i, sig := range m.dash.signals {
		if i == maxListedSignals {
			lines = append(lines, mutedStyle.Render(fmt.Sprintf("  … %d more", len(m.dash.signals)-i)))
			break
		}
		lines = append(lines, mutedStyle.Render(fmt.Sprintf("  %-16s %10.3f MHz  %s", sig.Target, sig.FrequencyMHz(), sig.Timestamp)))
	}

	switch {
	case m.dash.err != nil:
		lines = append(lines, errorStyle.Render("Dashboard: "+m.dash.err.Error()))
	case m.dash.notice != "":
		lines = append(lines, m.dash.notice)
	}

	return lines
}
