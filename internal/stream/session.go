package stream

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roman-kulish/spectrum-watch/internal/metrics"
	"github.com/roman-kulish/spectrum-watch/internal/spectrum"
)

const defaultEventBuffer = 1024

// Run outcomes reported to the Recorder and metrics.
const (
	OutcomeStopped        = "stopped"
	OutcomeTransportError = "transport_error"
	OutcomeServerError    = "server_error"
	OutcomeMalformed      = "malformed"
)

// State is the session lifecycle state.
type State int

const (
	Idle State = iota
	Connecting
	Active
	Stopping // close requested, waiting for the confirmation
)

var stateNames = []string{"idle", "connecting", "active", "stopping"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Status is the user-visible session status.
type Status struct {
	State State
	Band  spectrum.Band
	Text  string
	Err   error // set when the status reports a failure
}

// WithLogger sets the logger for the session
func WithLogger(logger *slog.Logger) func(s *Session) {
	return func(s *Session) {
		s.logger = logger.With(slog.String("component", "stream"))
	}
}

// WithClock sets the clock used for render throttling
func WithClock(clock Clock) func(s *Session) {
	return func(s *Session) {
		s.clock = clock
	}
}

// WithDrawInterval sets the minimum time between throttled renders
func WithDrawInterval(interval time.Duration) func(s *Session) {
	return func(s *Session) {
		s.drawInterval = interval
	}
}

// WithBoundaryMode sets how sweep boundaries are detected
func WithBoundaryMode(mode BoundaryMode) func(s *Session) {
	return func(s *Session) {
		s.mode = mode
	}
}

// WithHistory sets the history capacity and the decay styling
func WithHistory(capacity int, decay spectrum.Decay) func(s *Session) {
	return func(s *Session) {
		s.capacity = capacity
		s.decay = decay
	}
}

// WithStatusHandler sets the function receiving status updates
func WithStatusHandler(fn func(Status)) func(s *Session) {
	return func(s *Session) {
		s.onStatus = fn
	}
}

// WithRecorder sets the run journal
func WithRecorder(r Recorder) func(s *Session) {
	return func(s *Session) {
		s.recorder = r
	}
}

// WithMetrics sets the metrics collectors
func WithMetrics(m *metrics.Metrics) func(s *Session) {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithEventBuffer sets the capacity of the event queue
func WithEventBuffer(size int) func(s *Session) {
	return func(s *Session) {
		s.eventBuffer = size
	}
}

// WithMalformedThreshold sets the number of consecutive malformed frames that end a run
func WithMalformedThreshold(n int) func(s *Session) {
	return func(s *Session) {
		s.malformedThreshold = n
	}
}

type run struct {
	id            uuid.UUID
	band          spectrum.Band
	conn          Connection
	logger        *slog.Logger
	stopRequested bool
	ended         bool // failure or close has been reported
	closed        bool
	journaled     uint64 // last sweep handed to the recorder
}

// Session owns one stream connection at a time and feeds its frames through
// boundary detection, the history ring and the render scheduler.
//
// Start, Stop and Handle must be called from the same goroutine, the one
// draining Events.
type Session struct {
	bands    map[string]spectrum.Band
	dialer   Dialer
	renderer Renderer

	clock              Clock
	drawInterval       time.Duration
	mode               BoundaryMode
	capacity           int
	decay              spectrum.Decay
	eventBuffer        int
	malformedThreshold int

	onStatus func(Status)
	recorder Recorder
	metrics  *metrics.Metrics
	logger   *slog.Logger

	events    chan Event
	state     State
	run       *run
	history   *spectrum.History
	detector  *Detector
	scheduler *Scheduler
	sweepID   uint64
	malformed int
}

// NewSession creates an idle Session for the given bands.
func NewSession(dialer Dialer, bands []spectrum.Band, renderer Renderer, options ...func(s *Session)) (*Session, error) {
	if dialer == nil {
		return nil, errors.New("dialer is required")
	}
	if renderer == nil {
		return nil, errors.New("renderer is required")
	}
	if len(bands) == 0 {
		return nil, errors.New("at least one band is required")
	}

	s := Session{
		bands:              make(map[string]spectrum.Band, len(bands)),
		dialer:             dialer,
		renderer:           renderer,
		clock:              SystemClock,
		drawInterval:       DefaultDrawInterval,
		mode:               BoundaryAuto,
		capacity:           spectrum.DefaultCapacity,
		decay:              spectrum.DefaultDecay(),
		eventBuffer:        defaultEventBuffer,
		malformedThreshold: MalformedThreshold,
		logger:             slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, b := range bands {
		if _, ok := s.bands[b.Name]; ok {
			return nil, fmt.Errorf("duplicate band '%s'", b.Name)
		}
		s.bands[b.Name] = b
	}

	for _, option := range options {
		option(&s)
	}

	history, err := spectrum.NewHistory(s.capacity, s.decay)
	if err != nil {
		return nil, fmt.Errorf("creating history: %w", err)
	}

	s.history = history
	s.detector = NewDetector(s.mode)
	s.scheduler = NewScheduler(s.drawInterval, s.clock, s.render)
	s.events = make(chan Event, max(s.eventBuffer, 1))
	s.metrics.SessionState(Idle.String(), stateNames...)

	return &s, nil
}

// Events returns the queue every connection of this session writes to.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Handle processes one event.
func (s *Session) Handle(ev Event) {
	ev.Dispatch(s)
}

// State returns the current state. Stopping is reported while a requested
// close has not been confirmed.
func (s *Session) State() State {
	if s.state != Idle && s.run != nil && s.run.stopRequested {
		return Stopping
	}
	return s.state
}

// Band returns the band of the current run.
func (s *Session) Band() (spectrum.Band, bool) {
	if s.run == nil {
		return spectrum.Band{}, false
	}
	return s.run.band, true
}

// Snapshot returns the current history, newest-first.
func (s *Session) Snapshot() []spectrum.SweepView {
	return s.history.Snapshot()
}

// Start opens a stream for band. It fails with ErrInvalidState unless the
// session is idle and with ErrInvalidInput for an unknown band.
func (s *Session) Start(band string) error {
	if st := s.State(); st != Idle {
		return fmt.Errorf("%w: cannot start while %s", ErrInvalidState, st)
	}

	b, ok := s.bands[band]
	if !ok {
		return fmt.Errorf("%w: '%s'", ErrInvalidInput, band)
	}

	s.history.Reset()
	s.detector.Reset()
	s.scheduler.Reset()
	s.sweepID = 0
	s.malformed = 0

	id := uuid.New()
	r := &run{
		id:   id,
		band: b,
		logger: s.logger.With(
			slog.String("band", b.Name),
			slog.String("run", id.String()),
		),
	}
	s.run = r

	s.setState(Connecting)
	s.report(Status{Text: fmt.Sprintf("Connecting to scan band %s...", b.Label)})
	r.logger.Info("connecting...")

	if s.recorder != nil {
		s.recorder.RunStarted(id, b.Name, s.clock.Now())
	}

	r.conn = s.dialer.Dial(b, id, s.events)
	return nil
}

// Stop requests the current connection to close. The session becomes idle
// when the close is confirmed. Stop is a no-op when idle.
func (s *Session) Stop() {
	if s.state == Idle || s.run == nil || s.run.stopRequested {
		return
	}

	s.run.stopRequested = true
	s.run.logger.Info("stopping...")
	s.report(Status{Text: fmt.Sprintf("Stopping scan of band %s...", s.run.band.Label)})

	if err := closeConn(s.run.conn); err != nil {
		s.run.logger.Warn(fmt.Sprintf("closing connection: %s", err.Error()))
	}
}

func (s *Session) current(id uuid.UUID, ev EventType) (*run, bool) {
	if s.run == nil || s.run.id != id {
		s.logger.Debug("ignoring event from a previous run", slog.String("event", ev.String()), slog.String("run", id.String()))
		return nil, false
	}
	return s.run, true
}

// OnOpen makes a connecting session active.
func (s *Session) OnOpen(id uuid.UUID) {
	r, ok := s.current(id, EventOpen)
	if !ok || s.state != Connecting {
		return
	}

	s.history.Reset()
	s.setState(Active)
	if !r.stopRequested {
		s.report(Status{Text: fmt.Sprintf("Sweep in progress on band %s...", r.band.Label)})
	}
	r.logger.Info("connected")
}

// OnMessage decodes a frame and applies it to the history.
func (s *Session) OnMessage(id uuid.UUID, data []byte) {
	r, ok := s.current(id, EventMessage)
	if !ok || (s.state != Active && s.state != Connecting) {
		return
	}

	msg, err := DecodeMessage(data)
	if err != nil {
		s.malformed++
		s.metrics.MessageMalformed()
		r.logger.Warn(err.Error(), slog.Int("consecutive", s.malformed))

		if s.malformed >= s.malformedThreshold {
			s.fail(r, OutcomeMalformed, fmt.Errorf("%w: %d", ErrTooManyMalformed, s.malformed))
		}
		return
	}

	s.malformed = 0
	s.metrics.MessageReceived(msg.Kind.String())

	switch msg.Kind {
	case KindError:
		s.fail(r, OutcomeServerError, &ServerError{Message: msg.Error})

	case KindMarker:
		if s.detector.Marker() == NewSweep {
			s.beginSweep()
			s.notify()
		}

	case KindPoint, KindChunk:
		if s.detector.Points(msg.Points) == NewSweep || s.sweepID == 0 {
			s.beginSweep()
		}
		if err = s.history.Append(s.sweepID, msg.Points...); err != nil {
			r.logger.Error(fmt.Sprintf("appending points: %s", err.Error()))
			return
		}
		s.metrics.SweepPoints(s.history.Active().Len())
		s.notify()
	}
}

// OnError ends the run with a transport error.
func (s *Session) OnError(id uuid.UUID, err error) {
	r, ok := s.current(id, EventError)
	if !ok {
		return
	}

	s.fail(r, OutcomeTransportError, &TransportError{Err: err})
}

// OnClose makes the session idle, renders the final frame and discards the history.
func (s *Session) OnClose(id uuid.UUID) {
	r, ok := s.current(id, EventClose)
	if !ok || r.closed {
		return
	}
	r.closed = true

	s.setState(Idle)
	s.scheduler.Flush()

	if !r.ended {
		r.ended = true
		s.report(Status{Text: "Scan stopped. Select a band to start."})
		s.completeSweep()
		s.endRun(r, OutcomeStopped, "")
	}

	s.history.Reset()
	s.sweepID = 0
	s.metrics.SweepPoints(0)
	s.run = nil

	r.logger.Info("connection closed")
}

func (s *Session) fail(r *run, outcome string, err error) {
	if r.ended {
		return
	}
	r.ended = true

	s.setState(Idle)

	text := err.Error()
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		text = "Error: " + serverErr.Message
	}
	s.report(Status{Text: text, Err: err})
	r.logger.Error(err.Error(), slog.String("outcome", outcome))

	s.completeSweep()
	s.endRun(r, outcome, err.Error())

	if err = closeConn(r.conn); err != nil {
		r.logger.Warn(fmt.Sprintf("closing connection: %s", err.Error()))
	}
}

func (s *Session) endRun(r *run, outcome, reason string) {
	s.metrics.RunEnded(outcome)
	if s.recorder != nil {
		s.recorder.RunEnded(r.id, s.clock.Now(), outcome, reason)
	}
}

func (s *Session) beginSweep() {
	s.completeSweep()

	id, evicted := s.history.Begin(s.clock.Now())
	s.sweepID = id
	s.metrics.SweepBegun(evicted != nil)
}

// completeSweep journals the active sweep before it is superseded or the run
// ends. Each sweep is journaled at most once.
func (s *Session) completeSweep() {
	if s.recorder == nil || s.run == nil {
		return
	}

	active := s.history.Active()
	if active == nil || active.ID == s.run.journaled {
		return
	}
	s.run.journaled = active.ID

	if summary, ok := active.Summarize(); ok {
		s.recorder.SweepCompleted(s.run.id, summary)
	}
}

func (s *Session) notify() {
	if !s.scheduler.OnData() {
		s.metrics.RenderSuppressed()
	}
}

func (s *Session) render(final bool) {
	frame := Frame{
		Sweeps: s.history.Snapshot(),
		Final:  final,
		At:     s.clock.Now(),
	}
	if s.run != nil {
		frame.Run = s.run.id
		frame.Band = s.run.band
	}

	s.renderer.Render(frame)
	s.metrics.Rendered(final)
}

func (s *Session) setState(st State) {
	s.state = st
	s.metrics.SessionState(st.String(), stateNames...)
}

func (s *Session) report(st Status) {
	st.State = s.State()
	if s.run != nil {
		st.Band = s.run.band
	}
	if s.onStatus != nil {
		s.onStatus(st)
	}
}

func closeConn(conn Connection) error {
	if conn == nil {
		return nil
	}
	return conn.Close()
}
