package stream

import (
	"time"

	"github.com/google/uuid"

	"github.com/roman-kulish/spectrum-watch/internal/spectrum"
)

// EventType identifies a transport event.
type EventType int

const (
	EventOpen EventType = iota + 1
	EventMessage
	EventError
	EventClose
)

func (t EventType) String() string {
	switch t {
	case EventOpen:
		return "open"
	case EventMessage:
		return "message"
	case EventError:
		return "error"
	case EventClose:
		return "close"
	default:
		return "unknown"
	}
}

// Event is produced by a transport connection. Run ties the event to the
// Start call that opened the connection.
type Event struct {
	Run  uuid.UUID
	Type EventType
	Data []byte
	Err  error
}

// EventHandler reacts to transport events. Implementations are driven by a
// single consumer in event order.
type EventHandler interface {
	OnOpen(run uuid.UUID)
	OnMessage(run uuid.UUID, data []byte)
	OnError(run uuid.UUID, err error)
	OnClose(run uuid.UUID)
}

// Dispatch calls the handler method matching the event type.
func (e Event) Dispatch(h EventHandler) {
	switch e.Type {
	case EventOpen:
		h.OnOpen(e.Run)
	case EventMessage:
		h.OnMessage(e.Run, e.Data)
	case EventError:
		h.OnError(e.Run, e.Err)
	case EventClose:
		h.OnClose(e.Run)
	}
}

// Connection is a live stream connection.
type Connection interface {
	// Close requests the connection to close. It does not block and is safe to
	// call more than once. The close is confirmed by an EventClose.
	Close() error
}

// Dialer opens stream connections. Dial must not block: the outcome is
// reported through events, either EventOpen or EventError followed by
// EventClose. Every connection emits exactly one EventClose, last.
type Dialer interface {
	Dial(band spectrum.Band, run uuid.UUID, events chan<- Event) Connection
}

// Frame is a materialized History snapshot.
type Frame struct {
	Run    uuid.UUID
	Band   spectrum.Band
	Sweeps []spectrum.SweepView // newest-first
	Final  bool                 // forced on close
	At     time.Time
}

// Renderer draws frames. It is called on the event loop and must not block.
type Renderer interface {
	Render(frame Frame)
}

// RendererFunc adapts a function to a Renderer.
type RendererFunc func(frame Frame)

func (f RendererFunc) Render(frame Frame) { f(frame) }

// Recorder journals runs and finished sweeps. Calls happen on the event loop
// and must not block.
type Recorder interface {
	RunStarted(run uuid.UUID, band string, at time.Time)
	SweepCompleted(run uuid.UUID, summary spectrum.Summary)
	RunEnded(run uuid.UUID, at time.Time, outcome string, reason string)
}
