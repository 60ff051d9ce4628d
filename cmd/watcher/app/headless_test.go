package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/roman-kulish/spectrum-watch/internal/spectrum"
	"github.com/roman-kulish/spectrum-watch/internal/stream"
)

// scriptedDialer replays frames on every dial and confirms closes when asked.
type scriptedDialer struct {
	frames       []string
	confirmClose bool
}

type scriptedConn struct {
	once    sync.Once
	run     uuid.UUID
	events  chan<- stream.Event
	confirm bool
}

func (c *scriptedConn) Close() error {
	if c.confirm {
		c.once.Do(func() {
			go func() { c.events <- stream.Event{Run: c.run, Type: stream.EventClose} }()
		})
	}
	return nil
}

func (d *scriptedDialer) Dial(_ spectrum.Band, run uuid.UUID, events chan<- stream.Event) stream.Connection {
	frames := d.frames
	go func() {
		events <- stream.Event{Run: run, Type: stream.EventOpen}
		for _, f := range frames {
			events <- stream.Event{Run: run, Type: stream.EventMessage, Data: []byte(f)}
		}
	}()
	return &scriptedConn{run: run, events: events, confirm: d.confirmClose}
}

func newTestSession(t *testing.T, dialer stream.Dialer, onStatus func(stream.Status)) *stream.Session {
	t.Helper()

	session, err := stream.NewSession(dialer, DefaultBands(), stream.RendererFunc(func(stream.Frame) {}),
		stream.WithStatusHandler(onStatus),
	)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	return session
}

func TestDrive_ServerError(t *testing.T) {
	var failure error
	session := newTestSession(t,
		&scriptedDialer{frames: []string{`{"freq_mhz": 2412, "dbm": -60}`, `{"error": "device busy"}`}, confirmClose: true},
		func(st stream.Status) {
			if st.Err != nil {
				failure = st.Err
			}
		},
	)

	err := drive(context.Background(), session, "2.4", time.Second, func() error { return failure })

	var serverErr *stream.ServerError
	if !errors.As(err, &serverErr) || serverErr.Message != "device busy" {
		t.Fatalf("drive() error = %v, want server error 'device busy'", err)
	}
	if session.State() != stream.Idle {
		t.Errorf("State() = %s, want idle", session.State())
	}
}

func TestDrive_StopOnCancel(t *testing.T) {
	session := newTestSession(t, &scriptedDialer{confirmClose: true}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := drive(ctx, session, "5", time.Second, func() error { return nil }); err != nil {
		t.Fatalf("drive() error = %v, want nil after a confirmed stop", err)
	}
	if _, running := session.Band(); running {
		t.Error("Band() reports a running stream after drive returned")
	}
}

func TestDrive_StopTimeout(t *testing.T) {
	session := newTestSession(t, &scriptedDialer{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := drive(ctx, session, "5", 20*time.Millisecond, func() error { return nil })
	if !errors.Is(err, ErrStopTimeout) {
		t.Fatalf("drive() error = %v, want ErrStopTimeout", err)
	}
}

func TestDrive_UnknownBand(t *testing.T) {
	session := newTestSession(t, &scriptedDialer{}, nil)

	if err := drive(context.Background(), session, "60", time.Second, func() error { return nil }); err == nil {
		t.Fatal("drive() succeeded for an unknown band, want error")
	}
}
