package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzip"

	"github.com/roman-kulish/spectrum-watch/internal/spectrum"
	"github.com/roman-kulish/spectrum-watch/internal/stream"
)

const (
	// DefaultStreamPath is the band-scoped stream endpoint. {band} is replaced by the band name.
	DefaultStreamPath = "/ws/wifi_scan/{band}"

	defaultHandshakeTimeout = 10 * time.Second
	defaultCloseTimeout     = 2 * time.Second
	defaultReadLimit        = 4 << 20
)

// WithLogger sets the logger for the dialer
func WithLogger(logger *slog.Logger) func(d *Dialer) {
	return func(d *Dialer) {
		d.logger = logger.With(slog.String("component", "transport"))
	}
}

// WithStreamPath sets the endpoint path template
func WithStreamPath(path string) func(d *Dialer) {
	return func(d *Dialer) {
		d.path = path
	}
}

// WithHandshakeTimeout sets the time allowed to open a connection
func WithHandshakeTimeout(timeout time.Duration) func(d *Dialer) {
	return func(d *Dialer) {
		d.dialer.HandshakeTimeout = timeout
	}
}

// WithReadTimeout closes connections that stay silent longer than timeout. Zero disables it.
func WithReadTimeout(timeout time.Duration) func(d *Dialer) {
	return func(d *Dialer) {
		d.readTimeout = timeout
	}
}

// WithCloseTimeout sets how long a requested close waits for the peer's close frame
func WithCloseTimeout(timeout time.Duration) func(d *Dialer) {
	return func(d *Dialer) {
		d.closeTimeout = timeout
	}
}

// WithHeader sets extra headers sent with the handshake
func WithHeader(header http.Header) func(d *Dialer) {
	return func(d *Dialer) {
		d.header = header
	}
}

// Dialer opens websocket stream connections for bands.
type Dialer struct {
	base   *url.URL
	path   string
	header http.Header
	dialer *websocket.Dialer

	readTimeout  time.Duration
	closeTimeout time.Duration
	logger       *slog.Logger

	ctx    context.Context // cancelled by Close; parent of every connection
	cancel context.CancelFunc
	conns  sync.WaitGroup
}

// NewDialer creates a Dialer for the server at serverURL. http and https
// URLs are mapped to ws and wss.
func NewDialer(serverURL string, options ...func(d *Dialer)) (*Dialer, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("unsupported server URL scheme '%s'", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("server URL '%s' has no host", serverURL)
	}

	d := Dialer{
		base: u,
		path: DefaultStreamPath,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: defaultHandshakeTimeout,
		},
		closeTimeout: defaultCloseTimeout,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&d)
	}

	if !strings.Contains(d.path, "{band}") {
		return nil, fmt.Errorf("stream path '%s' has no {band} placeholder", d.path)
	}

	d.ctx, d.cancel = context.WithCancel(context.Background())
	return &d, nil
}

// Endpoint returns the stream URL of band.
func (d *Dialer) Endpoint(band string) string {
	u := *d.base
	u.Path = strings.TrimSuffix(u.Path, "/") + strings.ReplaceAll(d.path, "{band}", url.PathEscape(band))
	u.RawPath = ""
	return u.String()
}

// Dial starts connecting in the background and returns immediately.
func (d *Dialer) Dial(band spectrum.Band, run uuid.UUID, events chan<- stream.Event) stream.Connection {
	ctx, cancel := context.WithCancel(d.ctx)

	c := &conn{
		runID:        run,
		endpoint:     d.Endpoint(band.Name),
		events:       events,
		shutdown:     d.ctx.Done(),
		ctx:          ctx,
		cancel:       cancel,
		dialer:       d.dialer,
		header:       d.header,
		readTimeout:  d.readTimeout,
		closeTimeout: d.closeTimeout,
		logger: d.logger.With(
			slog.String("band", band.Name),
			slog.String("run", run.String()),
		),
	}

	d.conns.Add(1)
	go func() {
		defer d.conns.Done()
		c.run()
	}()
	return c
}

// Close tears down all connections and waits for their readers to exit.
// Events not yet taken by the consumer are dropped. Connections dialed
// after Close end immediately.
func (d *Dialer) Close() error {
	d.cancel()
	d.conns.Wait()
	return nil
}

type conn struct {
	runID    uuid.UUID
	endpoint string
	events   chan<- stream.Event
	shutdown <-chan struct{} // closed when the dialer is closed

	ctx     context.Context
	cancel  context.CancelFunc
	closing atomic.Bool

	dialer       *websocket.Dialer
	header       http.Header
	readTimeout  time.Duration
	closeTimeout time.Duration
	logger       *slog.Logger

	closeOnce sync.Once
}

// Close requests the connection to close without waiting for it.
func (c *conn) Close() error {
	c.closeOnce.Do(func() {
		c.closing.Store(true)
		c.cancel()
	})
	return nil
}

// emit delivers frames and the open notification unless a close was requested.
func (c *conn) emit(ev stream.Event) {
	ev.Run = c.runID
	select {
	case c.events <- ev:
	case <-c.ctx.Done():
	}
}

// deliver delivers ev even after a close request; errors and the final close
// must reach the session. Only closing the dialer abandons it.
func (c *conn) deliver(ev stream.Event) {
	ev.Run = c.runID
	select {
	case c.events <- ev:
	case <-c.shutdown:
		c.logger.Debug("dialer closed, dropping event", slog.String("event", ev.Type.String()))
	}
}

func (c *conn) run() {
	defer c.deliver(stream.Event{Type: stream.EventClose})
	defer c.cancel()

	c.logger.Debug("dialing", slog.String("endpoint", c.endpoint))

	ws, resp, err := c.dialer.DialContext(c.ctx, c.endpoint, c.header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if !c.closing.Load() {
			if resp != nil {
				err = fmt.Errorf("%w (HTTP %s)", err, resp.Status)
			}
			c.deliver(stream.Event{Type: stream.EventError, Err: err})
		}
		return
	}
	defer ws.Close()

	ws.SetReadLimit(defaultReadLimit)
	c.emit(stream.Event{Type: stream.EventOpen})

	readDone := make(chan struct{})
	defer close(readDone)

	go func() {
		select {
		case <-c.ctx.Done():
			deadline := time.Now().Add(c.closeTimeout)
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			if err := ws.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
				c.logger.Debug(fmt.Sprintf("writing close frame: %s", err.Error()))
			}
			_ = ws.SetReadDeadline(deadline)
		case <-readDone:
		}
	}()

	for {
		if c.readTimeout > 0 && !c.closing.Load() {
			_ = ws.SetReadDeadline(time.Now().Add(c.readTimeout))
		}

		messageType, data, err := ws.ReadMessage()
		if err != nil {
			if c.closing.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("connection closed", slog.String("reason", err.Error()))
				return
			}
			c.deliver(stream.Event{Type: stream.EventError, Err: err})
			return
		}

		if messageType == websocket.BinaryMessage {
			if data, err = gunzip(data); err != nil {
				c.logger.Warn(fmt.Sprintf("decompressing frame: %s", err.Error()))
			}
		}

		c.emit(stream.Event{Type: stream.EventMessage, Data: data})
	}
}

// gunzip returns the decompressed frame, or the input when it is not gzip data.
func gunzip(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return data, err
	}
	defer reader.Close()

	out, err := io.ReadAll(io.LimitReader(reader, defaultReadLimit))
	if err != nil {
		return data, err
	}
	return out, nil
}
