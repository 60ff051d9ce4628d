package render

import (
	"errors"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/roman-kulish/spectrum-watch/internal/stream"
)

// WithLogger sets the logger of the PNG writer.
func WithLogger(logger *slog.Logger) func(*PNGWriter) {
	return func(w *PNGWriter) {
		w.logger = logger
	}
}

// WithOnWritten registers a callback invoked from the writer goroutine after
// each file is replaced.
func WithOnWritten(fn func(stream.Frame)) func(*PNGWriter) {
	return func(w *PNGWriter) {
		w.onWritten = fn
	}
}

// PNGWriter renders frames into a PNG file in the background. Only the latest
// pending frame is kept: frames arriving while a write is in progress replace
// each other, so Render never blocks the event loop.
type PNGWriter struct {
	path      string
	renderer  *FrameRenderer
	logger    *slog.Logger
	onWritten func(stream.Frame)

	mu      sync.Mutex
	pending *stream.Frame
	closed  bool

	wake chan struct{}
	done chan struct{}
}

var _ stream.Renderer = (*PNGWriter)(nil)

// NewPNGWriter creates a writer replacing the file at path with every frame.
func NewPNGWriter(path string, renderer *FrameRenderer, options ...func(*PNGWriter)) (*PNGWriter, error) {
	if path == "" {
		return nil, errors.New("output path required")
	}
	if renderer == nil {
		return nil, errors.New("frame renderer required")
	}

	w := PNGWriter{
		path:     path,
		renderer: renderer,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	for _, option := range options {
		option(&w)
	}

	go w.loop()

	return &w, nil
}

// Render queues the frame, replacing any frame not yet written.
func (w *PNGWriter) Render(frame stream.Frame) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.pending = &frame
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *PNGWriter) take() (*stream.Frame, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	frame := w.pending
	w.pending = nil
	return frame, w.closed
}

func (w *PNGWriter) loop() {
	defer close(w.done)

	for range w.wake {
		frame, closed := w.take()
		if frame != nil {
			if err := w.write(*frame); err != nil {
				w.logger.Error("writing frame", "path", w.path, "error", err)
			} else if w.onWritten != nil {
				w.onWritten(*frame)
			}
		}
		if closed {
			return
		}
	}
}

func (w *PNGWriter) write(frame stream.Frame) (err error) {
	img, err := w.renderer.Render(frame)
	if errors.Is(err, ErrEmptyFrame) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("rendering frame: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(w.path), "."+filepath.Base(w.path)+".*")
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = png.Encode(tmp, img); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encoding png: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing temporary file: %w", err)
	}
	if err = os.Rename(tmp.Name(), w.path); err != nil {
		return fmt.Errorf("replacing output file: %w", err)
	}
	return nil
}

// Close writes the pending frame, if any, and stops the writer.
func (w *PNGWriter) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.done
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}

	<-w.done
	return nil
}
