package sse

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrStreamClosed is returned when writing to a stream that already carried
// its terminal event or was closed.
var ErrStreamClosed = errors.New("sse: stream closed")

// Writer encodes events as frames onto an outbound byte stream.
//
// Every event is written and flushed on its own, so each token reaches the
// client as soon as it is produced. Writing a terminal event closes the
// Writer; so does a failed write.
type Writer struct {
	mu     sync.Mutex
	dest   io.Writer
	flush  func() error
	closed bool
	events int
}

// NewWriter returns a Writer that frames events onto dest.
//
// If dest has a Flush method (http.Flusher or bufio.Writer style), it is
// called after every frame. If dest is an io.Closer it is closed when the
// Writer closes.
func NewWriter(dest io.Writer) *Writer {
	w := &Writer{dest: dest}

	switch f := dest.(type) {
	case interface{ Flush() error }:
		w.flush = f.Flush
	case interface{ Flush() }:
		w.flush = func() error { f.Flush(); return nil }
	}

	return w
}

// WriteEvent writes a single frame for e.
func (w *Writer) WriteEvent(e Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrStreamClosed
	}

	frame, err := EncodeFrame(e)
	if err != nil {
		return err
	}

	if _, err := w.dest.Write(frame); err != nil {
		_ = w.closeLocked()
		return fmt.Errorf("writing %s frame: %w", e.Kind, err)
	}

	if w.flush != nil {
		if err := w.flush(); err != nil {
			_ = w.closeLocked()
			return fmt.Errorf("flushing %s frame: %w", e.Kind, err)
		}
	}

	w.events++

	if e.Terminal() {
		return w.closeLocked()
	}
	return nil
}

// Events returns the number of frames written so far.
func (w *Writer) Events() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.events
}

// Closed reports whether the Writer accepts no further events.
func (w *Writer) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// Close closes the Writer and its destination. It is safe to call more than
// once; only the first call has an effect.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *Writer) closeLocked() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if c, ok := w.dest.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
