package sse

import (
	"bytes"
	"log/slog"

	"github.com/papercomputeco/chatstream/pkg/utils"
)

// State is the lifecycle state of a decode session.
type State int

const (
	// StateOpen means no bytes have been received yet.
	StateOpen State = iota

	// StateReceiving means at least one chunk has been received and no
	// terminal signal has been seen.
	StateReceiving

	// StateClosed is terminal. It is entered on a done frame, an error
	// frame, natural end of input, or a transport failure, whichever comes
	// first. Later signals are ignored.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateReceiving:
		return "receiving"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Sink receives decoded events. A Sink sees any number of token events
// followed by at most one terminal event.
type Sink interface {
	Handle(Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Event)

func (f SinkFunc) Handle(e Event) { f(e) }

// SinkFuncs adapts independent token, done, and error callbacks to a Sink.
// Nil callbacks are skipped.
type SinkFuncs struct {
	OnToken func(token string)
	OnDone  func()
	OnError func(msg string)
}

func (s SinkFuncs) Handle(e Event) {
	switch e.Kind {
	case KindToken:
		if s.OnToken != nil {
			s.OnToken(e.Value)
		}
	case KindDone:
		if s.OnDone != nil {
			s.OnDone()
		}
	case KindError:
		if s.OnError != nil {
			s.OnError(e.Value)
		}
	}
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithLogger sets the logger used to report dropped frames at debug level.
func WithLogger(l *slog.Logger) DecoderOption {
	return func(d *Decoder) {
		d.logger = l
	}
}

// Decoder reassembles frames from a chunked byte stream and dispatches the
// decoded events to a Sink.
//
// Chunks may split frames anywhere, including inside the delimiter or inside
// a multi-byte rune: bytes that do not yet form a complete frame are kept in
// the buffer until a later chunk completes them.
//
// A Decoder owns the state of one session and is not safe for concurrent use.
type Decoder struct {
	sink   Sink
	logger *slog.Logger

	buf   []byte
	state State
	err   error

	tokens  int
	dropped int
}

// NewDecoder returns a Decoder dispatching to sink.
func NewDecoder(sink Sink, opts ...DecoderOption) *Decoder {
	d := &Decoder{
		sink:   sink,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Write feeds one raw chunk into the decoder. Complete frames are decoded and
// dispatched before Write returns. Write never fails; after the session has
// closed, input is discarded.
func (d *Decoder) Write(p []byte) (int, error) {
	if d.state == StateClosed || len(p) == 0 {
		return len(p), nil
	}
	d.state = StateReceiving

	d.buf = append(d.buf, p...)

	off := 0
	for d.state != StateClosed {
		i := bytes.Index(d.buf[off:], delimiter)
		if i < 0 {
			break
		}
		frame := d.buf[off : off+i]
		off += i + len(delimiter)
		d.decodeFrame(frame)
	}

	if d.state == StateClosed {
		d.buf = nil
	} else if off > 0 {
		d.buf = append(d.buf[:0], d.buf[off:]...)
	}

	return len(p), nil
}

// Finish signals natural end of input. End of input is itself a completion
// signal: a done event is dispatched unless the session already closed. A
// trailing partial frame is discarded.
func (d *Decoder) Finish() {
	if len(d.buf) > 0 && d.state != StateClosed {
		d.logger.Debug("discarding unterminated frame at end of stream",
			"bytes", len(d.buf),
		)
	}
	d.close(Done(), nil)
}

// Fail signals a transport failure. An error event describing err is
// dispatched unless the session already closed.
func (d *Decoder) Fail(err error) {
	d.close(Error(err.Error()), err)
}

// State returns the current session state.
func (d *Decoder) State() State {
	return d.state
}

// Err returns the failure that closed the session, or nil if it is still
// open or closed successfully.
func (d *Decoder) Err() error {
	return d.err
}

// Tokens returns the number of token events dispatched.
func (d *Decoder) Tokens() int {
	return d.tokens
}

// Dropped returns the number of malformed frames discarded.
func (d *Decoder) Dropped() int {
	return d.dropped
}

// decodeFrame decodes one delimited frame. A frame that cannot be decoded is
// dropped and the session continues.
func (d *Decoder) decodeFrame(frame []byte) {
	f, ok := parseFrame(frame)
	if !ok {
		d.dropped++
		d.logger.Debug("dropping malformed frame",
			"frame", utils.Truncate(string(frame), 64),
		)
		return
	}

	// The checks are independent so that a frame carrying several signals
	// is still honored. A token is delivered before any terminal signal in
	// the same frame, and error takes priority over done.
	if f.token != nil && d.state != StateClosed {
		d.tokens++
		d.sink.Handle(Token(*f.token))
	}
	switch {
	case f.err != nil:
		d.close(Error(*f.err), &StreamError{Message: *f.err})
	case f.done:
		d.close(Done(), nil)
	}
}

// close dispatches the terminal event e and records cause as the session
// error. Only the first call has an effect.
func (d *Decoder) close(e Event, cause error) {
	if d.state == StateClosed {
		return
	}
	d.state = StateClosed
	d.buf = nil
	d.err = cause
	d.sink.Handle(e)
}
