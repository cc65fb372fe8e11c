// Package sse implements the chatstream wire protocol: a one-directional
// stream of Server-Sent Events carrying the tokens of a single response.
//
// Each event is encoded as one frame:
//
//	data: {"token":"h"}\n\n
//	data: {"done":true}\n\n
//	data: {"error":"upstream failed"}\n\n
//
// Writer is the encoding side used by the server. Decoder is the decoding
// side used by clients: it reassembles frames from arbitrarily chunked input
// and dispatches decoded events to a Sink.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

import "fmt"

// Kind identifies the variant of an Event.
type Kind int

const (
	// KindToken carries one unit of produced content.
	KindToken Kind = iota + 1

	// KindDone is the terminal success signal.
	KindDone

	// KindError is the terminal failure signal.
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindToken:
		return "token"
	case KindDone:
		return "done"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is a single stream event. Every stream carries any number of token
// events followed by exactly one terminal event (done or error).
type Event struct {
	Kind Kind

	// Value is the token text for KindToken and the human-readable failure
	// description for KindError. It is empty for KindDone.
	Value string
}

// Token returns a token event.
func Token(v string) Event {
	return Event{Kind: KindToken, Value: v}
}

// Done returns the terminal success event.
func Done() Event {
	return Event{Kind: KindDone}
}

// Error returns the terminal failure event.
func Error(msg string) Event {
	return Event{Kind: KindError, Value: msg}
}

// Terminal reports whether e ends a stream.
func (e Event) Terminal() bool {
	return e.Kind == KindDone || e.Kind == KindError
}

// Payload is the JSON document carried on a frame's data line.
type Payload struct {
	Token *string `json:"token,omitempty"`
	Done  bool    `json:"done,omitempty"`
	Error *string `json:"error,omitempty"`
}

// Payload returns the wire payload for e.
func (e Event) Payload() Payload {
	switch e.Kind {
	case KindToken:
		v := e.Value
		return Payload{Token: &v}
	case KindError:
		v := e.Value
		return Payload{Error: &v}
	case KindDone:
		return Payload{Done: true}
	}
	return Payload{}
}

// StreamError is the error reported when a stream ends with an error event.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string {
	return e.Message
}
