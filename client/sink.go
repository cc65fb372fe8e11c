package client

import (
	"sync"

	"github.com/papercomputeco/chatstream/pkg/llm"
	"github.com/papercomputeco/chatstream/pkg/sse"
)

// ErrorPrefix starts the assistant message appended when a stream fails.
const ErrorPrefix = "[Error] "

// ConversationSink applies stream events to a conversation: tokens are
// appended to the trailing assistant message, and a failure is recorded as
// an assistant message so the conversation shows what went wrong. A failure
// before any token leaves the empty placeholder in place; Payload drops it
// if the conversation is submitted again.
type ConversationSink struct {
	// Forward, if set, also receives every event, e.g. to print tokens as
	// they arrive.
	Forward sse.Sink

	mu       sync.Mutex
	conv     llm.Conversation
	finished bool
	failed   string
}

// NewConversationSink returns a sink that extends conv.
func NewConversationSink(conv llm.Conversation) *ConversationSink {
	return &ConversationSink{conv: conv}
}

// Handle applies e to the conversation.
func (s *ConversationSink) Handle(e sse.Event) {
	s.mu.Lock()
	switch e.Kind {
	case sse.KindToken:
		s.conv = s.conv.AppendToken(e.Value)
	case sse.KindDone:
		s.finished = true
	case sse.KindError:
		s.finished = true
		s.failed = e.Value
		s.conv = append(s.conv, llm.NewTextMessage(llm.RoleAssistant, ErrorPrefix+e.Value))
	}
	s.mu.Unlock()

	if s.Forward != nil {
		s.Forward.Handle(e)
	}
}

// Conversation returns the conversation as it stands.
func (s *ConversationSink) Conversation() llm.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv
}

// Finished reports whether a terminal event was received.
func (s *ConversationSink) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// Failure returns the error message of a failed stream, or "" otherwise.
func (s *ConversationSink) Failure() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}
