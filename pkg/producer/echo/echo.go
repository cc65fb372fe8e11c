// Package echo implements the echo token producer: it replies with the
// user's own words, one character at a time.
package echo

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/papercomputeco/chatstream/pkg/llm"
)

var errStreamClosed = errors.New("echo: stream closed")

// Producer echoes the user messages of a conversation.
type Producer struct{}

// New creates a new echo Producer.
func New() *Producer {
	return &Producer{}
}

// Name returns the producer name.
func (p *Producer) Name() string {
	return "echo"
}

// Stream joins the contents of the user messages with a single space and
// yields the result one rune at a time.
func (p *Producer) Stream(_ context.Context, messages []llm.Message) (llm.TokenStream, error) {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		if m.Role == llm.RoleUser {
			parts = append(parts, m.Content)
		}
	}

	return &stream{runes: []rune(strings.Join(parts, " "))}, nil
}

type stream struct {
	runes  []rune
	pos    int
	closed bool
}

func (s *stream) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.closed {
		return "", errStreamClosed
	}
	if s.pos >= len(s.runes) {
		return "", io.EOF
	}

	tok := string(s.runes[s.pos])
	s.pos++
	return tok, nil
}

func (s *stream) Close() error {
	s.closed = true
	return nil
}
