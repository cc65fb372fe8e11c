// Package scripted implements a token producer that replays a fixed list of
// tokens, optionally failing part way through. It backs demos and tests that
// need a deterministic stream.
package scripted

import (
	"context"
	"errors"
	"io"

	"github.com/papercomputeco/chatstream/pkg/llm"
)

// ErrScriptedFailure is the default failure injected by WithFailure.
var ErrScriptedFailure = errors.New("scripted producer failure")

// Option configures a scripted Producer.
type Option func(*Producer)

// WithFailure makes every stream fail with err after yielding n tokens.
// A nil err uses ErrScriptedFailure.
func WithFailure(n int, err error) Option {
	return func(p *Producer) {
		if err == nil {
			err = ErrScriptedFailure
		}
		p.failAfter = n
		p.failErr = err
	}
}

// Producer replays the same tokens for every conversation.
type Producer struct {
	tokens    []string
	failAfter int
	failErr   error
}

// New creates a Producer yielding tokens in order.
func New(tokens []string, opts ...Option) *Producer {
	p := &Producer{
		tokens:    append([]string(nil), tokens...),
		failAfter: -1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the producer name.
func (p *Producer) Name() string {
	return "scripted"
}

// Stream ignores the conversation and starts a fresh replay.
func (p *Producer) Stream(_ context.Context, _ []llm.Message) (llm.TokenStream, error) {
	return &stream{p: p}, nil
}

type stream struct {
	p   *Producer
	pos int
}

func (s *stream) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.p.failAfter >= 0 && s.pos >= s.p.failAfter {
		return "", s.p.failErr
	}
	if s.pos >= len(s.p.tokens) {
		return "", io.EOF
	}

	tok := s.p.tokens[s.pos]
	s.pos++
	return tok, nil
}

func (s *stream) Close() error {
	return nil
}
