package llm

import "context"

// TokenStream is a pull-based, finite, non-restartable sequence of response
// tokens produced for one conversation.
type TokenStream interface {
	// Next returns the next token. It returns io.EOF once the sequence is
	// exhausted; any other error is a producer failure and ends the stream.
	Next(ctx context.Context) (string, error)

	// Close releases the resources held by the stream. It is safe to call
	// before the stream is exhausted.
	Close() error
}
