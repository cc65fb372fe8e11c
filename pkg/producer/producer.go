// Package producer provides the token producers behind the chat streaming
// endpoint. A producer turns a conversation into a lazy sequence of tokens;
// the server frames each token onto the wire as it is pulled.
package producer

import (
	"context"
	"errors"

	"github.com/papercomputeco/chatstream/pkg/llm"
)

// ErrUnknownProducer is returned by New for an unrecognized producer name.
var ErrUnknownProducer = errors.New("unknown producer")

// Producer creates token streams for conversations. Implementations are
// invoked read-only and may be shared across requests, but each returned
// stream belongs to a single response.
type Producer interface {
	// Name returns the canonical producer name (e.g., "echo", "ollama").
	Name() string

	// Stream starts producing the response to messages. The messages never
	// include the trailing assistant placeholder.
	Stream(ctx context.Context, messages []llm.Message) (llm.TokenStream, error)
}
