package llm

import "encoding/json"

// ChatRequest is the body accepted by the chat streaming endpoint.
//
// Messages is kept raw so the server can tell a missing or non-array field
// apart from an empty conversation before decoding it.
type ChatRequest struct {
	Messages json.RawMessage `json:"messages"`
}

// ChatSubmission is the body a client sends to the chat streaming endpoint.
type ChatSubmission struct {
	Messages []Message `json:"messages"`
}

// ErrorResponse is the structured error body returned by HTTP handlers.
type ErrorResponse struct {
	Error string `json:"error"`
}
