// Package server provides the chat streaming HTTP server: it accepts a
// conversation and streams the producer's response back as server-sent
// event frames, one frame per token.
package server

import "time"

// DefaultBodyLimit caps the size of request bodies.
const DefaultBodyLimit = 1 << 20

// Config is the chat server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// Delay is the pause between consecutive token frames. Zero disables pacing.
	Delay time.Duration

	// CORSOrigin is the origin allowed to call the API from a browser.
	// Empty allows any origin.
	CORSOrigin string

	// BodyLimit is the maximum request body size in bytes. Defaults to DefaultBodyLimit.
	BodyLimit int
}
