// Package client submits conversations to a chatstream server and decodes
// the streamed response.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/papercomputeco/chatstream/pkg/llm"
	"github.com/papercomputeco/chatstream/pkg/sse"
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for requests. Streaming requests
// are bounded by their context, so the client should not set a Timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithRawWriter mirrors the raw response bytes of every chat stream to w.
func WithRawWriter(w io.Writer) Option {
	return func(c *Client) {
		c.raw = w
	}
}

// Client talks to a chatstream server.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
	raw     io.Writer
}

// New creates a Client for the server at baseURL (e.g., "http://localhost:8080").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ChatStream submits conv and dispatches the streamed response to sink.
//
// A trailing placeholder in conv is not submitted. The sink receives any
// number of token events followed by exactly one terminal event, including
// when the request itself fails. The returned error mirrors that terminal
// event: nil after done, non-nil after error.
func (c *Client) ChatStream(ctx context.Context, conv llm.Conversation, sink sse.Sink) error {
	d := sse.NewDecoder(sink, sse.WithLogger(c.logger))

	body, err := json.Marshal(llm.ChatSubmission{Messages: nonNil(conv.Payload())})
	if err != nil {
		d.Fail(fmt.Errorf("marshaling request: %w", err))
		return d.Err()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		d.Fail(fmt.Errorf("creating request: %w", err))
		return d.Err()
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	c.logger.Debug("sending chat request",
		"target", c.baseURL,
		"message_count", len(conv.Payload()),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		d.Fail(fmt.Errorf("sending chat request: %w", err))
		return d.Err()
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		d.Fail(fmt.Errorf("chat request failed: %w", statusError(resp)))
		return d.Err()
	}

	c.logger.Debug("chat stream opened",
		"stream_id", resp.Header.Get("X-Stream-Id"),
	)

	var r io.Reader = resp.Body
	if c.raw != nil {
		r = io.TeeReader(resp.Body, c.raw)
	}

	err = sse.Consume(ctx, r, d)

	c.logger.Debug("chat stream closed",
		"tokens", d.Tokens(),
		"dropped", d.Dropped(),
		"error", err,
	)

	return err
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("checking server health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: %w", statusError(resp))
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("decoding health response: %w", err)
	}
	if health.Status != "healthy" {
		return fmt.Errorf("server reported status %q", health.Status)
	}

	return nil
}

// statusError describes a non-success response, preferring the server's
// JSON error message over the raw body.
func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	detail := strings.TrimSpace(string(raw))
	var errResp llm.ErrorResponse
	if err := json.Unmarshal(raw, &errResp); err == nil && errResp.Error != "" {
		detail = errResp.Error
	}

	return fmt.Errorf("status %d: %s", resp.StatusCode, detail)
}

// nonNil keeps an empty conversation encoding as [] rather than null, which
// the server would reject.
func nonNil(msgs []llm.Message) []llm.Message {
	if msgs == nil {
		return []llm.Message{}
	}
	return msgs
}
