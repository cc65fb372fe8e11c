package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/papercomputeco/chatstream/pkg/llm"
	"github.com/papercomputeco/chatstream/pkg/sse"
)

// ErrInvalidMessages is returned for chat requests whose messages field is
// missing or not an array.
var ErrInvalidMessages = errors.New("messages must be an array")

// errShuttingDown is reported to clients whose stream is cut by shutdown.
var errShuttingDown = errors.New("server shutting down")

// decodeChatRequest validates a chat request body and returns the
// conversation to answer, without a trailing placeholder.
func decodeChatRequest(body []byte) (llm.Conversation, error) {
	var req llm.ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMessages, err)
	}

	raw := bytes.TrimSpace(req.Messages)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, ErrInvalidMessages
	}

	var messages []llm.Message
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMessages, err)
	}

	return llm.Conversation(messages).Payload(), nil
}

// handleChat validates the conversation and opens a token stream.
// Validation failures are answered with a 400 before any frame is written.
func (s *Server) handleChat(c *fiber.Ctx) error {
	conv, err := decodeChatRequest(c.Body())
	if err != nil {
		s.logger.Debug("rejecting chat request", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: ErrInvalidMessages.Error()})
	}

	streamID := uuid.NewString()

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")
	c.Set(StreamIDHeader, streamID)

	// pw.Write blocks until fasthttp's chunked body writer has consumed the
	// frame, so each frame goes out as its own chunk.
	pr, pw := io.Pipe()

	s.streams.Add(1)
	go s.emit(streamID, conv, pw)

	// Unknown size (-1) triggers chunked transfer encoding.
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// emit runs the emission loop for one stream and releases the pipe on every
// exit path.
func (s *Server) emit(streamID string, conv llm.Conversation, pw *io.PipeWriter) {
	defer s.streams.Done()

	start := time.Now()
	logger := s.logger.With(
		"stream_id", streamID,
		"producer", s.producer.Name(),
	)

	w := sse.NewWriter(pw)
	defer w.Close()

	ctx, cancel := context.WithCancel(s.baseCtx)
	defer cancel()

	logger.Debug("stream opened", "message_count", len(conv))

	tokens, err := s.pump(ctx, logger, conv, w)

	attrs := []any{
		"message_count", len(conv),
		"token_count", tokens,
		"frame_count", w.Events(),
		"duration", time.Since(start),
	}
	switch {
	case err == nil:
		logger.Info("stream completed", attrs...)
	case errors.Is(err, io.ErrClosedPipe):
		logger.Info("client disconnected", attrs...)
	default:
		logger.Warn("stream failed", append(attrs, "error", err)...)
	}
}

// pump pulls tokens from the producer and writes one frame per token,
// followed by exactly one terminal frame. It returns the number of tokens
// written and the error that ended the stream, if any.
func (s *Server) pump(ctx context.Context, logger *slog.Logger, conv llm.Conversation, w *sse.Writer) (int, error) {
	stream, err := s.producer.Stream(ctx, conv)
	if err != nil {
		return 0, s.fail(ctx, w, err)
	}
	defer func() {
		if err := stream.Close(); err != nil {
			logger.Debug("closing token stream", "error", err)
		}
	}()

	count := 0
	for {
		tok, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			return count, w.WriteEvent(sse.Done())
		}
		if err != nil {
			return count, s.fail(ctx, w, err)
		}

		if count > 0 && s.config.Delay > 0 {
			if err := sleep(ctx, s.config.Delay); err != nil {
				return count, s.fail(ctx, w, err)
			}
		}

		if err := w.WriteEvent(sse.Token(tok)); err != nil {
			return count, err
		}
		count++
	}
}

// fail writes an error frame describing cause and returns the error that
// ended the stream. A write failure takes precedence because it means the
// client is gone.
func (s *Server) fail(ctx context.Context, w *sse.Writer, cause error) error {
	msg := cause.Error()
	if ctx.Err() != nil && s.baseCtx.Err() != nil {
		msg = errShuttingDown.Error()
		cause = errShuttingDown
	}

	if err := w.WriteEvent(sse.Error(msg)); err != nil {
		return err
	}
	return cause
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
