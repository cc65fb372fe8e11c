// Package ollama implements a token producer backed by an Ollama server's
// streaming chat endpoint.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/papercomputeco/chatstream/pkg/llm"
)

const (
	// DefaultUpstream is the default Ollama server URL.
	DefaultUpstream = "http://localhost:11434"

	// DefaultModel is the model used when none is configured.
	DefaultModel = "gemma3:latest"
)

// ErrMissingUpstream is returned by New when no upstream URL is configured.
var ErrMissingUpstream = errors.New("ollama: upstream URL is required")

// Config configures an Ollama Producer.
type Config struct {
	// Upstream is the base URL of the Ollama server.
	Upstream string

	// Model is the model to generate with. Defaults to DefaultModel.
	Model string

	// HTTPClient is the client used for upstream requests.
	HTTPClient *http.Client
}

// Producer streams responses from Ollama.
type Producer struct {
	upstream string
	model    string
	client   *http.Client
}

// New creates a new Ollama Producer.
func New(cfg Config) (*Producer, error) {
	upstream := strings.TrimRight(cfg.Upstream, "/")
	if upstream == "" {
		return nil, ErrMissingUpstream
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	return &Producer{
		upstream: upstream,
		model:    model,
		client:   client,
	}, nil
}

// Name returns the producer name.
func (p *Producer) Name() string {
	return "ollama"
}

// Model returns the configured model name.
func (p *Producer) Model() string {
	return p.model
}

// Stream sends the conversation to Ollama with streaming enabled. The
// returned stream yields the content of each chunk until Ollama reports done.
func (p *Producer) Stream(ctx context.Context, messages []llm.Message) (llm.TokenStream, error) {
	reqBody := chatRequest{
		Model:    p.model,
		Messages: make([]chatMessage, 0, len(messages)),
		Stream:   true,
	}
	for _, m := range messages {
		reqBody.Messages = append(reqBody.Messages, chatMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.upstream+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request to ollama: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	return &stream{body: resp.Body, scanner: scanner}, nil
}

type stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

func (s *stream) Next(ctx context.Context) (string, error) {
	for !s.done {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return "", fmt.Errorf("reading ollama stream: %w", err)
			}
			return "", fmt.Errorf("ollama stream ended before done: %w", io.ErrUnexpectedEOF)
		}

		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var chunk streamChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return "", fmt.Errorf("parsing ollama stream chunk: %w", err)
		}

		if chunk.Error != "" {
			return "", fmt.Errorf("ollama: %s", chunk.Error)
		}

		s.done = chunk.Done
		if chunk.Message.Content != "" {
			return chunk.Message.Content, nil
		}
	}

	return "", io.EOF
}

func (s *stream) Close() error {
	return s.body.Close()
}
