package producer

import (
	"fmt"
	"net/http"

	"github.com/papercomputeco/chatstream/pkg/producer/echo"
	"github.com/papercomputeco/chatstream/pkg/producer/ollama"
	"github.com/papercomputeco/chatstream/pkg/producer/scripted"
)

// Supported producer name constants
const (
	Echo     = "echo"
	Ollama   = "ollama"
	Scripted = "scripted"
)

// Config holds the settings producers may need. Fields irrelevant to the
// selected producer are ignored.
type Config struct {
	// OllamaUpstream is the base URL of the Ollama server (e.g., "http://localhost:11434")
	OllamaUpstream string

	// OllamaModel is the model Ollama generates with.
	OllamaModel string

	// HTTPClient is used by producers that call upstream services.
	// Defaults to a client without a timeout; requests are bounded by their context.
	HTTPClient *http.Client

	// Tokens is the fixed response of the scripted producer.
	Tokens []string
}

// SupportedProducers returns the list of all supported producer names.
func SupportedProducers() []string {
	return []string{Echo, Ollama, Scripted}
}

// New creates the named Producer.
// Returns ErrUnknownProducer if the name is not recognized.
func New(name string, cfg Config) (Producer, error) {
	switch name {
	case Echo:
		return echo.New(), nil
	case Ollama:
		p, err := ollama.New(ollama.Config{
			Upstream:   cfg.OllamaUpstream,
			Model:      cfg.OllamaModel,
			HTTPClient: cfg.HTTPClient,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	case Scripted:
		return scripted.New(cfg.Tokens), nil
	default:
		return nil, fmt.Errorf("%w: %q (supported: %v)", ErrUnknownProducer, name, SupportedProducers())
	}
}
