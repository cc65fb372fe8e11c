// Package logger provides opinionated structured logging for chatstream.
//
// Loggers are plain *slog.Logger values so that every package depends only on
// the standard logging interface. The handler behind them is chosen with
// options: charmbracelet/log for interactive terminals, JSON for services
// whose output is collected, and slog's text handler otherwise.
package logger

import (
	"io"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
)

type config struct {
	level  slog.Level
	format Format
	writer io.Writer
	source bool
}

// New creates a *slog.Logger configured by opts. Without options it logs at
// Info level in slog's text format to os.Stdout.
func New(opts ...Option) *slog.Logger {
	c := &config{
		level:  slog.LevelInfo,
		format: FormatText,
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.writer == nil {
		c.writer = os.Stdout
	}

	return slog.New(newHandler(c))
}

func newHandler(c *config) slog.Handler {
	switch c.format {
	case FormatPretty:
		return charmlog.NewWithOptions(c.writer, charmlog.Options{
			Level:           charmlog.Level(c.level),
			ReportTimestamp: true,
			ReportCaller:    c.source,
		})
	case FormatJSON:
		return slog.NewJSONHandler(c.writer, &slog.HandlerOptions{
			Level:     c.level,
			AddSource: c.source,
		})
	default:
		return slog.NewTextHandler(c.writer, &slog.HandlerOptions{
			Level:     c.level,
			AddSource: c.source,
		})
	}
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
