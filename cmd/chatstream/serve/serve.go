// Package servecmder provides the serve command for running the streaming
// chat server.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/papercomputeco/chatstream/pkg/config"
	"github.com/papercomputeco/chatstream/pkg/logger"
	"github.com/papercomputeco/chatstream/pkg/producer"
	"github.com/papercomputeco/chatstream/server"
)

// demoScript is what "--producer scripted" replays.
const demoScript = "Streaming one token at a time keeps the first words on screen while the rest are still on their way."

type ServeCommander struct {
	flags     serveFlags
	cfg       *config.Config
	debug     bool
	logFile   string
	logFormat string

	logger *slog.Logger
}

// serveFlags only receive values; the effective settings are read from cfg
// after viper layering.
type serveFlags struct {
	listen         string
	producer       string
	delay          string
	corsOrigin     string
	ollamaUpstream string
	ollamaModel    string
}

var serveFlagKeys = []string{
	config.FlagListen,
	config.FlagProducer,
	config.FlagDelay,
	config.FlagCORSOrigin,
	config.FlagOllamaUpstream,
	config.FlagOllamaModel,
}

const serveLongDesc string = `Run the chatstream server.

The server accepts a conversation on POST /api/chat and streams the reply
back as Server-Sent Events, one frame per token, ending with a done frame or
an error frame.

Producers:
  echo       Echo the user's messages back one character at a time (default)
  ollama     Stream a reply from an Ollama server
  scripted   Replay a fixed demo reply

Flags override CHATSTREAM_* environment variables, which override values in
.chatstream/config.toml.

Examples:
  chatstream serve
  chatstream serve --listen :9000 --delay 0
  chatstream serve --producer ollama --ollama-model llama3.2`

const serveShortDesc string = "Run the streaming chat server"

func NewServeCmd() *cobra.Command {
	return newServeCmd(&ServeCommander{})
}

func newServeCmd(cmder *ServeCommander) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, serveFlagKeys)

			cmder.cfg, err = config.FromViper(v)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.flags.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagProducer, &cmder.flags.producer)
	config.AddStringFlag(cmd, config.Flags, config.FlagDelay, &cmder.flags.delay)
	config.AddStringFlag(cmd, config.Flags, config.FlagCORSOrigin, &cmder.flags.corsOrigin)
	config.AddStringFlag(cmd, config.Flags, config.FlagOllamaUpstream, &cmder.flags.ollamaUpstream)
	config.AddStringFlag(cmd, config.Flags, config.FlagOllamaModel, &cmder.flags.ollamaModel)
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON logs to this file")
	cmd.Flags().StringVar(&cmder.logFormat, "log-format", string(logger.FormatPretty), "Terminal log format (pretty, text, json)")

	return cmd
}

func (c *ServeCommander) run(ctx context.Context) error {
	closeLog, err := c.setupLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	srv, err := c.newServer()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// A server that stops on its own also releases the shutdown waiter.
		defer stop()
		if err := srv.Run(); err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		c.logger.Info("shutting down chat server")
		return srv.Shutdown()
	})

	return g.Wait()
}

// setupLogger logs to the terminal in --log-format and, with --log-file, to
// a JSON file as well. The returned func closes the file.
func (c *ServeCommander) setupLogger() (func(), error) {
	format, err := logger.ParseFormat(c.logFormat)
	if err != nil {
		return nil, err
	}

	console := logger.New(
		logger.WithDebug(c.debug),
		logger.WithFormat(format),
		logger.WithSource(c.debug),
	)

	var file *slog.Logger
	closeFile := func() {}
	if c.logFile != "" {
		f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		file = logger.New(
			logger.WithDebug(c.debug),
			logger.WithFormat(logger.FormatJSON),
			logger.WithWriter(f),
		)
		closeFile = func() { _ = f.Close() }
	}

	c.logger = logger.Multi(console, file)
	return closeFile, nil
}

// newServer builds the server and its producer from the resolved config.
func (c *ServeCommander) newServer() (*server.Server, error) {
	delay, err := c.cfg.Server.DelayDuration()
	if err != nil {
		return nil, err
	}

	prod, err := producer.New(c.cfg.Server.Producer, producer.Config{
		OllamaUpstream: c.cfg.Ollama.Upstream,
		OllamaModel:    c.cfg.Ollama.Model,
		Tokens:         strings.SplitAfter(demoScript, " "),
	})
	if err != nil {
		return nil, fmt.Errorf("creating producer: %w", err)
	}

	c.logger.Debug("resolved server config",
		"listen", c.cfg.Server.Listen,
		"producer", prod.Name(),
		"delay", delay,
		"cors_origin", c.cfg.Server.CORSOrigin,
	)

	srv, err := server.NewServer(server.Config{
		ListenAddr: c.cfg.Server.Listen,
		Delay:      delay,
		CORSOrigin: c.cfg.Server.CORSOrigin,
	}, prod, c.logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}
	return srv, nil
}
