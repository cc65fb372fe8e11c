package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/papercomputeco/chatstream/pkg/llm"
	"github.com/papercomputeco/chatstream/pkg/producer"
)

// StreamIDHeader carries the identifier assigned to each chat stream.
const StreamIDHeader = "X-Stream-Id"

// Server is the chat streaming server.
type Server struct {
	config   Config
	producer producer.Producer
	logger   *slog.Logger
	app      *fiber.App

	// baseCtx is cancelled on shutdown to stop in-flight emission loops.
	baseCtx context.Context
	cancel  context.CancelFunc
	streams sync.WaitGroup
}

// NewServer creates a new chat server streaming responses from prod.
func NewServer(config Config, prod producer.Producer, logger *slog.Logger) (*Server, error) {
	if prod == nil {
		return nil, errors.New("producer is required")
	}

	bodyLimit := config.BodyLimit
	if bodyLimit <= 0 {
		bodyLimit = DefaultBodyLimit
	}

	baseCtx, cancel := context.WithCancel(context.Background())

	s := &Server{
		config:   config,
		producer: prod,
		logger:   logger,
		baseCtx:  baseCtx,
		cancel:   cancel,
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		BodyLimit:             bodyLimit,
		ErrorHandler:          s.handleError,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  config.CORSOrigin,
		AllowMethods:  "GET,POST,OPTIONS",
		AllowHeaders:  fiber.HeaderContentType,
		ExposeHeaders: StreamIDHeader,
	}))

	app.Get("/", s.handleRoot)
	app.Get("/api/health", s.handleHealth)
	app.Post("/api/chat", s.handleChat)

	s.app = app
	return s, nil
}

// Run starts the server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting chat server",
		"listen", s.config.ListenAddr,
		"producer", s.producer.Name(),
		"delay", s.config.Delay,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// RunWithListener starts the server using the provided listener.
func (s *Server) RunWithListener(listener net.Listener) error {
	s.logger.Info("starting chat server",
		"listen", listener.Addr().String(),
		"producer", s.producer.Name(),
		"delay", s.config.Delay,
	)
	return s.app.Listener(listener)
}

// Shutdown stops in-flight streams and gracefully shuts down the server.
// Streams end with an error frame rather than a done frame so clients do not
// mistake a cut-off reply for a complete one.
func (s *Server) Shutdown() error {
	s.cancel()
	err := s.app.Shutdown()
	s.streams.Wait()
	return err
}

// handleError renders errors returned by handlers and fiber itself (e.g. an
// oversized body) as JSON.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}

	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", c.Method(),
			"path", c.Path(),
			"error", err,
		)
	}

	return c.Status(code).JSON(llm.ErrorResponse{Error: err.Error()})
}
