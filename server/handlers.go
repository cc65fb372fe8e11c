package server

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/chatstream/pkg/utils"
)

// BannerResponse describes the running service.
type BannerResponse struct {
	Message   string `json:"message"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// handleRoot returns the service banner.
func (s *Server) handleRoot(c *fiber.Ctx) error {
	return c.JSON(BannerResponse{
		Message:   "chatstream server",
		Version:   utils.Version,
		Timestamp: timestamp(),
	})
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:    "healthy",
		Timestamp: timestamp(),
	})
}
