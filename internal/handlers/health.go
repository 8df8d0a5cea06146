package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	Version string
	db      Pinger
	log     *zap.Logger
}

// NewHealthHandler creates a new health handler. db may be nil when no database is used.
func NewHealthHandler(version string, db Pinger, log *zap.Logger) *HealthHandler {
	return &HealthHandler{Version: version, db: db, log: log}
}

// Check returns the health status of the service
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	status := "OK"
	database := "not configured"
	code := fiber.StatusOK

	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			h.log.Error("Health check ping failed", zap.Error(err))
			status, database, code = "DEGRADED", "unreachable", fiber.StatusServiceUnavailable
		} else {
			database = "ok"
		}
	}

	return c.Status(code).JSON(fiber.Map{
		"status":   status,
		"service":  "Cassany Backend",
		"version":  h.Version,
		"database": database,
	})
}

// Index describes the service.
func (h *HealthHandler) Index(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "Cassany WhatsApp shopping assistant",
		"version": h.Version,
		"endpoints": fiber.Map{
			"twilio":   "POST /webhook/whatsapp",
			"meta":     "GET|POST /webhook/meta",
			"messages": "POST /api/messages",
			"health":   "GET /health",
		},
	})
}
