package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/cassany-backend/internal/handlers"
	"github.com/Ananth-NQI/cassany-backend/internal/middleware"
)

// Handlers groups the HTTP handlers the routes dispatch to.
type Handlers struct {
	WhatsApp *handlers.WhatsAppHandler
	Meta     *handlers.MetaHandler
	Messages *handlers.MessageHandler
	Admin    *handlers.AdminHandler
	Health   *handlers.HealthHandler
	// LogLevel serves GET/PUT of the zap level; optional.
	LogLevel http.Handler
}

// Security holds the secrets the webhook and admin guards check against.
type Security struct {
	TwilioAuthToken   string
	MetaAppSecret     string
	AdminToken        string
	DisableValidation bool
}

// SetupRoutes configures all routes
func SetupRoutes(app *fiber.App, h Handlers, sec Security, log *zap.Logger) {
	app.Get("/", h.Health.Index)
	app.Get("/health", h.Health.Check)

	// ========== WEBHOOK ROUTES ==========
	webhooks := app.Group("/webhook")
	webhooks.Get("/meta", h.Meta.Verify)

	if sec.DisableValidation {
		log.Warn("Webhook signature validation DISABLED")
		webhooks.Post("/whatsapp", h.WhatsApp.HandleWebhook)
		webhooks.Post("/meta", h.Meta.HandleWebhook)
	} else {
		webhooks.Post("/whatsapp", middleware.ValidateTwilioSignature(sec.TwilioAuthToken, log), h.WhatsApp.HandleWebhook)
		webhooks.Post("/meta", middleware.ValidateMetaSignature(sec.MetaAppSecret, log), h.Meta.HandleWebhook)
	}

	// ========== API ROUTES ==========
	api := app.Group("/api")
	api.Post("/messages", h.Messages.HandleMessage)

	// ========== ADMIN ROUTES ==========
	admin := app.Group("/admin", middleware.RequireAdminToken(sec.AdminToken))
	admin.Get("/sessions/:sessionID", h.Admin.GetSession)
	admin.Post("/sessions/:sessionID/reset", h.Admin.ResetSession)
	if h.LogLevel != nil {
		admin.All("/log-level", adaptor.HTTPHandler(h.LogLevel))
	}
}

// ErrorHandler renders errors as {"error": msg} with the status carried by *fiber.Error.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		msg := "Internal server error"
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
			msg = e.Message
		} else {
			log.Error("Unhandled request error", zap.String("path", c.Path()), zap.Error(err))
		}
		return c.Status(code).JSON(fiber.Map{"error": msg})
	}
}
