package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/cassany-backend/internal/services"
	"github.com/Ananth-NQI/cassany-backend/internal/storage"
	"github.com/Ananth-NQI/cassany-backend/internal/utils"
)

// WhatsAppHandler receives Twilio WhatsApp webhooks.
type WhatsAppHandler struct {
	inbound
	sender services.MessageSender
}

// NewWhatsAppHandler creates a Twilio webhook handler that replies through sender.
func NewWhatsAppHandler(processor Processor, store storage.SessionStore, sender services.MessageSender, log *zap.Logger) *WhatsAppHandler {
	return &WhatsAppHandler{
		inbound: inbound{processor: processor, store: store, log: log},
		sender:  sender,
	}
}

// TwilioWebhookPayload is the form body Twilio posts for an incoming WhatsApp message.
type TwilioWebhookPayload struct {
	MessageSid  string `form:"MessageSid"`
	AccountSid  string `form:"AccountSid"`
	From        string `form:"From"` // whatsapp:+573001112233
	To          string `form:"To"`
	Body        string `form:"Body"`
	NumMedia    string `form:"NumMedia"`
	ProfileName string `form:"ProfileName"`
}

// HandleWebhook processes an incoming Twilio message and sends the reply back.
func (h *WhatsAppHandler) HandleWebhook(c *fiber.Ctx) error {
	var payload TwilioWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		h.log.Warn("Error parsing Twilio webhook", zap.Error(err))
		return fiber.NewError(fiber.StatusBadRequest, "Invalid webhook payload")
	}

	// Status callbacks carry no body.
	if strings.TrimSpace(payload.Body) == "" || payload.From == "" {
		return c.SendStatus(fiber.StatusOK)
	}

	phone := utils.NormalizePhone(strings.TrimPrefix(payload.From, "whatsapp:"))
	sessionID := SessionIDForPhone(phone)

	reply, duplicate, err := h.process(c.UserContext(), sessionID, payload.MessageSid, payload.Body)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to process message")
	}
	if duplicate || reply == "" {
		return c.SendStatus(fiber.StatusOK)
	}

	if err := h.sender.SendText(c.UserContext(), phone, reply); err != nil {
		h.log.Warn("Failed to send WhatsApp reply", zap.String("session_id", sessionID), zap.Error(err))
	}
	return c.SendStatus(fiber.StatusOK)
}
