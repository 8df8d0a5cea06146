package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/cassany-backend/internal/storage"
)

// MessageHandler exposes the dialogue over plain JSON, for testing without a channel.
type MessageHandler struct {
	inbound
}

// NewMessageHandler creates the JSON message endpoint handler.
func NewMessageHandler(processor Processor, store storage.SessionStore, log *zap.Logger) *MessageHandler {
	return &MessageHandler{inbound: inbound{processor: processor, store: store, log: log}}
}

// MessageRequest is the body of POST /api/messages.
type MessageRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	MessageID string `json:"message_id"`
}

// HandleMessage runs one utterance and returns the reply text.
func (h *MessageHandler) HandleMessage(c *fiber.Ctx) error {
	var req MessageRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if strings.TrimSpace(req.SessionID) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "session_id is required")
	}

	reply, duplicate, err := h.process(c.UserContext(), req.SessionID, req.MessageID, req.Message)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to process message")
	}
	if duplicate {
		return c.JSON(fiber.Map{"response": "", "duplicate": true})
	}
	return c.JSON(fiber.Map{"response": reply})
}
