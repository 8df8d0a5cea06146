package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/cassany-backend/internal/services"
	"github.com/Ananth-NQI/cassany-backend/internal/storage"
)

// MetaHandler receives WhatsApp Cloud API webhooks.
type MetaHandler struct {
	inbound
	sender      services.MessageSender
	verifyToken string
}

// NewMetaHandler creates a Cloud API webhook handler that replies through sender.
func NewMetaHandler(processor Processor, store storage.SessionStore, sender services.MessageSender, verifyToken string, log *zap.Logger) *MetaHandler {
	return &MetaHandler{
		inbound:     inbound{processor: processor, store: store, log: log},
		sender:      sender,
		verifyToken: verifyToken,
	}
}

// MetaWebhookPayload is the subset of the Cloud API notification the service reads.
type MetaWebhookPayload struct {
	Object string      `json:"object"`
	Entry  []MetaEntry `json:"entry"`
}

type MetaEntry struct {
	ID      string       `json:"id"`
	Changes []MetaChange `json:"changes"`
}

type MetaChange struct {
	Field string    `json:"field"`
	Value MetaValue `json:"value"`
}

type MetaValue struct {
	Contacts []MetaContact `json:"contacts"`
	Messages []MetaMessage `json:"messages"`
}

type MetaContact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type MetaMessage struct {
	ID   string `json:"id"`
	From string `json:"from"`
	Type string `json:"type"`
	Text *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
	Interactive *struct {
		Type        string     `json:"type"`
		ButtonReply *metaReply `json:"button_reply,omitempty"`
		ListReply   *metaReply `json:"list_reply,omitempty"`
	} `json:"interactive,omitempty"`
}

type metaReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Content extracts what the shopper typed or tapped. Other message types yield "".
func (m MetaMessage) Content() string {
	switch m.Type {
	case "text":
		if m.Text != nil {
			return m.Text.Body
		}
	case "interactive":
		if m.Interactive == nil {
			return ""
		}
		if m.Interactive.ButtonReply != nil {
			return m.Interactive.ButtonReply.Title
		}
		if m.Interactive.ListReply != nil {
			return m.Interactive.ListReply.Title
		}
	}
	return ""
}

// Verify answers the webhook subscription handshake.
func (h *MetaHandler) Verify(c *fiber.Ctx) error {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	if mode == "subscribe" && h.verifyToken != "" && token == h.verifyToken {
		h.log.Info("Meta webhook verified")
		return c.SendString(c.Query("hub.challenge"))
	}
	h.log.Warn("Meta webhook verification failed", zap.String("mode", mode))
	return c.SendStatus(fiber.StatusForbidden)
}

// HandleWebhook processes every message in a Cloud API notification.
func (h *MetaHandler) HandleWebhook(c *fiber.Ctx) error {
	var payload MetaWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		h.log.Warn("Error parsing Meta webhook", zap.Error(err))
		return fiber.NewError(fiber.StatusBadRequest, "Invalid webhook payload")
	}

	ctx := c.UserContext()
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				text := msg.Content()
				if text == "" || msg.From == "" {
					h.log.Debug("Skipping non-text message", zap.String("type", msg.Type))
					continue
				}
				sessionID := SessionIDForPhone(msg.From)
				reply, duplicate, err := h.process(ctx, sessionID, msg.ID, text)
				if err != nil {
					return fiber.NewError(fiber.StatusInternalServerError, "Failed to process message")
				}
				if duplicate || reply == "" {
					continue
				}
				if err := h.sender.SendText(ctx, msg.From, reply); err != nil {
					h.log.Warn("Failed to send Cloud API reply", zap.String("session_id", sessionID), zap.Error(err))
				}
			}
		}
	}
	return c.SendStatus(fiber.StatusOK)
}
