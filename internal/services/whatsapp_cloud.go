package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Ananth-NQI/cassany-backend/internal/utils"
)

const (
	graphBaseURL        = "https://graph.facebook.com"
	defaultGraphVersion = "v20.0"
	cloudSendTimeout    = 15 * time.Second
)

// CloudAPISender delivers text messages through the WhatsApp Cloud API.
type CloudAPISender struct {
	baseURL       string
	version       string
	phoneNumberID string
	accessToken   string
	limiter       *rate.Limiter
	log           *zap.Logger
}

// NewCloudAPISender creates a sender for the given business phone number id.
func NewCloudAPISender(accessToken, phoneNumberID, version string, log *zap.Logger) *CloudAPISender {
	if version == "" {
		version = defaultGraphVersion
	}
	return &CloudAPISender{
		baseURL:       graphBaseURL,
		version:       version,
		phoneNumberID: phoneNumberID,
		accessToken:   accessToken,
		limiter:       rate.NewLimiter(rate.Limit(20), 5),
		log:           log,
	}
}

type cloudTextMessage struct {
	MessagingProduct string    `json:"messaging_product"`
	To               string    `json:"to"`
	Type             string    `json:"type"`
	Text             cloudText `json:"text"`
}

type cloudText struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

// SendText sends body to the phone number to.
func (c *CloudAPISender) SendText(ctx context.Context, to, body string) error {
	if c.accessToken == "" || c.phoneNumberID == "" {
		return fmt.Errorf("whatsapp cloud api is not configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/%s/%s/messages", strings.TrimRight(c.baseURL, "/"), c.version, c.phoneNumberID)
	agent := fiber.Post(endpoint)
	agent.Set(fiber.HeaderAuthorization, "Bearer "+c.accessToken)
	agent.Timeout(cloudSendTimeout)
	agent.JSON(cloudTextMessage{
		MessagingProduct: "whatsapp",
		To:               utils.NormalizePhone(to),
		Type:             "text",
		Text:             cloudText{PreviewURL: true, Body: body},
	})

	code, resp, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("whatsapp cloud api: %w", errs[0])
	}
	if code < 200 || code >= 300 {
		return fmt.Errorf("whatsapp cloud api: status %d: %s", code, truncate(string(resp), 300))
	}
	c.log.Info("WhatsApp message sent", zap.String("to", to), zap.String("channel", "cloud_api"))
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
