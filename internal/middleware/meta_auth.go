package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const metaSignaturePrefix = "sha256="

// ValidateMetaSignature checks X-Hub-Signature-256 against the HMAC-SHA256 of the raw
// body keyed with the app secret.
func ValidateMetaSignature(appSecret string, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("X-Hub-Signature-256")
		if !strings.HasPrefix(header, metaSignaturePrefix) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing signature",
			})
		}
		if appSecret == "" {
			log.Error("META_APP_SECRET not set, cannot validate webhook")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Server configuration error",
			})
		}

		got, err := hex.DecodeString(strings.TrimPrefix(header, metaSignaturePrefix))
		if err != nil || !hmac.Equal(got, MetaSignature(appSecret, c.Body())) {
			log.Warn("Invalid Meta signature", zap.String("path", c.Path()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid signature",
			})
		}
		return c.Next()
	}
}

// MetaSignature returns the raw HMAC-SHA256 of body.
func MetaSignature(appSecret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return mac.Sum(nil)
}
