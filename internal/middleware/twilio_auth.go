package middleware

import (
	"github.com/gofiber/fiber/v2"
	twilioclient "github.com/twilio/twilio-go/client"
	"go.uber.org/zap"
)

// ValidateTwilioSignature rejects webhook requests whose X-Twilio-Signature does not
// match the HMAC-SHA1 of the public URL and the sorted form parameters.
func ValidateTwilioSignature(authToken string, log *zap.Logger) fiber.Handler {
	validator := twilioclient.NewRequestValidator(authToken)
	return func(c *fiber.Ctx) error {
		signature := c.Get("X-Twilio-Signature")
		if signature == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing Twilio signature",
			})
		}
		if authToken == "" {
			log.Error("TWILIO_AUTH_TOKEN not set, cannot validate webhook")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Server configuration error",
			})
		}

		params := make(map[string]string)
		c.Request().PostArgs().VisitAll(func(key, value []byte) {
			params[string(key)] = string(value)
		})

		if !validator.Validate(fullURL(c), params, signature) {
			log.Warn("Invalid Twilio signature", zap.String("path", c.Path()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid signature",
			})
		}
		return c.Next()
	}
}

// fullURL rebuilds the URL Twilio signed, honouring X-Forwarded-Proto.
func fullURL(c *fiber.Ctx) string {
	return c.Protocol() + "://" + c.Hostname() + c.OriginalURL()
}
