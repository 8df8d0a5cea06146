package middleware

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func okHandler(c *fiber.Ctx) error {
	return c.SendString("ok")
}

func twilioSignature(token, u string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	data := u
	for _, k := range keys {
		data += k + form.Get(k)
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func formRequest(form url.Values, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "http://example.com/webhook/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if signature != "" {
		req.Header.Set("X-Twilio-Signature", signature)
	}
	return req
}

func TestValidateTwilioSignature(t *testing.T) {
	app := fiber.New()
	app.Post("/webhook/whatsapp", ValidateTwilioSignature("tw-secret", zaptest.NewLogger(t)), okHandler)

	form := url.Values{"From": {"whatsapp:+573001112233"}, "Body": {"hola"}, "MessageSid": {"SM1"}}

	resp, err := app.Test(formRequest(form, twilioSignature("tw-secret", "http://example.com/webhook/whatsapp", form)))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(formRequest(form, twilioSignature("other", "http://example.com/webhook/whatsapp", form)))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, err = app.Test(formRequest(form, ""))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestValidateTwilioSignatureWithoutToken(t *testing.T) {
	app := fiber.New()
	app.Post("/webhook/whatsapp", ValidateTwilioSignature("", zaptest.NewLogger(t)), okHandler)

	resp, err := app.Test(formRequest(url.Values{"Body": {"hola"}}, "abc"))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func metaRequest(body, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhook/meta", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Hub-Signature-256", signature)
	}
	return req
}

func TestValidateMetaSignature(t *testing.T) {
	app := fiber.New()
	app.Post("/webhook/meta", ValidateMetaSignature("app-secret", zaptest.NewLogger(t)), okHandler)

	body := `{"object":"whatsapp_business_account","entry":[]}`
	valid := "sha256=" + hex.EncodeToString(MetaSignature("app-secret", []byte(body)))

	tests := []struct {
		name      string
		signature string
		want      int
	}{
		{"valid", valid, fiber.StatusOK},
		{"wrong secret", "sha256=" + hex.EncodeToString(MetaSignature("nope", []byte(body))), fiber.StatusUnauthorized},
		{"not hex", "sha256=zz", fiber.StatusUnauthorized},
		{"missing prefix", hex.EncodeToString(MetaSignature("app-secret", []byte(body))), fiber.StatusUnauthorized},
		{"missing", "", fiber.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(metaRequest(body, tt.signature))
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestRequireAdminToken(t *testing.T) {
	app := fiber.New()
	app.Get("/admin/ping", RequireAdminToken("s3cret"), okHandler)
	disabled := fiber.New()
	disabled.Get("/admin/ping", RequireAdminToken(""), okHandler)

	request := func(auth string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		return req
	}

	resp, err := app.Test(request("Bearer s3cret"))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(request("Bearer wrong"))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, err = app.Test(request("s3cret"))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, err = disabled.Test(request("Bearer anything"))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
