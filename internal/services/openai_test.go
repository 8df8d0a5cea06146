package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Ananth-NQI/cassany-backend/internal/models"
)

type requestLog struct {
	mu     sync.Mutex
	bodies []map[string]interface{}
}

func (l *requestLog) add(body map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bodies = append(l.bodies, body)
}

func (l *requestLog) all() []map[string]interface{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]map[string]interface{}(nil), l.bodies...)
}

// chatServer answers chat completions with content, failing the first failures calls.
func chatServer(t *testing.T, content string, failures int32, seen *requestLog) *httptest.Server {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		if atomic.AddInt32(&calls, 1) <= failures {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error": {"message": "overloaded", "type": "server_error"}}`))
			return
		}
		if seen != nil {
			var body map[string]interface{}
			_ = json.NewDecoder(r.Body).Decode(&body)
			seen.add(body)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": time.Now().Unix(),
			"model":   "gpt-4o",
			"choices": []map[string]interface{}{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testOpenAIConfig(srv *httptest.Server) OpenAIConfig {
	cfg := DefaultOpenAIConfig()
	cfg.APIKey = "sk-test"
	cfg.BaseURL = srv.URL + "/v1"
	cfg.Timeout = 5 * time.Second
	cfg.MaxRetries = 1
	return cfg
}

func TestOpenAICompleter(t *testing.T) {
	seen := &requestLog{}
	srv := chatServer(t, `{"fields": {"ciudad": "Envigado"}, "reply": "Te muestro opciones", "actions": [{"action": "SHOW_CART"}]}`, 0, seen)

	c, err := NewOpenAICompleter(testOpenAIConfig(srv), "", zaptest.NewLogger(t))
	require.NoError(t, err)

	resp, err := c.CompleteDialogue(context.Background(), DialogueRequest{
		Session:    models.NewSession(testSession, time.Now()),
		Candidates: []models.Product{camisaX},
		Text:       "quiero ver camisas",
	})
	require.NoError(t, err)
	assert.Equal(t, "Te muestro opciones", resp.Reply)
	assert.Equal(t, "Envigado", resp.Fields["ciudad"])
	assert.Equal(t, []Action{{Type: ActionShowCart}}, resp.Actions)

	bodies := seen.all()
	require.Len(t, bodies, 1)
	assert.Equal(t, "gpt-4o", bodies[0]["model"])
	assert.Equal(t, map[string]interface{}{"type": "json_object"}, bodies[0]["response_format"])
}

func TestOpenAICompleterPromptFile(t *testing.T) {
	srv := chatServer(t, `{"reply": "ok"}`, 0, nil)
	path := filepath.Join(t.TempDir(), "prompt.txt")
	require.NoError(t, os.WriteFile(path, []byte("  Eres el asesor de prueba.\n"), 0o600))

	c, err := NewOpenAICompleter(testOpenAIConfig(srv), path, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "Eres el asesor de prueba.", c.prompt)

	_, err = NewOpenAICompleter(testOpenAIConfig(srv), filepath.Join(t.TempDir(), "missing.txt"), zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestOpenAIClassifierRetries(t *testing.T) {
	seen := &requestLog{}
	srv := chatServer(t, `{"intent": "pago", "method": "transferencia", "confidence": 0.93}`, 1, seen)

	c := NewOpenAIIntentClassifier(testOpenAIConfig(srv), zaptest.NewLogger(t))
	res, err := c.ClassifyPaymentConfirm(context.Background(), "te consigno a Bancolombia")
	require.NoError(t, err)
	assert.Equal(t, IntentResult{Intent: IntentPayment, Method: models.PaymentTransfer, Confidence: 0.93}, res)
	bodies := seen.all()
	require.Len(t, bodies, 1)
	assert.Equal(t, "gpt-4o-mini", bodies[0]["model"])
}

func TestOpenAIClassifierGivesUp(t *testing.T) {
	srv := chatServer(t, `{}`, 5, nil)
	cfg := testOpenAIConfig(srv)
	cfg.MaxRetries = 0

	c := NewOpenAIIntentClassifier(cfg, zaptest.NewLogger(t))
	res, err := c.ClassifyPaymentConfirm(context.Background(), "hola")
	assert.Error(t, err)
	assert.Equal(t, IntentNone, res.Intent)
}

func TestBuildCompletionContext(t *testing.T) {
	s := models.NewSession(testSession, time.Now())
	s.DeliveryMethod = models.DeliveryPickup
	cc := buildCompletionContext(DialogueRequest{
		Session:      s,
		Cart:         models.Cart{{SKU: "A", Name: "Camisa X", Size: "M", Quantity: 2, UnitPrice: 80000}},
		Candidates:   []models.Product{camisaX},
		PickupPoints: []string{"C.C Mayorca"},
	})
	assert.Equal(t, "1. Camisa X (A) M x2 - $80.000 c/u\nTotal: $160.000", cc.CartSummary)
	require.Len(t, cc.Candidates, 1)
	assert.Equal(t, 1, cc.Candidates[0].Ref)
	assert.Equal(t, []string{"C.C Mayorca"}, cc.PickupPoints)

	s.PickupPoint = "C.C Mayorca"
	cc = buildCompletionContext(DialogueRequest{Session: s, PickupPoints: []string{"C.C Mayorca"}})
	assert.Empty(t, cc.PickupPoints)
}
