package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const classifierPrompt = "Clasifica la intención del usuario respecto al flujo de compra.\n" +
	"Responde SOLO JSON con estas claves:\n" +
	"{\n" +
	"  \"intent\": \"pago\" | \"confirmar\" | \"ninguno\",\n" +
	"  \"method\": \"transferencia\" | \"payu\" | \"pago_en_tienda\" | null,\n" +
	"  \"confidence\": number\n" +
	"}\n\n" +
	"Mapeo: transferencia/bancolombia/davivienda -> transferencia; payu/pse -> payu; " +
	"efectivo/pago en tienda/contraentrega -> pago_en_tienda"

// OpenAIIntentClassifier implements IntentClassifier with a small JSON-mode model.
type OpenAIIntentClassifier struct {
	client *openAIClient
	log    *zap.Logger
}

// NewOpenAIIntentClassifier creates a classifier using cfg.ClassifierModel.
func NewOpenAIIntentClassifier(cfg OpenAIConfig, log *zap.Logger) *OpenAIIntentClassifier {
	return &OpenAIIntentClassifier{client: newOpenAIClient(cfg, log), log: log}
}

// ClassifyPaymentConfirm labels text as a payment choice, an order confirmation or neither.
func (c *OpenAIIntentClassifier) ClassifyPaymentConfirm(ctx context.Context, text string) (IntentResult, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: classifierPrompt},
		{Role: openai.ChatMessageRoleUser, Content: strings.TrimSpace(text)},
	}
	content, err := c.client.chatJSON(ctx, c.client.config.ClassifierModel, messages, 0)
	if err != nil {
		return IntentResult{Intent: IntentNone}, err
	}
	return parseIntent([]byte(content))
}

// parseIntent maps the classifier output onto the closed label set. Anything outside
// it becomes IntentNone with no method.
func parseIntent(data []byte) (IntentResult, error) {
	var raw struct {
		Intent     string      `json:"intent"`
		Method     *string     `json:"method"`
		Confidence interface{} `json:"confidence"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return IntentResult{Intent: IntentNone}, fmt.Errorf("invalid classifier JSON: %w", err)
	}

	res := IntentResult{Intent: IntentNone}
	switch strings.ToLower(strings.TrimSpace(raw.Intent)) {
	case "pago", "payment":
		res.Intent = IntentPayment
	case "confirmar", "confirm":
		res.Intent = IntentConfirm
	}
	if raw.Method != nil && validPaymentMethod(*raw.Method) {
		res.Method = *raw.Method
	}
	switch v := raw.Confidence.(type) {
	case float64:
		res.Confidence = v
	case string:
		var f float64
		if _, err := fmt.Sscanf(v, "%g", &f); err == nil {
			res.Confidence = f
		}
	}
	if res.Confidence < 0 || res.Confidence > 1 {
		res.Confidence = 0
	}
	return res, nil
}
