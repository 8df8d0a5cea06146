package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/cassany-backend/internal/cart"
)

const defaultSystemPrompt = "Eres un asesor de ventas de CASSANY, una marca de ropa para hombre en Colombia. " +
	"Responde en español, breve, cálido y profesional. No inventes productos, precios ni tallas: usa solo " +
	"los productos del contexto. Haz como máximo una pregunta por mensaje."

const responseContract = "Devuelve un JSON con las claves 'fields', 'reply' y opcionalmente 'actions'.\n" +
	"'fields' incluye solo datos del pedido que quieras actualizar: customer_name, email, phone, address, city, " +
	"delivery_method (domicilio | recoger_en_tienda), pickup_point, payment_method (transferencia | payu | pago_en_tienda), notes.\n" +
	"'reply' es el texto para el cliente, sin listas numeradas salvo para presentar productos.\n" +
	"'actions' es una lista de objetos con la clave 'action' y sus argumentos:\n" +
	"- SHOW_CART\n" +
	"- ADD_TO_CART {product_ref, size?, color?, qty?}\n" +
	"- REMOVE_FROM_CART {product_ref | sku, size?, color?}\n" +
	"- UPDATE_QTY {product_ref | sku, size?, color?, qty}\n" +
	"- ASK_VARIANT {product_ref, qty?}\n" +
	"- CLARIFY {question}\n" +
	"- REMEMBER_PREF {category?, size?, color?}\n" +
	"product_ref es el número de la opción en 'candidates' (1, 2 o 3), su sku o su url.\n" +
	"Si hay 'candidates', preséntalos con el formato '1. Nombre - $precio - URL'."

// OpenAICompleter implements DialogueCompleter with a JSON-mode chat completion.
type OpenAICompleter struct {
	client *openAIClient
	prompt string
	log    *zap.Logger
}

// NewOpenAICompleter creates a completer. The system prompt is read from promptFile
// when given, otherwise cfg.SystemPrompt or a built-in prompt is used.
func NewOpenAICompleter(cfg OpenAIConfig, promptFile string, log *zap.Logger) (*OpenAICompleter, error) {
	prompt := cfg.SystemPrompt
	if promptFile != "" {
		data, err := os.ReadFile(promptFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt file: %w", err)
		}
		prompt = strings.TrimSpace(string(data))
	}
	if prompt == "" {
		prompt = defaultSystemPrompt
	}
	return &OpenAICompleter{
		client: newOpenAIClient(cfg, log),
		prompt: prompt,
		log:    log,
	}, nil
}

type completionContext struct {
	Order            map[string]interface{} `json:"order"`
	CartSummary      string                 `json:"cart_summary"`
	PreferredSizes   map[string]string      `json:"preferred_sizes,omitempty"`
	FavoriteColor    string                 `json:"favorite_color,omitempty"`
	Candidates       []candidate            `json:"candidates,omitempty"`
	CandidateMessage string                 `json:"candidate_message,omitempty"`
	PickupPoints     []string               `json:"pickup_points,omitempty"`
}

type candidate struct {
	Ref   int      `json:"ref"`
	SKU   string   `json:"sku"`
	Name  string   `json:"name"`
	Price float64  `json:"price"`
	URL   string   `json:"url,omitempty"`
	Sizes []string `json:"sizes,omitempty"`
}

func buildCompletionContext(req DialogueRequest) completionContext {
	s := req.Session
	cc := completionContext{
		Order: map[string]interface{}{
			"customer_name":   s.CustomerName,
			"delivery_method": s.DeliveryMethod,
			"address":         s.Address,
			"city":            s.City,
			"pickup_point":    s.PickupPoint,
			"payment_method":  s.PaymentMethod,
			"status":          s.Status,
		},
		CartSummary:      strings.Join(cart.Summary(req.Cart), "\n"),
		PreferredSizes:   req.Preferences.PreferredSizes,
		FavoriteColor:    req.Preferences.FavoriteColor,
		CandidateMessage: req.CandidateMessage,
	}
	for i, p := range req.Candidates {
		cc.Candidates = append(cc.Candidates, candidate{
			Ref: i + 1, SKU: p.SKU, Name: p.Name, Price: p.Price, URL: p.URL, Sizes: p.Sizes,
		})
	}
	if s.DeliveryMethod == "recoger_en_tienda" && s.PickupPoint == "" {
		cc.PickupPoints = req.PickupPoints
	}
	return cc
}

// CompleteDialogue asks the model for the reply, the order fields and the actions of a turn.
func (c *OpenAICompleter) CompleteDialogue(ctx context.Context, req DialogueRequest) (*DialogueResponse, error) {
	payload, err := json.Marshal(buildCompletionContext(req))
	if err != nil {
		return nil, fmt.Errorf("failed to encode completion context: %w", err)
	}
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: c.prompt},
		{Role: openai.ChatMessageRoleSystem, Content: responseContract},
		{Role: openai.ChatMessageRoleUser, Content: "Contexto: " + string(payload) + "\nCliente: " + req.Text},
	}
	content, err := c.client.chatJSON(ctx, c.client.config.Model, messages, 0.4)
	if err != nil {
		return nil, err
	}
	resp, err := parseDialogueResponse([]byte(content))
	if err != nil {
		return nil, err
	}
	c.log.Debug("Completion received",
		zap.Int("fields", len(resp.Fields)),
		zap.Int("actions", len(resp.Actions)))
	return resp, nil
}

// parseDialogueResponse reads {fields, reply, actions}, the Spanish key names
// {campos, respuesta, acciones}, or a bare top-level action.
func parseDialogueResponse(data []byte) (*DialogueResponse, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid completion JSON: %w", err)
	}
	pick := func(keys ...string) json.RawMessage {
		for _, k := range keys {
			if v, ok := raw[k]; ok && string(v) != "null" {
				return v
			}
		}
		return nil
	}

	resp := &DialogueResponse{}
	if v := pick("fields", "campos"); v != nil {
		if err := json.Unmarshal(v, &resp.Fields); err != nil {
			resp.Fields = nil
		}
	}
	if v := pick("reply", "respuesta", "response"); v != nil {
		_ = json.Unmarshal(v, &resp.Reply)
	}
	if v := pick("actions", "acciones"); v != nil {
		resp.Actions = ParseActions(v)
	} else if pick("action", "tipo") != nil {
		resp.Actions = ParseActions(data)
	}
	resp.Reply = strings.TrimSpace(resp.Reply)
	return resp, nil
}
