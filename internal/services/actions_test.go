package services

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/cassany-backend/internal/models"
)

func TestParseActionsCurrentShape(t *testing.T) {
	got := ParseActions([]byte(`[
		{"action": "ADD_TO_CART", "product_ref": "2", "size": "l", "qty": 2},
		{"action": "REMOVE_FROM_CART", "sku": "SKU-9", "color": "azul"},
		"not an object",
		{"action": "CLARIFY", "question": "¿Manga larga o corta?"}
	]`))

	want := []Action{
		{Type: ActionAddToCart, ProductRef: "2", Size: "L", Qty: 2},
		{Type: ActionRemoveFromCart, SKU: "SKU-9", Color: "azul"},
		{Type: ActionClarify, Question: "¿Manga larga o corta?"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseActions() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseActionsLegacyShape(t *testing.T) {
	got := ParseActions([]byte(`[
		{"tipo": "add_item", "args": {"producto": 1, "talla": "m", "cantidad": "dos"}},
		{"tipo": "remember_pref", "args": {"categoria": "jeans", "talla": "32", "color_favorito": "negro"}},
		{"tipo": "cache_list", "args": {"productos": [
			{"nombre": "Jean Slim", "precio": "129900", "link": "https://cassany.co/jean-slim/", "tallas": ["30", "32"]}
		]}}
	]`))

	require.Len(t, got, 3)
	assert.Equal(t, Action{Type: ActionAddToCart, ProductRef: "1", Size: "M", Qty: 2}, got[0])
	assert.Equal(t, Action{Type: ActionRememberPref, Category: "jeans", Size: "32", Color: "negro"}, got[1])
	assert.Equal(t, ActionCacheList, got[2].Type)
	assert.Equal(t, []models.Product{{
		Name: "Jean Slim", Price: 129900, URL: "https://cassany.co/jean-slim/", Sizes: []string{"30", "32"},
	}}, got[2].Products)
}

func TestParseActionsSingleObject(t *testing.T) {
	got := ParseActions([]byte(`{"action": "show_cart"}`))
	assert.Equal(t, []Action{{Type: ActionShowCart}}, got)

	assert.Nil(t, ParseActions([]byte(`{"reply": "hola"}`)))
	assert.Nil(t, ParseActions([]byte(`nope`)))
}

func TestActionTypeKnown(t *testing.T) {
	assert.True(t, ActionUpdateQty.Known())
	assert.False(t, ActionType("DANCE").Known())
}

func TestParseDialogueResponse(t *testing.T) {
	resp, err := parseDialogueResponse([]byte(`{
		"fields": {"customer_name": "Ana", "city": "Medellín"},
		"reply": "  Con gusto  ",
		"actions": [{"action": "SHOW_CART"}]
	}`))
	require.NoError(t, err)
	assert.Equal(t, "Con gusto", resp.Reply)
	assert.Equal(t, map[string]interface{}{"customer_name": "Ana", "city": "Medellín"}, resp.Fields)
	assert.Equal(t, []Action{{Type: ActionShowCart}}, resp.Actions)

	resp, err = parseDialogueResponse([]byte(`{"campos": {"ciudad": "Bello"}, "respuesta": "Listo", "acciones": [{"tipo": "show_cart"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "Listo", resp.Reply)
	assert.Equal(t, "Bello", resp.Fields["ciudad"])
	assert.Equal(t, []Action{{Type: ActionShowCart}}, resp.Actions)

	resp, err = parseDialogueResponse([]byte(`{"action": "ADD_TO_CART", "product_ref": "1", "response": "Va"}`))
	require.NoError(t, err)
	assert.Equal(t, "Va", resp.Reply)
	assert.Equal(t, []Action{{Type: ActionAddToCart, ProductRef: "1"}}, resp.Actions)

	_, err = parseDialogueResponse([]byte(`not json`))
	assert.Error(t, err)
}

func TestParseIntent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want IntentResult
	}{
		{"payment", `{"intent": "pago", "method": "payu", "confidence": 0.91}`,
			IntentResult{Intent: IntentPayment, Method: models.PaymentPayU, Confidence: 0.91}},
		{"confirm", `{"intent": "confirmar", "method": null, "confidence": "0.8"}`,
			IntentResult{Intent: IntentConfirm, Confidence: 0.8}},
		{"unknown label", `{"intent": "comprar", "method": "bitcoin", "confidence": 0.99}`,
			IntentResult{Intent: IntentNone, Confidence: 0.99}},
		{"confidence out of range", `{"intent": "pago", "method": "transferencia", "confidence": 7}`,
			IntentResult{Intent: IntentPayment, Method: models.PaymentTransfer}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseIntent([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	got, err := parseIntent([]byte(`{`))
	assert.Error(t, err)
	assert.Equal(t, IntentNone, got.Intent)
}
