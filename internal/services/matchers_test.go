package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Ananth-NQI/cassany-backend/internal/models"
)

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"dos", 2, true},
		{"quiero tres por favor", 3, true},
		{"Una", 1, true},
		{"4", 4, true},
		{"dame 25", 10, true},
		{"0", 1, true},
		{"no sé", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseQuantity(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWantsHuman(t *testing.T) {
	assert.True(t, WantsHuman("Quiero hablar con un asesor"))
	assert.True(t, WantsHuman("pásame con una persona"))
	assert.True(t, WantsHuman("necesito atención personalizada"))
	assert.False(t, WantsHuman("no quiero hablar con un asesor"))
	assert.False(t, WantsHuman("prefiero seguir por chat"))
	assert.False(t, WantsHuman("muéstrame camisas"))
}

func TestCaptureName(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"me llamo juan pérez", "Juan Pérez", true},
		{"Hola, mi nombre es Ana María y quiero una camisa", "Ana María", true},
		{"Soy Carlos", "Carlos", true},
		{"soy talla M", "", false},
		{"quiero una camisa", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := CaptureName(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatchPickupPoint(t *testing.T) {
	points := []string{"C.C Premium Plaza", "C.C Mayorca", "Centro - Colombia", "Centro - Junín"}

	got, ok := MatchPickupPoint("lo recojo en mayorca", points)
	assert.True(t, ok)
	assert.Equal(t, "C.C Mayorca", got)

	got, ok = MatchPickupPoint("en la de Junín", points)
	assert.True(t, ok)
	assert.Equal(t, "Centro - Junín", got)

	got, ok = MatchPickupPoint("premium plaza por favor", points)
	assert.True(t, ok)
	assert.Equal(t, "C.C Premium Plaza", got)

	_, ok = MatchPickupPoint("en el centro", points)
	assert.False(t, ok)
	_, ok = MatchPickupPoint("mayorcas", points)
	assert.False(t, ok)
}

func TestInferPaymentMethod(t *testing.T) {
	assert.Equal(t, models.PaymentTransfer, InferPaymentMethod("le pago por Bancolombia"))
	assert.Equal(t, models.PaymentPayU, InferPaymentMethod("por PSE"))
	assert.Equal(t, models.PaymentInStore, InferPaymentMethod("en efectivo"))
	assert.Empty(t, InferPaymentMethod("con tarjeta"))
}

func TestSelectionNumber(t *testing.T) {
	n, ok := selectionNumber("opcion 2")
	assert.True(t, ok)
	assert.Equal(t, 2, n)

	n, ok = selectionNumber("3")
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	_, ok = selectionNumber("quiero dos camisas")
	assert.False(t, ok)
}
