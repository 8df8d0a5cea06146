package cart

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/Ananth-NQI/cassany-backend/internal/models"
)

func camisa(qty int) models.LineItem {
	return models.LineItem{SKU: "A", Name: "Camisa X", Category: "camisas", Size: "M", Quantity: qty, UnitPrice: 80000}
}

func TestAddMergesSameIdentity(t *testing.T) {
	c := Add(nil, camisa(1))
	c = Add(c, camisa(2))

	want := models.Cart{camisa(3)}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Fatalf("cart mismatch (-want +got):\n%s", diff)
	}
}

func TestAddKeepsDistinctVariants(t *testing.T) {
	c := Add(nil, camisa(1))
	other := camisa(1)
	other.Size = "L"
	c = Add(c, other)
	colored := camisa(1)
	colored.Color = "azul"
	c = Add(c, colored)

	assert.Len(t, c, 3)
}

func TestAddClampsQuantity(t *testing.T) {
	c := Add(nil, camisa(0))
	assert.Equal(t, 1, c[0].Quantity)
	c = Add(c, camisa(-4))
	assert.Equal(t, 2, c[0].Quantity)
}

func TestAddDoesNotAliasInput(t *testing.T) {
	base := Add(nil, camisa(1))
	_ = Add(base, camisa(5))
	assert.Equal(t, 1, base[0].Quantity)
}

func TestUpdateQuantity(t *testing.T) {
	c := Add(nil, camisa(1))
	c = UpdateQuantity(c, "A", "M", "", 4)
	assert.Equal(t, 4, c[0].Quantity)

	c = UpdateQuantity(c, "A", "M", "", 0)
	assert.Equal(t, 1, c[0].Quantity)

	same := UpdateQuantity(c, "missing", "", "", 9)
	if diff := cmp.Diff(c, same); diff != "" {
		t.Fatalf("unexpected change (-want +got):\n%s", diff)
	}
}

func TestRemove(t *testing.T) {
	c := Add(nil, camisa(1))
	jean := models.LineItem{SKU: "B", Name: "Jean", Size: "32", Quantity: 1, UnitPrice: 120000}
	c = Add(c, jean)

	c = Remove(c, "A", "M", "")
	if diff := cmp.Diff(models.Cart{jean}, c); diff != "" {
		t.Fatalf("cart mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, Remove(c, "B", "30", ""), 1)
}

func TestTotalAfterMutations(t *testing.T) {
	c := Add(nil, camisa(2))
	c = Add(c, models.LineItem{SKU: "B", Name: "Jean", Quantity: 1, UnitPrice: 120000})
	c = UpdateQuantity(c, "A", "M", "", 3)
	assert.Equal(t, 360000.0, Total(c))

	c = Remove(c, "B", "", "")
	assert.Equal(t, 240000.0, Total(c))
	assert.Equal(t, 3, Count(c))
}

func TestSummary(t *testing.T) {
	assert.Equal(t, []string{EmptyMessage}, Summary(nil))
	assert.Equal(t, EmptyMessage, Text(models.Cart{}))

	c := Add(nil, camisa(2))
	c = Add(c, models.LineItem{SKU: "B", Name: "Jean", Color: "azul", Quantity: 1, UnitPrice: 120000})
	assert.Equal(t, []string{
		"1. Camisa X (A) M x2 - $80.000 c/u",
		"2. Jean (B) azul x1 - $120.000 c/u",
		"Total: $280.000",
	}, Summary(c))
	assert.Equal(t,
		"1. Camisa X (A) M x2 - $80.000 c/u\n2. Jean (B) azul x1 - $120.000 c/u\n\nTotal: $280.000",
		Text(c))
}
