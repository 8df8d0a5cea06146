// Package cart implements value-level operations over a session cart.
package cart

import (
	"fmt"
	"strings"

	"github.com/Ananth-NQI/cassany-backend/internal/models"
	"github.com/Ananth-NQI/cassany-backend/internal/utils"
)

// EmptyMessage is the single summary line of an empty cart.
const EmptyMessage = "Tu carrito está vacío."

func matches(it models.LineItem, sku, size, color string) bool {
	return it.SKU == sku && it.Size == size && it.Color == color
}

func clampQty(q int) int {
	if q < 1 {
		return 1
	}
	return q
}

func clone(c models.Cart) models.Cart {
	out := make(models.Cart, len(c))
	copy(out, c)
	return out
}

// Add merges item into the line sharing its (sku, size, color) or appends a new line.
func Add(c models.Cart, item models.LineItem) models.Cart {
	out := clone(c)
	for i := range out {
		if matches(out[i], item.SKU, item.Size, item.Color) {
			out[i].Quantity = clampQty(out[i].Quantity) + clampQty(item.Quantity)
			return out
		}
	}
	item.Quantity = clampQty(item.Quantity)
	if item.UnitPrice < 0 {
		item.UnitPrice = 0
	}
	return append(out, item)
}

// UpdateQuantity sets the quantity of the matching line. Unknown lines are a no-op.
func UpdateQuantity(c models.Cart, sku, size, color string, qty int) models.Cart {
	out := clone(c)
	for i := range out {
		if matches(out[i], sku, size, color) {
			out[i].Quantity = clampQty(qty)
			break
		}
	}
	return out
}

// Remove drops every line matching (sku, size, color).
func Remove(c models.Cart, sku, size, color string) models.Cart {
	out := make(models.Cart, 0, len(c))
	for _, it := range c {
		if !matches(it, sku, size, color) {
			out = append(out, it)
		}
	}
	return out
}

// Total is the sum of unit price times quantity.
func Total(c models.Cart) float64 {
	var total float64
	for _, it := range c {
		total += it.UnitPrice * float64(it.Quantity)
	}
	return total
}

// Count is the number of units in the cart.
func Count(c models.Cart) int {
	n := 0
	for _, it := range c {
		n += it.Quantity
	}
	return n
}

// Summary renders one line per item followed by the total line.
func Summary(c models.Cart) []string {
	if len(c) == 0 {
		return []string{EmptyMessage}
	}
	lines := make([]string, 0, len(c)+1)
	for i, it := range c {
		var tail []string
		if it.Color != "" {
			tail = append(tail, it.Color)
		}
		if it.Size != "" {
			tail = append(tail, it.Size)
		}
		variant := ""
		if len(tail) > 0 {
			variant = " " + strings.Join(tail, " ")
		}
		lines = append(lines, fmt.Sprintf("%d. %s (%s)%s x%d - %s c/u",
			i+1, it.Name, it.SKU, variant, it.Quantity, utils.FormatCOP(it.UnitPrice)))
	}
	return append(lines, "Total: "+utils.FormatCOP(Total(c)))
}

// Text joins Summary with a blank line before the total.
func Text(c models.Cart) string {
	lines := Summary(c)
	if len(lines) == 1 {
		return lines[0]
	}
	return strings.Join(lines[:len(lines)-1], "\n") + "\n\n" + lines[len(lines)-1]
}
