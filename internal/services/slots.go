package services

import (
	"regexp"

	"github.com/Ananth-NQI/cassany-backend/internal/catalog"
	"github.com/Ananth-NQI/cassany-backend/internal/models"
)

// sizeOnlyRe matches utterances that are just a size answer: "M", "la L", "talla 32".
var sizeOnlyRe = regexp.MustCompile(`^(?:(?:la|el|en|de|talla|size)\s+)*(xxl|xl|xs|s|m|l|28|30|32|34|36|38|40|42)\s*[.!]?$`)

// pendingProduct finds the product a slot state refers to.
func (t *turn) pendingProduct(sku, ref string) (models.Product, bool) {
	if p, ok := t.findProduct(sku); ok {
		return p, true
	}
	if ref == "" {
		return models.Product{}, false
	}
	p, _, ok := catalog.Resolve(ref, t.cache.Products)
	return p, ok
}

func (t *turn) dropSlots() error {
	t.dctx.ClearSlots()
	return t.saveContext()
}

// resolvePendingVariant consumes a size answer for the product waiting on one. An
// invalid size re-asks with the valid list and keeps the state.
func (t *turn) resolvePendingVariant() (string, error) {
	pv := t.dctx.PendingVariant
	size, _ := catalog.FindSize(t.raw)
	p, ok := t.pendingProduct(pv.SKU, pv.ProductRef)
	if !ok {
		if err := t.dropSlots(); err != nil {
			return "", err
		}
		return msgUnresolved, nil
	}
	sizes := catalog.CleanSizes(p.Sizes)
	if len(sizes) > 0 && !catalog.HasSize(sizes, size) {
		return invalidSizePrompt(p.Name, sizes), nil
	}
	reply, err := t.addToCart(p, size, "", pv.Qty)
	if err != nil {
		return "", err
	}
	return t.withNext(reply)
}

// resolveAwaitingQty consumes a unit count. Without a parsable count it re-asks and
// keeps the state.
func (t *turn) resolveAwaitingQty() (string, error) {
	aq := t.dctx.AwaitingQty
	qty, ok := ParseQuantity(t.raw)
	if !ok {
		return msgAskQuantity, nil
	}
	p, found := t.pendingProduct(aq.SKU, aq.ProductRef)
	if !found {
		if err := t.dropSlots(); err != nil {
			return "", err
		}
		return msgUnresolved, nil
	}
	reply, err := t.addToCart(p, "", "", qty)
	if err != nil {
		return "", err
	}
	return t.withNext(reply)
}

// sizeFastPath adds the last selected product when the utterance is only a size.
func (t *turn) sizeFastPath() (string, error) {
	sel, _ := t.dctx.LastSelection()
	p := sel.Product
	if fresh, ok := t.findProduct(p.SKU); ok {
		p = fresh
	}
	sizes := catalog.CleanSizes(p.Sizes)
	if len(sizes) == 0 {
		return "", errFallthrough
	}
	size, _ := catalog.FindSize(t.raw)
	if !catalog.HasSize(sizes, size) {
		return invalidSizePrompt(p.Name, sizes), nil
	}
	reply, err := t.addToCart(p, size, "", 1)
	if err != nil {
		return "", err
	}
	return t.withNext(reply)
}
