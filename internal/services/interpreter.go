package services

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/cassany-backend/internal/cart"
	"github.com/Ananth-NQI/cassany-backend/internal/catalog"
	"github.com/Ananth-NQI/cassany-backend/internal/models"
)

// outcome is the result of one action. A terminal outcome is a question that must be
// shown on its own, without the free-text reply or the advisor question.
type outcome struct {
	message  string
	terminal bool
}

// apply executes a. Unknown actions are ignored. Errors are store failures only.
func (t *turn) apply(a Action) (outcome, error) {
	log := t.log.With(zap.String("action", string(a.Type)))
	switch a.Type {
	case ActionShowCart:
		return outcome{message: cart.Text(t.cart)}, nil
	case ActionAddToCart:
		return t.applyAdd(a)
	case ActionRemoveFromCart:
		return t.applyRemove(a)
	case ActionUpdateQty:
		return t.applyUpdateQty(a)
	case ActionAskVariant:
		return t.applyAskVariant(a)
	case ActionClarify:
		return outcome{message: a.Question}, nil
	case ActionRememberPref:
		return outcome{}, t.applyRememberPref(a)
	case ActionCacheList:
		return outcome{}, t.applyCacheList(a)
	}
	log.Debug("Ignoring unknown action")
	return outcome{}, nil
}

func (t *turn) actionRef(a Action) string {
	if a.ProductRef != "" {
		return a.ProductRef
	}
	return a.SKU
}

// selectProduct resolves a reference and records it in the selection history.
func (t *turn) selectProduct(ref string) (models.Product, bool) {
	p, idx, ok := t.resolve(ref)
	if !ok {
		return models.Product{}, false
	}
	t.dctx.RememberSelection(p, idx+1)
	return p, true
}

func (t *turn) applyAdd(a Action) (outcome, error) {
	p, ok := t.selectProduct(t.actionRef(a))
	if !ok {
		return outcome{message: msgUnresolved, terminal: true}, nil
	}
	sizes := catalog.CleanSizes(p.Sizes)
	size := ""
	if a.Size != "" {
		if s, found := catalog.FindSize(a.Size); found {
			size = s
		}
	}
	if len(sizes) > 0 {
		if size == "" {
			return t.keepSelection(sizesPrompt(p.Name, sizes))
		}
		if !catalog.HasSize(sizes, size) {
			return t.keepSelection(invalidSizePrompt(p.Name, sizes))
		}
	}
	qty := a.Qty
	if qty < 1 {
		qty = 1
	}
	msg, err := t.addToCart(p, size, a.Color, qty)
	if err != nil {
		return outcome{}, err
	}
	return outcome{message: msg}, nil
}

// keepSelection saves the selection history and returns msg as a terminal question.
func (t *turn) keepSelection(msg string) (outcome, error) {
	if err := t.saveContext(); err != nil {
		return outcome{}, err
	}
	return outcome{message: msg, terminal: true}, nil
}

// cartTarget finds the sku an action refers to: a cart line number first, then the
// current list, then a cart line by sku or name.
func (t *turn) cartTarget(a Action) (string, bool) {
	if a.SKU != "" {
		for _, it := range t.cart {
			if it.SKU == a.SKU {
				return it.SKU, true
			}
		}
	}
	ref := strings.TrimSpace(a.ProductRef)
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(t.cart) {
		return t.cart[n-1].SKU, true
	}
	if p, _, ok := catalog.Resolve(ref, t.cache.Products); ok && ref != "" {
		for _, it := range t.cart {
			if it.SKU == p.SKU {
				return it.SKU, true
			}
		}
	}
	for _, it := range t.cart {
		if ref != "" && (it.SKU == ref || strings.EqualFold(it.Name, ref)) {
			return it.SKU, true
		}
	}
	return "", false
}

func (t *turn) applyRemove(a Action) (outcome, error) {
	sku, ok := t.cartTarget(a)
	if !ok {
		return outcome{message: joinParts(msgNotInCart, cart.Text(t.cart))}, nil
	}
	updated := t.cart
	for _, it := range t.cart {
		if lineMatches(it, sku, a.Size, a.Color) {
			updated = cart.Remove(updated, it.SKU, it.Size, it.Color)
		}
	}
	if err := t.saveCart(updated); err != nil {
		return outcome{}, err
	}
	return outcome{message: joinParts(msgRemovedFromCart, cart.Text(t.cart))}, nil
}

func (t *turn) applyUpdateQty(a Action) (outcome, error) {
	if a.Qty < 1 {
		return outcome{message: msgAskQuantity, terminal: true}, nil
	}
	sku, ok := t.cartTarget(a)
	if !ok {
		return outcome{message: joinParts(msgNotInCart, cart.Text(t.cart))}, nil
	}
	updated := t.cart
	for _, it := range t.cart {
		if !lineMatches(it, sku, a.Size, a.Color) {
			continue
		}
		updated = cart.UpdateQuantity(updated, it.SKU, it.Size, it.Color, a.Qty)
	}
	if err := t.saveCart(updated); err != nil {
		return outcome{}, err
	}
	return outcome{message: joinParts(msgQtyUpdated, cart.Text(t.cart))}, nil
}

func (t *turn) applyAskVariant(a Action) (outcome, error) {
	ref := t.actionRef(a)
	p, ok := t.selectProduct(ref)
	if !ok {
		return outcome{message: msgUnresolved, terminal: true}, nil
	}
	sizes := catalog.CleanSizes(p.Sizes)
	if len(sizes) == 0 {
		t.dctx.SetAwaitingQty(models.AwaitingQty{ProductRef: ref, SKU: p.SKU})
		return t.keepSelection(msgAskQuantity)
	}
	t.dctx.SetPendingVariant(models.PendingVariant{ProductRef: ref, SKU: p.SKU, Qty: a.Qty})
	return t.keepSelection(askVariantPrompt(p.Name, sizes))
}

func (t *turn) applyRememberPref(a Action) error {
	changed := false
	if size, ok := catalog.FindSize(a.Size); ok {
		category := a.Category
		if category == "" {
			category = t.cache.Category
		}
		if category != "" {
			t.prefs.RememberSize(category, size)
			changed = true
		}
	}
	if a.Color != "" && a.Color != t.prefs.FavoriteColor {
		t.prefs.FavoriteColor = a.Color
		changed = true
	}
	if !changed {
		return nil
	}
	return t.savePrefs()
}

func (t *turn) applyCacheList(a Action) error {
	if len(a.Products) == 0 {
		return nil
	}
	products := make([]models.Product, 0, len(a.Products))
	for _, p := range a.Products {
		if p.Name == "" && p.URL == "" {
			continue
		}
		if p.SKU == "" {
			p.SKU = catalog.SurrogateSKU(p.URL, p.Name)
		}
		p.Sizes = catalog.CleanSizes(p.Sizes)
		products = append(products, p)
	}
	if len(products) == 0 {
		return nil
	}
	catalog.Remember(&t.cache, t.cache.Category, t.cache.Filters, products)
	urls := make([]string, 0, len(products))
	for _, p := range products {
		urls = append(urls, p.URL)
	}
	catalog.AppendSeenURLs(&t.cache, urls...)
	return t.saveCache()
}

// lineMatches compares a cart line with a sku and an optional size and color.
func lineMatches(it models.LineItem, sku, size, color string) bool {
	if it.SKU != sku {
		return false
	}
	if size != "" && !strings.EqualFold(it.Size, size) {
		return false
	}
	return color == "" || strings.EqualFold(it.Color, color)
}
