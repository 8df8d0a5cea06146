package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/cassany-backend/internal/cart"
	"github.com/Ananth-NQI/cassany-backend/internal/catalog"
	"github.com/Ananth-NQI/cassany-backend/internal/models"
	"github.com/Ananth-NQI/cassany-backend/internal/utils"
)

// turn is the working state of one inbound message. Blobs are decoded once from the
// session snapshot and written back through the save helpers.
type turn struct {
	a       *Assistant
	ctx     context.Context
	id      string
	raw     string
	text    string
	session *models.Session
	cart    models.Cart
	prefs   models.Preferences
	cache   models.SuggestionCache
	dctx    models.DialogueContext
	log     *zap.Logger

	category     string
	hasCategory  bool
	capturedName string
}

func (a *Assistant) newTurn(ctx context.Context, id string, s *models.Session, text string, log *zap.Logger) *turn {
	t := &turn{
		a:       a,
		ctx:     ctx,
		id:      id,
		raw:     strings.TrimSpace(text),
		text:    utils.Normalize(text),
		session: s,
		log:     log,
	}
	decode := func(b models.Blob, dst interface{}) {
		if err := s.DecodeBlob(b, dst); err != nil {
			log.Warn("Discarding unreadable blob", zap.String("blob", string(b)), zap.Error(err))
		}
	}
	decode(models.BlobCart, &t.cart)
	decode(models.BlobPreferences, &t.prefs)
	decode(models.BlobSuggestions, &t.cache)
	decode(models.BlobContext, &t.dctx)
	if a.catalog != nil && t.text != "" {
		t.category, t.hasCategory = a.catalog.DetectCategory(t.text)
	}
	return t
}

func (t *turn) sessionID() string {
	return t.session.SessionID
}

// capture runs the side observations made on every utterance: the shopper's name and
// any product filters mentioned. Everything observed is written in one update.
func (t *turn) capture() error {
	cs := changeSet{}
	name, named := CaptureName(t.raw)
	named = named && name != t.session.CustomerName
	if named {
		cs[models.FieldCustomerName] = name
	}

	filters := catalog.DetectAttributes(t.text)
	if filters.Size != "" && !(strings.Contains(t.text, "talla") || t.hasCategory) {
		filters.Size = ""
	}
	if !filters.IsZero() {
		merged := t.cache.Filters.Merge(filters)
		if merged != t.cache.Filters {
			t.cache.Filters = merged
			if err := cs.blob(models.BlobSuggestions, t.cache); err != nil {
				return err
			}
		}
	}
	if filters.Size != "" {
		category := t.category
		if category == "" {
			category = t.cache.Category
		}
		if category != "" && t.prefs.PreferredSizes[category] != filters.Size {
			t.prefs.RememberSize(category, filters.Size)
			if err := cs.blob(models.BlobPreferences, t.prefs); err != nil {
				return err
			}
		}
	}
	if len(cs) == 0 {
		return nil
	}
	if err := t.setFields(cs); err != nil {
		return err
	}
	if named {
		t.capturedName = name
	}
	return nil
}

// setFields writes session columns and mirrors them on the in-memory snapshot.
func (t *turn) setFields(fields map[string]interface{}) error {
	if err := t.a.store.UpdateFields(t.ctx, t.sessionID(), fields); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	for k, v := range fields {
		if err := t.session.Set(k, v); err != nil {
			return err
		}
	}
	return nil
}

// changeSet collects session columns and encoded blobs for a single store update, so
// a turn never persists half of what it decided.
type changeSet map[string]interface{}

func (cs changeSet) blob(b models.Blob, v interface{}) error {
	data, err := encodeBlob(v)
	if err != nil {
		return err
	}
	cs[b.Column()] = data
	return nil
}

// cart stages the cart together with its recomputed subtotal.
func (cs changeSet) cart(c models.Cart) error {
	if err := cs.blob(models.BlobCart, c); err != nil {
		return err
	}
	cs[models.FieldSubtotal] = cart.Total(c)
	return nil
}

func (t *turn) saveCart(c models.Cart) error {
	cs := changeSet{}
	if err := cs.cart(c); err != nil {
		return err
	}
	if err := t.setFields(cs); err != nil {
		return err
	}
	t.cart = c
	return nil
}

func (t *turn) saveBlob(b models.Blob, v interface{}) error {
	if err := t.a.store.SaveBlob(t.ctx, t.sessionID(), b, v); err != nil {
		return fmt.Errorf("failed to save %s: %w", b, err)
	}
	return nil
}

func (t *turn) saveCache() error {
	return t.saveBlob(models.BlobSuggestions, t.cache)
}

func (t *turn) savePrefs() error {
	return t.saveBlob(models.BlobPreferences, t.prefs)
}

func (t *turn) saveContext() error {
	return t.saveBlob(models.BlobContext, t.dctx)
}

// hasItems reports whether there is anything to order.
func (t *turn) hasItems() bool {
	return len(t.cart) > 0 || t.session.Product != ""
}

// showProducts caches products as the current list, marks their urls as seen and
// renders them under title.
func (t *turn) showProducts(title, category string, filters models.Filters, products []models.Product) (string, error) {
	catalog.Remember(&t.cache, category, filters, products)
	return t.renderPage(title)
}

func (t *turn) renderPage(title string) (string, error) {
	page := catalog.Page(t.cache)
	urls := make([]string, 0, len(page))
	for _, p := range page {
		urls = append(urls, p.URL)
	}
	catalog.AppendSeenURLs(&t.cache, urls...)
	if err := t.saveCache(); err != nil {
		return "", err
	}
	return title + "\n" + productLines(page), nil
}

// search runs a catalog query. Backend failures are logged and reported as no result.
func (t *turn) search(q catalog.Query) (catalog.Result, bool) {
	if t.a.catalog == nil {
		return catalog.Result{}, false
	}
	res, err := t.a.catalog.Search(t.ctx, q)
	if err != nil {
		t.log.Warn("Catalog search failed", zap.String("category", q.Category), zap.Error(err))
		return catalog.Result{}, false
	}
	return res, true
}

// findProduct looks a product up by sku in the current list, then in the selection history.
func (t *turn) findProduct(sku string) (models.Product, bool) {
	if sku == "" {
		return models.Product{}, false
	}
	for _, p := range t.cache.Products {
		if p.SKU == sku {
			return p, true
		}
	}
	for i := len(t.dctx.Selections) - 1; i >= 0; i-- {
		if p := t.dctx.Selections[i].Product; p.SKU == sku {
			return p, true
		}
	}
	return models.Product{}, false
}

// resolve maps a reference onto a product from the current list, falling back to the
// selection history for skus.
func (t *turn) resolve(ref string) (models.Product, int, bool) {
	if p, idx, ok := catalog.Resolve(ref, t.cache.Products); ok {
		return p, idx, true
	}
	if p, ok := t.findProduct(strings.TrimSpace(ref)); ok {
		return p, -1, true
	}
	if strings.TrimSpace(ref) == "" && len(t.cache.Products) != 1 {
		if sel, ok := t.dctx.LastSelection(); ok {
			return sel.Product, sel.Index - 1, true
		}
	}
	return models.Product{}, -1, false
}

// addToCart adds qty units of p, clears the slot states and returns the cart reply. The
// cart, the dialogue context and a changed size preference land in one write.
func (t *turn) addToCart(p models.Product, size, color string, qty int) (string, error) {
	if color == "" {
		color = p.Color
	}
	updated := cart.Add(t.cart, models.LineItem{
		SKU:       p.SKU,
		Name:      p.Name,
		Category:  p.Category,
		Size:      size,
		Color:     color,
		Quantity:  clampQuantity(qty),
		UnitPrice: p.Price,
	})
	t.dctx.ClearSlots()
	t.dctx.AwaitingConfirmation = false

	cs := changeSet{}
	if err := cs.cart(updated); err != nil {
		return "", err
	}
	if err := cs.blob(models.BlobContext, t.dctx); err != nil {
		return "", err
	}
	if size != "" && p.Category != "" && t.prefs.PreferredSizes[p.Category] != size {
		t.prefs.RememberSize(p.Category, size)
		if err := cs.blob(models.BlobPreferences, t.prefs); err != nil {
			return "", err
		}
	}
	if err := t.setFields(cs); err != nil {
		return "", err
	}
	t.cart = updated
	t.log.Info("Item added to cart",
		zap.String("sku", p.SKU),
		zap.String("size", size),
		zap.Int("quantity", clampQuantity(qty)))
	return addedReply(t.cart), nil
}

// withNext appends the advisor's next question to reply.
func (t *turn) withNext(reply string) (string, error) {
	q, err := t.nextQuestion()
	if err != nil {
		return "", err
	}
	return joinParts(reply, q), nil
}

func encodeBlob(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode blob: %w", err)
	}
	return string(data), nil
}
