package services

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/cassany-backend/internal/cart"
	"github.com/Ananth-NQI/cassany-backend/internal/catalog"
	"github.com/Ananth-NQI/cassany-backend/internal/models"
)

// errFallthrough lets a matched rule hand the utterance to the next rule.
var errFallthrough = errors.New("rule declined")

// rule is one entry of the dispatch table. match must not have side effects.
type rule struct {
	name   string
	match  func(t *turn) bool
	handle func(t *turn) (string, error)
}

// catalogFetchLimit is how many products a browse caches for paging.
const catalogFetchLimit = 12

var paymentOnlyRe = regexp.MustCompile(`^(por\s+|con\s+|en\s+)?(transferencia|payu|pse|pago en tienda|efectivo|contraentrega)\W*$`)

// ruleTable lists the deterministic rules in evaluation order; the first match wins.
func (a *Assistant) ruleTable() []rule {
	return []rule{
		{"handoff", func(t *turn) bool { return WantsHuman(t.raw) }, (*turn).handoff},
		{"cancel", func(t *turn) bool { return cancelRe.MatchString(t.text) }, (*turn).cancel},
		{"pending_variant", func(t *turn) bool {
			_, ok := catalog.FindSize(t.raw)
			return t.dctx.PendingVariant != nil && ok
		}, (*turn).resolvePendingVariant},
		{"awaiting_qty", func(t *turn) bool { return t.dctx.AwaitingQty != nil }, (*turn).resolveAwaitingQty},
		{"size_only", func(t *turn) bool {
			_, ok := t.dctx.LastSelection()
			return ok && sizeOnlyRe.MatchString(t.text)
		}, (*turn).sizeFastPath},
		{"confirm_affirmative", func(t *turn) bool {
			return t.dctx.AwaitingConfirmation && affirmativeRe.MatchString(t.text)
		}, (*turn).confirmOrder},
		{"payment", func(t *turn) bool {
			return paymentRe.MatchString(t.text) || paymentOnlyRe.MatchString(t.text)
		}, (*turn).payment},
		{"confirm", func(t *turn) bool { return confirmRe.MatchString(t.text) }, (*turn).confirmOrder},
		{"greeting", func(t *turn) bool { return greetingRe.MatchString(t.text) }, (*turn).greeting},
		{"more_options", func(t *turn) bool { return moreRe.MatchString(t.text) }, (*turn).moreOptions},
		{"courier", func(t *turn) bool { return courierRe.MatchString(t.text) }, (*turn).courier},
		{"pickup", func(t *turn) bool { return pickupRe.MatchString(t.text) }, (*turn).pickup},
		{"pickup_point", (*turn).namesPickupPoint, (*turn).pickupPoint},
		{"selection", func(t *turn) bool {
			_, ok := t.selectionIndex()
			return ok && (!t.hasCategory || len(t.cache.Products) > 0)
		}, (*turn).selection},
		{"add_verb", func(t *turn) bool { return addRe.MatchString(t.text) && !t.hasCategory }, (*turn).addVerb},
		{"off_topic", func(t *turn) bool { return offTopicRe.MatchString(t.text) }, (*turn).offTopic},
		{"small_talk", func(t *turn) bool { return smallTalkRe.MatchString(t.text) }, (*turn).smallTalk},
		{"discovery", func(t *turn) bool { return discoveryRe.MatchString(t.text) }, (*turn).discovery},
		{"show_cart", func(t *turn) bool { return cartRe.MatchString(t.text) }, (*turn).showCart},
		{"photos", func(t *turn) bool { return photosRe.MatchString(t.text) }, (*turn).photos},
		{"browse", func(t *turn) bool { return showRe.MatchString(t.text) || t.hasCategory }, (*turn).browse},
		{"rejection", func(t *turn) bool { return rejectRe.MatchString(t.text) }, (*turn).rejection},
		{"name_given", func(t *turn) bool { return t.capturedName != "" }, (*turn).nameGiven},
	}
}

func (t *turn) handoff() (string, error) {
	t.log.Info("Human handoff requested")
	body := staffOrderAlert("Solicitud de asesor", t.session, t.cart, "Mensaje: "+t.raw)
	t.a.alert("handoff_alert", body)
	return msgHandoff, nil
}

func (t *turn) cancel() (string, error) {
	if t.session.IsConfirmed() {
		return fmt.Sprintf(msgCannotCancel, t.session.Code()), nil
	}
	what := "el pedido actual"
	if t.session.Product != "" && len(t.cart) == 0 {
		what = t.session.Product
	}
	fields := map[string]interface{}{
		models.FieldStatus:              models.StatusCancelled,
		models.FieldProduct:             "",
		models.FieldSize:                "",
		models.FieldQuantity:            0,
		models.FieldUnitPrice:           0.0,
		models.FieldSubtotal:            0.0,
		models.FieldDeliveryMethod:      "",
		models.FieldPickupPoint:         "",
		models.FieldPaymentMethod:       "",
		models.BlobCart.Column():        "[]",
		models.BlobContext.Column():     "{}",
		models.BlobSuggestions.Column(): "{}",
	}
	if err := t.setFields(fields); err != nil {
		return "", err
	}
	t.cart = nil
	t.dctx = models.DialogueContext{}
	t.cache = models.SuggestionCache{}
	t.log.Info("Order cancelled")
	return fmt.Sprintf(msgCancelled, what), nil
}

func (t *turn) payment() (string, error) {
	method := InferPaymentMethod(t.text)
	if method == "" {
		method = models.PaymentInStore
	}
	return t.choosePayment(method)
}

func (t *turn) greeting() (string, error) {
	if !t.session.GreetingSent {
		if err := t.setFields(map[string]interface{}{models.FieldGreetingSent: true}); err != nil {
			return "", err
		}
		welcome := joinParts(t.a.profile.Greeting, strings.Join(t.a.profile.StorePhones, "\n"))
		if t.hasCategory {
			listing, err := t.browse()
			if err != nil {
				return "", err
			}
			return joinParts(welcome, listing), nil
		}
		return welcome, nil
	}
	if t.hasCategory {
		return "", errFallthrough
	}
	if len(t.cart) > 0 || t.session.DeliveryMethod != "" || t.session.Product != "" {
		q, err := t.nextQuestion()
		if err != nil {
			return "", err
		}
		if q == "" {
			q = "¿Confirmo tu pedido?"
		}
		return joinParts(orderLines(t.session, t.cart), q), nil
	}
	return msgHelloAgain, nil
}

func (t *turn) moreOptions() (string, error) {
	if len(t.cache.Products) == 0 && t.cache.Category == "" {
		return msgMoreNeedsTopic, nil
	}
	if next := catalog.More(&t.cache); next != nil {
		return t.renderPage(msgMoreOptions)
	}
	if t.cache.Category == "" {
		return msgNoMoreOptions, nil
	}
	res, ok := t.search(catalog.Query{
		Category:    t.cache.Category,
		Filters:     t.cache.Filters,
		Limit:       catalogFetchLimit,
		ExcludeURLs: t.cache.SeenURLs,
	})
	if !ok || len(res.Products) == 0 {
		return msgNoMoreOptions, nil
	}
	return t.showProducts(msgMoreOptions, res.Category, res.Filters, res.Products)
}

func (t *turn) courier() (string, error) {
	fields := map[string]interface{}{
		models.FieldDeliveryMethod: models.DeliveryCourier,
		models.FieldPickupPoint:    "",
	}
	if err := t.setFields(fields); err != nil {
		return "", err
	}
	return t.withNext(msgCourierChosen)
}

func (t *turn) pickup() (string, error) {
	fields := map[string]interface{}{models.FieldDeliveryMethod: models.DeliveryPickup}
	point, named := MatchPickupPoint(t.text, t.a.profile.PickupPoints)
	if named {
		fields[models.FieldPickupPoint] = point
	}
	if err := t.setFields(fields); err != nil {
		return "", err
	}
	if named {
		return t.withNext(fmt.Sprintf(msgPickupChosen, point))
	}
	return "Por favor, confirma en cuál de nuestras tiendas deseas recoger tu pedido:\n" +
		strings.Join(t.a.profile.PickupPoints, "\n"), nil
}

var storeWordRe = regexp.MustCompile(`\b(tienda|sede|sucursal|recoger|recojo|recogerlo|recogerla)\b`)

func (t *turn) namesPickupPoint() bool {
	if t.session.DeliveryMethod == models.DeliveryCourier {
		return false
	}
	if t.session.DeliveryMethod != models.DeliveryPickup && !storeWordRe.MatchString(t.text) {
		return false
	}
	_, ok := MatchPickupPoint(t.text, t.a.profile.PickupPoints)
	return ok
}

func (t *turn) pickupPoint() (string, error) {
	point, _ := MatchPickupPoint(t.text, t.a.profile.PickupPoints)
	fields := map[string]interface{}{
		models.FieldDeliveryMethod: models.DeliveryPickup,
		models.FieldPickupPoint:    point,
	}
	if err := t.setFields(fields); err != nil {
		return "", err
	}
	return t.withNext(fmt.Sprintf(msgPickupChosen, point))
}

// selectionIndex reads "opción 2", "la 3", a bare "2" or "la segunda".
func (t *turn) selectionIndex() (int, bool) {
	if n, ok := selectionNumber(t.text); ok {
		return n, true
	}
	return catalog.OrdinalIndex(t.text)
}

func (t *turn) selection() (string, error) {
	n, _ := t.selectionIndex()
	if len(t.cache.Products) == 0 {
		return msgNothingShown, nil
	}
	if n < 1 || n > len(t.cache.Products) {
		return outOfRangePrompt(len(t.cache.Products)), nil
	}
	ref := strconv.Itoa(n)
	size, hasSize := catalog.FindSize(t.raw)
	if addRe.MatchString(t.text) || hasSize {
		return t.runActions([]Action{{Type: ActionAddToCart, ProductRef: ref, Size: size}})
	}

	p := t.cache.Products[n-1]
	t.dctx.RememberSelection(p, n)
	sizes := catalog.CleanSizes(p.Sizes)
	if len(sizes) > 0 {
		t.dctx.SetPendingVariant(models.PendingVariant{ProductRef: ref, SKU: p.SKU, Qty: 1})
		if err := t.saveContext(); err != nil {
			return "", err
		}
		return fmt.Sprintf("Listo, seleccionaste la opción %d: %s. Tallas disponibles: %s. ¿Cuál prefieres?",
			n, p.Name, strings.Join(sizes, ", ")), nil
	}
	t.dctx.SetAwaitingQty(models.AwaitingQty{ProductRef: ref, SKU: p.SKU})
	if err := t.saveContext(); err != nil {
		return "", err
	}
	return fmt.Sprintf("Listo, seleccionaste la opción %d: %s. %s", n, p.Name, msgAskQuantity), nil
}

// addVerb handles "agrégalo", "añade la primera", "ponme esa en M".
func (t *turn) addVerb() (string, error) {
	ref := ""
	if n, ok := t.selectionIndex(); ok {
		ref = strconv.Itoa(n)
	}
	size, _ := catalog.FindSize(t.raw)
	return t.runActions([]Action{{Type: ActionAddToCart, ProductRef: ref, Size: size}})
}

func (t *turn) categoryList() string {
	return bulletList(t.a.profile.Categories)
}

func (t *turn) offTopic() (string, error) {
	return fmt.Sprintf("Somos %s, una marca de ropa para hombre. Trabajamos estas categorías:\n%s\n\n"+
		"¿Te muestro camisas o prefieres otra categoría?", t.a.profile.Name, t.categoryList()), nil
}

func (t *turn) smallTalk() (string, error) {
	if len(t.cart) > 0 || t.session.DeliveryMethod != "" || t.session.Product != "" {
		q, err := t.nextQuestion()
		if err != nil {
			return "", err
		}
		return joinParts(orderLines(t.session, t.cart), q), nil
	}
	cats := t.a.profile.Categories
	if len(cats) > 4 {
		cats = cats[:4]
	}
	return fmt.Sprintf("¡Con gusto! ¿Te muestro algo hoy? Tenemos %s… ¿Qué prefieres ver primero?",
		strings.Join(cats, ", ")), nil
}

func (t *turn) discovery() (string, error) {
	return "¡Te ayudo a elegir! Dime por favor:\n" +
		"1) ¿Qué te interesa ver primero?\n" + t.categoryList() + "\n" +
		"2) ¿Cuál es tu talla? (S, M, L, XL)\n" +
		"3) ¿Tienes ocasión o estilo en mente? (oficina, casual, evento)\n" +
		"Con eso te muestro opciones acertadas.", nil
}

func (t *turn) showCart() (string, error) {
	if len(t.cart) == 0 {
		return cart.EmptyMessage + " ¿Te muestro camisas o jeans?", nil
	}
	return t.withNext(cart.Text(t.cart))
}

func (t *turn) photos() (string, error) {
	m := photosRe.FindStringSubmatch(t.text)
	subject := strings.TrimSpace(m[2])
	category := ""
	if t.a.catalog != nil {
		category, _ = t.a.catalog.DetectCategory(subject)
	}
	res, found := t.search(catalog.Query{
		Text:        subject,
		Category:    category,
		Filters:     catalog.DetectAttributes(subject),
		Limit:       catalogFetchLimit,
		ExcludeURLs: t.cache.SeenURLs,
	})
	if found && len(res.Products) > 0 {
		return t.showProducts(msgSomeOptions, res.Category, res.Filters, res.Products)
	}
	return fmt.Sprintf("No hay stock para «%s» en este momento. ¿Te muestro algo de:\n%s", subject, t.categoryList()), nil
}

// browse lists products for the category named in the utterance, or the last one shown.
func (t *turn) browse() (string, error) {
	category := t.category
	filters := t.cache.Filters
	if category == "" {
		category = t.cache.Category
	} else if category != t.cache.Category {
		filters = catalog.DetectAttributes(t.text)
	}
	if category == "" {
		return "¿Qué te muestro primero?\n" + t.categoryList(), nil
	}
	if size := t.prefs.PreferredSizes[category]; size != "" && filters.Size == "" {
		filters.Size = size
	}
	res, ok := t.search(catalog.Query{
		Text:        t.text,
		Category:    category,
		Filters:     filters,
		Limit:       catalogFetchLimit,
		ExcludeURLs: t.cache.SeenURLs,
	})
	if !ok {
		return msgFallback, nil
	}
	if len(res.Products) == 0 {
		t.cache.Category = category
		t.cache.Filters = res.Filters
		if err := t.saveCache(); err != nil {
			return "", err
		}
		return joinParts(res.Message, "¿Te muestro algo de:\n"+t.categoryList()), nil
	}
	return t.showProducts(msgSomeOptions, res.Category, res.Filters, res.Products)
}

// rejection re-queries the last category excluding everything already shown, then
// retries without filters.
func (t *turn) rejection() (string, error) {
	category := t.cache.Category
	if t.hasCategory {
		category = t.category
	}
	if category == "" {
		return "¿Qué te gustaría ver en su lugar?\n" + t.categoryList(), nil
	}
	filters := t.cache.Filters.Merge(catalog.DetectAttributes(t.text))
	attempts := []models.Filters{filters}
	if !filters.IsZero() {
		attempts = append(attempts, models.Filters{})
	}
	for _, f := range attempts {
		res, ok := t.search(catalog.Query{
			Category:    category,
			Filters:     f,
			Limit:       catalogFetchLimit,
			ExcludeURLs: t.cache.SeenURLs,
		})
		if !ok {
			return msgFallback, nil
		}
		if len(res.Products) > 0 {
			if f.IsZero() && !filters.IsZero() {
				t.log.Debug("Loosened filters after rejection", zap.String("category", category))
			}
			return t.showProducts(msgSomeOptions, res.Category, res.Filters, res.Products)
		}
	}
	return msgNoMoreOptions, nil
}

func (t *turn) nameGiven() (string, error) {
	greeting := fmt.Sprintf("Mucho gusto, %s.", t.capturedName)
	q, err := t.nextQuestion()
	if err != nil {
		return "", err
	}
	if q == "" {
		q = "¿Qué te gustaría ver hoy?"
	}
	return greeting + " " + q, nil
}
