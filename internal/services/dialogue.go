package services

import (
	"strings"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/cassany-backend/internal/catalog"
	"github.com/Ananth-NQI/cassany-backend/internal/models"
)

// candidateLimit is how many products the completion context carries.
const candidateLimit = 3

// applyAll executes actions in order. It stops at the first terminal outcome and
// returns its question; otherwise it returns the informational messages.
func (t *turn) applyAll(actions []Action) (msgs []string, terminal string, err error) {
	for _, a := range actions {
		out, err := t.apply(a)
		if err != nil {
			return nil, "", err
		}
		if out.terminal {
			return nil, out.message, nil
		}
		if out.message != "" {
			msgs = append(msgs, out.message)
		}
	}
	return msgs, "", nil
}

// runActions executes rule-synthesized actions and appends the next question.
func (t *turn) runActions(actions []Action) (string, error) {
	msgs, terminal, err := t.applyAll(actions)
	if err != nil {
		return "", err
	}
	if terminal != "" {
		return terminal, nil
	}
	return t.withNext(joinParts(msgs...))
}

// classify asks the intent classifier about payment and confirmation phrasing the
// rules did not anticipate. Results below the threshold or outside the label set are
// ignored.
func (t *turn) classify() (string, bool, error) {
	if t.a.classifier == nil {
		return "", false, nil
	}
	res, err := t.a.classifier.ClassifyPaymentConfirm(t.ctx, t.raw)
	if err != nil {
		t.log.Warn("Intent classifier failed", zap.Error(err))
		return "", false, nil
	}
	if res.Confidence < classifierThreshold {
		return "", false, nil
	}
	t.log.Debug("Classifier intent",
		zap.String("intent", res.Intent),
		zap.String("method", res.Method),
		zap.Float64("confidence", res.Confidence))
	switch res.Intent {
	case IntentPayment:
		method := res.Method
		if !validPaymentMethod(method) {
			method = InferPaymentMethod(t.text)
		}
		reply, err := t.choosePayment(method)
		return reply, true, err
	case IntentConfirm:
		reply, err := t.confirmOrder()
		return reply, true, err
	}
	return "", false, nil
}

// complete hands the utterance to the completion service with a compact context,
// applies the returned actions and fields, and appends the next question.
func (t *turn) complete() (string, error) {
	res, _ := t.search(catalog.Query{
		Text:        t.text,
		Filters:     t.cache.Filters,
		Limit:       candidateLimit,
		ExcludeURLs: t.cache.SeenURLs,
	})
	candidates := res.Products
	if len(candidates) > 0 {
		catalog.Remember(&t.cache, res.Category, res.Filters, candidates)
		if err := t.saveCache(); err != nil {
			return "", err
		}
	} else {
		candidates = catalog.Page(t.cache)
	}

	if t.a.completer == nil {
		return t.completionFallback(res.Products)
	}
	resp, err := t.a.completer.CompleteDialogue(t.ctx, DialogueRequest{
		Session:          t.session,
		Cart:             t.cart,
		Preferences:      t.prefs,
		Candidates:       candidates,
		CandidateMessage: res.Message,
		PickupPoints:     t.a.profile.PickupPoints,
		Text:             t.raw,
	})
	if err != nil || resp == nil {
		t.log.Warn("Completion failed", zap.Error(err))
		return t.completionFallback(res.Products)
	}

	msgs, terminal, err := t.applyAll(resp.Actions)
	if err != nil {
		return "", err
	}
	if terminal != "" {
		return terminal, nil
	}
	if err := t.mergeFields(resp.Fields); err != nil {
		return "", err
	}
	q, err := t.nextQuestion()
	if err != nil {
		return "", err
	}
	return joinParts(append(msgs, resp.Reply, q)...), nil
}

func (t *turn) completionFallback(candidates []models.Product) (string, error) {
	if len(candidates) > 0 {
		return t.renderPage(msgSomeOptions)
	}
	return msgContinue, nil
}

// fieldAliases maps the keys accepted from the completion service onto columns.
var fieldAliases = map[string]string{
	"customer_name":   models.FieldCustomerName,
	"name":            models.FieldCustomerName,
	"nombre":          models.FieldCustomerName,
	"nombre_cliente":  models.FieldCustomerName,
	"email":           models.FieldEmail,
	"correo":          models.FieldEmail,
	"phone":           models.FieldPhone,
	"telefono":        models.FieldPhone,
	"address":         models.FieldAddress,
	"direccion":       models.FieldAddress,
	"city":            models.FieldCity,
	"ciudad":          models.FieldCity,
	"delivery_method": models.FieldDeliveryMethod,
	"metodo_entrega":  models.FieldDeliveryMethod,
	"pickup_point":    models.FieldPickupPoint,
	"punto_venta":     models.FieldPickupPoint,
	"payment_method":  models.FieldPaymentMethod,
	"metodo_pago":     models.FieldPaymentMethod,
	"notes":           models.FieldNotes,
	"notas":           models.FieldNotes,
	"product":         models.FieldProduct,
	"producto":        models.FieldProduct,
	"size":            models.FieldSize,
	"talla":           models.FieldSize,
	"quantity":        models.FieldQuantity,
	"cantidad":        models.FieldQuantity,
	"unit_price":      models.FieldUnitPrice,
	"precio_unitario": models.FieldUnitPrice,
}

// mergeFields writes the order fields proposed by the completion service. Unknown keys,
// invalid enum values, status and totals are dropped. A confirmed order is not edited.
func (t *turn) mergeFields(proposed map[string]interface{}) error {
	if len(proposed) == 0 || t.session.IsConfirmed() {
		return nil
	}
	fields := make(map[string]interface{})
	for key, value := range proposed {
		column, ok := fieldAliases[strings.ToLower(strings.TrimSpace(key))]
		if !ok {
			continue
		}
		if v, ok := t.cleanField(column, value); ok {
			fields[column] = v
		}
	}
	if len(fields) == 0 {
		return nil
	}
	t.log.Debug("Merging completion fields", zap.Int("count", len(fields)))
	return t.setFields(fields)
}

func (t *turn) cleanField(column string, value interface{}) (interface{}, bool) {
	switch column {
	case models.FieldQuantity:
		switch v := value.(type) {
		case float64:
			return clampQuantity(int(v)), v > 0
		case string:
			n, ok := ParseQuantity(v)
			return n, ok
		}
		return nil, false
	case models.FieldUnitPrice:
		v, ok := value.(float64)
		return v, ok && v >= 0
	}

	s, ok := value.(string)
	if !ok {
		return nil, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	switch column {
	case models.FieldDeliveryMethod:
		n := strings.ReplaceAll(strings.ToLower(s), " ", "_")
		switch {
		case strings.Contains(n, "domicilio"):
			return models.DeliveryCourier, true
		case strings.Contains(n, "recoger") || strings.Contains(n, "tienda"):
			return models.DeliveryPickup, true
		}
		return nil, false
	case models.FieldPaymentMethod:
		if validPaymentMethod(s) {
			return s, true
		}
		if m := InferPaymentMethod(s); m != "" {
			return m, true
		}
		return nil, false
	case models.FieldPickupPoint:
		return MatchPickupPoint(s, t.a.profile.PickupPoints)
	case models.FieldSize:
		return catalog.FindSize(s)
	}
	return s, true
}
