package services

import (
	"strings"

	"github.com/Ananth-NQI/cassany-backend/internal/models"
)

// Requirement is an order field the shopper still has to provide.
type Requirement string

// Requirements in the order they are asked.
const (
	NeedName        Requirement = "customer_name"
	NeedDelivery    Requirement = "delivery_method"
	NeedAddress     Requirement = "address"
	NeedCity        Requirement = "city"
	NeedPickupPoint Requirement = "pickup_point"
	NeedProduct     Requirement = "product"
	NeedQuantity    Requirement = "quantity"
	NeedPayment     Requirement = "payment_method"
)

// MissingFields lists the unmet order requirements in priority order. The name is
// only required once the shopper has made progress (items or a delivery or payment
// choice). A confirmed order has no requirements left.
func MissingFields(s *models.Session, c models.Cart, awaitingQty bool) []Requirement {
	if s.IsConfirmed() {
		return nil
	}
	var missing []Requirement

	progress := len(c) > 0 || s.DeliveryMethod != "" || s.PaymentMethod != ""
	if progress && strings.TrimSpace(s.CustomerName) == "" {
		missing = append(missing, NeedName)
	}

	switch s.DeliveryMethod {
	case models.DeliveryCourier:
		if strings.TrimSpace(s.Address) == "" {
			missing = append(missing, NeedAddress)
		}
		if strings.TrimSpace(s.City) == "" {
			missing = append(missing, NeedCity)
		}
	case models.DeliveryPickup:
		if strings.TrimSpace(s.PickupPoint) == "" {
			missing = append(missing, NeedPickupPoint)
		}
	default:
		missing = append(missing, NeedDelivery)
	}

	if len(c) == 0 {
		if s.Product == "" {
			missing = append(missing, NeedProduct)
		} else if s.Quantity < 1 && !awaitingQty {
			missing = append(missing, NeedQuantity)
		}
	}

	if s.PaymentMethod == "" {
		missing = append(missing, NeedPayment)
	}
	return missing
}

// nextQuestion renders the single question for the first unmet requirement. The
// personal-data notice is prepended the first time an address is requested.
func (t *turn) nextQuestion() (string, error) {
	missing := MissingFields(t.session, t.cart, t.dctx.AwaitingQty != nil)
	if len(missing) == 0 {
		return "", nil
	}
	switch missing[0] {
	case NeedName:
		return msgAskName, nil
	case NeedDelivery:
		return msgAskDelivery, nil
	case NeedAddress:
		q := msgAskAddress
		if t.session.City == "" {
			q = "¿Podrías indicarme tu dirección y ciudad para el envío?"
		}
		return t.withPrivacyNotice(q)
	case NeedCity:
		return t.withPrivacyNotice(msgAskCity)
	case NeedPickupPoint:
		return "¿En cuál tienda deseas recoger tu pedido?\n" + strings.Join(t.a.profile.PickupPoints, "\n"), nil
	case NeedProduct:
		return t.productQuestion(), nil
	case NeedQuantity:
		return "¿Cuántas unidades deseas?", nil
	case NeedPayment:
		return msgAskPayment, nil
	}
	return "", nil
}

func (t *turn) productQuestion() string {
	cats := t.a.profile.Categories
	if len(cats) > 4 {
		cats = cats[:4]
	}
	if len(cats) == 0 {
		return "¿Qué te gustaría ver primero?"
	}
	return "¿Qué te gustaría ver primero? Tenemos " + strings.Join(cats, ", ") + "…"
}

func (t *turn) withPrivacyNotice(q string) (string, error) {
	if t.session.PrivacyNoticeShown || t.a.profile.PrivacyPolicyURL == "" {
		return q, nil
	}
	if err := t.setFields(map[string]interface{}{models.FieldPrivacyNoticeShown: true}); err != nil {
		return "", err
	}
	notice := "Antes de continuar, ten en cuenta que tus datos personales serán tratados bajo nuestra política: " +
		t.a.profile.PrivacyPolicyURL
	return notice + "\n\n" + q, nil
}
