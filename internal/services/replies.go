package services

import (
	"fmt"
	"strings"

	"github.com/Ananth-NQI/cassany-backend/internal/cart"
	"github.com/Ananth-NQI/cassany-backend/internal/models"
	"github.com/Ananth-NQI/cassany-backend/internal/utils"
)

const (
	msgTechnicalIssue  = "Tuve un problema técnico procesando tu mensaje. ¿Puedes intentarlo de nuevo en un momento?"
	msgEmptyMessage    = "¿En qué te puedo ayudar? Puedo mostrarte camisas, jeans, pantalones y más."
	msgFallback        = "Cuéntame un poco más de lo que buscas y te ayudo a encontrarlo."
	msgContinue        = "Puedo continuar con tu compra. ¿Te muestro camisas o jeans?"
	msgHelloAgain      = "¡Hola! ¿Qué te gustaría ver hoy: camisas, jeans, pantalones o suéteres?"
	msgHandoff         = "Entendido, ya te pongo en contacto con uno de nuestros asesores. Te responderán personalmente en breve."
	msgUnresolved      = "No identifiqué el producto. Dime el número de la opción (1, 2 o 3) o envíame el link."
	msgAskQuantity     = "¿Cuántas unidades deseas? (por ejemplo: 1, 2 o 3)"
	msgAddedToCart     = "Agregado al carrito ✅"
	msgMoreOptions     = "Aquí tienes más opciones:"
	msgSomeOptions     = "Aquí tienes algunas opciones:"
	msgNoMoreOptions   = "Ya te mostré todas las opciones disponibles por ahora. ¿Quieres buscar algo diferente?"
	msgMoreNeedsTopic  = "Primero dime qué categoría te interesa (p. ej., camisas, jeans, pantalones) y te muestro opciones."
	msgNothingShown    = "Aún no te he mostrado opciones. ¿Qué te gustaría ver: camisas, jeans, pantalones o suéteres?"
	msgEmptyCartOrder  = "Aún no tienes productos en tu carrito. ¿Te muestro camisas o jeans?"
	msgNotInCart       = "No encontré ese producto en tu carrito."
	msgRemovedFromCart = "Listo, lo quité del carrito."
	msgQtyUpdated      = "Listo, actualicé la cantidad."
	msgAskName         = "¿Cómo te llamas? (nombre y apellido)"
	msgAskDelivery     = "¿Prefieres envío a domicilio o recoger en tienda?"
	msgAskAddress      = "¿Cuál es tu dirección de envío?"
	msgAskCity         = "¿En qué ciudad se realizará el envío?"
	msgAskPayment      = "¿Qué método de pago prefieres?\n- Transferencia (Bancolombia/Davivienda)\n- PayU (link de pago)\n- Pago en tienda"
	msgConfirmHint     = "Cuando quieras, escribe «confirmar pedido» para finalizar."
	msgConfirmInStore  = "¿Confirmamos el pedido?"
	msgCancelled       = "Entiendo, he cancelado %s. ¿Te gustaría ver otra prenda o necesitas ayuda con algo más?"
	msgCannotCancel    = "Tu pedido %s ya está confirmado y no se puede cancelar por este chat. Un asesor puede ayudarte con cualquier cambio."
	msgAlreadyConfirm  = "Tu pedido ya está confirmado con el número %s. ¿Quieres agregar algo más?"
	msgCourierChosen   = "Perfecto, te lo enviamos a domicilio."
	msgPickupChosen    = "Perfecto, recogerás tu pedido en %s."

	defaultBankAccounts = "Puedes pagar por transferencia a:\n- Bancolombia, cuenta de ahorros\n- Davivienda, cuenta de ahorros\nEnvíanos el comprobante por este chat."
)

func sizesPrompt(name string, sizes []string) string {
	return fmt.Sprintf("Para agregar «%s» necesito la talla: %s. ¿Cuál prefieres?", name, strings.Join(sizes, ", "))
}

func invalidSizePrompt(name string, sizes []string) string {
	return fmt.Sprintf("Para «%s» tengo %s. ¿Quieres elegir una de esas tallas?", name, strings.Join(sizes, ", "))
}

func askVariantPrompt(name string, sizes []string) string {
	return fmt.Sprintf("Para «%s», ¿qué talla prefieres? Opciones: %s", name, strings.Join(sizes, ", "))
}

func outOfRangePrompt(n int) string {
	return fmt.Sprintf("Por favor indícame un número entre 1 y %d de la lista que te mostré.", n)
}

func addedReply(c models.Cart) string {
	return msgAddedToCart + "\n\n" + cart.Text(c)
}

func productLines(products []models.Product) string {
	lines := make([]string, 0, len(products))
	for i, p := range products {
		line := fmt.Sprintf("%d. %s - %s", i+1, p.Name, utils.FormatCOP(p.Price))
		if p.URL != "" {
			line += " - " + p.URL
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return ""
	}
	return "- " + strings.Join(items, "\n- ")
}

func joinParts(parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, strings.TrimSpace(p))
		}
	}
	return strings.Join(kept, "\n\n")
}

func deliveryLabel(s *models.Session) string {
	switch s.DeliveryMethod {
	case models.DeliveryCourier:
		place := strings.TrimSpace(strings.Join(nonEmpty(s.Address, s.City), ", "))
		if place == "" {
			return "Envío a domicilio"
		}
		return "Envío a domicilio (" + place + ")"
	case models.DeliveryPickup:
		if s.PickupPoint == "" {
			return "Recoger en tienda"
		}
		return "Recoger en tienda (" + s.PickupPoint + ")"
	}
	return "Por definir"
}

func paymentLabel(method string) string {
	switch method {
	case models.PaymentTransfer:
		return "Transferencia"
	case models.PaymentPayU:
		return "PayU"
	case models.PaymentInStore:
		return "Pago en tienda"
	}
	return "Por definir"
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, strings.TrimSpace(v))
		}
	}
	return out
}

// orderLines renders the cart, or the single product of the older flow when the cart is empty.
func orderLines(s *models.Session, c models.Cart) string {
	if len(c) > 0 {
		return cart.Text(c)
	}
	if s.Product == "" {
		return cart.EmptyMessage
	}
	qty := s.Quantity
	if qty < 1 {
		qty = 1
	}
	line := fmt.Sprintf("%s x%d", s.Product, qty)
	if s.Size != "" {
		line = fmt.Sprintf("%s talla %s x%d", s.Product, s.Size, qty)
	}
	if s.UnitPrice > 0 {
		line += " - " + utils.FormatCOP(s.UnitPrice*float64(qty))
	}
	return line
}

func confirmationReply(code string, s *models.Session, c models.Cart) string {
	return fmt.Sprintf("¡Pedido confirmado!\n\nNúmero de confirmación: %s\n\nResumen:\n%s\n\nEntrega: %s\nPago: %s\n\n"+
		"Te contactaremos en breve para coordinar el siguiente paso. ¿Quieres agregar algo más?",
		code, orderLines(s, c), deliveryLabel(s), paymentLabel(s.PaymentMethod))
}

// staffOrderAlert is the message sent to the store team for a confirmed order or a handoff.
func staffOrderAlert(title string, s *models.Session, c models.Cart, extra string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📌 *%s*\n", title)
	fmt.Fprintf(&b, "Sesión: %s\n", s.SessionID)
	if s.Code() != "" {
		fmt.Fprintf(&b, "Pedido: %s\n", s.Code())
	}
	fmt.Fprintf(&b, "Cliente: %s\n", orDash(s.CustomerName))
	fmt.Fprintf(&b, "Teléfono: %s\n", orDash(s.Phone))
	fmt.Fprintf(&b, "Entrega: %s\n", deliveryLabel(s))
	fmt.Fprintf(&b, "Pago: %s\n", paymentLabel(s.PaymentMethod))
	fmt.Fprintf(&b, "\n%s", orderLines(s, c))
	if extra != "" {
		fmt.Fprintf(&b, "\n\n%s", extra)
	}
	return b.String()
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
