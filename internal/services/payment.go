package services

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/cassany-backend/internal/models"
)

// validPaymentMethod reports whether method is one of the accepted payment methods.
func validPaymentMethod(method string) bool {
	switch method {
	case models.PaymentTransfer, models.PaymentPayU, models.PaymentInStore:
		return true
	}
	return false
}

// choosePayment stores the payment method and answers with its instructions. Paying in
// store moves the order to awaiting confirmation; the other methods wait for an
// explicit confirmation phrase.
func (t *turn) choosePayment(method string) (string, error) {
	if t.session.IsConfirmed() {
		return fmt.Sprintf(msgAlreadyConfirm, t.session.Code()), nil
	}
	if !validPaymentMethod(method) {
		method = models.PaymentInStore
	}
	cs := changeSet{models.FieldPaymentMethod: method}
	inStore := method != models.PaymentTransfer && method != models.PaymentPayU
	if inStore {
		t.dctx.AwaitingConfirmation = true
		if err := cs.blob(models.BlobContext, t.dctx); err != nil {
			return "", err
		}
	}
	if err := t.setFields(cs); err != nil {
		return "", err
	}
	t.log.Info("Payment method set", zap.String("payment_method", method))

	switch method {
	case models.PaymentTransfer:
		return t.paymentFollowUp("Perfecto, pago por transferencia.\n\n" + t.a.opts.BankAccounts)
	case models.PaymentPayU:
		text := "Perfecto, pago con PayU."
		if t.a.opts.PayULink != "" {
			text += "\n\nPuedes pagar en línea aquí: " + t.a.opts.PayULink
		} else {
			text += " Te enviaremos el link de pago en breve."
		}
		return t.paymentFollowUp(text)
	}

	text := "Perfecto, pagas al recoger en cualquiera de nuestras tiendas:\n" +
		strings.Join(t.a.profile.PickupPoints, "\n")
	return joinParts(text, msgConfirmInStore), nil
}

func (t *turn) paymentFollowUp(text string) (string, error) {
	q, err := t.nextQuestion()
	if err != nil {
		return "", err
	}
	if q == "" && t.hasItems() {
		q = msgConfirmHint
	}
	return joinParts(text, q), nil
}

// confirmOrder finalizes the order. Repeated confirmations return the existing code.
func (t *turn) confirmOrder() (string, error) {
	if t.dctx.AwaitingConfirmation {
		t.dctx.AwaitingConfirmation = false
		if err := t.saveContext(); err != nil {
			return "", err
		}
	}
	if t.session.IsConfirmed() {
		return fmt.Sprintf(msgAlreadyConfirm, t.session.Code()), nil
	}
	if !t.hasItems() {
		return msgEmptyCartOrder, nil
	}
	if t.a.finalizer == nil {
		return "", fmt.Errorf("no finalizer configured")
	}
	code, created, err := t.a.finalizer.Confirm(t.ctx, t.session, t.cart)
	if err != nil {
		return "", err
	}
	if !created {
		return fmt.Sprintf(msgAlreadyConfirm, code), nil
	}
	return confirmationReply(code, t.session, t.cart), nil
}
