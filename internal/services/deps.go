package services

import (
	"context"

	"github.com/Ananth-NQI/cassany-backend/internal/catalog"
	"github.com/Ananth-NQI/cassany-backend/internal/models"
)

// Classifier intents.
const (
	IntentPayment = "payment"
	IntentConfirm = "confirm"
	IntentNone    = "none"
)

// CatalogSearcher finds products and recognizes category names.
type CatalogSearcher interface {
	Search(ctx context.Context, q catalog.Query) (catalog.Result, error)
	DetectCategory(text string) (string, bool)
}

// IntentResult is the output of the payment/confirmation classifier. Method is empty
// when no payment method was recognized.
type IntentResult struct {
	Intent     string
	Method     string
	Confidence float64
}

// IntentClassifier labels utterances the deterministic rules could not place.
type IntentClassifier interface {
	ClassifyPaymentConfirm(ctx context.Context, text string) (IntentResult, error)
}

// DialogueRequest is the context handed to the completion service.
type DialogueRequest struct {
	Session          *models.Session
	Cart             models.Cart
	Preferences      models.Preferences
	Candidates       []models.Product
	CandidateMessage string
	PickupPoints     []string
	Text             string
}

// DialogueResponse is a structured completion.
type DialogueResponse struct {
	Fields  map[string]interface{}
	Reply   string
	Actions []Action
}

// DialogueCompleter produces the free-form part of a turn.
type DialogueCompleter interface {
	CompleteDialogue(ctx context.Context, req DialogueRequest) (*DialogueResponse, error)
}

// OrderSyncer pushes a confirmed order to the CRM.
type OrderSyncer interface {
	SyncOrder(ctx context.Context, session *models.Session, cart models.Cart) error
}

// MessageSender delivers a text message to a contact.
type MessageSender interface {
	SendText(ctx context.Context, to, body string) error
}
