package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Order status values.
const (
	StatusPending   = "pendiente"
	StatusConfirmed = "confirmado"
	StatusCancelled = "cancelado"
	StatusExpired   = "expirado"
)

// Delivery methods.
const (
	DeliveryCourier = "domicilio"
	DeliveryPickup  = "recoger_en_tienda"
)

// Payment methods.
const (
	PaymentTransfer = "transferencia"
	PaymentPayU     = "payu"
	PaymentInStore  = "pago_en_tienda"
)

// Updatable column names.
const (
	FieldPhone              = "phone"
	FieldEmail              = "email"
	FieldCustomerName       = "customer_name"
	FieldProduct            = "product"
	FieldSize               = "size"
	FieldQuantity           = "quantity"
	FieldUnitPrice          = "unit_price"
	FieldSubtotal           = "subtotal"
	FieldDeliveryMethod     = "delivery_method"
	FieldAddress            = "address"
	FieldCity               = "city"
	FieldPickupPoint        = "pickup_point"
	FieldPaymentMethod      = "payment_method"
	FieldNotes              = "notes"
	FieldStatus             = "status"
	FieldGreetingSent       = "greeting_sent"
	FieldPrivacyNoticeShown = "privacy_notice_shown"
	FieldLastActivity       = "last_activity"
)

// Session is the persisted state of one conversation, keyed by SessionID.
type Session struct {
	ID        uint   `json:"-" gorm:"primaryKey"`
	SessionID string `json:"session_id" gorm:"uniqueIndex;size:128;not null"`

	Phone        string `json:"phone"`
	Email        string `json:"email"`
	CustomerName string `json:"customer_name"`

	// Product, Size and Quantity describe the single-item flow that predates the cart.
	Product          string  `json:"product"`
	Size             string  `json:"size"`
	Quantity         int     `json:"quantity"`
	UnitPrice        float64 `json:"unit_price"`
	Subtotal         float64 `json:"subtotal"`
	DeliveryMethod   string  `json:"delivery_method"`
	Address          string  `json:"address"`
	City             string  `json:"city"`
	PickupPoint      string  `json:"pickup_point"`
	PaymentMethod    string  `json:"payment_method"`
	Notes            string  `json:"notes"`
	Status           string  `json:"status" gorm:"size:16;index;not null;default:pendiente"`
	ConfirmationCode *string `json:"confirmation_code" gorm:"uniqueIndex;size:64"`

	GreetingSent       bool `json:"greeting_sent" gorm:"not null;default:false"`
	PrivacyNoticeShown bool `json:"privacy_notice_shown" gorm:"not null;default:false"`

	CartJSON        string `json:"-" gorm:"column:cart_json;type:text;not null;default:'[]'"`
	PreferencesJSON string `json:"-" gorm:"column:preferences_json;type:text;not null;default:'{}'"`
	SuggestionsJSON string `json:"-" gorm:"column:suggestions_json;type:text;not null;default:'{}'"`
	ContextJSON     string `json:"-" gorm:"column:context_json;type:text;not null;default:'{}'"`

	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity" gorm:"index;not null"`
}

// TableName pins the table created by the SQL migrations.
func (Session) TableName() string {
	return "sessions"
}

// NewSession returns a fresh record with empty blobs.
func NewSession(sessionID string, now time.Time) *Session {
	s := &Session{
		SessionID:       sessionID,
		Status:          StatusPending,
		CartJSON:        "[]",
		PreferencesJSON: "{}",
		SuggestionsJSON: "{}",
		ContextJSON:     "{}",
		CreatedAt:       now,
		LastActivity:    now,
	}
	if strings.HasPrefix(sessionID, "cliente_") {
		s.Phone = strings.TrimPrefix(sessionID, "cliente_")
	}
	return s
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	c := *s
	if s.ConfirmationCode != nil {
		code := *s.ConfirmationCode
		c.ConfirmationCode = &code
	}
	return &c
}

// Code returns the confirmation code or "".
func (s *Session) Code() string {
	if s.ConfirmationCode == nil {
		return ""
	}
	return *s.ConfirmationCode
}

// IsConfirmed reports whether a confirmation code has been assigned.
func (s *Session) IsConfirmed() bool {
	return s.Code() != ""
}

// IsUpdatableField reports whether field may be written through a single-field update.
func IsUpdatableField(field string) bool {
	switch field {
	case FieldPhone, FieldEmail, FieldCustomerName, FieldProduct, FieldSize, FieldQuantity,
		FieldUnitPrice, FieldSubtotal, FieldDeliveryMethod, FieldAddress, FieldCity,
		FieldPickupPoint, FieldPaymentMethod, FieldNotes, FieldStatus, FieldGreetingSent,
		FieldPrivacyNoticeShown, FieldLastActivity,
		BlobCart.Column(), BlobPreferences.Column(), BlobSuggestions.Column(), BlobContext.Column():
		return true
	}
	return false
}

// Set assigns one column by name, converting value to the column type.
func (s *Session) Set(field string, value interface{}) error {
	var err error
	switch field {
	case FieldPhone:
		s.Phone, err = asString(value)
	case FieldEmail:
		s.Email, err = asString(value)
	case FieldCustomerName:
		s.CustomerName, err = asString(value)
	case FieldProduct:
		s.Product, err = asString(value)
	case FieldSize:
		s.Size, err = asString(value)
	case FieldQuantity:
		s.Quantity, err = asInt(value)
	case FieldUnitPrice:
		s.UnitPrice, err = asFloat(value)
	case FieldSubtotal:
		s.Subtotal, err = asFloat(value)
	case FieldDeliveryMethod:
		s.DeliveryMethod, err = asString(value)
	case FieldAddress:
		s.Address, err = asString(value)
	case FieldCity:
		s.City, err = asString(value)
	case FieldPickupPoint:
		s.PickupPoint, err = asString(value)
	case FieldPaymentMethod:
		s.PaymentMethod, err = asString(value)
	case FieldNotes:
		s.Notes, err = asString(value)
	case FieldStatus:
		s.Status, err = asString(value)
	case FieldGreetingSent:
		s.GreetingSent, err = asBool(value)
	case FieldPrivacyNoticeShown:
		s.PrivacyNoticeShown, err = asBool(value)
	case FieldLastActivity:
		t, ok := value.(time.Time)
		if !ok {
			return fmt.Errorf("field %s: expected time.Time, got %T", field, value)
		}
		s.LastActivity = t
	case BlobCart.Column():
		s.CartJSON, err = asString(value)
	case BlobPreferences.Column():
		s.PreferencesJSON, err = asString(value)
	case BlobSuggestions.Column():
		s.SuggestionsJSON, err = asString(value)
	case BlobContext.Column():
		s.ContextJSON, err = asString(value)
	default:
		return fmt.Errorf("unknown field %q", field)
	}
	if err != nil {
		return fmt.Errorf("field %s: %w", field, err)
	}
	return nil
}

// DecodeBlob unmarshals the named blob column into dst; an empty column leaves dst untouched.
func (s *Session) DecodeBlob(b Blob, dst interface{}) error {
	raw := s.blobRaw(b)
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("decode %s blob: %w", b, err)
	}
	return nil
}

func (s *Session) blobRaw(b Blob) string {
	switch b {
	case BlobCart:
		return s.CartJSON
	case BlobPreferences:
		return s.PreferencesJSON
	case BlobSuggestions:
		return s.SuggestionsJSON
	case BlobContext:
		return s.ContextJSON
	}
	return ""
}

func asString(v interface{}) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case nil:
		return "", nil
	case fmt.Stringer:
		return x.String(), nil
	}
	return "", fmt.Errorf("expected string, got %T", v)
}

func asInt(v interface{}) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case float64:
		return int(x), nil
	case nil:
		return 0, nil
	}
	return 0, fmt.Errorf("expected int, got %T", v)
}

func asFloat(v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case nil:
		return 0, nil
	}
	return 0, fmt.Errorf("expected number, got %T", v)
}

func asBool(v interface{}) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case nil:
		return false, nil
	}
	return false, fmt.Errorf("expected bool, got %T", v)
}
