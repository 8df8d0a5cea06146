package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Ananth-NQI/cassany-backend/internal/cart"
	"github.com/Ananth-NQI/cassany-backend/internal/models"
	"github.com/Ananth-NQI/cassany-backend/internal/utils"
)

const (
	hubSpotBaseURL = "https://api.hubapi.com"
	hubSpotTimeout = 10 * time.Second
)

// HubSpotSyncer upserts the contact of a confirmed order in HubSpot CRM.
type HubSpotSyncer struct {
	baseURL string
	token   string
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewHubSpotSyncer creates a syncer. An empty token makes SyncOrder a no-op.
func NewHubSpotSyncer(token string, ratePerSec float64, log *zap.Logger) *HubSpotSyncer {
	if ratePerSec <= 0 {
		ratePerSec = 5
	}
	return &HubSpotSyncer{
		baseURL: hubSpotBaseURL,
		token:   token,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), 1),
		log:     log,
	}
}

// WithBaseURL points the syncer at another API host.
func (h *HubSpotSyncer) WithBaseURL(baseURL string) *HubSpotSyncer {
	h.baseURL = strings.TrimRight(baseURL, "/")
	return h
}

// ContactProperties maps an order onto HubSpot contact properties. The phone gets the
// Colombian prefix and a synthetic email is used when none was given.
func ContactProperties(s *models.Session, c models.Cart) map[string]string {
	phone := utils.NormalizePhone(firstNonEmpty(s.Phone, strings.TrimPrefix(s.SessionID, "cliente_")))
	email := strings.TrimSpace(s.Email)
	if email == "" {
		local := phone
		if local == "" {
			local = "sin_telefono"
		}
		email = local + "@cassany.co"
	}

	product, size, qty := s.Product, s.Size, s.Quantity
	if len(c) > 0 {
		names := make([]string, 0, len(c))
		sizes := make([]string, 0, len(c))
		for _, it := range c {
			names = append(names, it.Name)
			if it.Size != "" {
				sizes = append(sizes, it.Size)
			}
		}
		product = strings.Join(names, "; ")
		size = strings.Join(sizes, "; ")
		qty = cart.Count(c)
	}

	props := map[string]string{
		"email":                          email,
		"firstname":                      firstNonEmpty(strings.TrimSpace(s.CustomerName), "Cliente"),
		"phone":                          phone,
		"address":                        strings.TrimSpace(s.Address),
		"city":                           strings.TrimSpace(s.City),
		"custom_cas_producto":            product,
		"custom_cas_talla":               size,
		"custom_cas_cantidad":            strconv.Itoa(qty),
		"custom_cas_metodo_pago":         s.PaymentMethod,
		"custom_cas_metodo_entrega":      strings.ToLower(s.DeliveryMethod),
		"custom_cas_numero_confirmacion": s.Code(),
		"custom_cas_estado":              s.Status,
	}
	if s.DeliveryMethod == models.DeliveryPickup && s.PickupPoint != "" {
		props["custom_cas_punto_de_venta"] = s.PickupPoint
	}
	return props
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// SyncOrder searches the contact by email or phone, then updates or creates it.
func (h *HubSpotSyncer) SyncOrder(ctx context.Context, s *models.Session, c models.Cart) error {
	if h.token == "" {
		h.log.Debug("HubSpot sync skipped: no token", zap.String("session_id", s.SessionID))
		return nil
	}
	props := ContactProperties(s, c)

	contactID, err := h.searchContact(ctx, props["email"], props["phone"])
	if err != nil {
		return err
	}
	body := map[string]interface{}{"properties": props}
	if contactID != "" {
		if _, err := h.call(ctx, fiber.MethodPatch, "/crm/v3/objects/contacts/"+contactID, body); err != nil {
			return err
		}
		h.log.Info("HubSpot contact updated", zap.String("contact_id", contactID), zap.String("session_id", s.SessionID))
		return nil
	}

	resp, err := h.call(ctx, fiber.MethodPost, "/crm/v3/objects/contacts", body)
	if err != nil {
		return err
	}
	var created struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(resp, &created)
	h.log.Info("HubSpot contact created", zap.String("contact_id", created.ID), zap.String("session_id", s.SessionID))
	return nil
}

func (h *HubSpotSyncer) searchContact(ctx context.Context, email, phone string) (string, error) {
	filter := func(prop, value string) map[string]interface{} {
		return map[string]interface{}{
			"filters": []map[string]string{{"propertyName": prop, "operator": "EQ", "value": value}},
		}
	}
	query := map[string]interface{}{
		"filterGroups": []map[string]interface{}{filter("email", email), filter("phone", phone)},
		"properties":   []string{"email", "phone"},
		"limit":        1,
	}
	resp, err := h.call(ctx, fiber.MethodPost, "/crm/v3/objects/contacts/search", query)
	if err != nil {
		return "", err
	}
	var result struct {
		Results []struct {
			ID string `json:"id"`
		} `json:"results"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return "", fmt.Errorf("hubspot search: decode: %w", err)
	}
	if len(result.Results) == 0 {
		return "", nil
	}
	return result.Results[0].ID, nil
}

func (h *HubSpotSyncer) call(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	url := h.baseURL + path
	var agent *fiber.Agent
	switch method {
	case fiber.MethodPatch:
		agent = fiber.Patch(url)
	default:
		agent = fiber.Post(url)
	}
	agent.Set(fiber.HeaderAuthorization, "Bearer "+h.token)
	agent.Timeout(hubSpotTimeout)
	agent.JSON(body)

	code, resp, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, fmt.Errorf("hubspot %s %s: %w", method, path, errs[0])
	}
	if code < 200 || code >= 300 {
		return nil, fmt.Errorf("hubspot %s %s: status %d: %s", method, path, code, truncate(string(resp), 300))
	}
	return resp, nil
}
