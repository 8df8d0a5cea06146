package services

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Ananth-NQI/cassany-backend/internal/models"
)

// ActionType names a structured command.
type ActionType string

// Action vocabulary.
const (
	ActionShowCart       ActionType = "SHOW_CART"
	ActionAddToCart      ActionType = "ADD_TO_CART"
	ActionRemoveFromCart ActionType = "REMOVE_FROM_CART"
	ActionUpdateQty      ActionType = "UPDATE_QTY"
	ActionAskVariant     ActionType = "ASK_VARIANT"
	ActionClarify        ActionType = "CLARIFY"
	ActionRememberPref   ActionType = "REMEMBER_PREF"
	ActionCacheList      ActionType = "CACHE_LIST"
)

var legacyActionNames = map[string]ActionType{
	"add_item":      ActionAddToCart,
	"add":           ActionAddToCart,
	"update_qty":    ActionUpdateQty,
	"update_item":   ActionUpdateQty,
	"remove_item":   ActionRemoveFromCart,
	"remove":        ActionRemoveFromCart,
	"show_cart":     ActionShowCart,
	"remember_pref": ActionRememberPref,
	"cache_list":    ActionCacheList,
	"ask_variant":   ActionAskVariant,
	"clarify":       ActionClarify,
}

// Known reports whether t belongs to the vocabulary.
func (t ActionType) Known() bool {
	switch t {
	case ActionShowCart, ActionAddToCart, ActionRemoveFromCart, ActionUpdateQty,
		ActionAskVariant, ActionClarify, ActionRememberPref, ActionCacheList:
		return true
	}
	return false
}

// Action is one structured command, emitted by a rule or by the completion service.
type Action struct {
	Type       ActionType       `json:"action"`
	ProductRef string           `json:"product_ref,omitempty"`
	SKU        string           `json:"sku,omitempty"`
	Size       string           `json:"size,omitempty"`
	Color      string           `json:"color,omitempty"`
	Qty        int              `json:"qty,omitempty"`
	Category   string           `json:"category,omitempty"`
	Question   string           `json:"question,omitempty"`
	Products   []models.Product `json:"products,omitempty"`
}

// UnmarshalJSON accepts the current shape ({"action": "ADD_TO_CART", "product_ref": "1"})
// and the older {"tipo": "add_item", "args": {...}} shape with Spanish argument names.
func (a *Action) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("action must be an object: %w", err)
	}
	params := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		params[strings.ToLower(k)] = v
	}
	if args, ok := params["args"].(map[string]interface{}); ok {
		for k, v := range args {
			params[strings.ToLower(k)] = v
		}
	}

	*a = Action{
		Type:       parseActionType(firstString(params, "action", "type", "tipo", "name")),
		ProductRef: firstString(params, "product_ref", "ref", "producto", "product_id", "indice", "index"),
		SKU:        firstString(params, "sku"),
		Size:       strings.ToUpper(firstString(params, "size", "talla")),
		Color:      firstString(params, "color", "color_favorito"),
		Qty:        firstInt(params, "qty", "quantity", "cantidad"),
		Category:   firstString(params, "category", "categoria"),
		Question:   firstString(params, "question", "pregunta", "text", "texto"),
	}
	if list, ok := firstValue(params, "products", "productos").([]interface{}); ok {
		for _, item := range list {
			if obj, ok := item.(map[string]interface{}); ok {
				a.Products = append(a.Products, productFromMap(obj))
			}
		}
	}
	return nil
}

func parseActionType(name string) ActionType {
	name = strings.TrimSpace(name)
	if t, ok := legacyActionNames[strings.ToLower(name)]; ok {
		return t
	}
	return ActionType(strings.ToUpper(name))
}

func firstValue(m map[string]interface{}, keys ...string) interface{} {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstString(m map[string]interface{}, keys ...string) string {
	switch v := firstValue(m, keys...).(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

func firstInt(m map[string]interface{}, keys ...string) int {
	switch v := firstValue(m, keys...).(type) {
	case float64:
		return int(v)
	case string:
		if n, ok := ParseQuantity(v); ok {
			return n
		}
	}
	return 0
}

func firstFloat(m map[string]interface{}, keys ...string) float64 {
	switch v := firstValue(m, keys...).(type) {
	case float64:
		return v
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err == nil {
			return f
		}
	}
	return 0
}

func productFromMap(m map[string]interface{}) models.Product {
	p := models.Product{
		SKU:      firstString(m, "sku"),
		Name:     firstString(m, "name", "nombre"),
		Category: firstString(m, "category", "categoria"),
		Price:    firstFloat(m, "price", "precio"),
		URL:      firstString(m, "url", "link"),
		Color:    firstString(m, "color"),
	}
	if sizes, ok := firstValue(m, "sizes", "tallas", "tallas_disponibles").([]interface{}); ok {
		for _, s := range sizes {
			if str, ok := s.(string); ok {
				p.Sizes = append(p.Sizes, str)
			}
		}
	}
	return p
}

// ParseActions decodes a JSON list of actions, skipping entries that are not objects.
func ParseActions(data []byte) []Action {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		var single Action
		if json.Unmarshal(data, &single) == nil && single.Type != "" {
			return []Action{single}
		}
		return nil
	}
	actions := make([]Action, 0, len(items))
	for _, item := range items {
		var a Action
		if err := json.Unmarshal(item, &a); err != nil {
			continue
		}
		actions = append(actions, a)
	}
	return actions
}
