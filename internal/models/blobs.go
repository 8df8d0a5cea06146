package models

// Blob names one of the JSON sub-records stored on a Session.
type Blob string

const (
	BlobCart        Blob = "cart"
	BlobPreferences Blob = "preferences"
	BlobSuggestions Blob = "suggestions"
	BlobContext     Blob = "context"
)

// Column is the sessions column holding the blob.
func (b Blob) Column() string {
	return string(b) + "_json"
}

// LineItem is one cart row. (SKU, Size, Color) identifies the row.
type LineItem struct {
	SKU       string  `json:"sku"`
	Name      string  `json:"name"`
	Category  string  `json:"category,omitempty"`
	Size      string  `json:"size,omitempty"`
	Color     string  `json:"color,omitempty"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// Cart is the ordered list of line items of a session.
type Cart []LineItem

// Preferences are remembered shopper tastes.
type Preferences struct {
	PreferredSizes map[string]string `json:"preferred_sizes,omitempty"`
	FavoriteColor  string            `json:"favorite_color,omitempty"`
}

// RememberSize stores the preferred size for a category.
func (p *Preferences) RememberSize(category, size string) {
	if category == "" || size == "" {
		return
	}
	if p.PreferredSizes == nil {
		p.PreferredSizes = make(map[string]string)
	}
	p.PreferredSizes[category] = size
}

// Product is a catalog entry as shown to the shopper.
type Product struct {
	SKU      string   `json:"sku"`
	Name     string   `json:"name"`
	Category string   `json:"category,omitempty"`
	Price    float64  `json:"price"`
	URL      string   `json:"url,omitempty"`
	Sizes    []string `json:"sizes,omitempty"`
	Color    string   `json:"color,omitempty"`
}

// Filters narrow a catalog query.
type Filters struct {
	Sleeve  string `json:"sleeve,omitempty"`
	Subtype string `json:"subtype,omitempty"`
	Color   string `json:"color,omitempty"`
	Size    string `json:"size,omitempty"`
	Use     string `json:"use,omitempty"`
}

// IsZero reports whether no filter is set.
func (f Filters) IsZero() bool {
	return f == Filters{}
}

// Merge overlays the non-empty values of o onto f.
func (f Filters) Merge(o Filters) Filters {
	if o.Sleeve != "" {
		f.Sleeve = o.Sleeve
	}
	if o.Subtype != "" {
		f.Subtype = o.Subtype
	}
	if o.Color != "" {
		f.Color = o.Color
	}
	if o.Size != "" {
		f.Size = o.Size
	}
	if o.Use != "" {
		f.Use = o.Use
	}
	return f
}

// SuggestionCache holds the last product list shown and how it was produced.
type SuggestionCache struct {
	Products []Product `json:"products,omitempty"`
	Category string    `json:"category,omitempty"`
	Filters  Filters   `json:"filters"`
	SeenURLs []string  `json:"seen_urls,omitempty"`
}

// PendingVariant waits for a size for a referenced product.
type PendingVariant struct {
	ProductRef string `json:"product_ref"`
	SKU        string `json:"sku"`
	Qty        int    `json:"qty"`
}

// AwaitingQty waits for a unit count for a referenced product.
type AwaitingQty struct {
	ProductRef string `json:"product_ref"`
	SKU        string `json:"sku"`
}

// Selection records a product the shopper picked from a list.
type Selection struct {
	Index   int     `json:"index"`
	Product Product `json:"product"`
}

const maxSelections = 10

// DialogueContext is the ephemeral slot-filling state of a session.
type DialogueContext struct {
	PendingVariant       *PendingVariant `json:"pending_variant,omitempty"`
	AwaitingQty          *AwaitingQty    `json:"awaiting_qty,omitempty"`
	Selections           []Selection     `json:"selections,omitempty"`
	AwaitingConfirmation bool            `json:"awaiting_confirmation,omitempty"`
}

// SetPendingVariant activates the size slot and clears the quantity slot.
func (c *DialogueContext) SetPendingVariant(pv PendingVariant) {
	if pv.Qty < 1 {
		pv.Qty = 1
	}
	c.PendingVariant = &pv
	c.AwaitingQty = nil
}

// SetAwaitingQty activates the quantity slot and clears the size slot.
func (c *DialogueContext) SetAwaitingQty(aq AwaitingQty) {
	c.AwaitingQty = &aq
	c.PendingVariant = nil
}

// ClearSlots drops both slot states.
func (c *DialogueContext) ClearSlots() {
	c.PendingVariant = nil
	c.AwaitingQty = nil
}

// RememberSelection appends to the selection history, keeping the most recent entries.
func (c *DialogueContext) RememberSelection(p Product, index int) {
	c.Selections = append(c.Selections, Selection{Index: index, Product: p})
	if len(c.Selections) > maxSelections {
		c.Selections = c.Selections[len(c.Selections)-maxSelections:]
	}
}

// LastSelection returns the most recent selection.
func (c *DialogueContext) LastSelection() (Selection, bool) {
	if len(c.Selections) == 0 {
		return Selection{}, false
	}
	return c.Selections[len(c.Selections)-1], true
}
