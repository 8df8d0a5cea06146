package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// WooProduct is the subset of a WooCommerce product used by the catalog.
type WooProduct struct {
	ID          int            `json:"id"`
	Name        string         `json:"name"`
	SKU         string         `json:"sku"`
	Price       string         `json:"price"`
	Permalink   string         `json:"permalink"`
	StockStatus string         `json:"stock_status"`
	Categories  []wooTerm      `json:"categories"`
	Tags        []wooTerm      `json:"tags"`
	Attributes  []WooAttribute `json:"attributes"`
	Variations  []int          `json:"variations"`
}

type wooTerm struct {
	Name string `json:"name"`
}

// WooAttribute is a product attribute with its options.
type WooAttribute struct {
	Name    string   `json:"name"`
	Options []string `json:"options"`
	Option  string   `json:"option"`
}

// WooVariation is one purchasable variation of a product.
type WooVariation struct {
	ID          int            `json:"id"`
	Price       string         `json:"price"`
	StockStatus string         `json:"stock_status"`
	Attributes  []WooAttribute `json:"attributes"`
}

// InStock reports whether the product can be sold now.
func (p WooProduct) InStock() bool {
	return (p.StockStatus == "" || p.StockStatus == "instock") && parsePrice(p.Price) > 0
}

// InStock reports whether the variation can be sold now.
func (v WooVariation) InStock() bool {
	return v.StockStatus == "instock" && parsePrice(v.Price) > 0
}

func parsePrice(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

// ErrNotConfigured is returned by a WooClient without credentials.
var ErrNotConfigured = errors.New("woocommerce credentials or base URL missing")

// ProductSource reads products from the store backend.
type ProductSource interface {
	ProductsByCategory(ctx context.Context, categoryID, perPage int) ([]WooProduct, error)
	Variations(ctx context.Context, productID int) ([]WooVariation, error)
}

// WooClient talks to the WooCommerce REST API (v3).
type WooClient struct {
	baseURL        string
	consumerKey    string
	consumerSecret string
	timeout        time.Duration
}

// NewWooClient creates a client for baseURL, e.g. https://shop.example/wp-json/wc/v3.
func NewWooClient(baseURL, key, secret string) *WooClient {
	return &WooClient{
		baseURL:        strings.TrimRight(baseURL, "/"),
		consumerKey:    key,
		consumerSecret: secret,
		timeout:        10 * time.Second,
	}
}

// Configured reports whether credentials and base URL are set.
func (w *WooClient) Configured() bool {
	return w.baseURL != "" && w.consumerKey != "" && w.consumerSecret != ""
}

func (w *WooClient) get(ctx context.Context, path string, params url.Values, dst interface{}) error {
	if !w.Configured() {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	params.Set("consumer_key", w.consumerKey)
	params.Set("consumer_secret", w.consumerSecret)

	agent := fiber.Get(w.baseURL + "/" + strings.TrimLeft(path, "/"))
	agent.QueryString(params.Encode())
	agent.Timeout(w.timeout)

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("woocommerce %s: %w", path, errs[0])
	}
	if code < 200 || code >= 300 {
		return fmt.Errorf("woocommerce %s: status %d", path, code)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("woocommerce %s: decode: %w", path, err)
	}
	return nil
}

// ProductsByCategory lists published products of a category.
func (w *WooClient) ProductsByCategory(ctx context.Context, categoryID, perPage int) ([]WooProduct, error) {
	params := url.Values{}
	params.Set("category", strconv.Itoa(categoryID))
	params.Set("per_page", strconv.Itoa(perPage))
	params.Set("status", "publish")

	var products []WooProduct
	if err := w.get(ctx, "products", params, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// Variations lists the variations of a product.
func (w *WooClient) Variations(ctx context.Context, productID int) ([]WooVariation, error) {
	params := url.Values{}
	params.Set("per_page", "50")

	var variations []WooVariation
	if err := w.get(ctx, fmt.Sprintf("products/%d/variations", productID), params, &variations); err != nil {
		return nil, err
	}
	return variations, nil
}
