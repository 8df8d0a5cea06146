package catalog

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Ananth-NQI/cassany-backend/internal/models"
	"github.com/Ananth-NQI/cassany-backend/internal/utils"
)

const (
	// NoCategoryMessage is returned when no category could be detected in the query.
	NoCategoryMessage = "No detecté ninguna categoría concreta."

	defaultLimit    = 3
	categoryFetch   = 50
	guayaberaFilter = "guayabera"
	shirtCategory   = "camisas"
)

// Query describes a catalog search.
type Query struct {
	Text        string
	Category    string
	Filters     models.Filters
	Limit       int
	ExcludeURLs []string
}

// Result is a search outcome. When Products is empty Message explains why.
type Result struct {
	Category string
	Filters  models.Filters
	Products []models.Product
	Message  string
}

// Searcher finds in-stock products for shopper queries.
type Searcher struct {
	source   ProductSource
	taxonomy *Taxonomy
	log      *zap.Logger
	group    singleflight.Group
}

// NewSearcher creates a searcher over source.
func NewSearcher(source ProductSource, taxonomy *Taxonomy, log *zap.Logger) *Searcher {
	return &Searcher{source: source, taxonomy: taxonomy, log: log}
}

// DetectCategory finds the store category named in text.
func (s *Searcher) DetectCategory(text string) (string, bool) {
	return s.taxonomy.DetectCategory(text)
}

// Search runs q. Backend failures are returned as errors; a lack of stock is a Message.
func (s *Searcher) Search(ctx context.Context, q Query) (Result, error) {
	category := q.Category
	if category == "" {
		c, ok := s.taxonomy.DetectCategory(q.Text)
		if !ok {
			return Result{Message: NoCategoryMessage}, nil
		}
		category = c
	}
	filters := DetectAttributes(q.Text).Merge(q.Filters)
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	exclude := make(map[string]bool, len(q.ExcludeURLs))
	for _, u := range q.ExcludeURLs {
		exclude[u] = true
	}

	base, err := s.fetchCategory(ctx, category)
	if err != nil {
		return Result{}, err
	}
	candidates := filterProducts(base, filters, exclude)

	if len(candidates) == 0 && filters.Subtype == guayaberaFilter && category != shirtCategory {
		shirts, err := s.fetchCategory(ctx, shirtCategory)
		if err != nil {
			return Result{}, err
		}
		candidates = filterProducts(shirts, filters, exclude)
	}

	res := Result{Category: category, Filters: filters}
	if len(candidates) == 0 {
		res.Message = fmt.Sprintf("No hay stock para «%s» en este momento.", describe(category, filters))
		return res, nil
	}
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	for _, p := range candidates {
		res.Products = append(res.Products, s.toProduct(ctx, category, p))
	}
	return res, nil
}

func (s *Searcher) fetchCategory(ctx context.Context, category string) ([]WooProduct, error) {
	id, ok := s.taxonomy.CategoryID(category)
	if !ok {
		return nil, nil
	}
	v, err, _ := s.group.Do(strconv.Itoa(id), func() (interface{}, error) {
		return s.source.ProductsByCategory(ctx, id, categoryFetch)
	})
	if errors.Is(err, ErrNotConfigured) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch category %s: %w", category, err)
	}
	return v.([]WooProduct), nil
}

func (s *Searcher) toProduct(ctx context.Context, category string, p WooProduct) models.Product {
	out := models.Product{
		SKU:      p.SKU,
		Name:     p.Name,
		Category: category,
		Price:    parsePrice(p.Price),
		URL:      p.Permalink,
		Sizes:    CleanSizes(attributeOptions(p.Attributes)),
	}
	if out.SKU == "" {
		out.SKU = SurrogateSKU(p.Permalink, p.Name)
	}
	if len(out.Sizes) == 0 && len(p.Variations) > 0 {
		variations, err := s.source.Variations(ctx, p.ID)
		if err != nil {
			s.log.Warn("Failed to load variations", zap.Int("product_id", p.ID), zap.Error(err))
		}
		var raw []string
		for _, v := range variations {
			if !v.InStock() {
				continue
			}
			raw = append(raw, variationSize(v.Attributes))
		}
		out.Sizes = CleanSizes(raw)
	}
	return out
}

// SurrogateSKU derives a stable identifier for products published without one.
func SurrogateSKU(url, name string) string {
	key := url
	if key == "" {
		key = name
	}
	sum := sha1.Sum([]byte(key))
	return "SKU-" + strings.ToUpper(hex.EncodeToString(sum[:])[:10])
}

func isSizeAttribute(name string) bool {
	n := utils.Normalize(name)
	return n == "talla" || n == "tallas" || n == "size" || n == "pa_talla"
}

func attributeOptions(attrs []WooAttribute) []string {
	for _, a := range attrs {
		if isSizeAttribute(a.Name) {
			return a.Options
		}
	}
	return nil
}

func variationSize(attrs []WooAttribute) string {
	for _, a := range attrs {
		if isSizeAttribute(a.Name) {
			return a.Option
		}
	}
	if len(attrs) > 0 {
		return attrs[0].Option
	}
	return ""
}

func productText(p WooProduct) string {
	parts := []string{p.Name}
	for _, c := range p.Categories {
		parts = append(parts, c.Name)
	}
	for _, t := range p.Tags {
		parts = append(parts, t.Name)
	}
	for _, a := range p.Attributes {
		parts = append(parts, a.Name)
		parts = append(parts, a.Options...)
	}
	return utils.Normalize(strings.Join(parts, " "))
}

func matchesFilters(text string, f models.Filters) bool {
	if f.Subtype == guayaberaFilter && !strings.Contains(text, guayaberaFilter) {
		return false
	}
	switch f.Sleeve {
	case "larga":
		if !strings.Contains(text, "manga larga") || strings.Contains(text, "manga corta") {
			return false
		}
	case "corta":
		if !strings.Contains(text, "manga corta") || strings.Contains(text, "manga larga") {
			return false
		}
	}
	if f.Color != "" && !strings.Contains(text, f.Color) {
		return false
	}
	return true
}

func filterProducts(items []WooProduct, f models.Filters, exclude map[string]bool) []WooProduct {
	var out []WooProduct
	for _, p := range items {
		if !p.InStock() || exclude[p.Permalink] {
			continue
		}
		if !matchesFilters(productText(p), f) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func describe(category string, f models.Filters) string {
	var parts []string
	if f.Subtype == guayaberaFilter {
		parts = append(parts, guayaberaFilter)
	}
	if f.Sleeve != "" {
		parts = append(parts, "manga "+f.Sleeve)
	}
	if f.Color != "" {
		parts = append(parts, f.Color)
	}
	if len(parts) == 0 {
		return category
	}
	return strings.Join(parts, " ")
}
