package catalog

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Ananth-NQI/cassany-backend/internal/models"
	"github.com/Ananth-NQI/cassany-backend/internal/utils"
)

var ordinalWords = map[string]int{
	"primer": 1, "primera": 1, "primero": 1,
	"segundo": 2, "segunda": 2,
	"tercer": 3, "tercero": 3, "tercera": 3,
	"cuarto": 4, "cuarta": 4,
	"quinto": 5, "quinta": 5,
	"sexto": 6, "sexta": 6,
	"septimo": 7, "septima": 7,
}

var cardinalWords = map[string]int{
	"uno": 1, "una": 1, "dos": 2, "tres": 3, "cuatro": 4, "cinco": 5, "seis": 6, "siete": 7,
}

var (
	ordinalRe  = regexp.MustCompile(`\b(primer|primera|primero|segundo|segunda|tercer|tercero|tercera|cuarto|cuarta|quinto|quinta|sexto|sexta|septimo|septima)\b`)
	cardinalRe = regexp.MustCompile(`\b(?:la|el|opcion|numero)\s+(uno|una|dos|tres|cuatro|cinco|seis|siete)\b`)
)

// OrdinalIndex maps "la segunda", "el tercero" or "la opcion dos" to a 1-based index.
// Bare cardinal words are ignored so "dos camisas" is not read as a selection.
func OrdinalIndex(text string) (int, bool) {
	t := utils.Normalize(text)
	if m := ordinalRe.FindStringSubmatch(t); m != nil {
		return ordinalWords[m[1]], true
	}
	if m := cardinalRe.FindStringSubmatch(t); m != nil {
		return cardinalWords[m[1]], true
	}
	return 0, false
}

// Resolve maps a free-form reference onto a cached product.
func Resolve(ref string, products []models.Product) (models.Product, int, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		if len(products) == 1 {
			return products[0], 0, true
		}
		return models.Product{}, -1, false
	}
	if n, err := strconv.Atoi(ref); err == nil {
		if n >= 1 && n <= len(products) {
			return products[n-1], n - 1, true
		}
		return models.Product{}, -1, false
	}
	if n, ok := OrdinalIndex(ref); ok {
		if n <= len(products) {
			return products[n-1], n - 1, true
		}
		return models.Product{}, -1, false
	}
	for i, p := range products {
		if (p.URL != "" && p.URL == ref) || (p.SKU != "" && p.SKU == ref) || strings.EqualFold(p.Name, ref) {
			return p, i, true
		}
	}
	return models.Product{}, -1, false
}
