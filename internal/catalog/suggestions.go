package catalog

import "github.com/Ananth-NQI/cassany-backend/internal/models"

// PageSize is the number of suggestions shown at once.
const PageSize = 3

// Remember overwrites the cached list and records the query that produced it.
func Remember(c *models.SuggestionCache, category string, filters models.Filters, products []models.Product) {
	c.Products = append([]models.Product(nil), products...)
	c.Category = category
	c.Filters = filters
}

// AppendSeenURLs adds urls to the seen set, skipping blanks and duplicates.
func AppendSeenURLs(c *models.SuggestionCache, urls ...string) {
	seen := make(map[string]bool, len(c.SeenURLs))
	for _, u := range c.SeenURLs {
		seen[u] = true
	}
	for _, u := range urls {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		c.SeenURLs = append(c.SeenURLs, u)
	}
}

// Page returns the first PageSize cached products.
func Page(c models.SuggestionCache) []models.Product {
	if len(c.Products) <= PageSize {
		return c.Products
	}
	return c.Products[:PageSize]
}

// More returns the products beyond the first page and stores them as the new list.
// It returns nil once the list is exhausted.
func More(c *models.SuggestionCache) []models.Product {
	if len(c.Products) <= PageSize {
		return nil
	}
	rest := append([]models.Product(nil), c.Products[PageSize:]...)
	c.Products = rest
	return Page(*c)
}
