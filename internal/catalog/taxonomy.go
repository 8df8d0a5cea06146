package catalog

import (
	"regexp"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/Ananth-NQI/cassany-backend/internal/models"
	"github.com/Ananth-NQI/cassany-backend/internal/utils"
)

const minFuzzyToken = 4

var (
	wordRe   = regexp.MustCompile(`[a-z]+`)
	sleeveRe = regexp.MustCompile(`\bmanga\s+(corta|larga)\b`)
	useRe    = regexp.MustCompile(`\b(oficina|formal|casual|evento|trabajo)\b`)
	colorRe  = regexp.MustCompile(`\b(blanco|blanca|negro|negra|azul|azules|beige|gris|rojo|verde|cafe|marron|vinotinto|mostaza|crema|turquesa|celeste|lila|morado|rosa|rosado|amarillo|naranja)\b`)
)

// Taxonomy maps shopper words to store categories.
type Taxonomy struct {
	ids      map[string]int
	synonyms map[string]string
	universe []string
}

// NewTaxonomy builds a taxonomy from category ids and synonym overrides.
func NewTaxonomy(ids map[string]int, synonyms map[string]string) *Taxonomy {
	t := &Taxonomy{
		ids:      make(map[string]int, len(ids)),
		synonyms: make(map[string]string, len(synonyms)),
	}
	for k, v := range ids {
		t.ids[utils.Normalize(k)] = v
	}
	for k, v := range synonyms {
		t.synonyms[utils.Normalize(k)] = utils.Normalize(v)
	}
	for k := range t.ids {
		t.universe = append(t.universe, k)
	}
	for k := range t.synonyms {
		t.universe = append(t.universe, k)
	}
	sort.Strings(t.universe)
	return t
}

// CategoryID returns the catalog id of a canonical category.
func (t *Taxonomy) CategoryID(category string) (int, bool) {
	id, ok := t.ids[category]
	return id, ok
}

func (t *Taxonomy) canonical(word string) (string, bool) {
	if c, ok := t.synonyms[word]; ok {
		return c, true
	}
	if _, ok := t.ids[word]; ok {
		return word, true
	}
	return "", false
}

// DetectCategory finds the store category named in text. Exact words and synonyms win;
// otherwise a word of at least four letters may fuzzy-match a slightly longer category name.
func (t *Taxonomy) DetectCategory(text string) (string, bool) {
	norm := utils.Normalize(text)
	words := wordRe.FindAllString(norm, -1)
	for _, w := range words {
		if c, ok := t.canonical(w); ok {
			return c, true
		}
	}
	if strings.Contains(norm, "manga corta") || strings.Contains(norm, "manga larga") {
		if c, ok := t.canonical("camisa"); ok {
			return c, true
		}
	}
	for _, w := range words {
		if len(w) < minFuzzyToken {
			continue
		}
		for _, m := range fuzzy.Find(w, t.universe) {
			if len(m.Str) > len(w)+2 {
				continue
			}
			if c, ok := t.canonical(m.Str); ok {
				return c, true
			}
		}
	}
	return "", false
}

// DetectAttributes extracts catalog filters mentioned in text.
func DetectAttributes(text string) models.Filters {
	norm := utils.Normalize(text)
	var f models.Filters
	if m := sleeveRe.FindStringSubmatch(norm); m != nil {
		f.Sleeve = m[1]
	}
	if strings.Contains(norm, "guayabera") {
		f.Subtype = "guayabera"
	}
	if m := colorRe.FindStringSubmatch(norm); m != nil {
		f.Color = m[1]
	}
	if m := useRe.FindStringSubmatch(norm); m != nil {
		f.Use = m[1]
	}
	if s, ok := FindSize(text); ok {
		f.Size = s
	}
	return f
}
