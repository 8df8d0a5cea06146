package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Ananth-NQI/cassany-backend/internal/models"
)

var testIDs = map[string]int{
	"camisas": 209, "guayaberas": 209, "jeans": 211, "pantalones": 212, "sueteres": 230, "accesorios": 238,
}

var testSynonyms = map[string]string{
	"camisa": "camisas", "guayabera": "camisas", "guayaberas": "camisas", "jean": "jeans", "pantalón": "pantalones", "perfume": "accesorios",
}

func testTaxonomy() *Taxonomy {
	return NewTaxonomy(testIDs, testSynonyms)
}

type fakeSource struct {
	mu         sync.Mutex
	byCategory map[int][]WooProduct
	variations map[int][]WooVariation
	calls      int
	err        error
}

func (f *fakeSource) ProductsByCategory(_ context.Context, categoryID, _ int) ([]WooProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.byCategory[categoryID], nil
}

func (f *fakeSource) Variations(_ context.Context, productID int) ([]WooVariation, error) {
	return f.variations[productID], nil
}

func shirt(id int, name, url string) WooProduct {
	return WooProduct{ID: id, Name: name, Price: "80000", Permalink: url, StockStatus: "instock",
		Attributes: []WooAttribute{{Name: "Talla", Options: []string{"m", "L", "XXXL"}}}}
}

func TestCleanSizes(t *testing.T) {
	got := CleanSizes([]string{" m", "L", "M", "XXXL", "", "32", "unica"})
	assert.Equal(t, []string{"M", "L", "32"}, got)
}

func TestFindSize(t *testing.T) {
	s, ok := FindSize("la quiero en talla xl por favor")
	require.True(t, ok)
	assert.Equal(t, "XL", s)

	_, ok = FindSize("quiero una camisa")
	assert.False(t, ok)

	s, ok = FindSize("M.")
	require.True(t, ok)
	assert.Equal(t, "M", s)

	s, ok = FindSize("ponme esa en 32, gracias")
	require.True(t, ok)
	assert.Equal(t, "32", s)

	for _, text := range []string{"Sí", "sí, agrégala", "Más opciones", "más", "Sé que", "Mí talla"} {
		_, ok = FindSize(text)
		assert.False(t, ok, text)
	}
}

func TestSuggestionCachePaging(t *testing.T) {
	var c models.SuggestionCache
	products := []models.Product{{SKU: "A"}, {SKU: "B"}, {SKU: "C"}, {SKU: "D"}, {SKU: "E"}}
	Remember(&c, "camisas", models.Filters{Color: "azul"}, products)

	assert.Len(t, Page(c), 3)
	more := More(&c)
	if diff := cmp.Diff([]models.Product{{SKU: "D"}, {SKU: "E"}}, more); diff != "" {
		t.Errorf("More() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "D", c.Products[0].SKU)
	assert.Nil(t, More(&c))
	assert.Equal(t, "azul", c.Filters.Color)
}

func TestAppendSeenURLs(t *testing.T) {
	c := models.SuggestionCache{SeenURLs: []string{"u1"}}
	AppendSeenURLs(&c, "u2", "u1", "", "u3", "u2")
	assert.Equal(t, []string{"u1", "u2", "u3"}, c.SeenURLs)
}

func TestResolve(t *testing.T) {
	cache := []models.Product{
		{SKU: "A", Name: "Camisa X", URL: "https://cassany.co/a"},
		{SKU: "B", Name: "Camisa Y", URL: "https://cassany.co/b"},
		{SKU: "C", Name: "Jean Z", URL: "https://cassany.co/c"},
	}
	for i := 1; i <= len(cache); i++ {
		p, idx, ok := Resolve(string(rune('0'+i)), cache)
		require.True(t, ok)
		assert.Equal(t, cache[i-1].SKU, p.SKU)
		assert.Equal(t, i-1, idx)
	}
	_, _, ok := Resolve("0", cache)
	assert.False(t, ok)
	_, _, ok = Resolve("4", cache)
	assert.False(t, ok)

	p, _, ok := Resolve("https://cassany.co/b", cache)
	require.True(t, ok)
	assert.Equal(t, "B", p.SKU)
	p, _, ok = Resolve("jean z", cache)
	require.True(t, ok)
	assert.Equal(t, "C", p.SKU)
	p, _, ok = Resolve("la segunda", cache)
	require.True(t, ok)
	assert.Equal(t, "B", p.SKU)

	_, _, ok = Resolve("", cache)
	assert.False(t, ok)
	p, _, ok = Resolve("", cache[:1])
	require.True(t, ok)
	assert.Equal(t, "A", p.SKU)
	_, _, ok = Resolve("la roja", cache)
	assert.False(t, ok)
}

func TestOrdinalIndex(t *testing.T) {
	cases := map[string]int{
		"la primera":      1,
		"el tercero":      3,
		"me gusta la dos": 2,
		"opción cuatro":   4,
		"la séptima":      7,
	}
	for text, want := range cases {
		got, ok := OrdinalIndex(text)
		require.True(t, ok, text)
		assert.Equal(t, want, got, text)
	}
	_, ok := OrdinalIndex("quiero dos camisas")
	assert.False(t, ok)
}

func TestDetectCategory(t *testing.T) {
	tax := testTaxonomy()
	cases := map[string]string{
		"muéstrame camisas":      "camisas",
		"tienes guayaberas?":     "camisas",
		"busco un pantalón":      "pantalones",
		"quiero ver pantalnes":   "pantalones",
		"algo de manga larga":    "camisas",
		"un perfume para regalo": "accesorios",
	}
	for text, want := range cases {
		got, ok := tax.DetectCategory(text)
		require.True(t, ok, text)
		assert.Equal(t, want, got, text)
	}
	_, ok := tax.DetectCategory("hola buenas tardes")
	assert.False(t, ok)
}

func TestDetectAttributes(t *testing.T) {
	got := DetectAttributes("Guayabera manga corta blanca talla M para evento")
	want := models.Filters{Sleeve: "corta", Subtype: "guayabera", Color: "blanca", Size: "M", Use: "evento"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DetectAttributes() mismatch (-want +got):\n%s", diff)
	}
}

func TestSearchFiltersStockAndSeenURLs(t *testing.T) {
	src := &fakeSource{byCategory: map[int][]WooProduct{
		209: {
			shirt(1, "Camisa Lino Azul", "u1"),
			shirt(2, "Camisa Oxford Azul", "u2"),
			{ID: 3, Name: "Camisa Agotada Azul", Price: "90000", Permalink: "u3", StockStatus: "outofstock"},
			{ID: 4, Name: "Camisa Gratis Azul", Price: "0", Permalink: "u4", StockStatus: "instock"},
			shirt(5, "Camisa Roja", "u5"),
		},
	}}
	s := NewSearcher(src, testTaxonomy(), zaptest.NewLogger(t))

	res, err := s.Search(context.Background(), Query{Text: "camisas azul", ExcludeURLs: []string{"u1"}})
	require.NoError(t, err)
	assert.Equal(t, "camisas", res.Category)
	require.Len(t, res.Products, 1)
	p := res.Products[0]
	assert.Equal(t, "Camisa Oxford Azul", p.Name)
	assert.Equal(t, []string{"M", "L"}, p.Sizes)
	assert.Equal(t, 80000.0, p.Price)
	assert.Equal(t, SurrogateSKU("u2", p.Name), p.SKU)
	assert.Regexp(t, `^SKU-[0-9A-F]{10}$`, p.SKU)
}

func TestSearchNoStockMessage(t *testing.T) {
	src := &fakeSource{byCategory: map[int][]WooProduct{209: {shirt(1, "Camisa Lino", "u1")}}}
	s := NewSearcher(src, testTaxonomy(), zaptest.NewLogger(t))

	res, err := s.Search(context.Background(), Query{Text: "guayabera manga larga"})
	require.NoError(t, err)
	assert.Empty(t, res.Products)
	assert.Equal(t, "No hay stock para «guayabera manga larga» en este momento.", res.Message)

	res, err = s.Search(context.Background(), Query{Text: "hola"})
	require.NoError(t, err)
	assert.Equal(t, NoCategoryMessage, res.Message)
}

func TestSearchSizesFromVariations(t *testing.T) {
	src := &fakeSource{
		byCategory: map[int][]WooProduct{211: {{ID: 7, Name: "Jean Slim", SKU: "JS-1", Price: "120000",
			Permalink: "j1", StockStatus: "instock", Variations: []int{70, 71, 72}}}},
		variations: map[int][]WooVariation{7: {
			{ID: 70, Price: "120000", StockStatus: "instock", Attributes: []WooAttribute{{Name: "Talla", Option: "32"}}},
			{ID: 71, Price: "120000", StockStatus: "outofstock", Attributes: []WooAttribute{{Name: "Talla", Option: "34"}}},
			{ID: 72, Price: "120000", StockStatus: "instock", Attributes: []WooAttribute{{Name: "Talla", Option: "36"}}},
		}},
	}
	s := NewSearcher(src, testTaxonomy(), zaptest.NewLogger(t))

	res, err := s.Search(context.Background(), Query{Category: "jeans"})
	require.NoError(t, err)
	require.Len(t, res.Products, 1)
	assert.Equal(t, "JS-1", res.Products[0].SKU)
	assert.Equal(t, []string{"32", "36"}, res.Products[0].Sizes)
}

func TestSearchPropagatesBackendErrors(t *testing.T) {
	s := NewSearcher(&fakeSource{err: errors.New("boom")}, testTaxonomy(), zaptest.NewLogger(t))
	_, err := s.Search(context.Background(), Query{Text: "jeans"})
	assert.Error(t, err)

	s = NewSearcher(NewWooClient("", "", ""), testTaxonomy(), zaptest.NewLogger(t))
	res, err := s.Search(context.Background(), Query{Text: "jeans"})
	require.NoError(t, err)
	assert.Contains(t, res.Message, "No hay stock")
}

func TestWooClientProductsByCategory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wp-json/wc/v3/products", r.URL.Path)
		assert.Equal(t, "209", r.URL.Query().Get("category"))
		assert.Equal(t, "ck", r.URL.Query().Get("consumer_key"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]WooProduct{{ID: 1, Name: "Camisa", Price: "1000", StockStatus: "instock"}})
	}))
	defer srv.Close()

	c := NewWooClient(srv.URL+"/wp-json/wc/v3/", "ck", "cs")
	products, err := c.ProductsByCategory(context.Background(), 209, 10)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Camisa", products[0].Name)
	assert.True(t, products[0].InStock())
}
