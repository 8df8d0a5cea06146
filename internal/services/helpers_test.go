package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Ananth-NQI/cassany-backend/internal/catalog"
	"github.com/Ananth-NQI/cassany-backend/internal/config"
	"github.com/Ananth-NQI/cassany-backend/internal/models"
	"github.com/Ananth-NQI/cassany-backend/internal/storage"
	"github.com/Ananth-NQI/cassany-backend/internal/utils"
)

const testSession = "cliente_573001112233"

var camisaX = models.Product{SKU: "A", Name: "Camisa X", Category: "camisas", Price: 80000,
	URL: "https://cassany.co/producto/camisa-x/", Sizes: []string{"M", "L"}}

type fakeCatalog struct {
	mu       sync.Mutex
	products map[string][]models.Product
	err      error
	queries  []catalog.Query
}

func (f *fakeCatalog) DetectCategory(text string) (string, bool) {
	words := strings.FieldsFunc(utils.Normalize(text), func(r rune) bool { return !unicode.IsLetter(r) })
	for _, w := range words {
		switch w {
		case "camisa", "camisas":
			return "camisas", true
		case "jean", "jeans":
			return "jeans", true
		}
	}
	return "", false
}

func (f *fakeCatalog) Search(_ context.Context, q catalog.Query) (catalog.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.err != nil {
		return catalog.Result{}, f.err
	}
	if q.Category == "" {
		return catalog.Result{Message: catalog.NoCategoryMessage}, nil
	}
	seen := make(map[string]bool, len(q.ExcludeURLs))
	for _, u := range q.ExcludeURLs {
		seen[u] = true
	}
	var out []models.Product
	for _, p := range f.products[q.Category] {
		if seen[p.URL] {
			continue
		}
		out = append(out, p)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	res := catalog.Result{Category: q.Category, Filters: q.Filters, Products: out}
	if len(out) == 0 {
		res.Message = "No hay stock disponible en " + q.Category + " en este momento."
	}
	return res, nil
}

type fakeCompleter struct {
	mu   sync.Mutex
	resp *DialogueResponse
	err  error
	reqs []DialogueRequest
}

func (f *fakeCompleter) CompleteDialogue(_ context.Context, req DialogueRequest) (*DialogueResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return f.resp, f.err
}

type fakeClassifier struct {
	res   IntentResult
	err   error
	calls int
}

func (f *fakeClassifier) ClassifyPaymentConfirm(context.Context, string) (IntentResult, error) {
	f.calls++
	return f.res, f.err
}

type sentMessage struct {
	to, body string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeSender) SendText(_ context.Context, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{to: to, body: body})
	return f.err
}

func (f *fakeSender) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

type fakeSyncer struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeSyncer) SyncOrder(_ context.Context, s *models.Session, _ models.Cart) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, s.Code())
	return nil
}

func (f *fakeSyncer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// flakyStore fails every write that touches failColumn.
type flakyStore struct {
	*storage.MemoryStore
	mu         sync.Mutex
	failColumn string
}

var errStoreDown = errors.New("store unavailable")

func (f *flakyStore) failOn(column string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failColumn = column
}

func (f *flakyStore) fails(column string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failColumn != "" && column == f.failColumn
}

func (f *flakyStore) UpdateField(ctx context.Context, sessionID, field string, value interface{}) error {
	if f.fails(field) {
		return errStoreDown
	}
	return f.MemoryStore.UpdateField(ctx, sessionID, field, value)
}

func (f *flakyStore) UpdateFields(ctx context.Context, sessionID string, fields map[string]interface{}) error {
	for k := range fields {
		if f.fails(k) {
			return errStoreDown
		}
	}
	return f.MemoryStore.UpdateFields(ctx, sessionID, fields)
}

func (f *flakyStore) SaveBlob(ctx context.Context, sessionID string, blob models.Blob, value interface{}) error {
	if f.fails(blob.Column()) {
		return errStoreDown
	}
	return f.MemoryStore.SaveBlob(ctx, sessionID, blob, value)
}

type harness struct {
	t          *testing.T
	a          *Assistant
	store      *storage.MemoryStore
	flaky      *flakyStore
	catalog    *fakeCatalog
	completer  *fakeCompleter
	classifier *fakeClassifier
	alerts     *fakeSender
	syncer     *fakeSyncer
	now        time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	profile, err := config.LoadStoreProfile()
	require.NoError(t, err)

	h := &harness{
		t:          t,
		store:      storage.NewMemoryStore(),
		catalog:    &fakeCatalog{products: map[string][]models.Product{}},
		completer:  &fakeCompleter{resp: &DialogueResponse{}},
		classifier: &fakeClassifier{res: IntentResult{Intent: IntentNone}},
		alerts:     &fakeSender{},
		syncer:     &fakeSyncer{},
		now:        time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC),
	}
	h.flaky = &flakyStore{MemoryStore: h.store}
	log := zaptest.NewLogger(t)
	opts := Options{AlertTo: "573009998877", PayULink: "https://pay.example/cassany"}
	h.a = NewAssistant(Deps{
		Store:      h.flaky,
		Sessions:   NewSessionManager(h.flaky, time.Hour, log),
		Catalog:    h.catalog,
		Classifier: h.classifier,
		Completer:  h.completer,
		Finalizer:  NewFinalizer(h.flaky, h.syncer, h.alerts, nil, opts, log),
		Alerts:     h.alerts,
		Profile:    profile,
		Options:    opts,
		Log:        log,
		Now:        func() time.Time { return h.now },
	})
	return h
}

// seed creates the session with the given blobs already stored.
func (h *harness) seed(mutate func(s *models.Session)) {
	h.t.Helper()
	s := models.NewSession(testSession, h.now)
	if mutate != nil {
		mutate(s)
	}
	require.NoError(h.t, h.store.CreateSession(context.Background(), s))
}

func (h *harness) seedCache(products ...models.Product) {
	h.t.Helper()
	h.seed(func(s *models.Session) {
		s.SuggestionsJSON = mustJSON(h.t, models.SuggestionCache{Products: products, Category: "camisas"})
	})
}

func (h *harness) send(text string) string {
	h.t.Helper()
	reply, err := h.a.HandleInboundMessage(context.Background(), testSession, text)
	require.NoError(h.t, err)
	return reply.Response
}

func (h *harness) session() *models.Session {
	h.t.Helper()
	s, err := h.store.GetSession(context.Background(), testSession)
	require.NoError(h.t, err)
	return s
}

func (h *harness) cart() models.Cart {
	h.t.Helper()
	var c models.Cart
	require.NoError(h.t, h.session().DecodeBlob(models.BlobCart, &c))
	return c
}

func (h *harness) dialogueContext() models.DialogueContext {
	h.t.Helper()
	var d models.DialogueContext
	require.NoError(h.t, h.session().DecodeBlob(models.BlobContext, &d))
	return d
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}
