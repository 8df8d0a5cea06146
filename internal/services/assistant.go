package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/cassany-backend/internal/config"
	"github.com/Ananth-NQI/cassany-backend/internal/storage"
)

// ErrEmptySessionID is the only error HandleInboundMessage returns.
var ErrEmptySessionID = errors.New("session id is required")

// classifierThreshold is the minimum confidence accepted from the intent classifier.
const classifierThreshold = 0.6

// Options carries store policy text and order settings.
type Options struct {
	AlertTo            string
	BankAccounts       string
	PayULink           string
	ConfirmationPrefix string
}

// Deps are the collaborators of an Assistant. Classifier, Completer, Alerts and
// Notifier may be nil.
type Deps struct {
	Store      storage.SessionStore
	Sessions   *SessionManager
	Catalog    CatalogSearcher
	Classifier IntentClassifier
	Completer  DialogueCompleter
	Finalizer  *Finalizer
	Notifier   *Notifier
	Alerts     MessageSender
	Profile    *config.StoreProfile
	Options    Options
	Log        *zap.Logger
	Now        func() time.Time
}

// Reply is the outcome of one inbound message.
type Reply struct {
	Response string `json:"response"`
}

// Assistant runs the shopping dialogue for every session.
type Assistant struct {
	store      storage.SessionStore
	sessions   *SessionManager
	catalog    CatalogSearcher
	classifier IntentClassifier
	completer  DialogueCompleter
	finalizer  *Finalizer
	notifier   *Notifier
	alerts     MessageSender
	profile    *config.StoreProfile
	opts       Options
	log        *zap.Logger
	now        func() time.Time
	rules      []rule
}

// NewAssistant wires an Assistant from its dependencies.
func NewAssistant(d Deps) *Assistant {
	a := &Assistant{
		store:      d.Store,
		sessions:   d.Sessions,
		catalog:    d.Catalog,
		classifier: d.Classifier,
		completer:  d.Completer,
		finalizer:  d.Finalizer,
		notifier:   d.Notifier,
		alerts:     d.Alerts,
		profile:    d.Profile,
		opts:       d.Options,
		log:        d.Log,
		now:        d.Now,
	}
	if a.log == nil {
		a.log = zap.NewNop()
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.profile == nil {
		a.profile = &config.StoreProfile{}
	}
	if a.sessions == nil {
		a.sessions = NewSessionManager(a.store, 0, a.log)
	}
	if a.opts.BankAccounts == "" {
		a.opts.BankAccounts = defaultBankAccounts
	}
	a.rules = a.ruleTable()
	return a
}

// HandleInboundMessage processes one utterance for sessionID and returns the reply.
// Every failure past the session id check degrades to a plain-language reply.
func (a *Assistant) HandleInboundMessage(ctx context.Context, sessionID, text string) (*Reply, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}
	turnID := uuid.NewString()
	log := a.log.With(zap.String("session_id", sessionID), zap.String("turn_id", turnID))

	session, err := a.sessions.Begin(ctx, sessionID, a.now())
	if err != nil {
		log.Error("Failed to load session", zap.Error(err))
		return &Reply{Response: msgTechnicalIssue}, nil
	}

	t := a.newTurn(ctx, turnID, session, text, log)
	if t.text == "" {
		return &Reply{Response: msgEmptyMessage}, nil
	}

	response, err := a.run(t)
	if err != nil {
		log.Error("Turn failed", zap.Error(err))
		return &Reply{Response: msgTechnicalIssue}, nil
	}
	if strings.TrimSpace(response) == "" {
		response = msgFallback
	}
	return &Reply{Response: response}, nil
}

func (a *Assistant) run(t *turn) (string, error) {
	if err := t.capture(); err != nil {
		return "", err
	}

	for _, r := range a.rules {
		if !r.match(t) {
			continue
		}
		reply, err := r.handle(t)
		if errors.Is(err, errFallthrough) {
			continue
		}
		if err != nil {
			return "", err
		}
		t.log.Debug("Rule matched", zap.String("intent", r.name))
		return reply, nil
	}

	if reply, ok, err := t.classify(); err != nil || ok {
		return reply, err
	}
	return t.complete()
}

// alert delivers a staff notification in the background.
func (a *Assistant) alert(name, body string) {
	if a.alerts == nil || a.opts.AlertTo == "" {
		a.log.Info("Staff alert skipped: no alert channel configured", zap.String("alert", name))
		return
	}
	send := func(ctx context.Context) error {
		return a.alerts.SendText(ctx, a.opts.AlertTo, body)
	}
	if a.notifier == nil {
		ctx, cancel := context.WithTimeout(context.Background(), notifierJobTimeout)
		defer cancel()
		if err := send(ctx); err != nil {
			a.log.Warn("Failed to send staff alert", zap.String("alert", name), zap.Error(err))
		}
		return
	}
	a.notifier.Go(name, send)
}
