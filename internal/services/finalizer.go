package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/cassany-backend/internal/models"
	"github.com/Ananth-NQI/cassany-backend/internal/storage"
	"github.com/Ananth-NQI/cassany-backend/internal/utils"
)

const (
	codeGenerationAttempts = 5
	codeAssignAttempts     = 3
	extendedSuffixLength   = 4
	defaultCodePrefix      = "CAS"
)

// Finalizer assigns confirmation codes and triggers the order side effects exactly once
// per session.
type Finalizer struct {
	store    storage.SessionStore
	syncer   OrderSyncer
	alerts   MessageSender
	notifier *Notifier
	prefix   string
	alertTo  string
	log      *zap.Logger
	now      func() time.Time
}

// NewFinalizer creates a finalizer. syncer, alerts and notifier may be nil.
func NewFinalizer(store storage.SessionStore, syncer OrderSyncer, alerts MessageSender, notifier *Notifier, opts Options, log *zap.Logger) *Finalizer {
	prefix := opts.ConfirmationPrefix
	if prefix == "" {
		prefix = defaultCodePrefix
	}
	return &Finalizer{
		store:    store,
		syncer:   syncer,
		alerts:   alerts,
		notifier: notifier,
		prefix:   prefix,
		alertTo:  opts.AlertTo,
		log:      log,
		now:      time.Now,
	}
}

// GenerateCode returns a code not yet used by any session. After a bounded number of
// collisions it falls back to an extended random suffix instead of retrying forever.
func (f *Finalizer) GenerateCode(ctx context.Context) (string, error) {
	for i := 0; i < codeGenerationAttempts; i++ {
		code, err := utils.GenerateConfirmationCode(f.prefix, f.now())
		if err != nil {
			return "", err
		}
		exists, err := f.store.ConfirmationCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check confirmation code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	code, err := utils.GenerateConfirmationCode(f.prefix, f.now())
	if err != nil {
		return "", err
	}
	extra, err := utils.RandomAlphanumeric(extendedSuffixLength)
	if err != nil {
		return "", err
	}
	return code + extra, nil
}

// Confirm assigns a confirmation code to the session. A session that already has one
// keeps it and no side effects run; created is true only for the call that assigned it.
func (f *Finalizer) Confirm(ctx context.Context, session *models.Session, cart models.Cart) (code string, created bool, err error) {
	if session.IsConfirmed() {
		return session.Code(), false, nil
	}

	for attempt := 0; attempt < codeAssignAttempts; attempt++ {
		candidate, err := f.GenerateCode(ctx)
		if err != nil {
			return "", false, err
		}
		stored, err := f.store.AssignConfirmationCode(ctx, session.SessionID, candidate)
		if errors.Is(err, storage.ErrCodeTaken) {
			f.log.Warn("Confirmation code collision, retrying",
				zap.String("session_id", session.SessionID),
				zap.String("code", candidate))
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("failed to assign confirmation code: %w", err)
		}

		session.ConfirmationCode = &stored
		session.Status = models.StatusConfirmed
		if stored != candidate {
			// Another delivery of the same order won the race.
			return stored, false, nil
		}

		f.log.Info("Order confirmed",
			zap.String("session_id", session.SessionID),
			zap.String("code", stored))
		f.afterConfirm(session.Clone(), append(models.Cart(nil), cart...))
		return stored, true, nil
	}
	return "", false, fmt.Errorf("failed to assign confirmation code after %d attempts", codeAssignAttempts)
}

// afterConfirm runs the CRM sync and the staff alert in the background.
func (f *Finalizer) afterConfirm(session *models.Session, cart models.Cart) {
	if f.syncer != nil {
		f.dispatch("crm_sync", func(ctx context.Context) error {
			return f.syncer.SyncOrder(ctx, session, cart)
		})
	}
	if f.alerts != nil && f.alertTo != "" {
		body := staffOrderAlert("Pedido para atención humana", session, cart, "")
		f.dispatch("order_alert", func(ctx context.Context) error {
			return f.alerts.SendText(ctx, f.alertTo, body)
		})
	}
}

func (f *Finalizer) dispatch(name string, fn func(ctx context.Context) error) {
	if f.notifier != nil {
		f.notifier.Go(name, fn)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), notifierJobTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		f.log.Warn("Order side effect failed", zap.String("job", name), zap.Error(err))
	}
}
