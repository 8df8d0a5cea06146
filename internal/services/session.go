package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/cassany-backend/internal/models"
	"github.com/Ananth-NQI/cassany-backend/internal/storage"
)

// SessionManager loads the session record for an inbound message, creating or
// resetting it as needed.
type SessionManager struct {
	store      storage.SessionStore
	sessionTTL time.Duration
	log        *zap.Logger
}

// NewSessionManager creates a new session manager
func NewSessionManager(store storage.SessionStore, sessionTTL time.Duration, log *zap.Logger) *SessionManager {
	return &SessionManager{
		store:      store,
		sessionTTL: sessionTTL,
		log:        log,
	}
}

// Begin returns the live session for sessionID at now. Unknown ids get a fresh record.
// Records idle longer than the TTL, or left cancelled or expired, are reset.
func (sm *SessionManager) Begin(ctx context.Context, sessionID string, now time.Time) (*models.Session, error) {
	session, err := sm.store.GetSession(ctx, sessionID)
	if errors.Is(err, storage.ErrSessionNotFound) {
		return sm.create(ctx, sessionID, now)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if reason := sm.resetReason(session, now); reason != "" {
		sm.log.Info("Resetting session",
			zap.String("session_id", sessionID),
			zap.String("reason", reason))
		fresh, err := sm.store.ResetSession(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to reset session: %w", err)
		}
		return fresh, nil
	}

	if err := sm.store.UpdateField(ctx, sessionID, models.FieldLastActivity, now); err != nil {
		return nil, fmt.Errorf("failed to update session activity: %w", err)
	}
	session.LastActivity = now
	return session, nil
}

func (sm *SessionManager) create(ctx context.Context, sessionID string, now time.Time) (*models.Session, error) {
	session := models.NewSession(sessionID, now)
	err := sm.store.CreateSession(ctx, session)
	if errors.Is(err, storage.ErrSessionExists) {
		// Lost a creation race; the other message's record wins.
		return sm.store.GetSession(ctx, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	sm.log.Info("Session created", zap.String("session_id", sessionID))
	return session, nil
}

func (sm *SessionManager) resetReason(s *models.Session, now time.Time) string {
	switch {
	case s.Status == models.StatusCancelled:
		return "cancelled"
	case s.Status == models.StatusExpired:
		return "expired"
	case sm.sessionTTL > 0 && now.Sub(s.LastActivity) > sm.sessionTTL:
		return "idle"
	}
	return ""
}
