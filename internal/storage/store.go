package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/Ananth-NQI/cassany-backend/internal/models"
)

var (
	// ErrSessionNotFound is returned when no record exists for a session id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExists is returned when creating a record for a known session id.
	ErrSessionExists = errors.New("session already exists")
	// ErrUnknownField is returned for updates to columns outside the updatable set.
	ErrUnknownField = errors.New("unknown session field")
	// ErrCodeTaken is returned when a confirmation code collides with another session's.
	ErrCodeTaken = errors.New("confirmation code already taken")
)

// SessionStore is durable keyed storage for Session records. Every call is atomic
// for its session key.
type SessionStore interface {
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	CreateSession(ctx context.Context, session *models.Session) error

	// UpdateField writes one column and bumps last_activity unless the field is last_activity.
	UpdateField(ctx context.Context, sessionID, field string, value interface{}) error
	// UpdateFields writes several columns in one statement with the same bump rule.
	UpdateFields(ctx context.Context, sessionID string, fields map[string]interface{}) error

	LoadBlob(ctx context.Context, sessionID string, blob models.Blob, dst interface{}) error
	SaveBlob(ctx context.Context, sessionID string, blob models.Blob, value interface{}) error

	// ResetSession replaces the record with a fresh one, keeping the session id and phone.
	ResetSession(ctx context.Context, sessionID string) (*models.Session, error)

	// AssignConfirmationCode sets code and the confirmed status only when no code exists yet,
	// and returns the code persisted for the session.
	AssignConfirmationCode(ctx context.Context, sessionID, code string) (string, error)
	ConfirmationCodeExists(ctx context.Context, code string) (bool, error)

	// ClaimMessage records messageID and reports whether this call was the first to see it.
	ClaimMessage(ctx context.Context, sessionID, messageID string) (bool, error)
	PruneProcessedMessages(ctx context.Context, before time.Time) (int64, error)

	// ExpireIdleSessions marks pending sessions idle since before cutoff as expired.
	ExpireIdleSessions(ctx context.Context, cutoff time.Time) (int64, error)

	Ping(ctx context.Context) error
}

func withActivity(fields map[string]interface{}, now time.Time) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		if !models.IsUpdatableField(k) {
			return nil, errors.Wrapf(ErrUnknownField, "field %q", k)
		}
		out[k] = v
	}
	if _, ok := out[models.FieldLastActivity]; !ok {
		out[models.FieldLastActivity] = now
	}
	return out, nil
}

func freshFrom(old *models.Session, now time.Time) *models.Session {
	fresh := models.NewSession(old.SessionID, now)
	fresh.ID = old.ID
	if old.Phone != "" {
		fresh.Phone = old.Phone
	}
	return fresh
}
