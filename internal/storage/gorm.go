package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Ananth-NQI/cassany-backend/internal/models"
)

// GormStore persists sessions through gorm. The connection must be opened with
// TranslateError so unique violations surface as gorm.ErrDuplicatedKey.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore wraps an open gorm connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, now: time.Now}
}

func (g *GormStore) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	var s models.Session
	err := g.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get session %s", sessionID)
	}
	return &s, nil
}

func (g *GormStore) CreateSession(ctx context.Context, session *models.Session) error {
	err := g.db.WithContext(ctx).Create(session).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrSessionExists
	}
	return errors.Wrapf(err, "create session %s", session.SessionID)
}

func (g *GormStore) UpdateField(ctx context.Context, sessionID, field string, value interface{}) error {
	return g.UpdateFields(ctx, sessionID, map[string]interface{}{field: value})
}

func (g *GormStore) UpdateFields(ctx context.Context, sessionID string, fields map[string]interface{}) error {
	cols, err := withActivity(fields, g.now())
	if err != nil {
		return err
	}
	res := g.db.WithContext(ctx).Model(&models.Session{}).Where("session_id = ?", sessionID).Updates(cols)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "update session %s", sessionID)
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (g *GormStore) LoadBlob(ctx context.Context, sessionID string, blob models.Blob, dst interface{}) error {
	s, err := g.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	return s.DecodeBlob(blob, dst)
}

func (g *GormStore) SaveBlob(ctx context.Context, sessionID string, blob models.Blob, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encode %s blob", blob)
	}
	return g.UpdateField(ctx, sessionID, blob.Column(), string(raw))
}

func (g *GormStore) ResetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	var fresh *models.Session
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var old models.Session
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("session_id = ?", sessionID).First(&old).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		fresh = freshFrom(&old, g.now())
		return tx.Save(fresh).Error
	})
	if errors.Is(err, ErrSessionNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reset session %s", sessionID)
	}
	return fresh, nil
}

func (g *GormStore) AssignConfirmationCode(ctx context.Context, sessionID, code string) (string, error) {
	res := g.db.WithContext(ctx).Model(&models.Session{}).
		Where("session_id = ? AND confirmation_code IS NULL", sessionID).
		Updates(map[string]interface{}{
			"confirmation_code":      code,
			models.FieldStatus:       models.StatusConfirmed,
			models.FieldLastActivity: g.now(),
		})
	if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		return "", ErrCodeTaken
	}
	if res.Error != nil {
		return "", errors.Wrapf(res.Error, "assign confirmation code to %s", sessionID)
	}
	if res.RowsAffected == 1 {
		return code, nil
	}
	s, err := g.GetSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return s.Code(), nil
}

func (g *GormStore) ConfirmationCodeExists(ctx context.Context, code string) (bool, error) {
	var n int64
	err := g.db.WithContext(ctx).Model(&models.Session{}).Where("confirmation_code = ?", code).Count(&n).Error
	if err != nil {
		return false, errors.Wrap(err, "count confirmation codes")
	}
	return n > 0, nil
}

func (g *GormStore) ClaimMessage(ctx context.Context, sessionID, messageID string) (bool, error) {
	rec := models.ProcessedMessage{
		ID:        uuid.NewString(),
		MessageID: messageID,
		SessionID: sessionID,
		CreatedAt: g.now(),
	}
	res := g.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "message_id"}}, DoNothing: true}).
		Create(&rec)
	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "claim message %s", messageID)
	}
	return res.RowsAffected == 1, nil
}

func (g *GormStore) PruneProcessedMessages(ctx context.Context, before time.Time) (int64, error) {
	res := g.db.WithContext(ctx).Where("created_at < ?", before).Delete(&models.ProcessedMessage{})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "prune processed messages")
	}
	return res.RowsAffected, nil
}

func (g *GormStore) ExpireIdleSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	res := g.db.WithContext(ctx).Model(&models.Session{}).
		Where("status = ? AND last_activity < ?", models.StatusPending, cutoff).
		Update(models.FieldStatus, models.StatusExpired)
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "expire idle sessions")
	}
	return res.RowsAffected, nil
}

func (g *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return errors.Wrap(err, "get sql db")
	}
	return sqlDB.PingContext(ctx)
}
