package storage

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/Ananth-NQI/cassany-backend/internal/models"
)

// MemoryStore holds all data in memory. It is meant for development and tests.
type MemoryStore struct {
	sessions  map[string]*models.Session
	processed map[string]models.ProcessedMessage

	mu        sync.RWMutex
	idCounter uint
	now       func() time.Time
}

// NewMemoryStore creates a new in-memory storage.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:  make(map[string]*models.Session),
		processed: make(map[string]models.ProcessedMessage),
		now:       time.Now,
	}
}

func (m *MemoryStore) GetSession(_ context.Context, sessionID string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, exists := m.sessions[sessionID]
	if !exists {
		return nil, ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) CreateSession(_ context.Context, session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[session.SessionID]; exists {
		return ErrSessionExists
	}
	if code := session.Code(); code != "" && m.codeInUse(code, session.SessionID) {
		return ErrCodeTaken
	}
	m.idCounter++
	session.ID = m.idCounter
	if session.CreatedAt.IsZero() {
		session.CreatedAt = m.now()
	}
	if session.LastActivity.IsZero() {
		session.LastActivity = session.CreatedAt
	}
	m.sessions[session.SessionID] = session.Clone()
	return nil
}

func (m *MemoryStore) UpdateField(ctx context.Context, sessionID, field string, value interface{}) error {
	return m.UpdateFields(ctx, sessionID, map[string]interface{}{field: value})
}

func (m *MemoryStore) UpdateFields(_ context.Context, sessionID string, fields map[string]interface{}) error {
	cols, err := withActivity(fields, m.now())
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, exists := m.sessions[sessionID]
	if !exists {
		return ErrSessionNotFound
	}
	// Apply to a copy so a conversion failure leaves the record untouched.
	next := s.Clone()
	for k, v := range cols {
		if err := next.Set(k, v); err != nil {
			return errors.Wrap(err, "update session")
		}
	}
	m.sessions[sessionID] = next
	return nil
}

func (m *MemoryStore) LoadBlob(ctx context.Context, sessionID string, blob models.Blob, dst interface{}) error {
	s, err := m.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	return s.DecodeBlob(blob, dst)
}

func (m *MemoryStore) SaveBlob(ctx context.Context, sessionID string, blob models.Blob, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encode %s blob", blob)
	}
	return m.UpdateField(ctx, sessionID, blob.Column(), string(raw))
}

func (m *MemoryStore) ResetSession(_ context.Context, sessionID string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, exists := m.sessions[sessionID]
	if !exists {
		return nil, ErrSessionNotFound
	}
	fresh := freshFrom(s, m.now())
	m.sessions[sessionID] = fresh
	return fresh.Clone(), nil
}

func (m *MemoryStore) AssignConfirmationCode(_ context.Context, sessionID, code string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, exists := m.sessions[sessionID]
	if !exists {
		return "", ErrSessionNotFound
	}
	if existing := s.Code(); existing != "" {
		return existing, nil
	}
	if m.codeInUse(code, sessionID) {
		return "", ErrCodeTaken
	}
	next := s.Clone()
	next.ConfirmationCode = &code
	next.Status = models.StatusConfirmed
	next.LastActivity = m.now()
	m.sessions[sessionID] = next
	return code, nil
}

func (m *MemoryStore) ConfirmationCodeExists(_ context.Context, code string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.codeInUse(code, ""), nil
}

// codeInUse must be called with the lock held.
func (m *MemoryStore) codeInUse(code, exceptSession string) bool {
	for id, s := range m.sessions {
		if id != exceptSession && s.Code() == code {
			return true
		}
	}
	return false
}

func (m *MemoryStore) ClaimMessage(_ context.Context, sessionID, messageID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, seen := m.processed[messageID]; seen {
		return false, nil
	}
	m.processed[messageID] = models.ProcessedMessage{
		ID:        uuid.NewString(),
		MessageID: messageID,
		SessionID: sessionID,
		CreatedAt: m.now(),
	}
	return true, nil
}

func (m *MemoryStore) PruneProcessedMessages(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, pm := range m.processed {
		if pm.CreatedAt.Before(before) {
			delete(m.processed, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) ExpireIdleSessions(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, s := range m.sessions {
		if s.Status == models.StatusPending && s.LastActivity.Before(cutoff) {
			next := s.Clone()
			next.Status = models.StatusExpired
			m.sessions[id] = next
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Ping(context.Context) error {
	return nil
}
