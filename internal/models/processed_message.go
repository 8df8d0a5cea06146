package models

import "time"

// ProcessedMessage marks an inbound channel message id as handled.
type ProcessedMessage struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	MessageID string    `json:"message_id" gorm:"uniqueIndex;size:191;not null"`
	SessionID string    `json:"session_id" gorm:"index;size:128"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// TableName pins the table created by the SQL migrations.
func (ProcessedMessage) TableName() string {
	return "processed_messages"
}
