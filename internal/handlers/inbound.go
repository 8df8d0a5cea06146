package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/cassany-backend/internal/services"
	"github.com/Ananth-NQI/cassany-backend/internal/storage"
	"github.com/Ananth-NQI/cassany-backend/internal/utils"
)

const sessionPrefix = "cliente_"

// Processor runs one inbound utterance through the shopping dialogue.
type Processor interface {
	HandleInboundMessage(ctx context.Context, sessionID, text string) (*services.Reply, error)
}

// SessionIDForPhone maps a WhatsApp number to its session id.
func SessionIDForPhone(phone string) string {
	return sessionPrefix + utils.NormalizePhone(phone)
}

// inbound is the path shared by every transport: claim the message id, then run the turn.
type inbound struct {
	processor Processor
	store     storage.SessionStore
	log       *zap.Logger
}

// process returns duplicate=true without running the turn when messageID was
// already handled. An empty messageID gets a fresh one.
func (in *inbound) process(ctx context.Context, sessionID, messageID, text string) (reply string, duplicate bool, err error) {
	if strings.TrimSpace(messageID) == "" {
		messageID = uuid.NewString()
	}
	log := in.log.With(zap.String("session_id", sessionID), zap.String("message_id", messageID))

	first, err := in.store.ClaimMessage(ctx, sessionID, messageID)
	if err != nil {
		log.Error("Failed to claim message", zap.Error(err))
		return "", false, fmt.Errorf("claim message: %w", err)
	}
	if !first {
		log.Info("Duplicate delivery ignored")
		return "", true, nil
	}

	out, err := in.processor.HandleInboundMessage(ctx, sessionID, text)
	if err != nil {
		return "", false, err
	}
	log.Debug("Turn handled", zap.Int("reply_len", len(out.Response)))
	return out.Response, false, nil
}
