package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/cassany-backend/internal/models"
	"github.com/Ananth-NQI/cassany-backend/internal/storage"
)

// AdminHandler handles session inspection and support operations.
type AdminHandler struct {
	store storage.SessionStore
	log   *zap.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(store storage.SessionStore, log *zap.Logger) *AdminHandler {
	return &AdminHandler{store: store, log: log}
}

// SessionView is a session record with its blobs decoded.
type SessionView struct {
	Session     *models.Session        `json:"session"`
	Cart        models.Cart            `json:"cart"`
	Preferences models.Preferences     `json:"preferences"`
	Suggestions models.SuggestionCache `json:"suggestions"`
	Context     models.DialogueContext `json:"context"`
}

// GetSession returns the record for :sessionID with decoded blobs.
func (h *AdminHandler) GetSession(c *fiber.Ctx) error {
	ctx := c.UserContext()
	sessionID := c.Params("sessionID")

	session, err := h.store.GetSession(ctx, sessionID)
	if errors.Is(err, storage.ErrSessionNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "Session not found")
	}
	if err != nil {
		h.log.Error("Failed to load session", zap.String("session_id", sessionID), zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch session")
	}

	view := SessionView{Session: session, Cart: models.Cart{}}
	blobs := []struct {
		blob models.Blob
		dst  interface{}
	}{
		{models.BlobCart, &view.Cart},
		{models.BlobPreferences, &view.Preferences},
		{models.BlobSuggestions, &view.Suggestions},
		{models.BlobContext, &view.Context},
	}
	for _, b := range blobs {
		if err := h.store.LoadBlob(ctx, sessionID, b.blob, b.dst); err != nil {
			h.log.Warn("Failed to decode blob", zap.String("session_id", sessionID),
				zap.String("blob", string(b.blob)), zap.Error(err))
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    view,
	})
}

// ResetSession performs a logical reset of :sessionID, keeping its id and phone.
func (h *AdminHandler) ResetSession(c *fiber.Ctx) error {
	sessionID := c.Params("sessionID")

	session, err := h.store.ResetSession(c.UserContext(), sessionID)
	if errors.Is(err, storage.ErrSessionNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "Session not found")
	}
	if err != nil {
		h.log.Error("Failed to reset session", zap.String("session_id", sessionID), zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to reset session")
	}

	h.log.Info("Session reset by admin", zap.String("session_id", sessionID))
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Session reset successfully",
		"session": session,
	})
}
