package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"wardalert/internal/core"
	"wardalert/internal/types"
)

// AccountDeleter removes a user and everything they own.
type AccountDeleter interface {
	DeleteAccount(ctx context.Context, userID string) error
}

// MessageResponse is the body of endpoints that only report an outcome.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// AccountHandler serves the self-service account deletion endpoint.
type AccountHandler struct {
	service     AccountDeleter
	requireUser func(http.Handler) http.Handler
	logger      *slog.Logger
}

// NewAccountHandler creates an AccountHandler. requireUser must resolve the
// caller and store the user ID in the context (see core.Server.RequireUser).
func NewAccountHandler(svc AccountDeleter, requireUser func(http.Handler) http.Handler, l *slog.Logger) *AccountHandler {
	if l == nil {
		l = slog.Default()
	}
	return &AccountHandler{service: svc, requireUser: requireUser, logger: l}
}

// RegisterRoutes mounts the account endpoints behind requireUser.
func (h *AccountHandler) RegisterRoutes(r chi.Router) {
	r.With(h.requireUser).Post("/account/delete", h.DeleteAccount)
}

// DeleteAccount handles POST /v1/account/delete.
func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := types.GetUserID(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Missing Authorization header", nil))
		return
	}

	h.logger.InfoContext(r.Context(), "account deletion requested", "user_id", userID)

	if err := h.service.DeleteAccount(r.Context(), userID); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, MessageResponse{Success: true, Message: "Account deleted"})
}
