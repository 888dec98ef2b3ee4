package handlers

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"wardalert/internal/cleanup"
	"wardalert/internal/core"
	"wardalert/internal/types"
)

// CleanupRunner runs one expired-video pass.
type CleanupRunner interface {
	Run(ctx context.Context, now time.Time) (cleanup.Result, error)
}

// CleanupResponse is the body of POST /v1/cleanup-videos. DeletedCount is
// omitted when nothing was found.
type CleanupResponse struct {
	Message      string `json:"message"`
	DeletedCount *int   `json:"deletedCount,omitempty"`
}

// CleanupHandler lets a scheduler trigger the expired-video job over HTTP.
type CleanupHandler struct {
	runner     CleanupRunner
	serviceKey types.SecretString
	now        func() time.Time
	logger     *slog.Logger
}

// NewCleanupHandler creates a CleanupHandler. When serviceKey is set, callers
// must present it as their bearer token.
func NewCleanupHandler(runner CleanupRunner, serviceKey types.SecretString, l *slog.Logger) *CleanupHandler {
	if l == nil {
		l = slog.Default()
	}
	return &CleanupHandler{runner: runner, serviceKey: serviceKey, now: time.Now, logger: l}
}

// RegisterRoutes mounts the cleanup trigger.
func (h *CleanupHandler) RegisterRoutes(r chi.Router) {
	r.Post("/cleanup-videos", h.CleanupVideos)
}

// CleanupVideos handles POST /v1/cleanup-videos.
func (h *CleanupHandler) CleanupVideos(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenInvalid, "Unauthorized", nil))
		return
	}

	res, err := h.runner.Run(r.Context(), h.now())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "fatal cleanup error", "error", err.Error())
		core.Error(w, r, err)
		return
	}

	if res.Found == 0 {
		core.JSON(w, r, http.StatusOK, CleanupResponse{Message: "No expired videos found"})
		return
	}
	deleted := res.Deleted
	core.JSON(w, r, http.StatusOK, CleanupResponse{Message: "Cleanup complete", DeletedCount: &deleted})
}

func (h *CleanupHandler) authorized(r *http.Request) bool {
	if h.serviceKey.IsEmpty() {
		return true
	}
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.serviceKey.Unmask())) == 1
}
