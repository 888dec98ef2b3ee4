// Package handlers contains the HTTP handlers of the wardalert functions.
//
// Each handler decodes and validates its request, delegates to a service
// from internal/notify, internal/account or internal/cleanup, and encodes
// the response through internal/core.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"wardalert/internal/core"
	"wardalert/internal/types"
)

// PostNotifier sends (or enqueues) the push message for a new post.
type PostNotifier interface {
	NotifyPost(ctx context.Context, post types.Post) (*types.DispatchResult, error)
}

// NotifyResponse is the success body of POST /v1/notify-on-post. Result is
// the push service's response passed through verbatim.
type NotifyResponse struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
}

// NotifyHandler receives the database webhook fired on every insert into
// the posts table.
type NotifyHandler struct {
	notifier  PostNotifier
	validator *core.Validator
	logger    *slog.Logger
}

// NewNotifyHandler creates a NotifyHandler.
func NewNotifyHandler(n PostNotifier, v *core.Validator, l *slog.Logger) *NotifyHandler {
	if l == nil {
		l = slog.Default()
	}
	if v == nil {
		v = core.NewValidator(l)
	}
	return &NotifyHandler{notifier: n, validator: v, logger: l}
}

// RegisterRoutes mounts the webhook endpoint.
func (h *NotifyHandler) RegisterRoutes(r chi.Router) {
	r.Post("/notify-on-post", h.NotifyOnPost)
}

// NotifyOnPost handles POST /v1/notify-on-post.
func (h *NotifyHandler) NotifyOnPost(w http.ResponseWriter, r *http.Request) {
	var event types.PostEvent
	if err := core.DecodeJSON(w, r, &event); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.validator.ValidateStructExcept(event, types.ErrCodeValidationEventType,
		"only INSERT events on posts are handled", "Record"); err != nil {
		h.logger.WarnContext(r.Context(), "ignoring webhook event",
			"type", event.Type,
			"table", event.Table,
		)
		core.Error(w, r, err)
		return
	}

	result, err := h.notifier.NotifyPost(r.Context(), event.Record)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	status := result.StatusCode
	if status < 200 || status > 299 {
		status = http.StatusOK
	}
	body := result.Body
	if len(body) == 0 {
		body = json.RawMessage("null")
	}
	core.JSON(w, r, status, NotifyResponse{Success: true, Result: body})
}
