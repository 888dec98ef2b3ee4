package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"wardalert/internal/types"
)

const (
	// DefaultPushBaseURL is the FCM HTTP v1 API host.
	DefaultPushBaseURL = "https://fcm.googleapis.com"

	// NotificationTitle is shown for every new grievance.
	NotificationTitle = "नई शिकायत (New Grievance)"

	// ClickAction routes taps to the mobile app's notification handler.
	ClickAction = "FLUTTER_NOTIFICATION_CLICK"

	// excerptRunes is the number of content characters kept in the body.
	excerptRunes = 50

	maxResponseBytes = 1 << 20
)

// FCMDispatcherConfig holds the configuration for FCMDispatcher.
type FCMDispatcherConfig struct {
	Logger *slog.Logger

	// BaseURL overrides DefaultPushBaseURL for testing.
	BaseURL string
}

// FCMDispatcher posts topic messages to the FCM HTTP v1 send endpoint.
type FCMDispatcher struct {
	base    *BaseClient
	baseURL string
	logger  *slog.Logger
}

// NewFCMDispatcher creates an FCMDispatcher with its own breaker.
func NewFCMDispatcher(httpClient *http.Client, retry RetryPolicy, cfg FCMDispatcherConfig) *FCMDispatcher {
	base := NewBaseClient(httpClient, "fcm", retry, userAgent)
	return NewFCMDispatcherWithBase(base, cfg)
}

// NewFCMDispatcherWithBase creates an FCMDispatcher with a pre-configured BaseClient.
func NewFCMDispatcherWithBase(base *BaseClient, cfg FCMDispatcherConfig) *FCMDispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultPushBaseURL
	}
	return &FCMDispatcher{base: base, baseURL: baseURL, logger: logger}
}

// TopicForWard returns the topic subscribed to by residents of a ward.
func TopicForWard(wardNo int) string {
	return fmt.Sprintf("ward_%d", wardNo)
}

// Excerpt returns the first 50 characters of content, with "..." appended
// only when something was cut.
func Excerpt(content string) string {
	runes := []rune(content)
	if len(runes) <= excerptRunes {
		return content
	}
	return string(runes[:excerptRunes]) + "..."
}

// BuildMessage derives the push envelope for a post.
func BuildMessage(post types.Post) types.PushEnvelope {
	return types.PushEnvelope{
		Message: types.PushMessage{
			Topic: TopicForWard(post.Ward()),
			Notification: types.PushNotification{
				Title: NotificationTitle,
				Body:  strings.ToUpper(post.Category) + " - " + Excerpt(post.Content),
			},
			Data: map[string]string{
				"post_id":      post.ID,
				"ward_no":      strconv.Itoa(post.Ward()),
				"click_action": ClickAction,
			},
		},
	}
}

// Dispatch sends the message for post to its ward topic.
//
// A 2xx response is returned verbatim. The send endpoint may report
// per-recipient problems inside a 2xx body; those are not interpreted here.
func (d *FCMDispatcher) Dispatch(ctx context.Context, projectID string, token *types.BearerToken, post types.Post) (*types.DispatchResult, error) {
	if token == nil || token.AccessToken.IsEmpty() {
		return nil, types.NewAppError(types.ErrCodeUpstreamDispatch, "no bearer token for dispatch", nil)
	}

	payload, err := json.Marshal(BuildMessage(post))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode push message", err)
	}

	endpoint := fmt.Sprintf("%s/v1/projects/%s/messages:send", d.baseURL, url.PathEscape(projectID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create dispatch request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token.AccessToken.Unmask())

	resp, err := d.base.Do(req, types.ErrCodeUpstreamDispatch)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, handleUpstreamError(types.ErrCodeUpstreamDispatch, "push dispatch", resp)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamDispatch, "failed to read dispatch response", err)
	}

	d.logger.DebugContext(ctx, "push dispatched",
		"post_id", post.ID,
		"topic", TopicForWard(post.Ward()),
		"status", resp.StatusCode,
	)

	return &types.DispatchResult{
		StatusCode: resp.StatusCode,
		Body:       rawJSON(body),
	}, nil
}

// rawJSON keeps a valid JSON body as-is and wraps anything else as a JSON
// string so the result can always be re-encoded.
func rawJSON(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return json.RawMessage("null")
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	quoted, _ := json.Marshal(string(trimmed))
	return json.RawMessage(quoted)
}

var _ PushDispatcher = (*FCMDispatcher)(nil)
