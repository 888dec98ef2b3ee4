// Package notify turns a newly inserted grievance post into a push message
// for the residents of its ward.
//
// One invocation runs strictly in sequence: validate the post, obtain a
// fresh bearer token (which signs a new assertion), then dispatch. A failure
// at any stage stops the flow, is logged once with the post ID and stage, and
// is returned to the caller unchanged.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"wardalert/internal/external"
	"wardalert/internal/types"
)

// Notifier is implemented by both the inline Service and the QueuedNotifier.
type Notifier interface {
	NotifyPost(ctx context.Context, post types.Post) (*types.DispatchResult, error)
}

// Config holds the dependencies of Service.
type Config struct {
	Credential *types.ServiceAccountCredential
	Scope      string
	Tokens     external.TokenSource
	Dispatcher external.PushDispatcher
	Metrics    Metrics
	Logger     *slog.Logger
}

// Service runs the token exchange and dispatch inline.
type Service struct {
	cred       *types.ServiceAccountCredential
	scope      string
	tokens     external.TokenSource
	dispatcher external.PushDispatcher
	metrics    Metrics
	logger     *slog.Logger
	validate   *validator.Validate
}

// NewService creates a Service. A nil Metrics disables emission.
func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var metrics Metrics = NoopMetrics{}
	if cfg.Metrics != nil {
		metrics = cfg.Metrics
	}
	scope := cfg.Scope
	if scope == "" {
		scope = external.DefaultScope
	}
	return &Service{
		cred:       cfg.Credential,
		scope:      scope,
		tokens:     cfg.Tokens,
		dispatcher: cfg.Dispatcher,
		metrics:    metrics,
		logger:     logger,
		validate:   validator.New(),
	}
}

// NotifyPost sends the push message for post. The token stage must succeed
// before any request reaches the push service.
func (s *Service) NotifyPost(ctx context.Context, post types.Post) (*types.DispatchResult, error) {
	logger := s.logger.With("post_id", post.ID, "ward_no", post.Ward())
	if reqID := types.GetRequestID(ctx); reqID != "" {
		logger = logger.With("request_id", reqID)
	}

	if err := ValidatePost(s.validate, post); err != nil {
		return nil, s.fail(ctx, logger, types.StageValidate, err)
	}

	logger.InfoContext(ctx, "new post received", "category", post.Category)

	start := time.Now()
	token, err := s.tokens.AccessToken(ctx, s.cred, s.scope)
	s.metrics.RecordLatency(ctx, types.StageToken, time.Since(start))
	if err != nil {
		return nil, s.fail(ctx, logger, types.StageToken, err)
	}
	s.metrics.RecordAttempt(ctx, types.StageToken, MetricSuccess)

	start = time.Now()
	result, err := s.dispatcher.Dispatch(ctx, s.cred.ProjectID, token, post)
	s.metrics.RecordLatency(ctx, types.StageDispatch, time.Since(start))
	if err != nil {
		return nil, s.fail(ctx, logger, types.StageDispatch, err)
	}
	s.metrics.RecordAttempt(ctx, types.StageDispatch, MetricSuccess)

	logger.InfoContext(ctx, "push dispatched",
		"topic", external.TopicForWard(post.Ward()),
		"status", result.StatusCode,
	)
	return result, nil
}

func (s *Service) fail(ctx context.Context, logger *slog.Logger, stage types.Stage, err error) error {
	s.metrics.RecordAttempt(ctx, stage, MetricFailed)
	logger.ErrorContext(ctx, "notify failed",
		"stage", string(stage),
		"code", string(types.CodeOf(err)),
		"error", err.Error(),
	)
	return err
}

// ValidatePost checks the fields the push message is derived from.
func ValidatePost(v *validator.Validate, post types.Post) error {
	err := v.Struct(post)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return types.NewAppError(types.ErrCodeValidationMissingField, "post is invalid", err)
	}
	for _, fe := range verrs {
		if fe.Field() == "WardNo" && fe.Tag() != "required" {
			return types.NewAppError(types.ErrCodeValidationInvalidWard, "ward_no must be a non-negative integer", err)
		}
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField, "post is missing required fields", err,
		map[string]any{"fields": fields})
}

var _ Notifier = (*Service)(nil)
