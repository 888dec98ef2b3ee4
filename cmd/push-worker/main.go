// Package main is the entry point for the push worker Lambda.
//
// The worker consumes PushJobs from the push queue (filled by the API when
// PUSH_QUEUE_URL is set) and runs the inline notify flow for each post. It
// reports partial batch failures so SQS redelivers only the jobs that hit a
// transient upstream error. Malformed jobs, invalid posts and credential
// problems are acknowledged: redelivery cannot fix them.
//
// With APP_ENV=local a single SQS event is read from stdin instead.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"wardalert/internal/app"
	"wardalert/internal/config"
	"wardalert/internal/types"
)

// PostNotifier runs the notify flow for one post.
type PostNotifier interface {
	NotifyPost(ctx context.Context, post types.Post) (*types.DispatchResult, error)
}

// Handler holds the dependencies of the SQS handler.
type Handler struct {
	notifier PostNotifier
	logger   types.Logger
}

// Handle processes one SQS batch. Each message is independent.
func (h *Handler) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range sqsEvent.Records {
		if err := h.processMessage(ctx, record); err != nil {
			h.logger.Error("push job failed; will retry",
				"message_id", record.MessageId,
				"error", err.Error(),
			)
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
			)
		}
	}

	return response, nil
}

// processMessage returns an error only when the job should be redelivered.
func (h *Handler) processMessage(ctx context.Context, record events.SQSMessage) error {
	var job types.PushJob
	if err := json.Unmarshal([]byte(record.Body), &job); err != nil {
		h.logger.Error("failed to unmarshal push job",
			"message_id", record.MessageId,
			"error", err.Error(),
		)
		return nil
	}

	logger := h.logger.With(
		"job_id", job.JobID,
		"trace_id", job.TraceID,
		"post_id", job.Post.ID,
		"receive_count", record.Attributes["ApproximateReceiveCount"],
	)
	if attr, ok := record.MessageAttributes[types.PushJobAttrReason]; ok && attr.StringValue != nil {
		logger = logger.With("reason", *attr.StringValue)
	}

	if job.TraceID != "" {
		ctx = types.WithRequestID(ctx, job.TraceID)
	}

	result, err := h.notifier.NotifyPost(ctx, job.Post)
	if err != nil {
		if isPermanent(err) {
			logger.Error("dropping push job", "code", string(types.CodeOf(err)), "error", err.Error())
			return nil
		}
		return err
	}

	logger.Info("push job delivered", "status", result.StatusCode)
	return nil
}

// isPermanent reports whether redelivering the job cannot succeed: the post
// is invalid, the credential is broken, or the upstream rejected the
// request with a 4xx other than 408 and 429.
func isPermanent(err error) bool {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		return false
	}

	switch {
	case types.IsCredentialError(err), types.IsSigningError(err):
		return true
	case strings.HasPrefix(string(appErr.Code), "validation_"):
		return true
	}

	status, _ := appErr.Details["status"].(int)
	if status >= 400 && status < 500 {
		return status != http.StatusRequestTimeout && status != http.StatusTooManyRequests
	}
	return false
}

func main() {
	ctx := context.Background()

	cfg, err := config.LoadConfig(ctx, config.SecretProviderFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg.LogLevel)
	logger.Info("push worker initializing (cold start)", "version", cfg.Build.Version)

	handler, err := newHandler(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize push worker", "error", err)
		os.Exit(1)
	}

	if cfg.Environment == "local" {
		runLocal(ctx, handler, logger)
		return
	}
	lambda.Start(handler.Handle)
}

func newHandler(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Handler, error) {
	cred, err := app.ParseCredential(cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing service account: %w", err)
	}
	awsCfg, err := app.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	metrics := app.NewMetrics(cfg, awsCfg, logger)
	return &Handler{
		notifier: app.NewPushService(cfg, cred, metrics, logger),
		logger:   app.TypedLogger(logger),
	}, nil
}

// runLocal feeds one SQS event from stdin through the handler.
func runLocal(ctx context.Context, handler *Handler, logger *slog.Logger) {
	var event events.SQSEvent
	if err := json.NewDecoder(os.Stdin).Decode(&event); err != nil {
		logger.Error("failed to decode SQS event from stdin", "error", err)
		os.Exit(1)
	}
	resp, _ := handler.Handle(ctx, event)
	_ = json.NewEncoder(os.Stdout).Encode(resp)
}
