// Package main is the entry point for the video cleaner Lambda.
//
// An EventBridge schedule invokes the handler, which runs one expired-video
// pass: video posts older than VIDEO_MAX_AGE have their object removed from
// the video bucket, their media_url cleared and an expiry marker appended to
// the content. The same pass is reachable over HTTP through
// POST /v1/cleanup-videos on the API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/google/uuid"

	"wardalert/internal/app"
	"wardalert/internal/cleanup"
	"wardalert/internal/config"
)

// Payload is the EventBridge input. ReferenceTime overrides the clock for
// backfills and manual runs.
type Payload struct {
	ReferenceTime *time.Time `json:"reference_time,omitempty"`
}

// Runner runs one expired-video pass.
type Runner interface {
	Run(ctx context.Context, now time.Time) (cleanup.Result, error)
}

// Handler holds the dependencies of the scheduled handler.
type Handler struct {
	Runner Runner
	RunID  string
	Logger *slog.Logger
	Now    func() time.Time
}

// Handle runs one pass and returns a short summary for the invocation log.
func (h *Handler) Handle(ctx context.Context, payload Payload) (string, error) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}

	ref := now().UTC()
	if payload.ReferenceTime != nil {
		ref = payload.ReferenceTime.UTC()
	}

	logger.InfoContext(ctx, "video cleaner invoked",
		"reference_time", ref.Format(time.RFC3339),
		"run_id", h.RunID,
	)

	res, err := h.Runner.Run(ctx, ref)
	if err != nil {
		logger.ErrorContext(ctx, "video cleanup failed",
			"run_id", h.RunID,
			"error", err,
		)
		return "", fmt.Errorf("video cleanup: %w", err)
	}

	if res.Found == 0 {
		return "no expired videos found", nil
	}

	summary := fmt.Sprintf("cleanup complete: %d of %d videos deleted", res.Deleted, res.Found)
	logger.InfoContext(ctx, summary,
		"found", res.Found,
		"deleted", res.Deleted,
		"skipped", res.Skipped,
	)
	return summary, nil
}

func main() {
	ctx := context.Background()

	cfg, err := config.LoadConfig(ctx, config.SecretProviderFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg.LogLevel)
	logger.Info("video cleaner initializing (cold start)", "version", cfg.Build.Version)

	awsCfg, err := app.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	pool, err := app.NewPool(ctx, cfg)
	if err != nil {
		logger.Error("failed to open database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	metrics := app.NewMetrics(cfg, awsCfg, logger)
	handler := &Handler{
		Runner: app.NewCleanupService(cfg, awsCfg, pool, metrics, logger),
		RunID:  uuid.New().String(),
		Logger: logger,
	}

	lambda.Start(handler.Handle)
}
