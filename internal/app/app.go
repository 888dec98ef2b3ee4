// Package app assembles the services shared by the wardalert entry points
// (the HTTP API, the push worker and the video cleaner) from a loaded
// config.Config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/jackc/pgx/v5/pgxpool"

	"wardalert/internal/cleanup"
	"wardalert/internal/config"
	"wardalert/internal/core"
	"wardalert/internal/db"
	"wardalert/internal/external"
	"wardalert/internal/notify"
	"wardalert/internal/storage"
	"wardalert/internal/types"
)

// Metrics is the union of the telemetry interfaces the services consume.
// Both notify.CloudWatchMetrics and notify.NoopMetrics implement it.
type Metrics interface {
	notify.Metrics
	cleanup.Metrics
	core.MetricsCollector
}

// NewLogger creates the JSON logger used by every entry point.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// slogAdapter wraps *slog.Logger to implement types.Logger, whose With
// returns the interface rather than *slog.Logger.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogAdapter) With(args ...any) types.Logger {
	return &slogAdapter{logger: a.logger.With(args...)}
}

// TypedLogger adapts logger to types.Logger.
func TypedLogger(logger *slog.Logger) types.Logger {
	return &slogAdapter{logger: logger}
}

// LoadAWSConfig loads the default AWS configuration for cfg.AWS. A set
// EndpointURL points every client at LocalStack.
func LoadAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS SDK config: %w", err)
	}
	if cfg.AWS.EndpointURL != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
	}
	return awsCfg, nil
}

// NewMetrics returns CloudWatch metrics when enabled, otherwise a no-op.
func NewMetrics(cfg *config.Config, awsCfg aws.Config, logger *slog.Logger) Metrics {
	if !cfg.Metrics.Enabled {
		return notify.NoopMetrics{}
	}
	return notify.NewCloudWatchMetrics(cloudwatch.NewFromConfig(awsCfg), cfg.Metrics.Namespace, TypedLogger(logger))
}

// ParseCredential parses the service-account secret. Startup must abort on
// error: a credential that fails here fails every invocation.
func ParseCredential(cfg *config.Config) (*types.ServiceAccountCredential, error) {
	raw := cfg.Push.ServiceAccountJSON.Unmask()
	if strings.TrimSpace(raw) == "" {
		return nil, types.NewAppError(types.ErrCodeCredentialInvalid, "FIREBASE_SERVICE_ACCOUNT is required", nil)
	}
	return external.ParseServiceAccount([]byte(raw))
}

// retryPolicy maps PUSH_MAX_RETRIES to a RetryPolicy. Zero disables retries.
func retryPolicy(maxRetries int) external.RetryPolicy {
	if maxRetries <= 0 {
		return external.NoRetryPolicy()
	}
	return external.BoundedRetryPolicy(maxRetries)
}

// NewPushService wires the token client and push dispatcher into an inline
// notify.Service.
func NewPushService(cfg *config.Config, cred *types.ServiceAccountCredential, metrics notify.Metrics, logger *slog.Logger) *notify.Service {
	httpClient := &http.Client{Timeout: cfg.Push.HTTPTimeout}
	retry := retryPolicy(cfg.Push.MaxRetries)

	return notify.NewService(notify.Config{
		Credential: cred,
		Scope:      cfg.Push.Scope,
		Tokens: external.NewTokenClient(httpClient, retry, external.TokenClientConfig{
			Logger:   logger,
			TokenURL: cfg.Push.TokenURL,
		}),
		Dispatcher: external.NewFCMDispatcher(httpClient, retry, external.FCMDispatcherConfig{
			Logger:  logger,
			BaseURL: cfg.Push.BaseURL,
		}),
		Metrics: metrics,
		Logger:  logger,
	})
}

// NewPool opens the posts database pool. DATABASE_URL must be set.
func NewPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if cfg.Supabase.DatabaseURL.IsEmpty() {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return db.NewPool(ctx, cfg.Supabase.DatabaseURL.Unmask(), cfg.Supabase.MaxConns)
}

// NewCleanupService wires the posts repository and the video bucket into a
// cleanup.Service.
func NewCleanupService(cfg *config.Config, awsCfg aws.Config, pool db.DBTX, metrics cleanup.Metrics, logger *slog.Logger) *cleanup.Service {
	s3Client := storage.NewS3Client(awsCfg, storage.EndpointConfig{
		Endpoint:    cfg.Storage.Endpoint,
		Region:      cfg.Storage.Region,
		AccessKeyID: cfg.Storage.AccessKeyID,
		SecretKey:   cfg.Storage.SecretKey,
	})

	return cleanup.NewService(cleanup.Config{
		Posts:       db.NewPostRepository(pool),
		Objects:     storage.NewObjectStore(s3Client, cfg.Storage.VideoBucket, logger),
		Metrics:     metrics,
		MaxAge:      cfg.Cleanup.MaxAge,
		Concurrency: cfg.Cleanup.Concurrency,
		Logger:      logger,
	})
}
