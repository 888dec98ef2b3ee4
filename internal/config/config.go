// Package config defines the process configuration for the wardalert
// functions. Configuration is loaded once at cold start and is immutable
// thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// A missing required value or an invalid format fails startup.
package config

import (
	"time"

	"wardalert/internal/types"
)

// SecretString is an alias for types.SecretString so configuration structs
// can declare redacted fields without importing types.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the config subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"wardalert"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server   ServerConfig
	Push     PushConfig
	Supabase SupabaseConfig
	Storage  StorageConfig
	AWS      AWSConfig
	Cleanup  CleanupConfig
	Metrics  MetricsConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port               string        `envconfig:"PORT" default:"8080"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"29s"`
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// PushConfig holds the service-account credential and push-service settings.
type PushConfig struct {
	// ServiceAccountJSON is the raw service-account key blob
	// ({project_id, client_email, private_key, ...}). Only the entry points
	// that push require it; see app.ParseCredential.
	ServiceAccountJSON SecretString `envconfig:"FIREBASE_SERVICE_ACCOUNT"`

	Scope       string        `envconfig:"PUSH_SCOPE" default:"https://www.googleapis.com/auth/cloud-platform" validate:"required"`
	TokenURL    string        `envconfig:"PUSH_TOKEN_URL" validate:"omitempty,url"`
	BaseURL     string        `envconfig:"PUSH_BASE_URL" default:"https://fcm.googleapis.com" validate:"url"`
	HTTPTimeout time.Duration `envconfig:"PUSH_HTTP_TIMEOUT" default:"10s"`
	MaxRetries  int           `envconfig:"PUSH_MAX_RETRIES" default:"0" validate:"gte=0,lte=3"`

	// QueueURL, when set, makes the HTTP trigger enqueue posts for the push
	// worker instead of dispatching inline.
	QueueURL string `envconfig:"PUSH_QUEUE_URL" validate:"omitempty,url"`
}

// SupabaseConfig holds the project URL and keys used by the account deletion
// cascade.
type SupabaseConfig struct {
	URL            string       `envconfig:"SUPABASE_URL" validate:"omitempty,url"`
	AnonKey        SecretString `envconfig:"SUPABASE_ANON_KEY"`
	ServiceRoleKey SecretString `envconfig:"SUPABASE_SERVICE_ROLE_KEY"`
	DatabaseURL    SecretString `envconfig:"DATABASE_URL"`
	MaxConns       int32        `envconfig:"DB_MAX_CONNS" default:"4"`
}

// StorageConfig holds the S3-compatible storage endpoint that backs the
// temporary video bucket.
type StorageConfig struct {
	Endpoint    string       `envconfig:"STORAGE_S3_ENDPOINT" validate:"omitempty,url"`
	Region      string       `envconfig:"STORAGE_S3_REGION" default:"us-east-1"`
	AccessKeyID string       `envconfig:"STORAGE_S3_ACCESS_KEY_ID"`
	SecretKey   SecretString `envconfig:"STORAGE_S3_SECRET_ACCESS_KEY"`
	VideoBucket string       `envconfig:"STORAGE_VIDEO_BUCKET" default:"temp_videos"`
}

// AWSConfig holds AWS regional configuration for SQS, CloudWatch and SSM.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// CleanupConfig tunes the expired-video job.
type CleanupConfig struct {
	MaxAge      time.Duration `envconfig:"VIDEO_MAX_AGE" default:"24h"`
	Concurrency int           `envconfig:"CLEANUP_CONCURRENCY" default:"4" validate:"gte=1,lte=32"`
}

// MetricsConfig toggles CloudWatch emission.
type MetricsConfig struct {
	Enabled   bool   `envconfig:"METRICS_ENABLED" default:"false"`
	Namespace string `envconfig:"METRIC_NAMESPACE" default:"WardAlert"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
