// Package storage deletes objects from the project's S3-compatible storage
// endpoint. Supabase Storage exposes buckets over the S3 protocol, so the
// regular aws-sdk-go-v2 client is pointed at it with path-style addressing.
package storage

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"wardalert/internal/types"
)

// S3API abstracts the S3 operations used here for testability.
type S3API interface {
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// EndpointConfig describes an S3-compatible endpoint.
type EndpointConfig struct {
	Endpoint    string
	Region      string
	AccessKeyID string
	SecretKey   types.SecretString
}

// NewS3Client builds an *s3.Client for cfg. An empty Endpoint falls back to
// the regular AWS endpoint resolution of base.
func NewS3Client(base aws.Config, cfg EndpointConfig) *s3.Client {
	return s3.NewFromConfig(base, func(o *s3.Options) {
		if cfg.Region != "" {
			o.Region = cfg.Region
		}
		if cfg.AccessKeyID != "" {
			o.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey.Unmask(), "")
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
}

// ObjectStore deletes objects from one bucket.
type ObjectStore struct {
	client S3API
	bucket string
	logger *slog.Logger
}

// NewObjectStore creates an ObjectStore for bucket.
func NewObjectStore(client S3API, bucket string, logger *slog.Logger) *ObjectStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ObjectStore{client: client, bucket: bucket, logger: logger}
}

// Bucket returns the bucket this store deletes from.
func (s *ObjectStore) Bucket() string { return s.bucket }

// Delete removes key. An object that is already gone is reported as
// not_found_storage_object so callers can decide whether that matters.
func (s *ObjectStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		s.logger.DebugContext(ctx, "storage object deleted", "bucket", s.bucket, "key", key)
		return nil
	}
	if isNotFound(err) {
		return types.NewAppError(types.ErrCodeNotFoundObject, "storage object not found", err).
			WithDetails(map[string]any{"bucket": s.bucket, "key": key})
	}
	return types.NewAppError(types.ErrCodeInternalStorage, "failed to delete storage object", err).
		WithDetails(map[string]any{"bucket": s.bucket, "key": key})
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "404":
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "not found")
}
