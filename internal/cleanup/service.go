// Package cleanup expires short video attachments once they are older than
// the retention window: the object is removed from the temporary bucket and
// the post is rewritten to say the video is gone.
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"wardalert/internal/types"
)

// ExpiredMarker is appended to the content of every post whose video was removed.
const ExpiredMarker = "[वीडियो हटा दिया गया है / Video Expired]"

// DefaultMaxAge is how long a short video is kept.
const DefaultMaxAge = 24 * time.Hour

// PostStore is the subset of the posts repository the job needs.
type PostStore interface {
	ListExpiredVideos(ctx context.Context, cutoff time.Time) ([]types.Post, error)
	MarkVideoExpired(ctx context.Context, postID, content string) error
}

// ObjectDeleter removes one object from the video bucket.
type ObjectDeleter interface {
	Bucket() string
	Delete(ctx context.Context, key string) error
}

// Metrics records the number of videos a run expired.
type Metrics interface {
	RecordVideosExpired(ctx context.Context, n int)
}

// Result summarises one run.
type Result struct {
	Found   int
	Deleted int
	Skipped int
}

// Config holds the dependencies and tuning of Service.
type Config struct {
	Posts       PostStore
	Objects     ObjectDeleter
	Metrics     Metrics
	MaxAge      time.Duration
	Concurrency int
	Logger      *slog.Logger
}

// Service runs the expiry job.
type Service struct {
	posts       PostStore
	objects     ObjectDeleter
	metrics     Metrics
	maxAge      time.Duration
	concurrency int
	logger      *slog.Logger
}

// NewService creates a Service. Zero MaxAge and Concurrency take defaults.
func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Service{
		posts:       cfg.Posts,
		objects:     cfg.Objects,
		metrics:     cfg.Metrics,
		maxAge:      maxAge,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Run expires every short video created at or before now-MaxAge. Only the
// listing query can fail the run; per-post failures are logged and skipped so
// the next run picks them up again.
func (s *Service) Run(ctx context.Context, now time.Time) (Result, error) {
	cutoff := now.Add(-s.maxAge)

	posts, err := s.posts.ListExpiredVideos(ctx, cutoff)
	if err != nil {
		return Result{}, fmt.Errorf("listing expired videos: %w", err)
	}

	if len(posts) == 0 {
		s.logger.InfoContext(ctx, "no expired videos found", "cutoff", cutoff.Format(time.RFC3339))
		return Result{}, nil
	}

	s.logger.InfoContext(ctx, "expiring videos",
		"count", len(posts),
		"cutoff", cutoff.Format(time.RFC3339),
	)

	var deleted atomic.Int64
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, post := range posts {
		g.Go(func() error {
			if s.expire(gCtx, post) {
				deleted.Add(1)
			}
			// Per-post errors never cancel the remaining posts.
			return nil
		})
	}
	_ = g.Wait()

	res := Result{
		Found:   len(posts),
		Deleted: int(deleted.Load()),
	}
	res.Skipped = res.Found - res.Deleted

	if s.metrics != nil {
		s.metrics.RecordVideosExpired(ctx, res.Deleted)
	}

	s.logger.InfoContext(ctx, "video cleanup complete",
		"found", res.Found,
		"deleted", res.Deleted,
		"skipped", res.Skipped,
	)
	return res, nil
}

// expire handles one post and reports whether it was fully cleaned up.
func (s *Service) expire(ctx context.Context, post types.Post) bool {
	logger := s.logger.With("post_id", post.ID)

	if post.MediaURL == nil {
		return false
	}
	key, ok := ObjectKey(*post.MediaURL, s.objects.Bucket())
	if !ok {
		logger.WarnContext(ctx, "malformed media_url", "media_url", *post.MediaURL)
		return false
	}

	if err := s.objects.Delete(ctx, key); err != nil {
		if types.CodeOf(err) != types.ErrCodeNotFoundObject {
			logger.ErrorContext(ctx, "failed to delete video object", "key", key, "error", err.Error())
			return false
		}
		logger.InfoContext(ctx, "video object already gone", "key", key)
	}

	if err := s.posts.MarkVideoExpired(ctx, post.ID, ExpiredContent(post.Content)); err != nil {
		logger.ErrorContext(ctx, "failed to mark post expired", "error", err.Error())
		return false
	}

	logger.InfoContext(ctx, "video expired", "key", key)
	return true
}

// ObjectKey extracts the object path that follows "/<bucket>/" in a public
// storage URL.
func ObjectKey(mediaURL, bucket string) (string, bool) {
	parts := strings.Split(mediaURL, "/"+bucket+"/")
	if len(parts) < 2 || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// ExpiredContent appends ExpiredMarker to content, separated by a blank line
// when content is non-empty.
func ExpiredContent(content string) string {
	if content == "" {
		return ExpiredMarker
	}
	return content + "\n\n" + ExpiredMarker
}
