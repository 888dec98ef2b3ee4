// Package account removes a user and everything they own.
package account

import (
	"context"
	"log/slog"

	"wardalert/internal/external"
)

// PostDeleter removes all posts of a user.
type PostDeleter interface {
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}

// ProfileDeleter removes the profile row of a user.
type ProfileDeleter interface {
	Delete(ctx context.Context, userID string) error
}

// Service runs the deletion cascade: posts, then profile, then the auth user.
// The caller's token stays valid until the final step.
type Service struct {
	auth     external.AuthAdmin
	posts    PostDeleter
	profiles ProfileDeleter
	logger   *slog.Logger
}

// NewService creates a Service.
func NewService(auth external.AuthAdmin, posts PostDeleter, profiles ProfileDeleter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{auth: auth, posts: posts, profiles: profiles, logger: logger}
}

// Authenticate resolves the user that owns the bearer token.
func (s *Service) Authenticate(ctx context.Context, userToken string) (string, error) {
	user, err := s.auth.GetUser(ctx, userToken)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// DeleteAccount removes everything owned by userID.
func (s *Service) DeleteAccount(ctx context.Context, userID string) error {
	logger := s.logger.With("user_id", userID)

	n, err := s.posts.DeleteByUser(ctx, userID)
	if err != nil {
		logger.ErrorContext(ctx, "failed to delete posts", "error", err.Error())
		return err
	}
	logger.InfoContext(ctx, "posts deleted", "count", n)

	if err := s.profiles.Delete(ctx, userID); err != nil {
		logger.ErrorContext(ctx, "failed to delete profile", "error", err.Error())
		return err
	}

	if err := s.auth.DeleteUser(ctx, userID); err != nil {
		logger.ErrorContext(ctx, "failed to delete auth user", "error", err.Error())
		return err
	}

	logger.InfoContext(ctx, "account deleted")
	return nil
}
