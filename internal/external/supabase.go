package external

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"wardalert/internal/types"
)

// SupabaseAuthConfig holds the project URL and keys for the auth API.
type SupabaseAuthConfig struct {
	Logger         *slog.Logger
	ProjectURL     string
	AnonKey        types.SecretString
	ServiceRoleKey types.SecretString
}

// SupabaseAuthClient talks to the GoTrue endpoints of a Supabase project.
// GetUser runs with the caller's token and the anon key; DeleteUser runs
// with the service-role key.
type SupabaseAuthClient struct {
	base           *BaseClient
	projectURL     string
	anonKey        types.SecretString
	serviceRoleKey types.SecretString
	logger         *slog.Logger
}

// NewSupabaseAuthClient creates a SupabaseAuthClient with its own breaker.
func NewSupabaseAuthClient(httpClient *http.Client, cfg SupabaseAuthConfig) *SupabaseAuthClient {
	base := NewBaseClient(httpClient, "supabase-auth", BoundedRetryPolicy(1), userAgent)
	return NewSupabaseAuthClientWithBase(base, cfg)
}

// NewSupabaseAuthClientWithBase creates a SupabaseAuthClient with a pre-configured BaseClient.
func NewSupabaseAuthClientWithBase(base *BaseClient, cfg SupabaseAuthConfig) *SupabaseAuthClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SupabaseAuthClient{
		base:           base,
		projectURL:     strings.TrimRight(cfg.ProjectURL, "/"),
		anonKey:        cfg.AnonKey,
		serviceRoleKey: cfg.ServiceRoleKey,
		logger:         logger,
	}
}

// GetUser resolves the user that owns userToken. A rejected token maps to
// auth_token_invalid.
func (c *SupabaseAuthClient) GetUser(ctx context.Context, userToken string) (*types.AuthUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.projectURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create auth user request", err)
	}
	req.Header.Set("Authorization", "Bearer "+userToken)
	req.Header.Set("apikey", c.anonKey.Unmask())
	req.Header.Set("Accept", "application/json")

	resp, err := c.base.Do(req, types.ErrCodeUpstreamAuth)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, handleUpstreamError(types.ErrCodeAuthTokenInvalid, "auth user lookup", resp)
	case resp.StatusCode != http.StatusOK:
		return nil, handleUpstreamError(types.ErrCodeUpstreamAuth, "auth user lookup", resp)
	}

	var user types.AuthUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamAuth, "failed to decode auth user", err)
	}
	if user.ID == "" {
		return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "auth service returned no user", nil)
	}
	return &user, nil
}

// DeleteUser removes the auth user. A 404 maps to not_found_user.
func (c *SupabaseAuthClient) DeleteUser(ctx context.Context, userID string) error {
	endpoint := c.projectURL + "/auth/v1/admin/users/" + url.PathEscape(userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create auth delete request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceRoleKey.Unmask())
	req.Header.Set("apikey", c.serviceRoleKey.Unmask())

	resp, err := c.base.Do(req, types.ErrCodeUpstreamAuth)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return handleUpstreamError(types.ErrCodeNotFoundUser, "auth user delete", resp)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return handleUpstreamError(types.ErrCodeUpstreamAuth, "auth user delete", resp)
	}

	c.logger.InfoContext(ctx, "auth user deleted", "user_id", userID)
	return nil
}

var _ AuthAdmin = (*SupabaseAuthClient)(nil)
