package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"wardalert/internal/types"
)

// JWTBearerGrantType is the OAuth2 grant for signed service-account assertions.
const JWTBearerGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"

// userAgent identifies outbound calls from this service.
const userAgent = "WardAlert/1.0"

// TokenClientConfig holds the configuration for TokenClient.
type TokenClientConfig struct {
	Logger *slog.Logger

	// Signer defaults to a wall-clock JWTSigner.
	Signer AssertionSigner

	// TokenURL overrides the credential's token_uri. Used in tests and when
	// the endpoint is fronted by a proxy.
	TokenURL string
}

// tokenResponse is the success body of the token endpoint.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// TokenClient exchanges signed assertions for bearer tokens.
type TokenClient struct {
	base     *BaseClient
	signer   AssertionSigner
	tokenURL string
	logger   *slog.Logger
}

// NewTokenClient creates a TokenClient with its own breaker.
func NewTokenClient(httpClient *http.Client, retry RetryPolicy, cfg TokenClientConfig) *TokenClient {
	base := NewBaseClient(httpClient, "oauth-token", retry, userAgent)
	return NewTokenClientWithBase(base, cfg)
}

// NewTokenClientWithBase creates a TokenClient with a pre-configured BaseClient.
func NewTokenClientWithBase(base *BaseClient, cfg TokenClientConfig) *TokenClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	signer := cfg.Signer
	if signer == nil {
		signer = NewJWTSigner()
	}
	return &TokenClient{
		base:     base,
		signer:   signer,
		tokenURL: cfg.TokenURL,
		logger:   logger,
	}
}

// AccessToken signs a fresh assertion and exchanges it at the credential's
// token endpoint.
func (c *TokenClient) AccessToken(ctx context.Context, cred *types.ServiceAccountCredential, scope string) (*types.BearerToken, error) {
	assertion, err := c.signer.Sign(cred, scope)
	if err != nil {
		return nil, err
	}
	return c.Exchange(ctx, c.endpointFor(cred), assertion)
}

// Exchange POSTs the assertion to endpoint using the jwt-bearer grant.
// Any non-2xx status, transport failure, undecodable body or empty
// access_token is reported as upstream_token_exchange_failed.
func (c *TokenClient) Exchange(ctx context.Context, endpoint, assertion string) (*types.BearerToken, error) {
	form := url.Values{}
	form.Set("grant_type", JWTBearerGrantType)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create token exchange request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.base.Do(req, types.ErrCodeUpstreamExchange)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, handleUpstreamError(types.ErrCodeUpstreamExchange, "token exchange", resp)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamExchange, "failed to decode token response", err)
	}
	if tr.AccessToken == "" {
		return nil, types.NewAppError(types.ErrCodeUpstreamExchange, "token endpoint returned empty access token", nil)
	}

	c.logger.DebugContext(ctx, "token exchanged",
		"expires_in", tr.ExpiresIn,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &types.BearerToken{
		AccessToken: types.SecretString(tr.AccessToken),
		TokenType:   tr.TokenType,
		ExpiresIn:   tr.ExpiresIn,
	}, nil
}

func (c *TokenClient) endpointFor(cred *types.ServiceAccountCredential) string {
	switch {
	case c.tokenURL != "":
		return c.tokenURL
	case cred != nil && cred.TokenURI != "":
		return cred.TokenURI
	default:
		return DefaultTokenURL
	}
}

// ---------------------------------------------------------------------------
// Shared Error Helpers
// ---------------------------------------------------------------------------

// handleUpstreamError converts a non-2xx response into an AppError carrying
// the status and a truncated body.
func handleUpstreamError(code types.ErrorCode, operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return types.NewAppErrorWithDetails(
		code,
		fmt.Sprintf("%s failed (%d): %s", operation, resp.StatusCode, truncateBody(body)),
		nil,
		map[string]any{"status": resp.StatusCode},
	)
}

// truncateBody returns a string representation of the body, truncated to a reasonable length.
func truncateBody(body []byte) string {
	const maxLen = 200
	s := string(body)
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}

var _ TokenSource = (*TokenClient)(nil)
