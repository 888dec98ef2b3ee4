package external

import (
	"context"

	"wardalert/internal/types"
)

// ---------------------------------------------------------------------------
// Push Delivery
// ---------------------------------------------------------------------------

// AssertionSigner produces a signed, single-use JWT assertion for the
// service-account grant.
type AssertionSigner interface {
	// Sign builds and signs the assertion for the given scope. The audience is
	// the credential's token endpoint.
	Sign(cred *types.ServiceAccountCredential, scope string) (string, error)
}

// TokenSource obtains a fresh bearer token for the push service.
type TokenSource interface {
	// AccessToken signs a new assertion and exchanges it. Tokens are not
	// cached; every call performs a full exchange.
	AccessToken(ctx context.Context, cred *types.ServiceAccountCredential, scope string) (*types.BearerToken, error)
}

// PushDispatcher sends a topic-targeted push message derived from a post.
type PushDispatcher interface {
	Dispatch(ctx context.Context, projectID string, token *types.BearerToken, post types.Post) (*types.DispatchResult, error)
}

// ---------------------------------------------------------------------------
// Identity (Supabase Auth)
// ---------------------------------------------------------------------------

// AuthAdmin resolves end users from their access token and removes them.
type AuthAdmin interface {
	// GetUser resolves the user owning the given bearer token.
	GetUser(ctx context.Context, userToken string) (*types.AuthUser, error)

	// DeleteUser removes the auth user using the service-role key.
	DeleteUser(ctx context.Context, userID string) error
}
