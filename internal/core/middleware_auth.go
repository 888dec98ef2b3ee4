package core

import (
	"log/slog"
	"net/http"
	"strings"

	"wardalert/internal/types"
)

// RequireUser resolves the caller's bearer token through s.Authenticator and
// stores the user ID in the request context. It is mounted only on routes
// that act on behalf of an end user.
//
//   - auth_token_missing: no Authorization header or an empty Bearer token.
//   - auth_token_invalid: the auth service rejected the token.
//
// Other AppErrors from the Authenticator (e.g. upstream_auth_unavailable) are
// written unchanged.
func (s *Server) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Authenticator == nil {
			Error(w, r, types.NewAppError(types.ErrCodeInternalUnexpected, "authentication is not configured", nil))
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Missing Authorization header", nil))
			return
		}

		token := extractBearerToken(authHeader)
		if token == "" {
			Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Bearer token is required", nil))
			return
		}

		userID, err := s.Authenticator.Authenticate(r.Context(), token)
		if err != nil {
			code := types.CodeOf(err)
			s.Logger.Warn("authentication failed",
				slog.String("path", r.URL.Path),
				slog.String("error_code", string(code)),
			)
			if code == "" {
				err = types.NewAppError(types.ErrCodeAuthTokenInvalid, "Unauthorized", err)
			}
			Error(w, r, err)
			return
		}
		if userID == "" {
			Error(w, r, types.NewAppError(types.ErrCodeAuthTokenInvalid, "Unauthorized", nil))
			return
		}

		next.ServeHTTP(w, r.WithContext(types.WithUserID(r.Context(), userID)))
	})
}

// extractBearerToken returns the token from a "Bearer <token>" header value.
// The scheme is matched case-insensitively.
func extractBearerToken(authHeader string) string {
	const prefix = "Bearer "
	if len(authHeader) < len(prefix) {
		return ""
	}
	if !strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(authHeader[len(prefix):])
}
