package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"wardalert/internal/types"
)

type mockAuthenticator struct {
	userID string
	err    error
	tokens []string
}

func (m *mockAuthenticator) Authenticate(_ context.Context, token string) (string, error) {
	m.tokens = append(m.tokens, token)
	return m.userID, m.err
}

func serveRequireUser(t *testing.T, auth Authenticator, header string) (*httptest.ResponseRecorder, string) {
	t.Helper()
	srv := newTestServer(t)
	srv.Authenticator = auth

	var seenUser string
	handler := srv.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser, _ = types.GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/account/delete", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, seenUser
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) APIErrorResponse {
	t.Helper()
	var resp APIErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error body %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestRequireUser_ValidToken_InjectsUserID(t *testing.T) {
	auth := &mockAuthenticator{userID: "u-1"}
	rec, user := serveRequireUser(t, auth, "Bearer user-jwt")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if user != "u-1" {
		t.Errorf("expected user u-1 in context, got %q", user)
	}
	if len(auth.tokens) != 1 || auth.tokens[0] != "user-jwt" {
		t.Errorf("unexpected tokens passed to authenticator: %v", auth.tokens)
	}
}

func TestRequireUser_MissingHeader_Returns401(t *testing.T) {
	auth := &mockAuthenticator{userID: "u-1"}
	rec, _ := serveRequireUser(t, auth, "")

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	resp := decodeError(t, rec)
	if resp.Code != string(types.ErrCodeAuthTokenMissing) {
		t.Errorf("expected code %s, got %s", types.ErrCodeAuthTokenMissing, resp.Code)
	}
	if resp.Error != "Missing Authorization header" {
		t.Errorf("unexpected message %q", resp.Error)
	}
	if len(auth.tokens) != 0 {
		t.Error("authenticator must not be called without a token")
	}
}

func TestRequireUser_NonBearerScheme_Returns401(t *testing.T) {
	rec, _ := serveRequireUser(t, &mockAuthenticator{userID: "u-1"}, "Basic dXNlcjpwYXNz")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireUser_RejectedToken(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   types.ErrorCode
	}{
		{"app error passes through", types.NewAppError(types.ErrCodeAuthTokenInvalid, "Unauthorized", nil), http.StatusUnauthorized, types.ErrCodeAuthTokenInvalid},
		{"generic error becomes invalid", errors.New("boom"), http.StatusUnauthorized, types.ErrCodeAuthTokenInvalid},
		{"upstream outage is 502", types.NewAppError(types.ErrCodeUpstreamAuth, "auth service unavailable", nil), http.StatusBadGateway, types.ErrCodeUpstreamAuth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, user := serveRequireUser(t, &mockAuthenticator{err: tt.err}, "bearer some-jwt")
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
			if user != "" {
				t.Error("handler must not run")
			}
			if got := decodeError(t, rec).Code; got != string(tt.wantCode) {
				t.Errorf("expected code %s, got %s", tt.wantCode, got)
			}
		})
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := map[string]string{
		"Bearer abc":     "abc",
		"bearer abc":     "abc",
		"BEARER  abc ":   "abc",
		"Bearer ":        "",
		"Token abc":      "",
		"":               "",
		"Bearerabcdefgh": "",
	}
	for in, want := range tests {
		if got := extractBearerToken(in); got != want {
			t.Errorf("extractBearerToken(%q) = %q, want %q", in, got, want)
		}
	}
}
