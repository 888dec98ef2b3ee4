package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

type mockConnector struct {
	err error
	dsn string
}

func (m *mockConnector) Connect(_ context.Context, dsn string) error {
	m.dsn = dsn
	return m.err
}

func files(m map[string][]byte) func(string) ([]byte, error) {
	return func(path string) ([]byte, error) {
		if b, ok := m[path]; ok {
			return b, nil
		}
		return nil, errors.New("no such file")
	}
}

func serviceAccountJSON(t *testing.T) []byte {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshaling key: %v", err)
	}
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	raw, err := json.MarshalIndent(map[string]string{
		"type":         "service_account",
		"project_id":   "ward-alerts",
		"client_email": "push@ward-alerts.iam.gserviceaccount.com",
		"private_key":  string(pemKey),
	}, "", "  ")
	if err != nil {
		t.Fatalf("marshaling service account: %v", err)
	}
	return raw
}

func roleKey(t *testing.T, role string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": role, "iss": "supabase"}).
		SignedString([]byte("project-jwt-secret"))
	if err != nil {
		t.Fatalf("signing: %v", err)
	}
	return tok
}

func TestValidateServiceAccountFile(t *testing.T) {
	raw := serviceAccountJSON(t)
	v := NewValidatorWithDeps(nil, files(map[string][]byte{
		"sa.json":      raw,
		"broken.json":  []byte(`{"project_id":"x"}`),
		"garbage.json": []byte(`not json`),
	}))

	t.Run("valid key is compacted", func(t *testing.T) {
		res := v.ValidateServiceAccountFile(context.Background(), " sa.json ")
		if !res.Valid {
			t.Fatalf("expected valid, got %q", res.Message)
		}
		if strings.Contains(res.Value, "\n  ") {
			t.Error("stored value should be compact JSON")
		}
		if !strings.Contains(res.Message, "push@ward-alerts.iam.gserviceaccount.com") {
			t.Errorf("message should name the client email: %q", res.Message)
		}
	})

	for _, path := range []string{"missing.json", "broken.json", "garbage.json"} {
		t.Run(path, func(t *testing.T) {
			if res := v.ValidateServiceAccountFile(context.Background(), path); res.Valid {
				t.Errorf("expected %s to be rejected", path)
			}
		})
	}
}

func TestValidateSupabaseURL(t *testing.T) {
	v := NewValidatorWithDeps(nil, nil)
	tests := []struct {
		in    string
		valid bool
		value string
	}{
		{"https://abcd.supabase.co/", true, "https://abcd.supabase.co"},
		{"http://abcd.supabase.co", false, ""},
		{"abcd.supabase.co", false, ""},
		{"https://", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			res := v.ValidateSupabaseURL(context.Background(), tt.in)
			if res.Valid != tt.valid {
				t.Fatalf("Valid = %v, want %v (%s)", res.Valid, tt.valid, res.Message)
			}
			if tt.valid && res.Value != tt.value {
				t.Errorf("Value = %q, want %q", res.Value, tt.value)
			}
		})
	}
}

func TestValidateRoleKeys(t *testing.T) {
	v := NewValidatorWithDeps(nil, nil)
	ctx := context.Background()

	if res := v.ValidateServiceRoleKey(ctx, roleKey(t, "service_role")); !res.Valid {
		t.Errorf("service_role key rejected: %s", res.Message)
	}
	if res := v.ValidateServiceRoleKey(ctx, roleKey(t, "anon")); res.Valid {
		t.Error("anon key accepted as service role key")
	}
	if res := v.ValidateAnonKey(ctx, roleKey(t, "anon")); !res.Valid {
		t.Errorf("anon key rejected: %s", res.Message)
	}
	if res := v.ValidateAnonKey(ctx, "sb_not_a_jwt"); res.Valid {
		t.Error("non-JWT accepted")
	}
}

func TestValidateDatabaseURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		connErr error
		valid   bool
		dialed  bool
	}{
		{"pooler url", "postgres://u:p@db.abcd.supabase.co:6543/postgres", nil, true, true},
		{"postgresql scheme", "postgresql://u:p@host:6543/postgres", nil, true, true},
		{"direct port", "postgres://u:p@host:5432/postgres", nil, false, false},
		{"no port", "postgres://u:p@host/postgres", nil, false, false},
		{"wrong scheme", "mysql://u:p@host:6543/db", nil, false, false},
		{"empty", "  ", nil, false, false},
		{"connect fails", "postgres://u:p@host:6543/postgres", errors.New("password authentication failed"), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &mockConnector{err: tt.connErr}
			v := NewValidatorWithDeps(conn, nil)

			res := v.ValidateDatabaseURL(context.Background(), tt.url)
			if res.Valid != tt.valid {
				t.Errorf("Valid = %v, want %v (%s)", res.Valid, tt.valid, res.Message)
			}
			if (conn.dsn != "") != tt.dialed {
				t.Errorf("dialed = %v, want %v", conn.dsn != "", tt.dialed)
			}
		})
	}
}
