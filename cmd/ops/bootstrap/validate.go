package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"

	"wardalert/internal/external"
)

// ValidationResult is the outcome of one validation check. Value, when set,
// replaces the operator's input as the value written to SSM.
type ValidationResult struct {
	Valid   bool
	Message string
	Value   string
}

// DatabaseConnector opens and immediately closes a connection to dsn.
type DatabaseConnector interface {
	Connect(ctx context.Context, dsn string) error
}

// PgxConnector dials the database with pgx.
type PgxConnector struct{}

// Connect verifies that dsn is reachable and the credentials are accepted.
func (c *PgxConnector) Connect(ctx context.Context, dsn string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	return conn.Close(ctx)
}

// Validator holds the dependencies of the input checks.
type Validator struct {
	dbConn   DatabaseConnector
	readFile func(string) ([]byte, error)
	signer   *external.JWTSigner
}

// NewValidator creates a Validator with production dependencies.
func NewValidator() *Validator {
	return &Validator{
		dbConn:   &PgxConnector{},
		readFile: os.ReadFile,
		signer:   external.NewJWTSigner(),
	}
}

// NewValidatorWithDeps creates a Validator with injected dependencies.
func NewValidatorWithDeps(dbConn DatabaseConnector, readFile func(string) ([]byte, error)) *Validator {
	return &Validator{
		dbConn:   dbConn,
		readFile: readFile,
		signer:   external.NewJWTSigner(),
	}
}

const validateTimeout = 15 * time.Second

// ValidateServiceAccountFile reads the downloaded service-account key file,
// parses it and signs a throwaway assertion with its private key. The stored
// value is the compacted JSON document.
func (v *Validator) ValidateServiceAccountFile(_ context.Context, path string) ValidationResult {
	path = strings.TrimSpace(path)
	raw, err := v.readFile(path)
	if err != nil {
		return ValidationResult{Message: fmt.Sprintf("reading %s: %v", path, err)}
	}

	cred, err := external.ParseServiceAccount(raw)
	if err != nil {
		return ValidationResult{Message: err.Error()}
	}
	if _, err := v.signer.Sign(cred, external.DefaultScope); err != nil {
		return ValidationResult{Message: fmt.Sprintf("private key cannot sign: %v", err)}
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return ValidationResult{Message: fmt.Sprintf("compacting JSON: %v", err)}
	}

	return ValidationResult{
		Valid:   true,
		Message: fmt.Sprintf("service account %s (project %s) can sign", cred.ClientEmail, cred.ProjectID),
		Value:   compact.String(),
	}
}

// ValidateSupabaseURL checks for an absolute https URL with a host.
func (v *Validator) ValidateSupabaseURL(_ context.Context, raw string) ValidationResult {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ValidationResult{Message: fmt.Sprintf("invalid URL: %v", err)}
	}
	if u.Scheme != "https" || u.Host == "" {
		return ValidationResult{Message: "expected https://<project>.supabase.co"}
	}
	return ValidationResult{Valid: true, Message: "project URL " + u.Host, Value: strings.TrimRight(u.String(), "/")}
}

// ValidateServiceRoleKey checks that the key is a JWT whose role claim is
// service_role. The signature cannot be verified without the project's JWT
// secret, so only the claims are inspected.
func (v *Validator) ValidateServiceRoleKey(_ context.Context, key string) ValidationResult {
	return validateRoleKey(key, "service_role")
}

// ValidateAnonKey checks that the key is a JWT whose role claim is anon.
func (v *Validator) ValidateAnonKey(_ context.Context, key string) ValidationResult {
	return validateRoleKey(key, "anon")
}

func validateRoleKey(key, wantRole string) ValidationResult {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(strings.TrimSpace(key), claims); err != nil {
		return ValidationResult{Message: fmt.Sprintf("not a JWT: %v", err)}
	}
	role, _ := claims["role"].(string)
	if role != wantRole {
		return ValidationResult{Message: fmt.Sprintf("role claim is %q, want %q", role, wantRole)}
	}
	return ValidationResult{Valid: true, Message: "role " + role}
}

// ValidateDatabaseURL checks a Supabase connection string. The pooler's
// transaction mode (port 6543) is required since every function instance
// holds its own pool. The connection is closed right after it is opened.
func (v *Validator) ValidateDatabaseURL(ctx context.Context, rawURL string) ValidationResult {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ValidationResult{Message: "database URL must not be empty"}
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ValidationResult{Message: fmt.Sprintf("invalid URL format: %v", err)}
	}
	if parsed.Scheme != "postgres" && parsed.Scheme != "postgresql" {
		return ValidationResult{Message: fmt.Sprintf("expected postgres:// or postgresql:// scheme, got %q", parsed.Scheme)}
	}

	_, port, err := net.SplitHostPort(parsed.Host)
	if err != nil {
		return ValidationResult{Message: fmt.Sprintf("could not extract port from host %q: %v (port 6543 is required)", parsed.Host, err)}
	}
	if port != "6543" {
		return ValidationResult{Message: fmt.Sprintf("port must be 6543 (transaction pooler), got %q", port)}
	}

	connCtx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()

	if err := v.dbConn.Connect(connCtx, rawURL); err != nil {
		return ValidationResult{Message: fmt.Sprintf("connection failed: %v", err)}
	}

	return ValidationResult{
		Valid:   true,
		Message: fmt.Sprintf("database connection verified (host=%s, port=%s)", parsed.Hostname(), port),
	}
}
