package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// mockGetParameterExisting returns ParameterNotFound for paths not in existing.
func mockGetParameterExisting(existing map[string]bool) func(context.Context, *ssm.GetParameterInput) (*ssm.GetParameterOutput, error) {
	return func(_ context.Context, input *ssm.GetParameterInput) (*ssm.GetParameterOutput, error) {
		path := aws.ToString(input.Name)
		if existing[path] {
			return &ssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{Name: aws.String(path), Value: aws.String("***")}}, nil
		}
		return nil, &ssmtypes.ParameterNotFound{Message: aws.String("not found")}
	}
}

func newTestRunner(mock *mockSSMClient, inventory []BootstrapStep, stdin string) (*BootstrapRunner, *bytes.Buffer, *bytes.Buffer) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	stderr, stdout := &bytes.Buffer{}, &bytes.Buffer{}
	return &BootstrapRunner{
		SSM:               NewSSMManagerWithClient(mock, "dev", logger),
		Validator:         NewValidatorWithDeps(nil, nil),
		Stdin:             strings.NewReader(stdin),
		Stderr:            stderr,
		Stdout:            stdout,
		inventoryOverride: inventory,
	}, stderr, stdout
}

func accept(_ context.Context, in string) ValidationResult {
	return ValidationResult{Valid: true, Message: "ok"}
}

func testInventory() []BootstrapStep {
	return []BootstrapStep{
		{HumanLabel: "Secret A", SSMCategoryKey: "a/secret", EnvVar: "A_SECRET", ParamType: ParamSecureString, ValidateFn: accept, IsSecret: true, Phase: "One"},
		{HumanLabel: "Plain B", SSMCategoryKey: "b/plain", EnvVar: "B_PLAIN", ParamType: ParamString, Phase: "One"},
		{HumanLabel: "Optional C", SSMCategoryKey: "c/opt", EnvVar: "C_OPT", ParamType: ParamSecureString, Optional: true, Phase: "Two"},
	}
}

func TestBuildInventory_EnvVarsMatchConfig(t *testing.T) {
	inv := BuildInventory(NewValidatorWithDeps(nil, nil))

	want := map[string]string{
		"FIREBASE_SERVICE_ACCOUNT":     "push/service_account",
		"SUPABASE_URL":                 "supabase/url",
		"SUPABASE_ANON_KEY":            "supabase/anon_key",
		"SUPABASE_SERVICE_ROLE_KEY":    "supabase/service_role_key",
		"DATABASE_URL":                 "database/url",
		"STORAGE_S3_SECRET_ACCESS_KEY": "storage/s3_secret_access_key",
	}
	if len(inv) != len(want) {
		t.Fatalf("inventory has %d steps, want %d", len(inv), len(want))
	}
	for _, step := range inv {
		if want[step.EnvVar] != step.SSMCategoryKey {
			t.Errorf("%s maps to %q, want %q", step.EnvVar, step.SSMCategoryKey, want[step.EnvVar])
		}
		if step.EnvVar != "SUPABASE_URL" && step.ParamType != ParamSecureString {
			t.Errorf("%s should be a SecureString", step.EnvVar)
		}
	}
}

func TestRun_WritesNewParameters(t *testing.T) {
	mock := &mockSSMClient{getParameterFn: mockGetParameterExisting(nil)}
	runner, stderr, stdout := newTestRunner(mock, testInventory(), "secret-a-value\nplain-b\n\n")

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(mock.putCalls) != 2 {
		t.Fatalf("expected 2 writes, got %d", len(mock.putCalls))
	}
	if got := aws.ToString(mock.putCalls[0].Name); got != "/dev/wardalert/a/secret" {
		t.Errorf("first write path = %q", got)
	}
	if mock.putCalls[1].Type != ssmtypes.ParameterTypeString {
		t.Error("plain parameter should be a String")
	}
	if strings.Contains(stderr.String(), "secret-a-value") {
		t.Error("secret echoed to stderr")
	}

	want := "A_SECRET_SSM_PARAM=/dev/wardalert/a/secret\nB_PLAIN_SSM_PARAM=/dev/wardalert/b/plain\n"
	if stdout.String() != want {
		t.Errorf("stdout = %q, want %q", stdout.String(), want)
	}
}

func TestRun_KeepsExistingOnSkip(t *testing.T) {
	mock := &mockSSMClient{getParameterFn: mockGetParameterExisting(map[string]bool{
		"/dev/wardalert/a/secret": true,
	})}
	runner, _, stdout := newTestRunner(mock, testInventory(), "s\nplain-b\n\n")

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(mock.putCalls) != 1 {
		t.Fatalf("expected 1 write, got %d", len(mock.putCalls))
	}
	if !strings.Contains(stdout.String(), "A_SECRET_SSM_PARAM=/dev/wardalert/a/secret") {
		t.Error("kept parameters should still be printed")
	}
}

func TestRun_OverwriteSetsFlag(t *testing.T) {
	mock := &mockSSMClient{getParameterFn: mockGetParameterExisting(map[string]bool{
		"/dev/wardalert/a/secret": true,
	})}
	runner, _, _ := newTestRunner(mock, testInventory()[:1], "o\nnew-value\n")

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !aws.ToBool(mock.putCalls[0].Overwrite) {
		t.Error("overwrite flag should be set for existing parameters")
	}
}

func TestRun_ValidatorValueReplacesInput(t *testing.T) {
	inv := []BootstrapStep{{
		HumanLabel:     "File",
		SSMCategoryKey: "push/service_account",
		EnvVar:         "FIREBASE_SERVICE_ACCOUNT",
		ParamType:      ParamSecureString,
		ValidateFn: func(_ context.Context, in string) ValidationResult {
			return ValidationResult{Valid: true, Message: "ok", Value: `{"from":"` + in + `"}`}
		},
	}}
	mock := &mockSSMClient{getParameterFn: mockGetParameterExisting(nil)}
	runner, _, _ := newTestRunner(mock, inv, "sa.json\n")

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := aws.ToString(mock.putCalls[0].Value); got != `{"from":"sa.json"}` {
		t.Errorf("stored value = %q", got)
	}
}

func TestRun_ValidationRetriesExhausted(t *testing.T) {
	inv := []BootstrapStep{{
		HumanLabel:     "Always bad",
		SSMCategoryKey: "x/bad",
		EnvVar:         "X_BAD",
		ValidateFn: func(context.Context, string) ValidationResult {
			return ValidationResult{Message: "nope"}
		},
	}}
	mock := &mockSSMClient{getParameterFn: mockGetParameterExisting(nil)}
	runner, _, _ := newTestRunner(mock, inv, strings.Repeat("bad\n", maxRetries))

	err := runner.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "maximum retries") {
		t.Fatalf("expected retries error, got %v", err)
	}
	if len(mock.putCalls) != 0 {
		t.Error("nothing should be written")
	}
}

func TestRun_RequiredValueEOF(t *testing.T) {
	mock := &mockSSMClient{getParameterFn: mockGetParameterExisting(nil)}
	runner, _, _ := newTestRunner(mock, testInventory(), "")

	if err := runner.Run(context.Background()); err == nil {
		t.Fatal("expected error when input ends early")
	}
}
