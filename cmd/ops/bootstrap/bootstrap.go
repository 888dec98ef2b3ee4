package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ParameterType selects SecureString or String storage.
type ParameterType int

const (
	ParamSecureString ParameterType = iota
	ParamString
)

// BootstrapStep is one parameter in the secret inventory.
type BootstrapStep struct {
	HumanLabel string

	// SSMCategoryKey becomes /{env}/wardalert/{SSMCategoryKey}.
	SSMCategoryKey string

	// EnvVar is the configuration variable the functions resolve from this
	// parameter through EnvVar_SSM_PARAM.
	EnvVar string

	ParamType  ParameterType
	Prompt     string
	ValidateFn func(ctx context.Context, input string) ValidationResult
	IsSecret   bool
	Optional   bool
	Phase      string
}

const maxRetries = 5

var errSkipped = errors.New("parameter skipped by operator")

// BuildInventory returns the ordered list of parameters the functions read.
func BuildInventory(v *Validator) []BootstrapStep {
	return []BootstrapStep{
		{
			HumanLabel:     "Firebase service account",
			SSMCategoryKey: "push/service_account",
			EnvVar:         "FIREBASE_SERVICE_ACCOUNT",
			ParamType:      ParamSecureString,
			Prompt: `1. Open Firebase Console > Project Settings > Service Accounts.
   2. Click "Generate new private key" and save the JSON file.
   3. Enter the path to the downloaded file:`,
			ValidateFn: v.ValidateServiceAccountFile,
			Phase:      "Push",
		},
		{
			HumanLabel:     "Supabase project URL",
			SSMCategoryKey: "supabase/url",
			EnvVar:         "SUPABASE_URL",
			ParamType:      ParamString,
			Prompt: `1. Open Supabase Dashboard > Project Settings > API.
   2. Copy the Project URL (https://<ref>.supabase.co):`,
			ValidateFn: v.ValidateSupabaseURL,
			Phase:      "Supabase",
		},
		{
			HumanLabel:     "Supabase anon key",
			SSMCategoryKey: "supabase/anon_key",
			EnvVar:         "SUPABASE_ANON_KEY",
			ParamType:      ParamSecureString,
			Prompt:         `Copy the "anon public" key from the same page:`,
			ValidateFn:     v.ValidateAnonKey,
			IsSecret:       true,
			Phase:          "Supabase",
		},
		{
			HumanLabel:     "Supabase service role key",
			SSMCategoryKey: "supabase/service_role_key",
			EnvVar:         "SUPABASE_SERVICE_ROLE_KEY",
			ParamType:      ParamSecureString,
			Prompt:         `Copy the "service_role" key from the same page:`,
			ValidateFn:     v.ValidateServiceRoleKey,
			IsSecret:       true,
			Phase:          "Supabase",
		},
		{
			HumanLabel:     "Database URL",
			SSMCategoryKey: "database/url",
			EnvVar:         "DATABASE_URL",
			ParamType:      ParamSecureString,
			Prompt: `1. Open Project Settings > Database > Connection Pooling.
   2. Set Mode to Transaction and copy the connection string (port 6543).
   3. Replace the password placeholder and paste the postgres://... string:`,
			ValidateFn: v.ValidateDatabaseURL,
			IsSecret:   true,
			Phase:      "Supabase",
		},
		{
			HumanLabel:     "Storage S3 secret access key",
			SSMCategoryKey: "storage/s3_secret_access_key",
			EnvVar:         "STORAGE_S3_SECRET_ACCESS_KEY",
			ParamType:      ParamSecureString,
			Prompt: `Optional. Paste the S3 access key secret from Project Settings > Storage,
   or press Enter to skip:`,
			IsSecret: true,
			Optional: true,
			Phase:    "Storage",
		},
	}
}

// BootstrapRunner walks the inventory: it checks SSM for each parameter,
// prompts for missing values, validates them and writes them.
type BootstrapRunner struct {
	SSM       *SSMManager
	Validator *Validator
	Stdin     io.Reader
	Stderr    io.Writer
	Stdout    io.Writer

	// scanner is shared so buffered input is not lost between prompts.
	scanner *bufio.Scanner

	inventoryOverride []BootstrapStep
}

// NewBootstrapRunner creates a BootstrapRunner with production dependencies.
func NewBootstrapRunner(bctx *BootstrapContext) *BootstrapRunner {
	return &BootstrapRunner{
		SSM:       NewSSMManager(bctx),
		Validator: NewValidator(),
		Stdin:     os.Stdin,
		Stderr:    os.Stderr,
		Stdout:    os.Stdout,
	}
}

type stepResult struct {
	Label  string
	EnvVar string
	Action string // "written", "skipped", "overwritten", "kept"
	Path   string
}

// Run processes every step, then prints a summary to Stderr and the
// *_SSM_PARAM assignments for the stored parameters to Stdout.
func (r *BootstrapRunner) Run(ctx context.Context) error {
	inventory := r.inventoryOverride
	if inventory == nil {
		inventory = BuildInventory(r.Validator)
	}

	var currentPhase string
	var results []stepResult

	for i, step := range inventory {
		if step.Phase != currentPhase {
			currentPhase = step.Phase
			r.printPhaseHeader(currentPhase)
		}

		fmt.Fprintf(r.Stderr, "\n[%d/%d] %s\n", i+1, len(inventory), step.HumanLabel)

		result, err := r.processStep(ctx, step)
		if err != nil {
			return fmt.Errorf("step %q failed: %w", step.HumanLabel, err)
		}
		results = append(results, result)
	}

	r.printSummary(results)
	r.printEnvAssignments(results)
	return nil
}

func (r *BootstrapRunner) processStep(ctx context.Context, step BootstrapStep) (stepResult, error) {
	path := r.SSM.SSMPath(step.SSMCategoryKey)
	result := stepResult{Label: step.HumanLabel, EnvVar: step.EnvVar, Path: path}

	exists, err := r.SSM.ParameterExists(ctx, path)
	if err != nil {
		return result, fmt.Errorf("checking existence of %s: %w", path, err)
	}

	if exists {
		fmt.Fprintf(r.Stderr, "  Parameter already exists: %s\n", path)
		choice, err := r.promptSkipOrOverwrite()
		if err != nil {
			return result, fmt.Errorf("reading skip/overwrite choice: %w", err)
		}
		if choice == "skip" {
			fmt.Fprintf(r.Stderr, "  Kept existing value.\n")
			result.Action = "kept"
			return result, nil
		}
	}

	value, err := r.promptAndValidate(ctx, step)
	if errors.Is(err, errSkipped) {
		fmt.Fprintf(r.Stderr, "  Skipped.\n")
		result.Action = "skipped"
		return result, nil
	}
	if err != nil {
		return result, err
	}

	if step.ParamType == ParamSecureString {
		err = r.SSM.PutSecret(ctx, path, value, exists)
	} else {
		err = r.SSM.PutString(ctx, path, value)
	}
	if err != nil {
		return result, fmt.Errorf("writing SSM parameter %s: %w", path, err)
	}

	result.Action = "written"
	if exists {
		result.Action = "overwritten"
	}
	fmt.Fprintf(r.Stderr, "  Stored: %s\n", path)
	return result, nil
}

// promptAndValidate retries up to maxRetries times on validation failure.
// Secret input is never echoed back.
func (r *BootstrapRunner) promptAndValidate(ctx context.Context, step BootstrapStep) (string, error) {
	fmt.Fprintf(r.Stderr, "\n  %s\n\n", step.Prompt)

	for attempt := 1; attempt <= maxRetries; attempt++ {
		var input string
		var err error
		if step.IsSecret {
			input, err = r.readSecretInput("  > ")
		} else {
			input, err = r.readInput("  > ")
		}
		if err != nil {
			return "", fmt.Errorf("reading input for %s: %w", step.HumanLabel, err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			if step.Optional {
				return "", errSkipped
			}
			fmt.Fprintf(r.Stderr, "  A value is required.\n")
			continue
		}

		if step.IsSecret {
			fmt.Fprintf(r.Stderr, "  Received %d chars.\n", len(input))
		}

		if step.ValidateFn == nil {
			return input, nil
		}

		vr := step.ValidateFn(ctx, input)
		if !vr.Valid {
			fmt.Fprintf(r.Stderr, "  Validation failed: %s\n", vr.Message)
			if attempt < maxRetries {
				fmt.Fprintf(r.Stderr, "  Try again (%d/%d).\n", attempt, maxRetries)
			}
			continue
		}
		fmt.Fprintf(r.Stderr, "  Validated: %s\n", vr.Message)
		if vr.Value != "" {
			return vr.Value, nil
		}
		return input, nil
	}

	return "", fmt.Errorf("maximum retries (%d) exceeded for %s", maxRetries, step.HumanLabel)
}

func (r *BootstrapRunner) scanLine() (string, error) {
	if r.scanner == nil {
		r.scanner = bufio.NewScanner(r.Stdin)
	}
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

func (r *BootstrapRunner) readInput(prompt string) (string, error) {
	fmt.Fprint(r.Stderr, prompt)
	return r.scanLine()
}

// readSecretInput disables echo when stdin is a terminal and falls back to
// line reading for piped input.
func (r *BootstrapRunner) readSecretInput(prompt string) (string, error) {
	fmt.Fprint(r.Stderr, prompt)

	if f, ok := r.Stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(r.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading secret input: %w", err)
		}
		return string(secret), nil
	}
	return r.scanLine()
}

func (r *BootstrapRunner) promptSkipOrOverwrite() (string, error) {
	for {
		fmt.Fprint(r.Stderr, "  [S]kip or [O]verwrite? ")
		line, err := r.scanLine()
		if err != nil {
			return "", err
		}
		switch strings.TrimSpace(strings.ToLower(line)) {
		case "s", "skip":
			return "skip", nil
		case "o", "overwrite":
			return "overwrite", nil
		default:
			fmt.Fprintf(r.Stderr, "  Please enter 'S' to skip or 'O' to overwrite.\n")
		}
	}
}

func (r *BootstrapRunner) printPhaseHeader(phase string) {
	fmt.Fprintf(r.Stderr, "\n============================================================\n")
	fmt.Fprintf(r.Stderr, "  Phase: %s\n", phase)
	fmt.Fprintf(r.Stderr, "============================================================\n")
}

func (r *BootstrapRunner) printSummary(results []stepResult) {
	fmt.Fprintf(r.Stderr, "\n============================================================\n")
	fmt.Fprintf(r.Stderr, "  Bootstrap Summary\n")
	fmt.Fprintf(r.Stderr, "============================================================\n")

	counts := map[string]int{}
	for _, res := range results {
		counts[res.Action]++
		fmt.Fprintf(r.Stderr, "  %-14s %s\n", "["+strings.ToUpper(res.Action)+"]", res.Label)
	}

	fmt.Fprintf(r.Stderr, "------------------------------------------------------------\n")
	fmt.Fprintf(r.Stderr, "  Written: %d | Overwritten: %d | Kept: %d | Skipped: %d\n",
		counts["written"], counts["overwritten"], counts["kept"], counts["skipped"])
	fmt.Fprintf(r.Stderr, "============================================================\n\n")
}

// printEnvAssignments writes the variables to set on every function so the
// config loader resolves the parameters at cold start.
func (r *BootstrapRunner) printEnvAssignments(results []stepResult) {
	if r.Stdout == nil {
		return
	}
	for _, res := range results {
		if res.Action == "skipped" {
			continue
		}
		fmt.Fprintf(r.Stdout, "%s_SSM_PARAM=%s\n", res.EnvVar, res.Path)
	}
}
