// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Load .env file via godotenv (non-fatal if absent).
//  2. If APP_ENV != "local", resolve *_SSM_PARAM pointer variables via the
//     SecretProvider and inject the resolved values back into the environment.
//  3. Use envconfig to populate the Config struct.
//  4. Populate BuildInfo from linker-injected variables.
//  5. Validate the struct using go-playground/validator.
package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is a diagnostic error type returned by LoadConfig.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ssmParamSuffix marks pointer variables: FIREBASE_SERVICE_ACCOUNT_SSM_PARAM
// holds the SSM path whose value becomes FIREBASE_SERVICE_ACCOUNT.
const ssmParamSuffix = "_SSM_PARAM"

// localEnv is the APP_ENV value that bypasses SSM resolution.
const localEnv = "local"

// ssmTimeout bounds the batch resolution during cold start.
const ssmTimeout = 30 * time.Second

// loaderDeps holds the injectable environment accessors so tests do not
// mutate process state.
type loaderDeps struct {
	lookupEnv func(key string) (string, bool)
	setEnv    func(key, value string) error
	environ   func() []string
	dotenv    func() error
}

func defaultDeps() loaderDeps {
	return loaderDeps{
		lookupEnv: os.LookupEnv,
		setEnv:    os.Setenv,
		environ:   os.Environ,
		dotenv:    func() error { return godotenv.Load() },
	}
}

// LoadConfig loads and validates the configuration. provider may be nil when
// APP_ENV=local or when no *_SSM_PARAM variables are present.
func LoadConfig(ctx context.Context, provider SecretProvider) (*Config, error) {
	return loadConfigWithDeps(ctx, provider, defaultDeps())
}

func loadConfigWithDeps(ctx context.Context, provider SecretProvider, deps loaderDeps) (*Config, error) {
	// A missing .env file is the normal case outside local development.
	_ = deps.dotenv()

	appEnv, _ := deps.lookupEnv("APP_ENV")
	if appEnv != localEnv {
		if err := resolveSSMParams(ctx, provider, deps); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	cfg.Build = NewBuildInfo()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	return &cfg, nil
}

// resolveSSMParams scans the environment for *_SSM_PARAM variables, fetches
// the referenced values in one batch and injects them under the target name.
// A target variable that is already set wins over SSM.
func resolveSSMParams(ctx context.Context, provider SecretProvider, deps loaderDeps) error {
	pathToTarget := make(map[string]string)
	var paths []string

	for _, entry := range deps.environ() {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasSuffix(key, ssmParamSuffix) || value == "" {
			continue
		}
		target := strings.TrimSuffix(key, ssmParamSuffix)
		if _, exists := deps.lookupEnv(target); exists {
			continue
		}
		if _, dup := pathToTarget[value]; !dup {
			paths = append(paths, value)
		}
		pathToTarget[value] = target
	}

	if len(paths) == 0 {
		return nil
	}

	if provider == nil {
		targets := make([]string, 0, len(paths))
		for _, p := range paths {
			targets = append(targets, pathToTarget[p])
		}
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("SecretProvider is required for non-local environments (need to resolve: %s)", strings.Join(targets, ", ")),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, ssmTimeout)
	defer cancel()

	resolved, err := provider.GetParametersBatch(ctx, paths)
	if err != nil {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("failed to resolve %d SSM parameters", len(paths)),
			Err:     err,
		}
	}

	var missing []string
	for _, path := range paths {
		target := pathToTarget[path]
		value, ok := resolved[path]
		if !ok {
			missing = append(missing, target)
			continue
		}
		if err := deps.setEnv(target, value); err != nil {
			return &ConfigError{
				Type:    ErrSSMResolution,
				Message: fmt.Sprintf("failed to set resolved value for %s", target),
				Err:     err,
			}
		}
	}

	if len(missing) > 0 {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("SSM parameters not found for: %s", strings.Join(missing, ", ")),
		}
	}

	return nil
}

// SecretProviderFromEnv picks the provider that resolves *_SSM_PARAM
// pointers: none for APP_ENV=local, plain environment variables when
// SECRETS_PROVIDER=env (containers and CI without AWS), SSM otherwise.
func SecretProviderFromEnv() SecretProvider {
	return secretProviderFor(os.Getenv("APP_ENV"), os.Getenv("SECRETS_PROVIDER"), os.Getenv("AWS_REGION"))
}

func secretProviderFor(appEnv, mode, region string) SecretProvider {
	switch {
	case appEnv == localEnv:
		return nil
	case mode == "env":
		return NewEnvVarProvider()
	default:
		return NewSSMProvider(region)
	}
}
