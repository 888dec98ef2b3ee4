package config

import (
	"context"
	"os"
)

// EnvVarProvider implements SecretProvider by treating each parameter path as
// an environment variable name. Used for local runs that still set
// *_SSM_PARAM pointers (e.g. FIREBASE_SERVICE_ACCOUNT_SSM_PARAM=SA_JSON).
type EnvVarProvider struct {
	lookup func(string) (string, bool)
}

// NewEnvVarProvider creates a new EnvVarProvider backed by os.LookupEnv.
func NewEnvVarProvider() *EnvVarProvider {
	return &EnvVarProvider{lookup: os.LookupEnv}
}

// GetParametersBatch returns the subset of keys that are set in the
// environment. Missing keys are omitted; the loader reports them.
func (p *EnvVarProvider) GetParametersBatch(_ context.Context, keys []string) (map[string]string, error) {
	result := make(map[string]string, len(keys))
	for _, key := range keys {
		if val, ok := p.lookup(key); ok {
			result[key] = val
		}
	}
	return result, nil
}
