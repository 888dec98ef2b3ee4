package config

import "context"

// SecretProvider abstracts the retrieval of secrets so the loader works with
// AWS SSM Parameter Store in deployed environments and with plain environment
// variables locally.
type SecretProvider interface {
	// GetParametersBatch resolves the given parameter paths and returns a map
	// of path -> plaintext value for every path that was found.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
