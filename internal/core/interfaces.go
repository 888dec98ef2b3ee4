package core

import (
	"context"
	"time"
)

// Authenticator resolves an end-user bearer token to the user ID it was
// issued for. It returns an auth_* AppError when the token is rejected.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// MetricsCollector records request count and latency per route.
type MetricsCollector interface {
	RecordRequest(ctx context.Context, method, route, status string, duration time.Duration)
}
