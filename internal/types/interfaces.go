package types

// Logger defines the structured logging interface used by workers.
// *slog.Logger is adapted to it in each entry point.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	With(args ...any) Logger
}
