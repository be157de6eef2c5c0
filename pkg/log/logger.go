package log

import (
	"log/slog"
	"os"
)

// New constructs the engine's JSON slog.Logger preconfigured at info
// level
func New(service, env, version string) *slog.Logger {
	return NewWithLevel(service, env, version, slog.LevelInfo)
}

// NewWithLevel constructs a JSON slog.Logger at the provided level.
// Every record carries the service identity, so job and step records
// stay attributable when several datamill deployments share a log
// stream
func NewWithLevel(
	service, env, version string, level slog.Level,
) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(handler).With(
		slog.String("service", service),
		slog.String("env", env),
		slog.String("version", version))
}
