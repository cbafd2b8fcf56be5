package log

import (
	"io"
	"log/slog"
	"os"
)

// New returns the standard JSON logger for a service at info level
func New(service, env, version string) *slog.Logger {
	return NewWithLevel(service, env, version, slog.LevelInfo)
}

// NewWithLevel returns a JSON logger filtered to the given level. Every
// record carries service, env, and version attributes
func NewWithLevel(service, env, version string, lvl slog.Level) *slog.Logger {
	return NewWriter(os.Stdout, service, env, version, lvl)
}

// NewWriter is NewWithLevel with an explicit output destination
func NewWriter(
	w io.Writer, service, env, version string, lvl slog.Level,
) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: lvl,
	})
	return slog.New(h).With(
		slog.String("service", service),
		slog.String("env", env),
		slog.String("version", version))
}
