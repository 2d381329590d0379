package telemetry

import (
	"io"
	"log/slog"
	"strings"
)

var logLevel = new(slog.LevelVar)

// SetupLogger installs the default slog logger. format "json" selects the
// JSON handler, anything else the text handler. The level can be changed
// later with SetLevel.
func SetupLogger(format, level string, out io.Writer) {
	logLevel.Set(ParseLevel(level))

	opts := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialised", "format", format, "level", logLevel.Level().String())
}

func SetLevel(level string) {
	next := ParseLevel(level)
	if logLevel.Level() == next {
		return
	}
	logLevel.Set(next)
	slog.Info("log level changed", "level", next.String())
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
