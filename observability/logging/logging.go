package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup configures structured JSON logging to stdout and returns the base
// logger. All log lines carry the service name and, when provided, the
// environment.
func Setup(service, env string) *slog.Logger {
	return configure(os.Stdout, service, env)
}

// SetupFile routes logs to a size-rotated file instead of stdout.
func SetupFile(service, env, path string) *slog.Logger {
	sink := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	}
	return configure(sink, service, env)
}

func configure(sink io.Writer, service, env string) *slog.Logger {
	handler := slog.NewJSONHandler(sink, &slog.HandlerOptions{
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.TimeKey:
				return slog.Attr{Key: "timestamp", Value: attr.Value}
			case slog.LevelKey:
				return slog.String("severity", strings.ToUpper(attr.Value.String()))
			case slog.MessageKey:
				return slog.Attr{Key: "message", Value: attr.Value}
			}
			return maskSensitive(attr)
		},
	})

	attrs := []slog.Attr{slog.String("service", strings.TrimSpace(service))}
	if env = strings.TrimSpace(env); env != "" {
		attrs = append(attrs, slog.String("env", env))
	}

	withArgs := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		withArgs = append(withArgs, attr)
	}

	base := slog.New(handler).With(withArgs...)
	slog.SetDefault(base)

	// Bridge the standard library logger so dependencies logging through
	// package log stay structured.
	stdBridge := slog.NewLogLogger(handler.WithAttrs(attrs), slog.LevelInfo)
	stdBridge.SetFlags(0)
	log.SetOutput(stdBridge.Writer())
	log.SetFlags(0)
	log.SetPrefix("")

	return base
}
