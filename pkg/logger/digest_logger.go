// Package logger provides the process-wide structured logger, built on
// zerolog. Output is one JSON object per line with a service field;
// request-scoped children carry request_id and user fields.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type ctxKey string

// RequestIDKey is the context key under which the HTTP layer stores the
// per-request id.
const RequestIDKey ctxKey = "request_id"

// Config for the default logger.
type Config struct {
	Level   string // debug, info, warn, error
	Output  io.Writer
	Service string
}

var (
	defaultLogger zerolog.Logger
	once          sync.Once
)

// Init initializes the default logger. Safe to call more than once; only
// the first call wins.
func Init(cfg Config) {
	once.Do(func() {
		defaultLogger = build(cfg)
	})
}

func build(cfg Config) zerolog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if cfg.Service == "" {
		cfg.Service = "mailq"
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	return zerolog.New(cfg.Output).
		Level(parseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("service", cfg.Service).
		Logger()
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Default returns the default logger, initializing it lazily.
func Default() zerolog.Logger {
	Init(Config{})
	return defaultLogger
}

// New creates an independent logger instance (used by tests).
func New(cfg Config) zerolog.Logger {
	return build(cfg)
}

// FromContext returns the default logger enriched with the request id from
// ctx, when present.
func FromContext(ctx context.Context) zerolog.Logger {
	l := Default()
	if reqID, ok := ctx.Value(RequestIDKey).(string); ok && reqID != "" {
		l = l.With().Str("request_id", reqID).Logger()
	}
	return l
}

// WithRequestID stores a request id in the context for FromContext.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// Convenience forwarders on the default logger.
func Debug() *zerolog.Event { l := Default(); return l.Debug() }
func Info() *zerolog.Event  { l := Default(); return l.Info() }
func Warn() *zerolog.Event  { l := Default(); return l.Warn() }
func Error() *zerolog.Event { l := Default(); return l.Error() }
func Fatal() *zerolog.Event { l := Default(); return l.Fatal() }
