package logger

import (
	"context"
	"log/slog"
	"os"
)

type contextKey string

const (
	RequestIDKey     contextKey = "request_id"
	UserIDKey        contextKey = "user_id"
	ServiceKey       contextKey = "service"
	EventIDKey       contextKey = "event_id"
	EventTypeKey     contextKey = "event_type"
	PaymentIntentKey contextKey = "payment_intent"
)

// enrichment order matters only for readability of the JSON output
var contextFields = []struct {
	key  contextKey
	name string
}{
	{RequestIDKey, "request_id"},
	{UserIDKey, "user_id"},
	{ServiceKey, "service"},
	{EventIDKey, "event_id"},
	{EventTypeKey, "event_type"},
	{PaymentIntentKey, "payment_intent"},
}

var defaultLogger *slog.Logger

func init() {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if os.Getenv("LOG_LEVEL") == "debug" {
		opts.Level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	defaultLogger = slog.New(handler)
}

func Default() *slog.Logger {
	return defaultLogger
}

// WithValue stores a logging field on the context so every later
// *Context call picks it up.
func WithValue(ctx context.Context, key contextKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}

func WithContext(ctx context.Context) *slog.Logger {
	logger := defaultLogger

	for _, f := range contextFields {
		if v := ctx.Value(f.key); v != nil {
			logger = logger.With(f.name, v)
		}
	}

	return logger
}

func Info(msg string, args ...any) {
	defaultLogger.Info(msg, args...)
}

func Error(msg string, args ...any) {
	defaultLogger.Error(msg, args...)
}

func Debug(msg string, args ...any) {
	defaultLogger.Debug(msg, args...)
}

func Warn(msg string, args ...any) {
	defaultLogger.Warn(msg, args...)
}

func InfoContext(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Info(msg, args...)
}

func ErrorContext(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Error(msg, args...)
}

func DebugContext(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Debug(msg, args...)
}

func WarnContext(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Warn(msg, args...)
}

// AuditContext emits an audit entry. Webhook flows have no authenticated
// actor, so audit records go to the structured log instead of a table.
func AuditContext(ctx context.Context, action string, args ...any) {
	args = append([]any{"audit", true, "action", action}, args...)
	WithContext(ctx).Info("audit", args...)
}
