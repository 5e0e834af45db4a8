package observability

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "broadcast-engine"

type (
	correlationIDKey struct{}
	broadcastIDKey   struct{}
)

// NewLogger builds the JSON production logger. Entries carry the service and
// component names ("api", "worker") so both binaries can share one sink.
func NewLogger(level, component string) (*zap.Logger, error) {
	parsedLevel, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{"service": serviceName}
	if component = strings.TrimSpace(component); component != "" {
		fields["component"] = component
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parsedLevel)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true
	cfg.InitialFields = fields

	logger, err := cfg.Build(zap.AddCaller())
	if err != nil {
		return nil, fmt.Errorf("failed to build %s logger: %w", serviceName, err)
	}

	return logger, nil
}

func parseLevel(level string) (zapcore.Level, error) {
	normalized := strings.ToLower(strings.TrimSpace(level))
	if normalized == "" {
		return zapcore.InfoLevel, nil
	}

	var parsed zapcore.Level
	if err := parsed.UnmarshalText([]byte(normalized)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return parsed, nil
}

// WithCorrelationID tags ctx with the id of the HTTP request or queue message
// that started the work.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return withValue(ctx, correlationIDKey{}, correlationID)
}

func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, correlationIDKey{})
}

// WithBroadcastID tags ctx with the broadcast being fanned out, so adapter
// and handoff logs can be joined with the broadcast summary.
func WithBroadcastID(ctx context.Context, broadcastID string) context.Context {
	return withValue(ctx, broadcastIDKey{}, broadcastID)
}

func BroadcastIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, broadcastIDKey{})
}

// WithContextLogger attaches the correlation and broadcast ids found in ctx.
func WithContextLogger(logger *zap.Logger, ctx context.Context) *zap.Logger {
	if logger == nil {
		return nil
	}

	fields := make([]zap.Field, 0, 2)
	if id, ok := CorrelationIDFromContext(ctx); ok {
		fields = append(fields, zap.String("correlationId", id))
	}
	if id, ok := BroadcastIDFromContext(ctx); ok {
		fields = append(fields, zap.String("broadcastId", id))
	}
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}

func withValue(ctx context.Context, key any, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, value)
}

func stringValue(ctx context.Context, key any) (string, bool) {
	if ctx == nil {
		return "", false
	}
	value, ok := ctx.Value(key).(string)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}
