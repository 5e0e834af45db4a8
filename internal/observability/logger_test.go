package observability

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name         string
		level        string
		debugEnabled bool
		wantErr      bool
	}{
		{name: "debug level", level: "debug", debugEnabled: true},
		{name: "warn level mixed case", level: " WARN ", debugEnabled: false},
		{name: "empty level defaults to info", level: "", debugEnabled: false},
		{name: "invalid level", level: "loud", wantErr: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			logger, err := NewLogger(tc.level, "api")
			if tc.wantErr {
				if err == nil || logger != nil {
					t.Fatalf("NewLogger(%q) = %v, %v; want nil logger and error", tc.level, logger, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := logger.Core().Enabled(zapcore.DebugLevel); got != tc.debugEnabled {
				t.Fatalf("debug enabled=%v, want=%v", got, tc.debugEnabled)
			}
		})
	}
}

func TestCorrelationIDFromContext(t *testing.T) {
	t.Parallel()

	ctx := WithCorrelationID(context.Background(), "req-42")
	got, ok := CorrelationIDFromContext(ctx)
	if !ok || got != "req-42" {
		t.Fatalf("CorrelationIDFromContext() = %q, %v; want req-42, true", got, ok)
	}

	if _, ok := CorrelationIDFromContext(context.Background()); ok {
		t.Fatal("expected correlation id to be missing")
	}
	if _, ok := CorrelationIDFromContext(WithCorrelationID(context.Background(), "")); ok {
		t.Fatal("empty correlation id should be reported as missing")
	}
}

func TestWithContextLogger(t *testing.T) {
	t.Parallel()

	core, recorded := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx := WithBroadcastID(WithCorrelationID(context.Background(), "req-7"), "b-1")
	WithContextLogger(base, ctx).Info("with ids")
	WithContextLogger(base, WithBroadcastID(context.Background(), "b-2")).Info("broadcast only")
	WithContextLogger(base, context.Background()).Info("without ids")

	entries := recorded.All()
	if len(entries) != 3 {
		t.Fatalf("entries=%d, want=3", len(entries))
	}

	first := entries[0].ContextMap()
	if first["correlationId"] != "req-7" || first["broadcastId"] != "b-1" {
		t.Fatalf("first entry fields=%v", first)
	}
	second := entries[1].ContextMap()
	if _, ok := second["correlationId"]; ok || second["broadcastId"] != "b-2" {
		t.Fatalf("second entry fields=%v", second)
	}
	if len(entries[2].ContextMap()) != 0 {
		t.Fatalf("third entry fields=%v, want none", entries[2].ContextMap())
	}

	if WithContextLogger(nil, context.Background()) != nil {
		t.Fatal("expected nil logger")
	}
}

func TestBroadcastIDFromContext(t *testing.T) {
	t.Parallel()

	if got, ok := BroadcastIDFromContext(WithBroadcastID(context.Background(), "b-9")); !ok || got != "b-9" {
		t.Fatalf("BroadcastIDFromContext() = %q, %v; want b-9, true", got, ok)
	}
	if _, ok := BroadcastIDFromContext(WithCorrelationID(context.Background(), "req-1")); ok {
		t.Fatal("correlation id must not be read as broadcast id")
	}
}
