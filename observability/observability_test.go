package observability

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLoggerFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapLogger(zap.New(core)).With(String(KeyTemplate, "with_guarantor"))

	log.Warn("logo not found",
		String(KeyBank, "999"),
		Int(KeyIndex, 3),
		Int64(KeyBytes, 1024),
		Duration(KeyElapsed, time.Second),
		Error("error", errors.New("boom")),
	)

	entries := logs.FilterMessage("logo not found").All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx[KeyTemplate] != "with_guarantor" || ctx[KeyBank] != "999" {
		t.Fatalf("unexpected context %v", ctx)
	}
	if ctx[KeyIndex] != int64(3) || ctx[KeyBytes] != int64(1024) {
		t.Fatalf("numeric fields lost: %v", ctx)
	}
	if ctx["error"] != "boom" {
		t.Fatalf("error field = %v", ctx["error"])
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("level = %v", entries[0].Level)
	}
}

func TestNilLoggers(t *testing.T) {
	OrNop(nil).Info("ignored")
	NewZapLogger(nil).Error("ignored")
	if _, ok := OrNop(nil).(NopLogger); !ok {
		t.Fatalf("OrNop(nil) should be a NopLogger")
	}
}
