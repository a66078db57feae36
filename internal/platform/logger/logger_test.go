package logger

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevelAndFormat(t *testing.T) {
	if ParseLevel("WARNING") != Warn {
		t.Fatalf("expected warn")
	}
	if ParseLevel("bogus") != Info {
		t.Fatalf("expected info default")
	}
	if ParseFormat("JSON") != FormatJSON {
		t.Fatalf("expected json")
	}
	if ParseFormat("") != FormatText {
		t.Fatalf("expected text default")
	}
}

func TestZapLogger_WithMergesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core))

	l.With(map[string]any{"pet_id": "pet-1"}).Warn("dispatch failed", map[string]any{
		"error": errors.New("boom"),
		"":      "ignored",
	})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["pet_id"] != "pet-1" {
		t.Errorf("expected pet_id field, got %#v", ctx)
	}
	if ctx["error"] != "boom" {
		t.Errorf("expected error field, got %#v", ctx["error"])
	}
	if _, ok := ctx[""]; ok {
		t.Errorf("empty keys must be dropped")
	}
}
