package logging

import (
	"testing"

	"go.uber.org/zap/zaptest/observer"

	"go.uber.org/zap"
)

func TestGetTagsCategory(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	Configure(zap.New(core))
	defer Configure(zap.NewNop())

	Get(CategoryStore).Info("hello")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["category"]; got != string(CategoryStore) {
		t.Fatalf("expected category %q, got %v", CategoryStore, got)
	}
}

func TestTimerLogsElapsed(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	Configure(zap.New(core))
	defer Configure(zap.NewNop())

	timer := StartTimer(CategoryDatalog, "eval")
	elapsed := timer.Stop()
	if elapsed < 0 {
		t.Fatalf("expected non-negative elapsed, got %v", elapsed)
	}

	entries := logs.All()
	if len(entries) != 1 || entries[0].Message != "operation timing" {
		t.Fatalf("expected one 'operation timing' entry, got %+v", entries)
	}
}
