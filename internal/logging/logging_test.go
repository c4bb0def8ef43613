package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogfLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Set(zap.New(core))
	defer Set(zap.NewNop())

	Logf("[MERGE] wrote %d pages", 3)
	Logf("[WARNING] slow input %s", "a.png")
	Logf("[ERROR] failed: %v", "boom")

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	want := []zapcore.Level{zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	for i, e := range entries {
		if e.Level != want[i] {
			t.Errorf("entry %d level=%v, want %v", i, e.Level, want[i])
		}
	}
	if entries[0].Message != "[MERGE] wrote 3 pages" {
		t.Errorf("unexpected message %q", entries[0].Message)
	}
}
