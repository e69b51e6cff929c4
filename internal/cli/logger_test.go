package cli

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "debug", "json")
	logger.Debug("room created", slog.String("room_id", "123456"))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected json line, got %q: %v", buf.String(), err)
	}
	if line["room_id"] != "123456" || line["msg"] != "room created" {
		t.Fatalf("unexpected log line: %v", line)
	}
}

func TestNewLoggerTextAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn", "text")
	logger.Info("hidden")
	logger.Warn("archive game failed")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "archive game failed") {
		t.Fatalf("expected warn line, got %q", out)
	}
}

func TestParseLevelFallsBackToInfo(t *testing.T) {
	if got := parseLevel("loud"); got != slog.LevelInfo {
		t.Fatalf("expected info fallback, got %s", got)
	}
}
