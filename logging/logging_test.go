package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"claimflow/config"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, config.LogConfig{Level: slog.LevelInfo, Format: "json"})

	logger.Debug("hidden")
	logger.Info("claim approved", slog.String("claim_id", "c-1"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected exactly one record above debug, got %d: %q", len(lines), buf.String())
	}

	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("expected json output: %v", err)
	}
	if rec["msg"] != "claim approved" || rec["claim_id"] != "c-1" || rec["service"] != "claimflow" {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestNewWithWriter_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, config.LogConfig{Level: slog.LevelDebug, Format: "text"})
	logger.Debug("retrying", slog.Int("attempt", 2))

	if out := buf.String(); !strings.Contains(out, "msg=retrying") || !strings.Contains(out, "attempt=2") {
		t.Fatalf("unexpected text output %q", out)
	}
}
