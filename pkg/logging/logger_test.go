package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func newTestLogger(level Level, buf *bytes.Buffer) Logger {
	return NewLogger(&Config{
		Level:       level,
		ServiceName: "test",
		JSONFormat:  true,
		Output:      buf,
	})
}

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log := newTestLogger(LevelDebug, &buf)

	log.Info("resolution complete",
		F("tenant_id", "t-1"),
		F("links_created", 3),
	)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry["message"] != "resolution complete" {
		t.Errorf("message = %v, want %q", entry["message"], "resolution complete")
	}
	if entry["tenant_id"] != "t-1" {
		t.Errorf("tenant_id = %v, want t-1", entry["tenant_id"])
	}
	if entry["links_created"] != float64(3) {
		t.Errorf("links_created = %v, want 3", entry["links_created"])
	}
	if entry["service_name"] != "test" {
		t.Errorf("service_name = %v, want test", entry["service_name"])
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := newTestLogger(LevelWarn, &buf)

	log.Debug("dropped")
	log.Info("dropped too")
	log.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("debug/info entries should be filtered at warn level, got %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Errorf("warn entry missing from output %q", out)
	}
}

func TestLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	log := newTestLogger(LevelInfo, &buf)

	child := log.With(F("component", "matcher"))
	child.Info("lookup miss")

	if !strings.Contains(buf.String(), `"component":"matcher"`) {
		t.Errorf("attached field missing from output %q", buf.String())
	}
}

func TestErrField(t *testing.T) {
	var buf bytes.Buffer
	log := newTestLogger(LevelInfo, &buf)

	log.Error("write failed", Err(errors.New("boom")))

	if !strings.Contains(buf.String(), `"error":"boom"`) {
		t.Errorf("error field missing from output %q", buf.String())
	}
}

func TestNopLogger(t *testing.T) {
	log := NewNopLogger()
	// Must not panic, and With must return a usable logger.
	log.With(F("k", "v")).Info("ignored")
	log.Debug("ignored")
	log.Error("ignored", Err(errors.New("x")))
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	if got := parseLevel(Level("bogus")); got.String() != "info" {
		t.Errorf("parseLevel(bogus) = %v, want info", got)
	}
}
