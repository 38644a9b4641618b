package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: "warn", Output: &buf})
	l.Debug("hidden", nil)
	l.Info("hidden", nil)
	l.Warn("shown", map[string]interface{}{"k": "v"})
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("below-level records written: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "k=v") {
		t.Errorf("warn record missing: %q", out)
	}
}

func TestLoggerJSONIncludesError(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: "debug", Format: "json", Output: &buf})
	l.Error("append failed", errors.New("disk full"), map[string]interface{}{"seq": 7})

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not json: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "append failed" || entry["error"] != "disk full" || entry["seq"] != float64(7) {
		t.Errorf("entry = %v", entry)
	}
}
