package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func newTestLogger(t *testing.T) (*Logger, *bytes.Buffer) {
	t.Helper()
	l, err := New(Config{Level: "debug", Format: "json", Output: "stdout"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	buf := &bytes.Buffer{}
	l.SetOutput(buf)
	return l, buf
}

func TestInfoWritesJSONWithFields(t *testing.T) {
	l, buf := newTestLogger(t)
	l.Info("backend selected", map[string]interface{}{"backend": "app", "server": "127.0.0.1:9001"})

	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("expected valid JSON line, got %q: %v", buf.String(), err)
	}
	if decoded["msg"] != "backend selected" {
		t.Errorf("expected msg field, got %v", decoded["msg"])
	}
	if decoded["backend"] != "app" {
		t.Errorf("expected backend field, got %v", decoded["backend"])
	}
}

func TestLevelFiltering(t *testing.T) {
	l, err := New(Config{Level: "warn", Format: "json", Output: "stdout"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	buf := &bytes.Buffer{}
	l.SetOutput(buf)

	l.Debug("should be suppressed", nil)
	l.Info("should also be suppressed", nil)
	if buf.Len() != 0 {
		t.Errorf("expected no output below warn level, got %q", buf.String())
	}

	l.Warn("should appear", nil)
	if !strings.Contains(buf.String(), "should appear") {
		t.Errorf("expected warn message to be logged, got %q", buf.String())
	}
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	if got := ParseLevel("not-a-level"); got != LevelInfo {
		t.Errorf("expected info default for invalid level, got %v", got)
	}
}

func TestLogRequestIncludesExpectedFields(t *testing.T) {
	l, buf := newTestLogger(t)
	l.LogRequest(RequestLog{
		RequestID:  "req-0000000000000001",
		Frontend:   "web",
		Backend:    "app",
		ClientIP:   "10.0.0.1",
		Method:     "GET",
		Path:       "/",
		StatusCode: 200,
		DurationMs: 1.5,
		Protocol:   "http",
	})

	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("expected valid JSON line: %v", err)
	}
	if decoded["request_id"] != "req-0000000000000001" {
		t.Errorf("expected request_id field, got %v", decoded["request_id"])
	}
	if decoded["status_code"].(float64) != 200 {
		t.Errorf("expected status_code 200, got %v", decoded["status_code"])
	}
}
