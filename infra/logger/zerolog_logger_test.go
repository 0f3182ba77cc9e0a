package logger

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestZerologLogger_ComponentField(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologLoggerTo(&buf, "dispatch")
	l.Infof("matched %d candidates", 3)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not json: %v", err)
	}
	if entry["component"] != "dispatch" {
		t.Errorf("component = %v, want dispatch", entry["component"])
	}
	if entry["message"] != "matched 3 candidates" {
		t.Errorf("message = %v", entry["message"])
	}
}
