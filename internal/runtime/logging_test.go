package runtime

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/loqalabs/loqa-lessons/internal/config"
)

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(config.TelemetryConfig{LogLevel: "info", LogFormat: "json"}, &buf).Info("hello")
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected json log line: %v", err)
	}

	buf.Reset()
	NewLogger(config.TelemetryConfig{LogLevel: "warn", LogFormat: "text"}, &buf).Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level: %q", buf.String())
	}
	NewLogger(config.TelemetryConfig{LogLevel: "warn", LogFormat: "text"}, &buf).Warn("shown")
	if !strings.Contains(buf.String(), "msg=shown") {
		t.Fatalf("expected text log line, got %q", buf.String())
	}
}
