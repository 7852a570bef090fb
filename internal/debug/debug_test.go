package debug

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestWithDebug(t *testing.T) {
	if !IsEnabled(WithDebug(context.Background(), true)) {
		t.Error("IsEnabled should return true when debug is enabled")
	}
	if IsEnabled(WithDebug(context.Background(), false)) {
		t.Error("IsEnabled should return false when debug is disabled")
	}
	if IsEnabled(context.Background()) {
		t.Error("IsEnabled should return false by default")
	}
}

func TestSetupLogger_Levels(t *testing.T) {
	SetupLogger(true)
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("SetupLogger(true) should enable debug level logging")
	}

	SetupLogger(false)
	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("SetupLogger(false) should disable debug level logging")
	}
	if !slog.Default().Enabled(context.Background(), slog.LevelWarn) {
		t.Error("SetupLogger(false) should keep warn level logging")
	}
}

func TestNewHandler_RedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, true, "text"))
	logger.Debug("emarsys request", "username", "api_user", "secret", "s3cr3t", "X-WSSE", `UsernameToken Username="api_user"`)

	out := buf.String()
	if strings.Contains(out, "s3cr3t") || strings.Contains(out, "UsernameToken") {
		t.Fatalf("credentials leaked into log: %s", out)
	}
	if !strings.Contains(out, "username=api_user") {
		t.Errorf("non-secret attributes should be kept: %s", out)
	}
}

func TestNewHandler_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, false, "JSON"))
	logger.Warn("circuit breaker opened", "failures", 5)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected a JSON log line, got %q: %v", buf.String(), err)
	}
	if line["msg"] != "circuit breaker opened" || line["failures"] != float64(5) {
		t.Errorf("unexpected log line %v", line)
	}
}
