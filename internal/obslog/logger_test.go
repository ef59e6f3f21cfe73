package obslog

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestLogger_RedactsAPIKeyInMessage(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Format: "json", Output: &buf})

	l.Info(context.Background(), "using api_key=sk-ant-REDACTED")
	if strings.Contains(buf.String(), "sk-ant-") {
		t.Errorf("expected API key to be redacted, got %s", buf.String())
	}
	if !strings.Contains(buf.String(), "[REDACTED]") {
		t.Errorf("expected redaction marker in output, got %s", buf.String())
	}
}

func TestLogger_IncludesSessionIDFromContext(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Format: "json", Output: &buf})

	ctx := WithSession(context.Background(), "sess-42")
	l.Info(ctx, "starting cycle")
	if !strings.Contains(buf.String(), "sess-42") {
		t.Errorf("expected session_id in log output, got %s", buf.String())
	}
}
