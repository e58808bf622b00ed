package gigavector

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerRespectsMinLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LevelWarn)
	logger.Info("should not appear")
	logger.Warn("should appear")
	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Error("Info below min level was logged")
	}
	if !strings.Contains(out, "should appear") {
		t.Error("Warn at min level was not logged")
	}
}

func TestLoggerWithAppendsKeyvals(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LevelDebug).With("component", "reindex")
	logger.Info("done", "rows", 10)
	out := buf.String()
	if !strings.Contains(out, "component=reindex") {
		t.Errorf("expected With keyvals in output, got %q", out)
	}
	if !strings.Contains(out, "rows=10") {
		t.Errorf("expected call-site keyvals in output, got %q", out)
	}
}

func TestNopLoggerDiscardsEverything(t *testing.T) {
	logger := NopLogger()
	logger.Debug("x")
	logger.Info("x")
	logger.Warn("x")
	logger.Error("x")
	if logger.With("k", "v") == nil {
		t.Error("expected With to return a usable Logger")
	}
}
