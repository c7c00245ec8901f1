package logging_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"timeblock/internal/platform/logging"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]slog.Level{"debug": slog.LevelDebug, " WARN ": slog.LevelWarn, "warning": slog.LevelWarn, "error": slog.LevelError, "": slog.LevelInfo, "loud": slog.LevelInfo} {
		if got := logging.ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v", in, got)
		}
	}
}

func TestNewFiltersByLevel(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := logging.New(&buf, "warn")
	logger.Info("hidden")
	logger.Warn("shown", slog.String("activity_id", "a1"))
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "activity_id=a1") {
		t.Fatalf("log output = %q", out)
	}
}
