package logging

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// setupTestLogger configures a logger with a custom writer for tests
func setupTestLogger(output *bytes.Buffer, level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	SetLoggerForTest(zerolog.New(output).With().Timestamp().Logger().Level(lvl))
}

func TestInfoLogging(t *testing.T) {
	var buf bytes.Buffer
	setupTestLogger(&buf, "info")

	Info("label rendered", "width", 457, "ok", true)

	out := buf.String()
	if !strings.Contains(out, "label rendered") {
		t.Error("Expected log message not found in output")
	}
	if !strings.Contains(out, `"width":457`) || !strings.Contains(out, `"ok":true`) {
		t.Error("Expected key-value pairs not found in output")
	}
}

func TestErrorValuesAreStringified(t *testing.T) {
	var buf bytes.Buffer
	setupTestLogger(&buf, "error")

	Error("render failed", "error", errors.New("boom"))

	if !strings.Contains(buf.String(), `"error":"boom"`) {
		t.Fatalf("expected error text in output, got %s", buf.String())
	}
}

func TestDanglingKeyAndLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	setupTestLogger(&buf, "warn")

	Info("hidden")
	Debug("hidden too")
	Warn("visible", "dangling")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info/debug must be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, `"dangling":null`) {
		t.Fatalf("expected dangling key logged as null: %s", out)
	}
}

func TestSetLogLevel(t *testing.T) {
	var buf bytes.Buffer
	setupTestLogger(&buf, "warn")

	SetLogLevel("info")
	Info("should be visible")

	if !strings.Contains(buf.String(), "should be visible") {
		t.Error("Expected info log after SetLogLevel not found")
	}

	SetLogLevel("invalid")
	Info("fallback is info")
	if !strings.Contains(buf.String(), "fallback is info") {
		t.Error("Expected invalid level to fall back to info")
	}
}

func TestInitLoggerWritesFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "nested", "emulator.log")
	InitLogger(logFile, 1, 1, 1, false, "debug")
	Debug("written to file", "k", "v")

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Fatalf("expected message in log file, got %q", data)
	}
}
