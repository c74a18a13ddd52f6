package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	logger := NewLogger(nil)
	if logger == nil {
		t.Fatal("NewLogger(nil) returned nil")
	}

	var buf bytes.Buffer
	logger = NewLogger(&Config{Level: LevelDebug, Output: &buf})
	logger.Debug("hello")
	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("expected message in output, got: %s", buf.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelWarn, Output: &buf})

	logger.Info("should be dropped")
	if buf.Len() != 0 {
		t.Errorf("expected info message to be filtered at warn level, got: %s", buf.String())
	}

	logger.Warn("should appear")
	if !strings.Contains(buf.String(), "should appear") {
		t.Errorf("expected warn message, got: %s", buf.String())
	}
}

func TestWithNFAndQueue(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	nfLogger := logger.WithNF(7)
	nfLogger.Info("attached")
	if !strings.Contains(buf.String(), "nf_id=7") {
		t.Errorf("expected nf_id=7 in output, got: %s", buf.String())
	}

	buf.Reset()
	queueLogger := nfLogger.WithQueue(2)
	queueLogger.Info("bound")
	out := buf.String()
	if !strings.Contains(out, "nf_id=7") || !strings.Contains(out, "queue=2") {
		t.Errorf("expected nf_id=7 and queue=2 in output, got: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug": LevelDebug,
		"warn":  LevelWarn,
		"error": LevelError,
		"":      LevelInfo,
		"huh":   LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestGlobalLoggerFunctions(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(NewLogger(&Config{Level: LevelDebug, Output: &buf}))

	Debug("debug message", "key", "value")
	if !strings.Contains(buf.String(), "debug message") || !strings.Contains(buf.String(), "key=value") {
		t.Errorf("expected debug message with fields, got: %s", buf.String())
	}

	buf.Reset()
	Error("error message")
	if !strings.Contains(buf.String(), "error message") {
		t.Errorf("expected error message, got: %s", buf.String())
	}
}
