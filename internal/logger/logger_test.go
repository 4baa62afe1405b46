package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

// captureStdout runs fn with os.Stdout redirected and returns what it wrote.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stdout = w
	defer func() { os.Stdout = old }()

	fn()

	w.Close()
	var buf bytes.Buffer
	buf.ReadFrom(r)
	return buf.String()
}

func TestInfo_Success_Warn_Error_NoPanic(t *testing.T) {
	out := captureStdout(t, func() {
		Info("TAG", "message")
		Success("TAG", "message")
		Warn("TAG", "message")
		Error("TAG", "message")
	})
	if strings.Count(out, "[TAG] message") != 4 {
		t.Errorf("expected 4 tagged lines, got %q", out)
	}
}

func TestPipeOutputHasNoColor(t *testing.T) {
	out := captureStdout(t, func() { Info("Route", "hello") })
	if strings.Contains(out, "\033[") {
		t.Errorf("output to a pipe should not contain ANSI escapes: %q", out)
	}
}

func TestBanner_NoPanic(t *testing.T) {
	out := captureStdout(t, func() {
		Banner("v1.0.0")
		Banner("")
	})
	if !strings.Contains(out, "elite-trader v1.0.0") || !strings.Contains(out, "elite-trader dev") {
		t.Errorf("banner output = %q", out)
	}
}

func TestSectionAndStats_NoPanic(t *testing.T) {
	out := captureStdout(t, func() {
		Section("Test")
		Stats("key", 42)
	})
	if !strings.Contains(out, "Test") || !strings.Contains(out, "42") {
		t.Errorf("section/stats output = %q", out)
	}
}
