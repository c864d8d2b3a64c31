package logger

import (
	"bytes"
	"os"
	"testing"
)

func resetLogger() {
	SetVerbose(false)
	SetOutput(os.Stderr)
}

func TestSetVerbose(t *testing.T) {
	defer resetLogger()

	SetVerbose(false)
	if IsVerbose() {
		t.Error("expected verbose to be false initially")
	}

	SetVerbose(true)
	if !IsVerbose() {
		t.Error("expected verbose to be true after SetVerbose(true)")
	}

	SetVerbose(false)
	if IsVerbose() {
		t.Error("expected verbose to be false after SetVerbose(false)")
	}
}

func TestDebug_WhenVerbose(t *testing.T) {
	defer resetLogger()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Debug("embedded chunk %s", "alice#0000")

	if got := buf.String(); got != "[DEBUG] embedded chunk alice#0000\n" {
		t.Errorf("unexpected output: %q", got)
	}
}

func TestDebug_WhenNotVerbose(t *testing.T) {
	defer resetLogger()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(false)

	Debug("should be suppressed")
	Info("should be suppressed")
	Section("should be suppressed")

	if buf.Len() > 0 {
		t.Errorf("expected no output when verbose is disabled, got %q", buf.String())
	}
}

func TestInfo(t *testing.T) {
	defer resetLogger()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Info("indexed %d chunks", 42)

	if got := buf.String(); got != "[INFO] indexed 42 chunks\n" {
		t.Errorf("unexpected info output: %q", got)
	}
}

func TestWarn_NotGatedByVerbose(t *testing.T) {
	defer resetLogger()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(false)

	Warn("orphan vector %s", "bob#0001")

	if got := buf.String(); got != "[WARN] orphan vector bob#0001\n" {
		t.Errorf("unexpected warn output: %q", got)
	}
}

func TestSection(t *testing.T) {
	defer resetLogger()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Section("Ingestion")

	if got := buf.String(); got != "\n=== Ingestion ===\n" {
		t.Errorf("unexpected section output: %q", got)
	}
}

func TestConcurrentAccess(t *testing.T) {
	defer resetLogger()

	var buf bytes.Buffer
	SetOutput(&buf)

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			SetVerbose(true)
			Debug("concurrent %d", i)
			IsVerbose()
			SetVerbose(false)
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
	// Test passes if no race conditions
}
