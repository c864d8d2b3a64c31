// Package logger provides leveled stderr logging for the resumatch CLI.
// Debug and Info messages are gated by the --verbose flag so they can
// trace the ingestion and ranking pipeline without polluting normal
// output. Warnings always print: they flag conditions like orphaned
// vectors that the user should see even in quiet runs.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
)

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

func logf(gated bool, prefix, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if gated && !verbose {
		return
	}
	fmt.Fprintf(output, prefix+format+"\n", args...)
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	logf(true, "[DEBUG] ", format, args...)
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	logf(true, "[INFO] ", format, args...)
}

// Warn prints a warning message. Warnings are not gated by verbose
// mode.
func Warn(format string, args ...any) {
	logf(false, "[WARN] ", format, args...)
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}
