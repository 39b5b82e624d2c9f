// Package logger prints pipeline diagnostics to stderr when the user
// asks for them with --verbose. It is deliberately small: structured
// telemetry goes through the otel sink, this output is for a human
// watching the terminal.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

type sink struct {
	mu      sync.Mutex
	enabled bool
	out     io.Writer
}

var std = &sink{out: os.Stderr}

func (s *sink) printf(prefix, format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled {
		return
	}
	fmt.Fprintf(s.out, prefix+format+"\n", args...)
}

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.enabled = v
}

// IsVerbose reports whether verbose mode is enabled.
func IsVerbose() bool {
	std.mu.Lock()
	defer std.mu.Unlock()
	return std.enabled
}

// SetOutput redirects verbose output, mainly for tests. Defaults to
// os.Stderr.
func SetOutput(w io.Writer) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.out = w
}

// Debug prints a debug message when verbose mode is enabled.
func Debug(format string, args ...any) {
	std.printf("[DEBUG] ", format, args...)
}

// Info prints an informational message when verbose mode is enabled.
func Info(format string, args ...any) {
	std.printf("[INFO] ", format, args...)
}

// Warn prints a warning when verbose mode is enabled.
func Warn(format string, args ...any) {
	std.printf("[WARN] ", format, args...)
}

// Section prints a header separating one pipeline phase from the next.
func Section(name string) {
	std.printf("", "\n=== %s ===", name)
}
