// Package logging provides the stderr logger and the secret-masking filter
// applied to every error message that leaves the engine.
package logging

import (
	"fmt"
	"os"
	"regexp"
)

// Logger writes human-readable log lines to stderr with optional color.
type Logger struct {
	debug   bool
	noColor bool
}

// New creates a new logger instance.
func New(debug, noColor bool) *Logger {
	return &Logger{
		debug:   debug,
		noColor: noColor,
	}
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...interface{}) {
	msg := Mask(fmt.Sprintf(format, args...))
	if !l.noColor {
		fmt.Fprintf(os.Stderr, "\033[32m✓\033[0m %s\n", msg)
	} else {
		fmt.Fprintf(os.Stderr, "✓ %s\n", msg)
	}
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	msg := Mask(fmt.Sprintf(format, args...))
	if !l.noColor {
		fmt.Fprintf(os.Stderr, "\033[33m⚠\033[0m %s\n", msg)
	} else {
		fmt.Fprintf(os.Stderr, "⚠ %s\n", msg)
	}
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	msg := Mask(fmt.Sprintf(format, args...))
	if !l.noColor {
		fmt.Fprintf(os.Stderr, "\033[31m✗\033[0m %s\n", msg)
	} else {
		fmt.Fprintf(os.Stderr, "✗ %s\n", msg)
	}
}

// Debug logs a debug message if debug mode is enabled.
func (l *Logger) Debug(format string, args ...interface{}) {
	if !l.debug {
		return
	}
	msg := Mask(fmt.Sprintf(format, args...))
	if !l.noColor {
		fmt.Fprintf(os.Stderr, "\033[36m[DEBUG]\033[0m %s\n", msg)
	} else {
		fmt.Fprintf(os.Stderr, "[DEBUG] %s\n", msg)
	}
}

// Secret represents a value that must never appear in logs.
type Secret string

// String implements fmt.Stringer, always returning a redacted value.
func (s Secret) String() string {
	return "[REDACTED]"
}

// GoString implements fmt.GoStringer for %#v formatting.
func (s Secret) GoString() string {
	return "[REDACTED]"
}

// MaskToken replaces every masked run in output produced by Mask.
const MaskToken = "*****"

// secretRun matches contiguous runs of 20 or more characters drawn from the
// base64-ish alphabet. Tokens, API keys, and most secret material fall in
// this class; ordinary prose does not.
var secretRun = regexp.MustCompile(`[A-Za-z0-9+/]{20,}`)

// Mask replaces any contiguous run of 20+ alphanumeric, '+' or '/' characters
// with MaskToken. Every error message surfaced to a caller or written to a
// log passes through here so resolved secret material embedded in backend
// error text never leaks.
func Mask(s string) string {
	return secretRun.ReplaceAllString(s, MaskToken)
}

// MaskError applies Mask to an error's message, preserving nil.
func MaskError(err error) error {
	if err == nil {
		return nil
	}
	return maskedError{msg: Mask(err.Error()), err: err}
}

type maskedError struct {
	msg string
	err error
}

func (e maskedError) Error() string { return e.msg }

// Unwrap exposes the original error for errors.Is/As checks. The unmasked
// text is reachable through it, so callers must format only the top error.
func (e maskedError) Unwrap() error { return e.err }
