// Package errors defines the error taxonomy of the resolution engine.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// InvalidSyntaxError reports malformed placeholder text handed to the strict
// single-placeholder parser. Document scanning never produces it; a span
// that does not match the grammar is simply left as literal text.
type InvalidSyntaxError struct {
	Text   string
	Reason string
}

func (e InvalidSyntaxError) Error() string {
	msg := fmt.Sprintf("invalid placeholder syntax: %q", e.Text)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// InitializationError reports that a source adapter could not start. It is
// non-fatal to the engine: the source is dropped from the registration and
// a warning is logged.
type InitializationError struct {
	Source string
	Err    error
}

func (e InitializationError) Error() string {
	return fmt.Sprintf("source %s failed to initialize: %v", e.Source, e.Err)
}

func (e InitializationError) Unwrap() error { return e.Err }

// ResolutionError reports that a source could not produce a value for a key:
// the key is absent, access was denied, or the backend is unreachable. It
// triggers fallback to the next source in the chain.
type ResolutionError struct {
	Source string
	Key    string
	Err    error
}

func (e ResolutionError) Error() string {
	return fmt.Sprintf("source %s could not resolve %q: %v", e.Source, e.Key, e.Err)
}

func (e ResolutionError) Unwrap() error { return e.Err }

// UnresolvedError reports that a placeholder's entire fallback chain was
// exhausted and no default value was supplied. It is fatal to the enclosing
// document resolution.
type UnresolvedError struct {
	Name    string
	Source  string
	Key     string
	LastErr error
}

func (e UnresolvedError) Error() string {
	msg := fmt.Sprintf("unresolved placeholder %q: no source could supply key %q (declared source %s)", e.Name, e.Key, e.Source)
	if e.LastErr != nil {
		msg += ": " + e.LastErr.Error()
	}
	return msg
}

func (e UnresolvedError) Unwrap() error { return e.LastErr }

// ValidationError reports a batch-mode document whose resolution failed. It
// is surfaced per file without aborting the batch.
type ValidationError struct {
	Path string
	Err  error
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("document %s failed to resolve: %v", e.Path, e.Err)
}

func (e ValidationError) Unwrap() error { return e.Err }

// ConfigError reports an invalid configuration field with helpful context.
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message
	if e.Suggestion != "" {
		msg += "\n  hint: " + e.Suggestion
	}
	return msg
}

// SourceError wraps a backend failure with the source name and the key that
// was being resolved, attaching a suggestion for common failure modes.
func SourceError(sourceName, key string, err error) error {
	return ResolutionError{
		Source: sourceName,
		Key:    key,
		Err:    annotate(err),
	}
}

// annotate attaches a hint for well-known backend failures.
func annotate(err error) error {
	if err == nil {
		return nil
	}
	errStr := strings.ToLower(err.Error())
	var hint string
	switch {
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(errStr, "timeout"):
		hint = "the backend timed out; raise timeout_ms for this source or check connectivity"
	case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host"):
		hint = "the backend is unreachable; check network and source configuration"
	case strings.Contains(errStr, "permission denied") || strings.Contains(errStr, "accessdenied") || strings.Contains(errStr, "forbidden"):
		hint = "access was denied; check the credentials configured for this source"
	}
	if hint == "" {
		return err
	}
	return fmt.Errorf("%w (%s)", err, hint)
}

// IsTimeout reports whether err stems from a per-source deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
