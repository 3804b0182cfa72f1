// Package source defines the capability contract that every value backend
// in subst implements.
//
// A Source answers key lookups on behalf of the resolution engine. Backends
// range from the local process environment to remote secret stores (HashiCorp
// Vault, AWS Secrets Manager, Google Secret Manager, Azure Key Vault), the
// Kubernetes API, plain files, and HTTP endpoints. All of them hide behind
// the same four-method interface so the engine can walk a precedence chain
// without knowing what sits at the other end.
//
// # Implementing a Source
//
//  1. Implement the Source interface.
//  2. Register a factory for its type in the sources registry.
//  3. Add a configuration block for it under `sources:` in subst.yaml.
//
// # Key format
//
// Resolve takes a single opaque string. Any sub-structure (field path, HTTP
// method, namespace, version pin) is adapter-private grammar nested inside
// that string and documented on the adapter itself. The engine never
// inspects keys.
//
// # Error handling
//
// Sources should return NotFoundError when the key, path, or field does not
// exist and AuthError when access is denied. The engine treats every Resolve
// error the same way: record it and fall through to the next source in the
// chain.
//
// # Security
//
// Sources must never log resolved values. Use logging.Secret when a value
// must appear in a format string, and rely on logging.Mask for any error
// text that could embed secret material.
//
// # Concurrency
//
// Source implementations must be safe for concurrent Resolve calls; the
// engine fans out placeholder resolution across goroutines. Internal caches
// are the only mutable state an adapter should carry.
package source

import (
	"context"
	"errors"
)

// Source is the capability contract for a value backend.
type Source interface {
	// Name returns the source identifier this instance was registered
	// under, e.g. "env", "file", "vault". It is used in cache keys, log
	// lines, and error messages, never for dispatch.
	Name() string

	// Initialize prepares the backend for lookups: builds clients, checks
	// reachability, loads ancillary files. A failure is reported as an
	// InitializationError by the engine, which drops the source and
	// continues; it must not be treated as fatal by callers.
	Initialize(ctx context.Context) error

	// Resolve returns the value for key. It is pure from the caller's
	// perspective: no side effects beyond the adapter's own cache, safe to
	// call repeatedly and concurrently. The key format is adapter-private.
	//
	// Return NotFoundError when the key is absent, AuthError when access
	// is denied. Any error makes the engine advance to the next source in
	// the placeholder's chain.
	Resolve(ctx context.Context, key string) (string, error)

	// RefreshCache drops every entry from the adapter's private cache.
	// Adapters without a cache implement it as a no-op.
	RefreshCache()

	// Cleanup releases backend resources. The source is unusable
	// afterwards.
	Cleanup() error
}

// NotFoundError reports that a source has no value for the requested key.
type NotFoundError struct {
	Source string
	Key    string
}

func (e NotFoundError) Error() string {
	return "key not found: " + e.Key + " in source " + e.Source
}

// AuthError reports that the backend refused access.
type AuthError struct {
	Source  string
	Message string
}

func (e AuthError) Error() string {
	return "access denied by source " + e.Source + ": " + e.Message
}

// IsNotFound reports whether err is a NotFoundError anywhere in its chain.
func IsNotFound(err error) bool {
	var notFound NotFoundError
	return errors.As(err, &notFound)
}
