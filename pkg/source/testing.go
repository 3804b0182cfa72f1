package source

import (
	"context"
	"sync"
	"testing"
	"time"
)

// Fake is an in-memory Source for tests. It records how often each key was
// resolved so cache behavior can be asserted, and can be programmed to fail
// at initialization or on specific keys.
type Fake struct {
	mu       sync.Mutex
	name     string
	values   map[string]string
	failures map[string]error
	calls    map[string]int
	initErr  error

	refreshed int
	cleaned   bool
}

// NewFake creates a fake source registered under name.
func NewFake(name string) *Fake {
	return &Fake{
		name:     name,
		values:   make(map[string]string),
		failures: make(map[string]error),
		calls:    make(map[string]int),
	}
}

// WithValue programs a key to resolve to value. Returns the fake for chaining.
func (f *Fake) WithValue(key, value string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return f
}

// WithFailure programs a key to fail with err instead of resolving.
func (f *Fake) WithFailure(key string, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[key] = err
	return f
}

// WithInitError makes Initialize fail with err.
func (f *Fake) WithInitError(err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initErr = err
	return f
}

// Calls reports how many times key has been resolved.
func (f *Fake) Calls(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

// Refreshed reports how many times RefreshCache has been called.
func (f *Fake) Refreshed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshed
}

// Cleaned reports whether Cleanup has been called.
func (f *Fake) Cleaned() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cleaned
}

func (f *Fake) Name() string { return f.name }

func (f *Fake) Initialize(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initErr
}

func (f *Fake) Resolve(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[key]++
	if err, ok := f.failures[key]; ok {
		return "", err
	}
	if v, ok := f.values[key]; ok {
		return v, nil
	}
	return "", NotFoundError{Source: f.name, Key: key}
}

func (f *Fake) RefreshCache() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed++
}

func (f *Fake) Cleanup() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleaned = true
	return nil
}

var _ Source = (*Fake)(nil)

// ContractTest drives the standard behavior suite every adapter must pass.
type ContractTest struct {
	// CreateSource builds an initialized source instance to test.
	CreateSource func(t *testing.T) Source

	// KnownKey is a key the source can resolve; KnownValue its value.
	KnownKey   string
	KnownValue string

	// MissingKey is a key guaranteed to be absent.
	MissingKey string
}

// RunContractTests exercises the Source contract against a real adapter.
func RunContractTests(t *testing.T, ct ContractTest) {
	t.Run("Name", func(t *testing.T) {
		s := ct.CreateSource(t)
		if s.Name() == "" {
			t.Error("Name() returned empty string")
		}
		if s.Name() != s.Name() {
			t.Error("Name() not stable across calls")
		}
	})

	t.Run("Resolve", func(t *testing.T) {
		s := ct.CreateSource(t)
		got, err := s.Resolve(context.Background(), ct.KnownKey)
		if err != nil {
			t.Fatalf("Resolve(%q) failed: %v", ct.KnownKey, err)
		}
		if got != ct.KnownValue {
			t.Errorf("Resolve(%q) = %q, want %q", ct.KnownKey, got, ct.KnownValue)
		}

		// Repeated resolution must return the same value.
		again, err := s.Resolve(context.Background(), ct.KnownKey)
		if err != nil {
			t.Fatalf("second Resolve(%q) failed: %v", ct.KnownKey, err)
		}
		if again != got {
			t.Errorf("Resolve not repeatable: %q then %q", got, again)
		}
	})

	t.Run("ResolveMissing", func(t *testing.T) {
		s := ct.CreateSource(t)
		if _, err := s.Resolve(context.Background(), ct.MissingKey); err == nil {
			t.Errorf("Resolve(%q) succeeded for a missing key", ct.MissingKey)
		}
	})

	t.Run("ContextCancellation", func(t *testing.T) {
		s := ct.CreateSource(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _ = s.Resolve(ctx, ct.KnownKey)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("Resolve did not return promptly with a canceled context")
		}
	})

	t.Run("RefreshCache", func(t *testing.T) {
		s := ct.CreateSource(t)
		s.RefreshCache() // must not panic, cache or not

		got, err := s.Resolve(context.Background(), ct.KnownKey)
		if err != nil {
			t.Fatalf("Resolve after RefreshCache failed: %v", err)
		}
		if got != ct.KnownValue {
			t.Errorf("Resolve after RefreshCache = %q, want %q", got, ct.KnownValue)
		}
	})
}
