// Package engine resolves placeholders against the configured sources.
//
// Resolution walks a precedence chain: the placeholder's declared source
// first, then the remaining sources in fixed order. The first source that
// returns a value wins and the value is cached. When every source misses,
// the placeholder's default applies; defaults are returned verbatim and
// never cached.
package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/systmms/subst/internal/cache"
	"github.com/systmms/subst/internal/config"
	substerrors "github.com/systmms/subst/internal/errors"
	"github.com/systmms/subst/internal/logging"
	"github.com/systmms/subst/internal/metrics"
	"github.com/systmms/subst/internal/placeholder"
	"github.com/systmms/subst/internal/sources"
	"github.com/systmms/subst/pkg/source"
)

// PrecedenceOrder is the fixed fallback order appended after a
// placeholder's declared source.
var PrecedenceOrder = []string{"env", "file", "vault", "aws", "k8s", "http"}

// maxConcurrent bounds concurrent source calls during document resolution.
const maxConcurrent = 10

// Engine resolves placeholders and substitutes them into documents.
type Engine struct {
	cfg    *config.Config
	logger *logging.Logger

	mu      sync.RWMutex // protects sources map
	sources map[string]source.Source

	resolved *cache.Cache
}

// New builds an engine from the configuration: every enabled source is
// created and initialized. A source that fails to initialize is dropped
// with a warning; resolution proceeds without it.
func New(ctx context.Context, cfg *config.Config) (*Engine, error) {
	e := &Engine{
		cfg:      cfg,
		logger:   cfg.Logger,
		sources:  make(map[string]source.Source),
		resolved: cache.New(cfg.Definition.CacheTTL()),
	}

	registry := sources.NewRegistry()
	names := cfg.Definition.EnabledSources()
	sort.Strings(names)
	for _, name := range names {
		sc := cfg.Definition.Source(name)
		src, err := registry.Create(name, sc, cfg.Logger)
		if err != nil {
			cfg.Logger.Warn("Skipping source '%s': %v", name, err)
			continue
		}

		initCtx, cancel := context.WithTimeout(ctx, sc.Timeout())
		err = src.Initialize(initCtx)
		cancel()
		if err != nil {
			initErr := substerrors.InitializationError{Source: name, Err: err}
			cfg.Logger.Warn("Dropping source: %v", logging.MaskError(initErr))
			continue
		}
		e.sources[name] = src
		cfg.Logger.Debug("Initialized source: %s", name)
	}
	return e, nil
}

// Register adds a source to the engine, replacing any source with the
// same name.
func (e *Engine) Register(src source.Source) {
	e.mu.Lock()
	e.sources[src.Name()] = src
	e.mu.Unlock()
}

// Sources returns the names of the registered sources, sorted.
func (e *Engine) Sources() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.sources))
	for name := range e.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolvePlaceholder resolves a single placeholder to its value.
func (e *Engine) ResolvePlaceholder(ctx context.Context, p placeholder.Placeholder) (string, error) {
	cacheKey := p.Name + "\x00" + p.Source + "\x00" + p.Key
	if v, ok := e.resolved.Get(cacheKey); ok {
		metrics.RecordCache("top", "hit")
		metrics.RecordResolution(p.Source, "hit")
		return v, nil
	}
	metrics.RecordCache("top", "miss")

	var lastErr error
	for _, name := range e.chain(p.Source) {
		e.mu.RLock()
		src := e.sources[name]
		e.mu.RUnlock()

		value, err := e.resolveFrom(ctx, src, name, p.Key)
		if err == nil {
			e.resolved.Put(cacheKey, value)
			metrics.RecordResolution(name, "miss")
			e.logger.Debug("Resolved '%s' from source '%s'", p.Name, name)
			return value, nil
		}
		lastErr = substerrors.SourceError(name, p.Key, err)
		if source.IsNotFound(err) {
			continue
		}
		metrics.RecordResolution(name, "error")
		e.logger.Debug("Source '%s' failed for '%s': %v", name, p.Name, logging.MaskError(err))
	}

	if p.HasDefault {
		metrics.RecordResolution(p.Source, "default")
		return p.Default, nil
	}
	return "", substerrors.UnresolvedError{
		Name:    p.Name,
		Source:  p.Source,
		Key:     p.Key,
		LastErr: logging.MaskError(lastErr),
	}
}

// resolveFrom calls one source under its configured timeout.
func (e *Engine) resolveFrom(ctx context.Context, src source.Source, name, key string) (string, error) {
	if src == nil {
		return "", source.NotFoundError{Source: name, Key: key}
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, e.cfg.Definition.Source(name).Timeout())
	defer cancel()
	return src.Resolve(timeoutCtx, key)
}

// chain returns the source names to try, in order: the declared source,
// then the precedence order minus the declared source, filtered down to
// registered sources. The declared source stays in the chain even when
// unregistered so its miss is reported rather than silently skipped.
func (e *Engine) chain(declared string) []string {
	out := []string{declared}
	for _, name := range PrecedenceOrder {
		if name == declared {
			continue
		}
		e.mu.RLock()
		_, ok := e.sources[name]
		e.mu.RUnlock()
		if ok {
			out = append(out, name)
		}
	}
	return out
}

// ResolveText substitutes every placeholder in the text. Substitution is
// all-or-nothing: one unresolved placeholder fails the whole document and
// the input is returned unchanged alongside the error.
func (e *Engine) ResolveText(ctx context.Context, text string) (string, error) {
	matches := placeholder.Scan(text)
	if len(matches) == 0 {
		return text, nil
	}

	// Duplicate occurrences resolve once.
	unique := make(map[string]placeholder.Placeholder)
	for _, m := range matches {
		unique[m.Text] = m.Placeholder
	}

	values := make(map[string]string, len(unique))
	var valuesMu sync.Mutex
	var wg sync.WaitGroup
	errChan := make(chan error, len(unique))
	semaphore := make(chan struct{}, maxConcurrent)

	for occurrence, p := range unique {
		wg.Add(1)
		go func(occurrence string, p placeholder.Placeholder) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			value, err := e.ResolvePlaceholder(ctx, p)
			if err != nil {
				errChan <- err
				return
			}
			valuesMu.Lock()
			values[occurrence] = value
			valuesMu.Unlock()
		}(occurrence, p)
	}
	wg.Wait()
	close(errChan)

	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		if len(errs) == 1 {
			return text, errs[0]
		}
		msgs := make([]string, len(errs))
		for i, err := range errs {
			msgs[i] = err.Error()
		}
		return text, fmt.Errorf("%d placeholders failed to resolve:\n  - %s",
			len(errs), strings.Join(msgs, "\n  - "))
	}

	// Splice resolved values into the original text by match span so a
	// value that happens to contain placeholder syntax is inserted
	// verbatim and never re-substituted.
	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(text[last:m.Start])
		b.WriteString(values[m.Text])
		last = m.End
	}
	b.WriteString(text[last:])
	return b.String(), nil
}

// RefreshCache drops the resolved-value cache and every source's internal
// cache.
func (e *Engine) RefreshCache() {
	e.resolved.Clear()
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, src := range e.sources {
		src.RefreshCache()
	}
}

// Close releases every source. The first error wins; cleanup still runs
// for the rest.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var firstErr error
	for name, src := range e.sources {
		if err := src.Cleanup(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("cleanup of source '%s' failed: %w", name, err)
		}
	}
	e.sources = make(map[string]source.Source)
	return firstErr
}
