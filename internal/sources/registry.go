// Package sources contains the built-in source adapters and the registry
// that creates them from configuration.
package sources

import (
	"fmt"
	"sort"

	"github.com/systmms/subst/internal/config"
	"github.com/systmms/subst/internal/logging"
	"github.com/systmms/subst/internal/sources/vault"
	"github.com/systmms/subst/pkg/source"
)

// Factory creates a source instance from its configuration block.
type Factory func(name string, settings map[string]interface{}, logger *logging.Logger) (source.Source, error)

// Registry manages source creation by name.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates a registry with the built-in sources registered.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}

	r.RegisterFactory("env", func(name string, settings map[string]interface{}, logger *logging.Logger) (source.Source, error) {
		return NewEnvSource(name, settings, logger), nil
	})
	r.RegisterFactory("file", func(name string, settings map[string]interface{}, logger *logging.Logger) (source.Source, error) {
		return NewFileSource(name, settings, logger), nil
	})
	r.RegisterFactory("http", func(name string, settings map[string]interface{}, logger *logging.Logger) (source.Source, error) {
		return NewHTTPSource(name, settings, logger), nil
	})
	r.RegisterFactory("vault", func(name string, settings map[string]interface{}, logger *logging.Logger) (source.Source, error) {
		return vault.New(name, settings, logger), nil
	})
	r.RegisterFactory("aws", func(name string, settings map[string]interface{}, logger *logging.Logger) (source.Source, error) {
		return NewAWSSource(name, settings, logger), nil
	})
	r.RegisterFactory("k8s", func(name string, settings map[string]interface{}, logger *logging.Logger) (source.Source, error) {
		return NewK8sSource(name, settings, logger), nil
	})
	r.RegisterFactory("gcp", func(name string, settings map[string]interface{}, logger *logging.Logger) (source.Source, error) {
		return NewGCPSource(name, settings, logger), nil
	})
	r.RegisterFactory("azure", func(name string, settings map[string]interface{}, logger *logging.Logger) (source.Source, error) {
		return NewAzureSource(name, settings, logger), nil
	})
	r.RegisterFactory("keyring", func(name string, settings map[string]interface{}, logger *logging.Logger) (source.Source, error) {
		return NewKeyringSource(name, settings, logger), nil
	})

	return r
}

// RegisterFactory registers a factory under a source name.
func (r *Registry) RegisterFactory(name string, factory Factory) {
	r.factories[name] = factory
}

// Create builds the source named in the configuration block.
func (r *Registry) Create(name string, cfg config.SourceConfig, logger *logging.Logger) (source.Source, error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown source type: %s", name)
	}
	return factory(name, cfg.Settings, logger)
}

// SupportedTypes lists the registered source names, sorted.
func (r *Registry) SupportedTypes() []string {
	types := make([]string, 0, len(r.factories))
	for name := range r.factories {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}

// IsSupported reports whether a source name has a registered factory.
func (r *Registry) IsSupported(name string) bool {
	_, ok := r.factories[name]
	return ok
}
