// Package config loads and validates subst.yaml.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	substerrors "github.com/systmms/subst/internal/errors"
	"github.com/systmms/subst/internal/logging"
)

// DefaultTimeoutMs is the per-source resolve timeout when a source block
// does not set timeout_ms.
const DefaultTimeoutMs = 30000

// DefaultCacheTimeout is the top-level resolved-value cache TTL in seconds.
const DefaultCacheTimeout = 60

// Config holds the runtime configuration.
type Config struct {
	Path       string
	Logger     *logging.Logger
	Definition *Definition
}

// Definition is the subst.yaml structure.
type Definition struct {
	// CacheTimeout is the top-level resolved-value cache TTL in seconds.
	// Zero disables the cache.
	CacheTimeout int `yaml:"cacheTimeout"`

	// Extensions lists file suffixes batch mode treats as processable
	// documents. Empty means the built-in default set.
	Extensions []string `yaml:"extensions,omitempty"`

	// Sources maps source identifier to its per-adapter configuration.
	Sources map[string]SourceConfig `yaml:"sources"`
}

// SourceConfig holds one source's configuration. Adapter-specific settings
// live inline next to the recognized fields.
type SourceConfig struct {
	Enabled   bool                   `yaml:"enabled"`
	TimeoutMs int                    `yaml:"timeout_ms,omitempty"`
	Settings  map[string]interface{} `yaml:",inline"`
}

// Timeout returns the per-source resolve timeout.
func (s SourceConfig) Timeout() time.Duration {
	ms := s.TimeoutMs
	if ms <= 0 {
		ms = DefaultTimeoutMs
	}
	return time.Duration(ms) * time.Millisecond
}

// Default returns the configuration used when no config file exists:
// env, file and http enabled; every remote store disabled.
func Default() *Definition {
	return &Definition{
		CacheTimeout: DefaultCacheTimeout,
		Sources: map[string]SourceConfig{
			"env":     {Enabled: true},
			"file":    {Enabled: true},
			"http":    {Enabled: true},
			"vault":   {Enabled: false},
			"aws":     {Enabled: false},
			"k8s":     {Enabled: false},
			"gcp":     {Enabled: false},
			"azure":   {Enabled: false},
			"keyring": {Enabled: false},
		},
	}
}

// Load reads and parses the configuration file. A missing file is not an
// error: the built-in default configuration is used instead.
func (c *Config) Load() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			c.Definition = Default()
			return nil
		}
		return substerrors.ConfigError{
			Field:      "path",
			Value:      c.Path,
			Message:    "failed to read configuration file",
			Suggestion: "check file permissions and path",
		}
	}

	def, err := ParseDefinition(data)
	if err != nil {
		return err
	}
	c.Definition = def
	return nil
}

// ParseDefinition decodes and validates a configuration document.
func ParseDefinition(data []byte) (*Definition, error) {
	// Decode once into a generic document for schema validation, then into
	// the typed structure.
	var generic map[string]interface{}
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, substerrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "check for indentation errors, missing quotes, or invalid characters",
		}
	}

	if err := validateSchema(generic); err != nil {
		return nil, err
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, substerrors.ConfigError{
			Message:    "invalid configuration structure",
			Suggestion: "compare your subst.yaml against the documented format",
		}
	}

	// An explicit cacheTimeout of 0 disables caching; only an absent key
	// falls back to the default.
	if _, set := generic["cacheTimeout"]; !set {
		def.CacheTimeout = DefaultCacheTimeout
	}
	if def.Sources == nil {
		def.Sources = map[string]SourceConfig{}
	}
	return &def, nil
}

// CacheTTL returns the top-level resolved-value cache TTL.
func (d *Definition) CacheTTL() time.Duration {
	return time.Duration(d.CacheTimeout) * time.Second
}

// Source returns the configuration block for a source identifier. Absent
// sources report a disabled zero config.
func (d *Definition) Source(name string) SourceConfig {
	if d.Sources == nil {
		return SourceConfig{}
	}
	return d.Sources[name]
}

// EnabledSources returns the identifiers of every enabled source.
func (d *Definition) EnabledSources() []string {
	var names []string
	for name, sc := range d.Sources {
		if sc.Enabled {
			names = append(names, name)
		}
	}
	return names
}

// configSchema validates the shape of subst.yaml: recognized top-level keys,
// an `enabled` flag per source, and non-negative numbers where they matter.
const configSchema = `{
  "type": "object",
  "properties": {
    "cacheTimeout": {"type": "integer", "minimum": 0},
    "extensions": {"type": "array", "items": {"type": "string"}},
    "sources": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "properties": {
          "enabled": {"type": "boolean"},
          "timeout_ms": {"type": "integer", "minimum": 1}
        },
        "required": ["enabled"]
      }
    }
  },
  "additionalProperties": false
}`

func validateSchema(doc map[string]interface{}) error {
	if doc == nil {
		return nil
	}
	jsonData, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration for validation: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(configSchema),
		gojsonschema.NewBytesLoader(jsonData),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		var msgs []string
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return substerrors.ConfigError{
			Message:    "configuration failed schema validation:\n  - " + strings.Join(msgs, "\n  - "),
			Suggestion: "fix the listed fields in subst.yaml",
		}
	}
	return nil
}
