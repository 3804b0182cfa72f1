package sources

import (
	"context"
	"os"
	"sync"

	"github.com/joho/godotenv"

	"github.com/systmms/subst/internal/logging"
	"github.com/systmms/subst/pkg/source"
)

// EnvSource resolves keys against the process environment, optionally
// overlaid with values from dotenv files.
//
// Key format: the environment variable name, e.g. "DATABASE_URL".
//
// Settings:
//
//	dotenv_files: list of .env files loaded at initialization. Real
//	environment variables always win over dotenv values.
type EnvSource struct {
	name        string
	logger      *logging.Logger
	dotenvFiles []string

	mu      sync.RWMutex
	overlay map[string]string
}

// NewEnvSource creates an environment source from its settings block.
func NewEnvSource(name string, settings map[string]interface{}, logger *logging.Logger) *EnvSource {
	return &EnvSource{
		name:        name,
		logger:      logger,
		dotenvFiles: settingStringSlice(settings, "dotenv_files"),
		overlay:     make(map[string]string),
	}
}

func (s *EnvSource) Name() string { return s.name }

// Initialize loads any configured dotenv files into the overlay. A listed
// file that cannot be read fails initialization; the engine drops the
// source and logs a warning.
func (s *EnvSource) Initialize(ctx context.Context) error {
	if len(s.dotenvFiles) == 0 {
		return nil
	}
	merged, err := godotenv.Read(s.dotenvFiles...)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.overlay = merged
	s.mu.Unlock()
	s.logger.Debug("env source loaded %d dotenv values from %d file(s)", len(merged), len(s.dotenvFiles))
	return nil
}

func (s *EnvSource) Resolve(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if v, ok := os.LookupEnv(key); ok {
		return v, nil
	}
	s.mu.RLock()
	v, ok := s.overlay[key]
	s.mu.RUnlock()
	if ok {
		return v, nil
	}
	return "", source.NotFoundError{Source: s.name, Key: key}
}

// RefreshCache re-reads the dotenv overlay. The process environment itself
// is never cached.
func (s *EnvSource) RefreshCache() {
	if len(s.dotenvFiles) == 0 {
		return
	}
	merged, err := godotenv.Read(s.dotenvFiles...)
	if err != nil {
		s.logger.Warn("env source could not refresh dotenv files: %v", err)
		return
	}
	s.mu.Lock()
	s.overlay = merged
	s.mu.Unlock()
}

func (s *EnvSource) Cleanup() error { return nil }

var _ source.Source = (*EnvSource)(nil)
