// Package vault implements the HashiCorp Vault source adapter on top of the
// official API client.
package vault

import (
	"context"
	"fmt"
	"os"
	"time"

	vaultapi "github.com/hashicorp/vault/api"

	"github.com/systmms/subst/internal/cache"
	"github.com/systmms/subst/internal/logging"
	"github.com/systmms/subst/pkg/source"
)

// secretCacheTTL is how long a read secret stays cached.
const secretCacheTTL = 5 * time.Minute

// logicalReader is the slice of the Vault client the adapter needs.
// Narrowed for testability.
type logicalReader interface {
	ReadWithContext(ctx context.Context, path string) (*vaultapi.Secret, error)
}

// Source resolves keys against HashiCorp Vault.
//
// Key format:
//
//	secret/data/myapp           whole secret as JSON
//	secret/data/myapp#password  a single field
//
// KV v2 responses are unwrapped automatically: when the secret carries a
// nested "data" object alongside "metadata", the nested object is used.
//
// Settings:
//
//	address:   Vault server address (VAULT_ADDR wins when set)
//	token:     Vault token (VAULT_TOKEN wins when set)
//	namespace: Vault Enterprise namespace
type Source struct {
	name    string
	logger  *logging.Logger
	address string
	token   string
	ns      string

	reader logicalReader
	cache  *cache.Cache
}

// Option configures a Source. Used by tests to inject a fake reader.
type Option func(*Source)

// WithReader sets a custom logical reader.
func WithReader(r logicalReader) Option {
	return func(s *Source) { s.reader = r }
}

// New creates a Vault source from its settings block.
func New(name string, settings map[string]interface{}, logger *logging.Logger, opts ...Option) *Source {
	s := &Source{
		name:    name,
		logger:  logger,
		address: settingString(settings, "address"),
		token:   settingString(settings, "token"),
		ns:      settingString(settings, "namespace"),
		cache:   cache.New(secretCacheTTL),
	}
	if addr := os.Getenv(vaultapi.EnvVaultAddress); addr != "" {
		s.address = addr
	}
	if token := os.Getenv(vaultapi.EnvVaultToken); token != "" {
		s.token = token
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Source) Name() string { return s.name }

// Initialize builds the API client. Missing address or token fails
// initialization, which the engine treats as "source unavailable".
func (s *Source) Initialize(ctx context.Context) error {
	if s.reader != nil {
		return nil
	}
	if s.address == "" {
		return fmt.Errorf("vault address is required (set 'address' or VAULT_ADDR)")
	}
	if s.token == "" {
		return fmt.Errorf("vault token is required (set 'token' or VAULT_TOKEN)")
	}

	cfg := vaultapi.DefaultConfig()
	cfg.Address = s.address
	client, err := vaultapi.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(s.token)
	if s.ns != "" {
		client.SetNamespace(s.ns)
	}
	s.reader = client.Logical()
	return nil
}

func (s *Source) Resolve(ctx context.Context, key string) (string, error) {
	if v, ok := s.cache.Get(key); ok {
		return v, nil
	}

	path, field := splitKey(key)
	if path == "" {
		return "", fmt.Errorf("empty vault path in key %q", key)
	}

	secret, err := s.reader.ReadWithContext(ctx, path)
	if err != nil {
		return "", err
	}
	if secret == nil || secret.Data == nil {
		return "", source.NotFoundError{Source: s.name, Key: key}
	}

	data := unwrapKVv2(secret.Data)
	value, err := fieldValue(data, field)
	if err != nil {
		return "", source.NotFoundError{Source: s.name, Key: key}
	}
	s.cache.Put(key, value)
	return value, nil
}

func (s *Source) RefreshCache() { s.cache.Clear() }

func (s *Source) Cleanup() error {
	s.cache.Clear()
	return nil
}

var _ source.Source = (*Source)(nil)
