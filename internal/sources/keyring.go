package sources

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/systmms/subst/internal/logging"
	"github.com/systmms/subst/pkg/source"
)

// KeyringSource resolves keys against the operating system keyring
// (Keychain on macOS, Secret Service on Linux, Credential Manager on
// Windows).
//
// Key format:
//
//	myservice/myaccount
//
// Settings:
//
//	service: default service, letting keys name just the account
type KeyringSource struct {
	name    string
	logger  *logging.Logger
	service string
}

// NewKeyringSource creates an OS keyring source from its settings block.
func NewKeyringSource(name string, settings map[string]interface{}, logger *logging.Logger) *KeyringSource {
	return &KeyringSource{
		name:    name,
		logger:  logger,
		service: settingString(settings, "service"),
	}
}

func (s *KeyringSource) Name() string { return s.name }

// Initialize probes the keyring backend so a missing Secret Service
// daemon surfaces at startup instead of mid-resolution.
func (s *KeyringSource) Initialize(ctx context.Context) error {
	_, err := keyring.Get("subst-probe", "subst-probe")
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring backend unavailable: %w", err)
	}
	return nil
}

func (s *KeyringSource) Resolve(ctx context.Context, key string) (string, error) {
	service, account, err := s.splitKeyringKey(key)
	if err != nil {
		return "", err
	}

	value, err := keyring.Get(service, account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", source.NotFoundError{Source: s.name, Key: key}
		}
		return "", err
	}
	return value, nil
}

func (s *KeyringSource) RefreshCache() {}

func (s *KeyringSource) Cleanup() error { return nil }

func (s *KeyringSource) splitKeyringKey(key string) (service, account string, err error) {
	parts := strings.SplitN(key, "/", 2)
	if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
		return parts[0], parts[1], nil
	}
	if s.service != "" && len(parts) == 1 && parts[0] != "" {
		return s.service, parts[0], nil
	}
	return "", "", fmt.Errorf("keyring key %q must be service/account", key)
}

var _ source.Source = (*KeyringSource)(nil)
