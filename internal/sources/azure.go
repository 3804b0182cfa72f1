package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"

	"github.com/systmms/subst/internal/logging"
	"github.com/systmms/subst/pkg/source"
)

// AzureKeyVaultClientAPI is the slice of the Key Vault secrets client the
// source uses. Narrowed for mocking in tests.
type AzureKeyVaultClientAPI interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
}

// AzureSource resolves keys against Azure Key Vault.
//
// Key format:
//
//	db-password            latest version
//	db-password@abc123     pinned version
//
// Settings:
//
//	vault_url:     Key Vault URL, e.g. https://myvault.vault.azure.net
//	tenant_id:     service principal tenant (optional)
//	client_id:     service principal client id (optional)
//	client_secret: service principal secret (optional)
//
// When the service principal settings are absent the default Azure
// credential chain is used.
type AzureSource struct {
	name     string
	logger   *logging.Logger
	vaultURL string
	settings map[string]interface{}

	client AzureKeyVaultClientAPI
}

// AzureOption configures an AzureSource.
type AzureOption func(*AzureSource)

// WithAzureClient sets a custom Key Vault client (for testing).
func WithAzureClient(client AzureKeyVaultClientAPI) AzureOption {
	return func(s *AzureSource) { s.client = client }
}

// NewAzureSource creates a Key Vault source from its settings block.
func NewAzureSource(name string, settings map[string]interface{}, logger *logging.Logger, opts ...AzureOption) *AzureSource {
	s := &AzureSource{
		name:     name,
		logger:   logger,
		vaultURL: settingString(settings, "vault_url"),
		settings: settings,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AzureSource) Name() string { return s.name }

// Initialize builds the Key Vault client. A service principal from the
// settings wins over the default credential chain.
func (s *AzureSource) Initialize(ctx context.Context) error {
	if s.client != nil {
		return nil
	}
	if s.vaultURL == "" {
		return fmt.Errorf("azure key vault requires 'vault_url'")
	}

	var (
		cred azcore.TokenCredential
		err  error
	)
	tenantID := settingString(s.settings, "tenant_id")
	clientID := settingString(s.settings, "client_id")
	clientSecret := settingString(s.settings, "client_secret")
	if tenantID != "" && clientID != "" && clientSecret != "" {
		cred, err = azidentity.NewClientSecretCredential(tenantID, clientID, clientSecret, nil)
	} else {
		cred, err = azidentity.NewDefaultAzureCredential(nil)
	}
	if err != nil {
		return fmt.Errorf("failed to build azure credential: %w", err)
	}

	client, err := azsecrets.NewClient(s.vaultURL, cred, nil)
	if err != nil {
		return fmt.Errorf("failed to create key vault client: %w", err)
	}
	s.client = client
	return nil
}

func (s *AzureSource) Resolve(ctx context.Context, key string) (string, error) {
	name, version := splitAzureKey(key)
	if name == "" {
		return "", fmt.Errorf("empty key vault secret name in key %q", key)
	}

	resp, err := s.client.GetSecret(ctx, name, version, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) {
			switch respErr.StatusCode {
			case http.StatusNotFound:
				return "", source.NotFoundError{Source: s.name, Key: key}
			case http.StatusUnauthorized, http.StatusForbidden:
				return "", source.AuthError{Source: s.name, Message: err.Error()}
			}
		}
		return "", err
	}
	if resp.Value == nil {
		return "", fmt.Errorf("secret %q has no value", name)
	}
	return *resp.Value, nil
}

func (s *AzureSource) RefreshCache() {}

func (s *AzureSource) Cleanup() error { return nil }

// splitAzureKey separates "name@version" into name and version.
func splitAzureKey(key string) (name, version string) {
	if i := strings.LastIndex(key, "@"); i >= 0 {
		return key[:i], key[i+1:]
	}
	return key, ""
}

var _ source.Source = (*AzureSource)(nil)
