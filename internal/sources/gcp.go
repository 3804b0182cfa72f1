package sources

import (
	"context"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/systmms/subst/internal/logging"
	"github.com/systmms/subst/pkg/source"
)

// GCPSource resolves keys against Google Cloud Secret Manager.
//
// Key format:
//
//	projects/my-proj/secrets/db-password/versions/latest  full resource name
//	my-proj/db-password                                   shorthand, latest version
//	my-proj/db-password/3                                 shorthand with version
//
// Settings:
//
//	project:          default project for bare secret names
//	credentials_file: service account key path (default ADC)
type GCPSource struct {
	name      string
	logger    *logging.Logger
	projectID string
	credsFile string

	client *secretmanager.Client
}

// NewGCPSource creates a Secret Manager source from its settings block.
func NewGCPSource(name string, settings map[string]interface{}, logger *logging.Logger) *GCPSource {
	return &GCPSource{
		name:      name,
		logger:    logger,
		projectID: settingString(settings, "project"),
		credsFile: settingString(settings, "credentials_file"),
	}
}

func (s *GCPSource) Name() string { return s.name }

// Initialize builds the Secret Manager client using application default
// credentials, or the configured service account key.
func (s *GCPSource) Initialize(ctx context.Context) error {
	var opts []option.ClientOption
	if s.credsFile != "" {
		opts = append(opts, option.WithCredentialsFile(s.credsFile))
	}
	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create secret manager client: %w", err)
	}
	s.client = client
	return nil
}

func (s *GCPSource) Resolve(ctx context.Context, key string) (string, error) {
	resource, err := s.versionResource(key)
	if err != nil {
		return "", err
	}

	result, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: resource,
	})
	if err != nil {
		switch status.Code(err) {
		case codes.NotFound:
			return "", source.NotFoundError{Source: s.name, Key: key}
		case codes.PermissionDenied, codes.Unauthenticated:
			return "", source.AuthError{Source: s.name, Message: err.Error()}
		}
		return "", err
	}
	return string(result.GetPayload().GetData()), nil
}

// versionResource expands shorthand keys into full secret version resource
// names.
func (s *GCPSource) versionResource(key string) (string, error) {
	if strings.HasPrefix(key, "projects/") {
		return key, nil
	}
	parts := strings.Split(key, "/")
	switch len(parts) {
	case 1:
		if s.projectID == "" {
			return "", fmt.Errorf("key %q needs a project (set 'project' or use project/secret form)", key)
		}
		return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", s.projectID, parts[0]), nil
	case 2:
		return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", parts[0], parts[1]), nil
	case 3:
		return fmt.Sprintf("projects/%s/secrets/%s/versions/%s", parts[0], parts[1], parts[2]), nil
	}
	return "", fmt.Errorf("invalid secret manager key %q", key)
}

func (s *GCPSource) RefreshCache() {}

func (s *GCPSource) Cleanup() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

var _ source.Source = (*GCPSource)(nil)
