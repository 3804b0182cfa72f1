package sources

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/systmms/subst/internal/cache"
	"github.com/systmms/subst/internal/logging"
	"github.com/systmms/subst/pkg/source"
)

// ssmPrefix marks keys that resolve against Parameter Store instead of
// Secrets Manager.
const ssmPrefix = "ssm:"

// awsCacheTTL is how long a fetched secret or parameter stays cached.
const awsCacheTTL = 5 * time.Minute

// SecretsManagerClientAPI is the slice of the Secrets Manager client the
// source uses. Narrowed for mocking in tests.
type SecretsManagerClientAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SSMClientAPI is the slice of the SSM client the source uses.
type SSMClientAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// AWSSource resolves keys against AWS Secrets Manager and, for keys with
// the "ssm:" prefix, Systems Manager Parameter Store.
//
// Key format:
//
//	prod/db-credentials           whole secret
//	prod/db-credentials#password  JSON field of the secret
//	ssm:/prod/app/db-host         SSM parameter (decrypted)
//
// Settings:
//
//	region:            AWS region (default us-east-1)
//	endpoint:          custom endpoint for LocalStack or testing
//	access_key_id:     static credentials for testing
//	secret_access_key: static credentials for testing
type AWSSource struct {
	name     string
	logger   *logging.Logger
	region   string
	endpoint string
	settings map[string]interface{}
	cache    *cache.Cache

	secrets SecretsManagerClientAPI
	params  SSMClientAPI
}

// AWSOption is a functional option for configuring an AWSSource.
type AWSOption func(*AWSSource)

// WithSecretsManagerClient sets a custom Secrets Manager client (for testing).
func WithSecretsManagerClient(client SecretsManagerClientAPI) AWSOption {
	return func(s *AWSSource) { s.secrets = client }
}

// WithSSMClient sets a custom SSM client (for testing).
func WithSSMClient(client SSMClientAPI) AWSOption {
	return func(s *AWSSource) { s.params = client }
}

// NewAWSSource creates an AWS source from its settings block.
func NewAWSSource(name string, settings map[string]interface{}, logger *logging.Logger, opts ...AWSOption) *AWSSource {
	region := settingString(settings, "region")
	if region == "" {
		region = "us-east-1"
	}
	s := &AWSSource{
		name:     name,
		logger:   logger,
		region:   region,
		endpoint: settingString(settings, "endpoint"),
		settings: settings,
		cache:    cache.New(awsCacheTTL),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AWSSource) Name() string { return s.name }

// Initialize loads the default AWS credential chain and builds both
// clients. Static credentials from the settings win when present.
func (s *AWSSource) Initialize(ctx context.Context) error {
	if s.secrets != nil && s.params != nil {
		return nil
	}

	configOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(s.region),
	}
	accessKey := settingString(s.settings, "access_key_id")
	secretKey := settingString(s.settings, "secret_access_key")
	if accessKey != "" && secretKey != "" {
		configOpts = append(configOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	if s.secrets == nil {
		var clientOpts []func(*secretsmanager.Options)
		if s.endpoint != "" {
			clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
				o.BaseEndpoint = aws.String(s.endpoint)
			})
		}
		s.secrets = secretsmanager.NewFromConfig(cfg, clientOpts...)
	}
	if s.params == nil {
		var clientOpts []func(*ssm.Options)
		if s.endpoint != "" {
			clientOpts = append(clientOpts, func(o *ssm.Options) {
				o.BaseEndpoint = aws.String(s.endpoint)
			})
		}
		s.params = ssm.NewFromConfig(cfg, clientOpts...)
	}
	return nil
}

func (s *AWSSource) Resolve(ctx context.Context, key string) (string, error) {
	if v, ok := s.cache.Get(key); ok {
		return v, nil
	}

	var value string
	var err error
	if strings.HasPrefix(key, ssmPrefix) {
		value, err = s.resolveParameter(ctx, strings.TrimPrefix(key, ssmPrefix))
	} else {
		value, err = s.resolveSecret(ctx, key)
	}
	if err != nil {
		return "", err
	}
	s.cache.Put(key, value)
	return value, nil
}

func (s *AWSSource) resolveSecret(ctx context.Context, key string) (string, error) {
	secretName, field := splitKey(key)

	result, err := s.secrets.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretName),
	})
	if err != nil {
		var notFound *smtypes.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return "", source.NotFoundError{Source: s.name, Key: key}
		}
		if isAWSAuthError(err) {
			return "", source.AuthError{Source: s.name, Message: err.Error()}
		}
		return "", err
	}

	var value string
	switch {
	case result.SecretString != nil:
		value = *result.SecretString
	case result.SecretBinary != nil:
		value = string(result.SecretBinary)
	default:
		return "", fmt.Errorf("secret %q has no value", secretName)
	}

	if field != "" {
		doc, err := decodeDocument([]byte(value), true)
		if err != nil {
			return "", fmt.Errorf("secret %q is not a JSON document: %w", secretName, err)
		}
		extracted, err := extractField(doc, field)
		if err != nil {
			return "", source.NotFoundError{Source: s.name, Key: key}
		}
		value = extracted
	}
	return value, nil
}

func (s *AWSSource) resolveParameter(ctx context.Context, name string) (string, error) {
	result, err := s.params.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var notFound *ssmtypes.ParameterNotFound
		if errors.As(err, &notFound) {
			return "", source.NotFoundError{Source: s.name, Key: ssmPrefix + name}
		}
		if isAWSAuthError(err) {
			return "", source.AuthError{Source: s.name, Message: err.Error()}
		}
		return "", err
	}
	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", fmt.Errorf("parameter %q has no value", name)
	}
	return *result.Parameter.Value, nil
}

func (s *AWSSource) RefreshCache() { s.cache.Clear() }

func (s *AWSSource) Cleanup() error {
	s.cache.Clear()
	return nil
}

func isAWSAuthError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "AccessDenied") ||
		strings.Contains(msg, "UnauthorizedOperation") ||
		strings.Contains(msg, "InvalidUserID") ||
		strings.Contains(msg, "Forbidden")
}

var _ source.Source = (*AWSSource)(nil)
