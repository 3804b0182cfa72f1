package sources

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/systmms/subst/internal/cache"
	"github.com/systmms/subst/internal/logging"
	"github.com/systmms/subst/pkg/source"
)

// k8sCacheTTL keeps ConfigMap and Secret reads out of the API server for
// a short window.
const k8sCacheTTL = 30 * time.Second

// K8sSource resolves keys against Kubernetes ConfigMaps and Secrets.
//
// Key format:
//
//	configmap/<namespace>/<name>#<key>
//	secret/<namespace>/<name>#<key>
//
// Settings:
//
//	kubeconfig: path to a kubeconfig file (default: in-cluster config,
//	            then $KUBECONFIG, then ~/.kube/config)
type K8sSource struct {
	name       string
	logger     *logging.Logger
	kubeconfig string

	client kubernetes.Interface
	cache  *cache.Cache
}

// K8sOption configures a K8sSource.
type K8sOption func(*K8sSource)

// WithK8sClient sets a custom clientset (for testing).
func WithK8sClient(client kubernetes.Interface) K8sOption {
	return func(s *K8sSource) { s.client = client }
}

// NewK8sSource creates a Kubernetes source from its settings block.
func NewK8sSource(name string, settings map[string]interface{}, logger *logging.Logger, opts ...K8sOption) *K8sSource {
	s := &K8sSource{
		name:       name,
		logger:     logger,
		kubeconfig: settingString(settings, "kubeconfig"),
		cache:      cache.New(k8sCacheTTL),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *K8sSource) Name() string { return s.name }

// Initialize builds the clientset. In-cluster config is preferred, with
// kubeconfig as the fallback for out-of-cluster runs.
func (s *K8sSource) Initialize(ctx context.Context) error {
	if s.client != nil {
		return nil
	}
	cfg, err := s.restConfig()
	if err != nil {
		return err
	}
	client, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to create kubernetes client: %w", err)
	}
	s.client = client
	return nil
}

func (s *K8sSource) restConfig() (*rest.Config, error) {
	if cfg, err := rest.InClusterConfig(); err == nil {
		return cfg, nil
	}
	path := s.kubeconfig
	if path == "" {
		path = os.Getenv("KUBECONFIG")
	}
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("no kubeconfig available: %w", err)
		}
		path = filepath.Join(home, ".kube", "config")
	}
	cfg, err := clientcmd.BuildConfigFromFlags("", path)
	if err != nil {
		return nil, fmt.Errorf("failed to load kubeconfig %s: %w", path, err)
	}
	return cfg, nil
}

func (s *K8sSource) Resolve(ctx context.Context, key string) (string, error) {
	if v, ok := s.cache.Get(key); ok {
		return v, nil
	}

	kind, namespace, name, dataKey, err := parseK8sKey(key)
	if err != nil {
		return "", err
	}

	var value string
	switch kind {
	case "configmap":
		value, err = s.configMapValue(ctx, namespace, name, dataKey)
	case "secret":
		value, err = s.secretValue(ctx, namespace, name, dataKey)
	default:
		return "", fmt.Errorf("unknown kubernetes object kind %q (want configmap or secret)", kind)
	}
	if err != nil {
		if k8serrors.IsNotFound(err) {
			return "", source.NotFoundError{Source: s.name, Key: key}
		}
		if k8serrors.IsForbidden(err) || k8serrors.IsUnauthorized(err) {
			return "", source.AuthError{Source: s.name, Message: err.Error()}
		}
		return "", err
	}
	s.cache.Put(key, value)
	return value, nil
}

func (s *K8sSource) configMapValue(ctx context.Context, namespace, name, dataKey string) (string, error) {
	cm, err := s.client.CoreV1().ConfigMaps(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return "", err
	}
	if v, ok := cm.Data[dataKey]; ok {
		return v, nil
	}
	if b, ok := cm.BinaryData[dataKey]; ok {
		return string(b), nil
	}
	return "", source.NotFoundError{Source: s.name, Key: fmt.Sprintf("configmap/%s/%s#%s", namespace, name, dataKey)}
}

func (s *K8sSource) secretValue(ctx context.Context, namespace, name, dataKey string) (string, error) {
	secret, err := s.client.CoreV1().Secrets(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return "", err
	}
	// Secret data arrives base64-decoded from the client.
	if v, ok := secret.Data[dataKey]; ok {
		return string(v), nil
	}
	if v, ok := secret.StringData[dataKey]; ok {
		return v, nil
	}
	return "", source.NotFoundError{Source: s.name, Key: fmt.Sprintf("secret/%s/%s#%s", namespace, name, dataKey)}
}

func (s *K8sSource) RefreshCache() { s.cache.Clear() }

func (s *K8sSource) Cleanup() error {
	s.cache.Clear()
	return nil
}

// parseK8sKey splits "kind/namespace/name#key" into its parts.
func parseK8sKey(key string) (kind, namespace, name, dataKey string, err error) {
	ref, dataKey := splitKey(key)
	if dataKey == "" {
		return "", "", "", "", fmt.Errorf("kubernetes key %q must name a data key after '#'", key)
	}
	parts := strings.Split(ref, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", "", fmt.Errorf("kubernetes key %q must be kind/namespace/name#key", key)
	}
	return strings.ToLower(parts[0]), parts[1], parts[2], dataKey, nil
}

var _ source.Source = (*K8sSource)(nil)
