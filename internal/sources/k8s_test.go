package sources

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/systmms/subst/internal/logging"
	"github.com/systmms/subst/pkg/source"
)

func newTestK8sSource(objects ...runtime.Object) *K8sSource {
	client := fake.NewSimpleClientset(objects...)
	return NewK8sSource("k8s", nil, logging.New(false, true), WithK8sClient(client))
}

func TestK8sResolveConfigMap(t *testing.T) {
	s := newTestK8sSource(&corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{Name: "app-config", Namespace: "prod"},
		Data:       map[string]string{"db-host": "db.internal"},
	})

	value, err := s.Resolve(context.Background(), "configmap/prod/app-config#db-host")
	require.NoError(t, err)
	assert.Equal(t, "db.internal", value)
}

func TestK8sResolveSecret(t *testing.T) {
	s := newTestK8sSource(&corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: "app-secrets", Namespace: "prod"},
		Data:       map[string][]byte{"api-key": []byte("abc123")},
	})

	value, err := s.Resolve(context.Background(), "secret/prod/app-secrets#api-key")
	require.NoError(t, err)
	assert.Equal(t, "abc123", value)
}

func TestK8sResolveMissingObject(t *testing.T) {
	s := newTestK8sSource()

	_, err := s.Resolve(context.Background(), "configmap/prod/absent#key")
	var notFound source.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "k8s", notFound.Source)
}

func TestK8sResolveMissingDataKey(t *testing.T) {
	s := newTestK8sSource(&corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{Name: "app-config", Namespace: "prod"},
		Data:       map[string]string{"db-host": "db.internal"},
	})

	_, err := s.Resolve(context.Background(), "configmap/prod/app-config#db-port")
	var notFound source.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestK8sResolveBadKey(t *testing.T) {
	s := newTestK8sSource()

	tests := []string{
		"configmap/prod/app-config",
		"prod/app-config#key",
		"deployment/prod/app#key",
		"configmap//app-config#key",
	}
	for _, key := range tests {
		_, err := s.Resolve(context.Background(), key)
		assert.Error(t, err, key)
	}
}

func TestK8sResolveCaches(t *testing.T) {
	client := fake.NewSimpleClientset(&corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{Name: "app-config", Namespace: "prod"},
		Data:       map[string]string{"db-host": "db.internal"},
	})
	s := NewK8sSource("k8s", nil, logging.New(false, true), WithK8sClient(client))

	_, err := s.Resolve(context.Background(), "configmap/prod/app-config#db-host")
	require.NoError(t, err)

	// Mutate the object behind the cache. The stale value stays served
	// until RefreshCache.
	cm, err := client.CoreV1().ConfigMaps("prod").Get(context.Background(), "app-config", metav1.GetOptions{})
	require.NoError(t, err)
	cm.Data["db-host"] = "db2.internal"
	_, err = client.CoreV1().ConfigMaps("prod").Update(context.Background(), cm, metav1.UpdateOptions{})
	require.NoError(t, err)

	value, err := s.Resolve(context.Background(), "configmap/prod/app-config#db-host")
	require.NoError(t, err)
	assert.Equal(t, "db.internal", value)

	s.RefreshCache()
	value, err = s.Resolve(context.Background(), "configmap/prod/app-config#db-host")
	require.NoError(t, err)
	assert.Equal(t, "db2.internal", value)
}
