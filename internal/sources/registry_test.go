package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/subst/internal/config"
	"github.com/systmms/subst/internal/logging"
	"github.com/systmms/subst/pkg/source"
)

func TestRegistryBuiltins(t *testing.T) {
	r := NewRegistry()

	expected := []string{"aws", "azure", "env", "file", "gcp", "http", "k8s", "keyring", "vault"}
	assert.Equal(t, expected, r.SupportedTypes())
	for _, name := range expected {
		assert.True(t, r.IsSupported(name), name)
	}
	assert.False(t, r.IsSupported("doppler"))
}

func TestRegistryCreate(t *testing.T) {
	r := NewRegistry()
	logger := logging.New(false, true)

	for _, name := range r.SupportedTypes() {
		s, err := r.Create(name, config.SourceConfig{Enabled: true}, logger)
		require.NoError(t, err, name)
		assert.Equal(t, name, s.Name())
	}
}

func TestRegistryCreateUnknown(t *testing.T) {
	r := NewRegistry()

	_, err := r.Create("doppler", config.SourceConfig{}, logging.New(false, true))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown source type")
}

func TestRegistryCustomFactory(t *testing.T) {
	r := NewRegistry()
	fake := source.NewFake("custom")
	r.RegisterFactory("custom", func(name string, settings map[string]interface{}, logger *logging.Logger) (source.Source, error) {
		return fake, nil
	})

	s, err := r.Create("custom", config.SourceConfig{Enabled: true}, logging.New(false, true))
	require.NoError(t, err)
	assert.Same(t, source.Source(fake), s)
}
