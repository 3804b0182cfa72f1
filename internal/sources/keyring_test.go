package sources

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/systmms/subst/internal/logging"
	"github.com/systmms/subst/pkg/source"
)

func TestKeyringResolve(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, keyring.Set("myapp", "db-user", "admin"))

	s := NewKeyringSource("keyring", nil, logging.New(false, true))
	require.NoError(t, s.Initialize(context.Background()))

	value, err := s.Resolve(context.Background(), "myapp/db-user")
	require.NoError(t, err)
	assert.Equal(t, "admin", value)
}

func TestKeyringResolveDefaultService(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, keyring.Set("myapp", "db-user", "admin"))

	s := NewKeyringSource("keyring", map[string]interface{}{"service": "myapp"}, logging.New(false, true))

	value, err := s.Resolve(context.Background(), "db-user")
	require.NoError(t, err)
	assert.Equal(t, "admin", value)
}

func TestKeyringResolveNotFound(t *testing.T) {
	keyring.MockInit()

	s := NewKeyringSource("keyring", nil, logging.New(false, true))

	_, err := s.Resolve(context.Background(), "myapp/absent")
	var notFound source.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "keyring", notFound.Source)
}

func TestKeyringResolveBadKey(t *testing.T) {
	keyring.MockInit()

	s := NewKeyringSource("keyring", nil, logging.New(false, true))

	for _, key := range []string{"", "no-service", "/account", "service/"} {
		_, err := s.Resolve(context.Background(), key)
		assert.Error(t, err, key)
	}
}
