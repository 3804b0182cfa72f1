package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/subst/internal/logging"
	"github.com/systmms/subst/pkg/source"
)

func TestHTTPResolveBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("  token-value\n"))
	}))
	defer server.Close()

	s := NewHTTPSource("http", nil, logging.New(false, true))

	value, err := s.Resolve(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "token-value", value)
}

func TestHTTPResolveJSONField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"token":"t-123"}}`))
	}))
	defer server.Close()

	s := NewHTTPSource("http", nil, logging.New(false, true))

	value, err := s.Resolve(context.Background(), server.URL+"#data.token")
	require.NoError(t, err)
	assert.Equal(t, "t-123", value)
}

func TestHTTPResolveSendsHeaders(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	s := NewHTTPSource("http", map[string]interface{}{
		"headers": map[string]interface{}{"Authorization": "Bearer tok"},
	}, logging.New(false, true))

	_, err := s.Resolve(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", gotAuth)
}

func TestHTTPResolveStatusMapping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/denied":
			w.WriteHeader(http.StatusForbidden)
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer server.Close()

	s := NewHTTPSource("http", nil, logging.New(false, true))

	_, err := s.Resolve(context.Background(), server.URL+"/missing")
	var notFound source.NotFoundError
	require.ErrorAs(t, err, &notFound)

	_, err = s.Resolve(context.Background(), server.URL+"/denied")
	var authErr source.AuthError
	require.ErrorAs(t, err, &authErr)

	_, err = s.Resolve(context.Background(), server.URL+"/boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestHTTPResolveInsecureTLS(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("self-signed"))
	}))
	defer server.Close()

	strict := NewHTTPSource("http", nil, logging.New(false, true))
	_, err := strict.Resolve(context.Background(), server.URL)
	require.Error(t, err)

	lax := NewHTTPSource("http", map[string]interface{}{"insecure": true}, logging.New(false, true))
	value, err := lax.Resolve(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "self-signed", value)
}

func TestHTTPResolveRejectsBadScheme(t *testing.T) {
	s := NewHTTPSource("http", nil, logging.New(false, true))

	_, err := s.Resolve(context.Background(), "ftp://host/file")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheme")
}

func TestHTTPResolveCaches(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("cached"))
	}))
	defer server.Close()

	s := NewHTTPSource("http", nil, logging.New(false, true))

	for i := 0; i < 3; i++ {
		_, err := s.Resolve(context.Background(), server.URL)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), hits.Load())

	s.RefreshCache()
	_, err := s.Resolve(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load())
}
