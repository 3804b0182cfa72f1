package sources

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/systmms/subst/internal/cache"
	"github.com/systmms/subst/internal/logging"
	"github.com/systmms/subst/pkg/source"
)

// defaultHTTPCacheTTL is how long a fetched response value stays cached.
const defaultHTTPCacheTTL = 60 * time.Second

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20

// HTTPSource resolves keys by issuing GET requests.
//
// Key format:
//
//	https://host/path            trimmed response body
//	https://host/path#data.token dot path into a JSON response body
//
// Settings:
//
//	headers:      map of header name to value sent with every request
//	cache_ttl_s:  per-URL cache TTL in seconds (default 60)
//	insecure:     skip TLS certificate verification
type HTTPSource struct {
	name    string
	logger  *logging.Logger
	client  *http.Client
	headers map[string]string
	cache   *cache.Cache
}

// NewHTTPSource creates an HTTP source from its settings block.
func NewHTTPSource(name string, settings map[string]interface{}, logger *logging.Logger) *HTTPSource {
	ttl := defaultHTTPCacheTTL
	if secs := settingInt(settings, "cache_ttl_s"); secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}
	client := &http.Client{}
	if settingBool(settings, "insecure") {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return &HTTPSource{
		name:    name,
		logger:  logger,
		client:  client,
		headers: settingStringMap(settings, "headers"),
		cache:   cache.New(ttl),
	}
}

func (s *HTTPSource) Name() string { return s.name }

func (s *HTTPSource) Initialize(ctx context.Context) error { return nil }

func (s *HTTPSource) Resolve(ctx context.Context, key string) (string, error) {
	if v, ok := s.cache.Get(key); ok {
		return v, nil
	}

	rawURL, field := splitKey(key)
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("unsupported URL scheme %q", parsed.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	for name, value := range s.headers {
		req.Header.Set(name, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", source.NotFoundError{Source: s.name, Key: key}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", source.AuthError{Source: s.name, Message: resp.Status}
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("GET %s returned %s", rawURL, resp.Status)
	}

	value, err := s.extract(body, field, key)
	if err != nil {
		return "", err
	}
	s.cache.Put(key, value)
	return value, nil
}

func (s *HTTPSource) extract(body []byte, field, key string) (string, error) {
	if field == "" {
		return strings.TrimSpace(string(body)), nil
	}
	doc, err := decodeDocument(body, true)
	if err != nil {
		return "", fmt.Errorf("response is not a JSON object: %w", err)
	}
	value, err := extractField(doc, field)
	if err != nil {
		return "", source.NotFoundError{Source: s.name, Key: key}
	}
	return value, nil
}

func (s *HTTPSource) RefreshCache() { s.cache.Clear() }

func (s *HTTPSource) Cleanup() error {
	s.cache.Clear()
	s.client.CloseIdleConnections()
	return nil
}

var _ source.Source = (*HTTPSource)(nil)
