package sources

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/systmms/subst/internal/cache"
	"github.com/systmms/subst/internal/logging"
	"github.com/systmms/subst/pkg/source"
)

// fileCacheTTL bounds how long a resolved file value may live even when the
// file's mtime never changes. The mtime in the cache key is what actually
// governs freshness: touching the file invalidates its entries immediately.
const fileCacheTTL = time.Hour

// FileSource resolves keys against local files.
//
// Key format:
//
//	path               whole file content, surrounding whitespace trimmed
//	path#db.password   dot path into YAML or JSON content (.json files are
//	                   decoded as JSON, everything else as YAML)
//
// Relative paths are resolved against the base_dir setting, or the working
// directory when unset.
type FileSource struct {
	name    string
	logger  *logging.Logger
	baseDir string
	cache   *cache.Cache
}

// NewFileSource creates a file source from its settings block.
func NewFileSource(name string, settings map[string]interface{}, logger *logging.Logger) *FileSource {
	return &FileSource{
		name:    name,
		logger:  logger,
		baseDir: settingString(settings, "base_dir"),
		cache:   cache.New(fileCacheTTL),
	}
}

func (s *FileSource) Name() string { return s.name }

// Initialize verifies the configured base directory exists.
func (s *FileSource) Initialize(ctx context.Context) error {
	if s.baseDir == "" {
		return nil
	}
	info, err := os.Stat(s.baseDir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("base_dir %s is not a directory", s.baseDir)
	}
	return nil
}

func (s *FileSource) Resolve(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path, field := splitKey(key)
	if path == "" {
		return "", fmt.Errorf("empty file path in key %q", key)
	}
	if s.baseDir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(s.baseDir, path)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", source.NotFoundError{Source: s.name, Key: key}
		}
		return "", err
	}

	// Values stay cached only while the file is unmodified: the mtime is
	// part of the key, so a rewrite makes every old entry unreachable.
	cacheKey := fmt.Sprintf("%s#%s@%d", path, field, info.ModTime().UnixNano())
	if v, ok := s.cache.Get(cacheKey); ok {
		return v, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	value, err := s.extract(path, field, content)
	if err != nil {
		return "", err
	}
	s.cache.Put(cacheKey, value)
	return value, nil
}

func (s *FileSource) extract(path, field string, content []byte) (string, error) {
	if field == "" {
		return strings.TrimSpace(string(content)), nil
	}
	doc, err := decodeDocument(content, strings.EqualFold(filepath.Ext(path), ".json"))
	if err != nil {
		return "", fmt.Errorf("file %s: %w", path, err)
	}
	value, err := extractField(doc, field)
	if err != nil {
		return "", source.NotFoundError{Source: s.name, Key: path + "#" + field}
	}
	return value, nil
}

func (s *FileSource) RefreshCache() { s.cache.Clear() }

func (s *FileSource) Cleanup() error {
	s.cache.Clear()
	return nil
}

var _ source.Source = (*FileSource)(nil)
