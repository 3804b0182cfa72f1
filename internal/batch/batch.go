// Package batch resolves placeholder documents across directory trees.
package batch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	substerrors "github.com/systmms/subst/internal/errors"
	"github.com/systmms/subst/internal/logging"
)

// defaultExtensions is the file suffix set treated as resolvable documents
// when the configuration does not override it. Everything else is copied
// through untouched.
var defaultExtensions = []string{
	".txt", ".md", ".yaml", ".yml", ".json", ".tmpl",
	".conf", ".ini", ".properties", ".env", ".toml", ".xml", ".html",
}

// Resolver is the slice of the engine the processor needs.
type Resolver interface {
	ResolveText(ctx context.Context, text string) (string, error)
}

// Failure records one document whose resolution failed. The original
// content was copied through unchanged.
type Failure struct {
	Path string
	Err  error
}

// Report summarizes a batch run.
type Report struct {
	Processed int
	Copied    int
	Failures  []Failure
}

// Failed reports whether any document in the batch failed to resolve.
func (r *Report) Failed() bool { return len(r.Failures) > 0 }

// Processor mirrors an input directory tree into an output directory,
// resolving placeholders in every processable document.
type Processor struct {
	resolver   Resolver
	logger     *logging.Logger
	extensions map[string]struct{}
}

// New creates a processor. An empty extensions list selects the built-in
// default set.
func New(resolver Resolver, logger *logging.Logger, extensions []string) *Processor {
	if len(extensions) == 0 {
		extensions = defaultExtensions
	}
	set := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[strings.ToLower(ext)] = struct{}{}
	}
	return &Processor{resolver: resolver, logger: logger, extensions: set}
}

// Run walks inDir and writes the mirrored tree under outDir. A document
// that fails to resolve is copied through unchanged and recorded in the
// report; the batch itself keeps going. Only I/O errors and context
// cancellation abort the run.
func (p *Processor) Run(ctx context.Context, inDir, outDir string) (*Report, error) {
	inDir = filepath.Clean(inDir)
	outDir = filepath.Clean(outDir)

	info, err := os.Stat(inDir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input path %s is not a directory", inDir)
	}

	report := &Report{}
	err = filepath.WalkDir(inDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(inDir, path)
		if err != nil {
			return err
		}
		target := filepath.Join(outDir, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}

		if p.processable(path) {
			return p.processFile(ctx, path, target, report)
		}
		report.Copied++
		return copyFile(path, target)
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(report.Failures, func(i, j int) bool {
		return report.Failures[i].Path < report.Failures[j].Path
	})
	return report, nil
}

func (p *Processor) processable(path string) bool {
	_, ok := p.extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// processFile resolves one document. On resolution failure the original
// bytes are copied through so the output tree stays complete.
func (p *Processor) processFile(ctx context.Context, path, target string, report *Report) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	resolved, rerr := p.resolver.ResolveText(ctx, string(content))
	if rerr != nil {
		report.Failures = append(report.Failures, Failure{
			Path: path,
			Err:  substerrors.ValidationError{Path: path, Err: rerr},
		})
		p.logger.Warn("Copying %s unchanged: %v", path, rerr)
		return writeLike(path, target, content)
	}

	report.Processed++
	return writeLike(path, target, []byte(resolved))
}

// writeLike writes content to target with the source file's permissions.
func writeLike(src, target string, content []byte) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	return os.WriteFile(target, content, info.Mode().Perm())
}

func copyFile(src, target string) error {
	content, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return writeLike(src, target, content)
}
