package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// defaultPatterns match the document types a knowledge-base directory may hold.
var defaultPatterns = []string{"**/*.md", "**/*.txt", "**/*.html", "**/*.htm"}

// maxDocumentSize guards against a stray export blowing up prompt size.
const maxDocumentSize = 1 * 1024 * 1024 // 1MB per file

// FileProvider loads knowledge-base content from a directory tree.
// Layout: <root>/<product>/... with markdown, text, or exported HTML files.
type FileProvider struct {
	root      string
	patterns  []string
	converter *Converter
	logger    *slog.Logger
}

// FileProviderOption configures a FileProvider.
type FileProviderOption func(*FileProvider)

// WithPatterns overrides the default file glob patterns.
func WithPatterns(patterns []string) FileProviderOption {
	return func(p *FileProvider) {
		p.patterns = patterns
	}
}

// WithFileLogger sets the logger.
func WithFileLogger(logger *slog.Logger) FileProviderOption {
	return func(p *FileProvider) {
		p.logger = logger
	}
}

// NewFileProvider creates a provider rooted at dir.
func NewFileProvider(dir string, opts ...FileProviderOption) *FileProvider {
	p := &FileProvider{
		root:      dir,
		patterns:  defaultPatterns,
		converter: NewConverter(),
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Content assembles the knowledge base for a product by concatenating all
// matching documents in deterministic (sorted path) order. HTML documents are
// converted to markdown first.
func (p *FileProvider) Content(ctx context.Context, product string) (string, error) {
	if product == "" {
		return "", ErrNotFound
	}

	productDir := filepath.Join(p.root, product)
	if info, err := os.Stat(productDir); err != nil || !info.IsDir() {
		return "", fmt.Errorf("product %q: %w", product, ErrNotFound)
	}

	files, err := p.matchFiles(productDir)
	if err != nil {
		return "", fmt.Errorf("glob knowledge base for %q: %w", product, err)
	}
	if len(files) == 0 {
		return "", fmt.Errorf("product %q: %w", product, ErrNotFound)
	}

	var sb strings.Builder
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		section, err := p.loadFile(path)
		if err != nil {
			p.logger.Warn("Skipping unreadable knowledge document",
				"product", product,
				"path", path,
				"error", err)
			continue
		}
		if section == "" {
			continue
		}

		rel, err := filepath.Rel(productDir, path)
		if err != nil {
			rel = filepath.Base(path)
		}

		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "## %s\n\n%s", rel, section)
	}

	content := strings.TrimSpace(sb.String())
	if content == "" {
		return "", fmt.Errorf("product %q: %w", product, ErrNotFound)
	}

	return content, nil
}

// matchFiles expands the glob patterns under dir and returns sorted,
// de-duplicated matches.
func (p *FileProvider) matchFiles(dir string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string

	for _, pattern := range p.patterns {
		matches, err := doublestar.FilepathGlob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", pattern, err)
		}

		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil || info.IsDir() {
				continue
			}
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}

	sort.Strings(files)
	return files, nil
}

// loadFile reads one document, converting HTML to markdown.
func (p *FileProvider) loadFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.Size() > maxDocumentSize {
		return "", fmt.Errorf("document exceeds %d bytes", maxDocumentSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		result, err := p.converter.Convert(data)
		if err != nil {
			return "", fmt.Errorf("convert HTML: %w", err)
		}
		return result.Markdown, nil
	default:
		return strings.TrimSpace(string(data)), nil
	}
}
