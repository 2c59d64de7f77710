package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
)

// ErrNoDocuments is returned when a directory holds no readable documents.
var ErrNoDocuments = errors.New("no documents found")

// Loader reads supported files under a directory.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a Loader. A nil logger uses slog.Default().
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Supported reports whether path has an extension the loader can parse.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".txt", ".md", ".csv", ".html", ".htm":
		return true
	default:
		return false
	}
}

// Load walks dir in lexical order and parses every supported file. Files
// that fail to parse are logged and skipped; empty files are dropped.
func (l *Loader) Load(ctx context.Context, dir string) ([]Document, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("input dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input dir %s is not a directory", dir)
	}

	var docs []Document
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !Supported(path) {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		text, err := l.parseFile(ctx, path)
		if err != nil {
			l.logger.Warn("skipping unreadable file", "path", rel, "error", err)
			return nil
		}
		text = strings.TrimSpace(text)
		if text == "" {
			l.logger.Debug("skipping empty file", "path", rel)
			return nil
		}

		doc := NewDocument(filepath.ToSlash(rel), text)
		doc.Metadata["ext"] = strings.ToLower(filepath.Ext(path))
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	if len(docs) == 0 {
		return nil, ErrNoDocuments
	}
	l.logger.Info("documents loaded", "dir", dir, "count", len(docs))
	return docs, nil
}

func (l *Loader) parseFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var loader documentloaders.Loader
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		st, err := f.Stat()
		if err != nil {
			return "", err
		}
		loader = documentloaders.NewPDF(f, st.Size())
	case ".csv":
		loader = documentloaders.NewCSV(f)
	case ".html", ".htm":
		loader = documentloaders.NewHTML(f)
	default:
		loader = documentloaders.NewText(f)
	}

	pages, err := loader.Load(ctx)
	if err != nil {
		return "", err
	}
	return joinPages(pages), nil
}

func joinPages(pages []schema.Document) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		if s := strings.TrimSpace(p.PageContent); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}
