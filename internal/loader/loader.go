// Package loader reads a folder of heterogeneous source files into a
// uniform sequence of documents ready for chunking.
package loader

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"kb-chatbot/internal/domain"
)

// CommandRunner executes an external command and returns its stdout.
// It exists so tests can stub the pdftotext invocation.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// FolderLoader loads PDF and Markdown files from a knowledge-base folder.
type FolderLoader struct {
	runner CommandRunner
	logger *slog.Logger
}

// Option configures the loader.
type Option func(*FolderLoader)

// WithRunner overrides the command runner used for PDF extraction.
func WithRunner(r CommandRunner) Option {
	return func(l *FolderLoader) { l.runner = r }
}

// New creates a FolderLoader.
func New(logger *slog.Logger, opts ...Option) *FolderLoader {
	l := &FolderLoader{
		runner: execRunner{},
		logger: logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads every supported file in dir into documents. A non-existent
// folder is an empty knowledge base, not an error. Any unreadable or
// corrupt supported file aborts the load with a LoadError so the one-shot
// build never persists a silently partial index.
func (l *FolderLoader) Load(ctx context.Context, dir string) ([]domain.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			l.logger.Info("knowledge base folder missing, treating as empty", slog.String("dir", dir))
			return nil, nil
		}
		return nil, &domain.LoadError{Path: dir, Err: err}
	}

	var docs []domain.Document
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		var (
			loaded []domain.Document
			lerr   error
		)
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".md":
			loaded, lerr = l.loadMarkdown(path)
		case ".pdf":
			loaded, lerr = l.loadPDF(ctx, path)
		default:
			continue
		}
		if lerr != nil {
			return nil, lerr
		}

		l.logger.Info("document_loaded",
			slog.String("path", path),
			slog.Int("documents", len(loaded)),
		)
		docs = append(docs, loaded...)
	}

	return docs, nil
}

func (l *FolderLoader) loadMarkdown(path string) ([]domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.LoadError{Path: path, Err: err}
	}
	return []domain.Document{{
		Text:   string(data),
		Source: path,
	}}, nil
}
