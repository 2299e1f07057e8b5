package loader

import (
	"context"
	"os/exec"
	"strings"

	"kb-chatbot/internal/domain"
)

// pageSeparator is the form feed pdftotext emits between pages.
const pageSeparator = "\f"

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// loadPDF extracts text with pdftotext and returns one document per page.
func (l *FolderLoader) loadPDF(ctx context.Context, path string) ([]domain.Document, error) {
	out, err := l.runner.Run(ctx, "pdftotext", "-enc", "UTF-8", path, "-")
	if err != nil {
		return nil, &domain.LoadError{Path: path, Err: err}
	}

	pages := strings.Split(string(out), pageSeparator)

	docs := make([]domain.Document, 0, len(pages))
	for i, page := range pages {
		if strings.TrimSpace(page) == "" {
			continue
		}
		docs = append(docs, domain.Document{
			Text:   page,
			Source: path,
			Page:   i + 1,
		})
	}

	// A scanned or blank PDF still counts as one (empty) document so the
	// caller sees the file was handled rather than skipped.
	if len(docs) == 0 {
		docs = append(docs, domain.Document{Source: path, Page: 1})
	}

	return docs, nil
}
