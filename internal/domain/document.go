package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Document is a unit of extracted source text. PDF files yield one
// Document per page; Markdown files yield a single Document.
type Document struct {
	Text   string
	Source string // origin file path
	Page   int    // 1-based page number, 0 for single-page formats
}

// Chunk is a bounded text window cut from a Document for embedding.
// It inherits the source metadata of the Document it came from.
type Chunk struct {
	ID      uuid.UUID
	Text    string
	Source  string
	Page    int
	Ordinal int // position within the source document, 0-indexed
}

// LoadError reports a source document that could not be read or parsed.
// Ingestion is one-shot, so loaders surface it instead of skipping the
// file and silently producing a partial index.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load document %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
