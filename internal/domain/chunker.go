package domain

import "github.com/google/uuid"

const (
	// DefaultChunkSize is the target chunk length in runes.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is the number of runes shared with the previous chunk.
	DefaultChunkOverlap = 200
)

// Chunker splits loaded documents into overlapping fixed-size text windows.
type Chunker interface {
	Chunk(doc Document) []Chunk
}

type windowChunker struct {
	size    int
	overlap int
}

// NewChunker creates a character-window chunker. Non-positive size falls
// back to DefaultChunkSize; an overlap that is negative or not smaller than
// the size falls back to size/4.
func NewChunker(size, overlap int) Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 4
	}
	return &windowChunker{size: size, overlap: overlap}
}

// Chunk cuts the document text into rune windows of at most size runes,
// each sharing overlap runes with its predecessor. Splitting is text-based,
// never token-based, and window order preserves document order.
func (c *windowChunker) Chunk(doc Document) []Chunk {
	runes := []rune(doc.Text)
	if len(runes) == 0 {
		return nil
	}

	step := c.size - c.overlap
	chunks := make([]Chunk, 0, len(runes)/step+1)

	for start, ordinal := 0, 0; start < len(runes); start, ordinal = start+step, ordinal+1 {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, Chunk{
			ID:      uuid.New(),
			Text:    string(runes[start:end]),
			Source:  doc.Source,
			Page:    doc.Page,
			Ordinal: ordinal,
		})
		if end == len(runes) {
			break
		}
	}

	return chunks
}
