package domain

import "context"

// ScoredChunk is a chunk found via vector search, including its similarity score.
type ScoredChunk struct {
	Chunk Chunk
	Score float32 // cosine similarity, higher is closer
}

// VectorIndex is the durable collection of (chunk, embedding) pairs.
// It is built exactly once per persistence directory and read-mostly after.
type VectorIndex interface {
	// Add persists chunk/vector pairs. Either every pair is stored or the
	// call fails; partial writes are rolled back.
	Add(ctx context.Context, chunks []Chunk, vectors [][]float32) error

	// Search returns the k nearest chunks to the query vector, closest
	// first. An empty index yields an empty slice, not an error.
	Search(ctx context.Context, vector []float32, k int) ([]ScoredChunk, error)

	// Count reports the number of stored chunks.
	Count(ctx context.Context) (int, error)
}
