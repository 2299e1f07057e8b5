package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"kb-chatbot/internal/domain"
)

// queryCacheSize bounds the query-embedding cache. Repeated questions in a
// session skip the embedding round trip.
const queryCacheSize = 256

// RetrieveContextInput defines the input parameters for RetrieveContext.
type RetrieveContextInput struct {
	Query string
}

// RetrieveContextOutput defines the output for RetrieveContext.
type RetrieveContextOutput struct {
	Contexts []ContextItem
}

// ContextItem represents a single retrieved chunk with metadata.
type ContextItem struct {
	ChunkID   uuid.UUID
	ChunkText string
	Source    string
	Page      int
	Score     float32
}

// RetrieveContextUsecase defines the interface for retrieving context.
type RetrieveContextUsecase interface {
	Execute(ctx context.Context, input RetrieveContextInput) (*RetrieveContextOutput, error)
}

type retrieveContextUsecase struct {
	encoder    domain.VectorEncoder
	idx        domain.VectorIndex
	k          int
	queryCache *lru.Cache[string, []float32]
}

// NewRetrieveContextUsecase creates a new RetrieveContextUsecase.
func NewRetrieveContextUsecase(encoder domain.VectorEncoder, idx domain.VectorIndex, k int) (RetrieveContextUsecase, error) {
	cache, err := lru.New[string, []float32](queryCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating query cache: %w", err)
	}
	return &retrieveContextUsecase{
		encoder:    encoder,
		idx:        idx,
		k:          k,
		queryCache: cache,
	}, nil
}

func (u *retrieveContextUsecase) Execute(ctx context.Context, input RetrieveContextInput) (*RetrieveContextOutput, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, fmt.Errorf("query is empty")
	}

	vector, err := u.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := u.idx.Search(ctx, vector, u.k)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	contexts := make([]ContextItem, 0, len(results))
	for _, res := range results {
		contexts = append(contexts, ContextItem{
			ChunkID:   res.Chunk.ID,
			ChunkText: res.Chunk.Text,
			Source:    res.Chunk.Source,
			Page:      res.Chunk.Page,
			Score:     res.Score,
		})
	}

	return &RetrieveContextOutput{Contexts: contexts}, nil
}

func (u *retrieveContextUsecase) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if cached, ok := u.queryCache.Get(query); ok {
		return cached, nil
	}

	embeddings, err := u.encoder.Encode(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("encoding query: %w", err)
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(embeddings))
	}

	u.queryCache.Add(query, embeddings[0])
	return embeddings[0], nil
}
