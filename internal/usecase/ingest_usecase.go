package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"kb-chatbot/internal/domain"
	"kb-chatbot/internal/index"
)

const (
	// embedBatchSize bounds the number of texts sent per embedding request.
	embedBatchSize = 64
	// embedConcurrency bounds concurrent embedding requests during a build.
	embedConcurrency = 4
)

// DocumentLoader loads every supported document from a folder.
type DocumentLoader interface {
	Load(ctx context.Context, dir string) ([]domain.Document, error)
}

// KnowledgeIndex is the persistence surface the ingest pipeline needs on
// top of vector search.
type KnowledgeIndex interface {
	domain.VectorIndex
	Manifest(ctx context.Context) (*index.Manifest, error)
	WriteManifest(ctx context.Context, m index.Manifest) error
	Reset(ctx context.Context) error
}

// IngestUsecase builds the vector index from the knowledge base folder.
type IngestUsecase interface {
	// Initialize builds the index once. A later call against an already
	// built index is a no-op unless force is set, in which case the index
	// is rebuilt from scratch.
	Initialize(ctx context.Context, force bool) error
}

type ingestUsecase struct {
	loader  DocumentLoader
	chunker domain.Chunker
	encoder domain.VectorEncoder
	idx     KnowledgeIndex
	kbDir   string
	logger  *slog.Logger
}

// NewIngestUsecase wires the load, chunk, embed, persist pipeline.
func NewIngestUsecase(
	loader DocumentLoader,
	chunker domain.Chunker,
	encoder domain.VectorEncoder,
	idx KnowledgeIndex,
	kbDir string,
	logger *slog.Logger,
) IngestUsecase {
	return &ingestUsecase{
		loader:  loader,
		chunker: chunker,
		encoder: encoder,
		idx:     idx,
		kbDir:   kbDir,
		logger:  logger,
	}
}

func (u *ingestUsecase) Initialize(ctx context.Context, force bool) error {
	manifest, err := u.idx.Manifest(ctx)
	if err != nil {
		return fmt.Errorf("reading build manifest: %w", err)
	}

	if manifest != nil && !force {
		// Vectors from one embedder are meaningless to another; refuse to
		// serve garbage rankings rather than silently degrade.
		if manifest.EmbedderVersion != u.encoder.Version() {
			return fmt.Errorf("index was built with embedder %q but %q is configured; rebuild with force",
				manifest.EmbedderVersion, u.encoder.Version())
		}
		u.logger.Info("index_already_built",
			slog.Time("built_at", manifest.BuiltAt),
			slog.Int("chunk_count", manifest.ChunkCount),
			slog.String("embedder_version", manifest.EmbedderVersion))
		return nil
	}

	if manifest != nil {
		u.logger.Info("index_rebuild_forced", slog.Time("previous_built_at", manifest.BuiltAt))
		if err := u.idx.Reset(ctx); err != nil {
			return fmt.Errorf("clearing index before rebuild: %w", err)
		}
	}

	if err := u.build(ctx); err != nil {
		// Discard the partial build so the next start retries cleanly.
		if resetErr := u.idx.Reset(ctx); resetErr != nil {
			u.logger.Error("index_reset_failed", slog.String("error", resetErr.Error()))
		}
		return err
	}
	return nil
}

func (u *ingestUsecase) build(ctx context.Context) error {
	start := time.Now()

	docs, err := u.loader.Load(ctx, u.kbDir)
	if err != nil {
		return fmt.Errorf("loading knowledge base: %w", err)
	}

	var chunks []domain.Chunk
	for _, doc := range docs {
		chunks = append(chunks, u.chunker.Chunk(doc)...)
	}

	u.logger.Info("index_build_started",
		slog.String("kb_dir", u.kbDir),
		slog.Int("document_count", len(docs)),
		slog.Int("chunk_count", len(chunks)))

	vectors, err := u.embedAll(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embedding chunks: %w", err)
	}

	if err := u.idx.Add(ctx, chunks, vectors); err != nil {
		return fmt.Errorf("persisting chunks: %w", err)
	}

	fingerprint, err := sourceFingerprint(u.kbDir)
	if err != nil {
		return fmt.Errorf("fingerprinting knowledge base: %w", err)
	}

	if err := u.idx.WriteManifest(ctx, index.Manifest{
		BuiltAt:           time.Now().UTC(),
		ChunkCount:        len(chunks),
		EmbedderVersion:   u.encoder.Version(),
		SourceFingerprint: fingerprint,
	}); err != nil {
		return fmt.Errorf("recording build manifest: %w", err)
	}

	u.logger.Info("index_build_completed",
		slog.Int("chunk_count", len(chunks)),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

// embedAll encodes chunk texts in bounded concurrent batches and returns
// vectors aligned with the input order.
func (u *ingestUsecase) embedAll(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)

	for offset := 0; offset < len(chunks); offset += embedBatchSize {
		offset := offset
		end := offset + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		g.Go(func() error {
			texts := make([]string, end-offset)
			for i, c := range chunks[offset:end] {
				texts[i] = c.Text
			}

			embedded, err := u.encoder.Encode(gctx, texts)
			if err != nil {
				return fmt.Errorf("encoding batch at offset %d: %w", offset, err)
			}
			if len(embedded) != len(texts) {
				return fmt.Errorf("encoding batch at offset %d: expected %d vectors, got %d",
					offset, len(texts), len(embedded))
			}

			copy(vectors[offset:end], embedded)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// sourceFingerprint hashes the sorted file names and sizes of the knowledge
// base folder. It identifies which corpus a build came from without
// reading file contents.
func sourceFingerprint(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		entries = nil
	} else if err != nil {
		return "", err
	}

	names := make([]string, 0, len(entries))
	byName := make(map[string]int64, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return "", err
		}
		names = append(names, entry.Name())
		byName[entry.Name()] = info.Size()
	}
	sort.Strings(names)

	h := sha256.New()
	for _, name := range names {
		fmt.Fprintf(h, "%s:%d\n", name, byName[name])
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
