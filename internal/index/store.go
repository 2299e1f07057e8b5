// Package index persists chunk embeddings in a SQLite database inside the
// configured index directory and serves brute-force cosine similarity
// search over them.
package index

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"kb-chatbot/internal/domain"
)

// dbFileName is the database file created inside the index directory.
const dbFileName = "kb.db"

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	id        TEXT PRIMARY KEY,
	source    TEXT NOT NULL,
	page      INTEGER NOT NULL,
	ordinal   INTEGER NOT NULL,
	content   TEXT NOT NULL,
	embedding BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS manifest (
	id                 INTEGER PRIMARY KEY CHECK (id = 1),
	built_at           TEXT NOT NULL,
	chunk_count        INTEGER NOT NULL,
	embedder_version   TEXT NOT NULL,
	source_fingerprint TEXT NOT NULL
);`

// Manifest records a completed one-shot build so the "already built" check
// is explicit and auditable instead of inferred from directory contents.
type Manifest struct {
	BuiltAt           time.Time
	ChunkCount        int
	EmbedderVersion   string
	SourceFingerprint string
}

// SQLiteIndex is a directory-backed vector index.
type SQLiteIndex struct {
	db   *sql.DB
	path string
}

var _ domain.VectorIndex = (*SQLiteIndex)(nil)

// Open creates the index directory if needed and opens (or creates) the
// database inside it. An unreadable database surfaces ErrIndexCorrupt,
// which callers treat as fatal at startup.
func Open(dir string) (*SQLiteIndex, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFileName)
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexCorrupt, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexCorrupt, err)
	}

	return &SQLiteIndex{db: db, path: dbPath}, nil
}

// Close closes the underlying database.
func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteIndex) Path() string {
	return s.path
}

// Add persists chunk/vector pairs in a single transaction.
func (s *SQLiteIndex) Add(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d != %d", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning insert transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, source, page, ordinal, content, embedding)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ID.String(), c.Source, c.Page, c.Ordinal,
			c.Text, float32SliceToBytes(vectors[i])); err != nil {
			return fmt.Errorf("inserting chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// Search embeds nothing itself; it ranks every stored chunk by cosine
// similarity to the query vector and returns the k best, closest first.
func (s *SQLiteIndex) Search(ctx context.Context, vector []float32, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, page, ordinal, content, embedding FROM chunks`)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var scored []domain.ScoredChunk
	for rows.Next() {
		var (
			idStr string
			chunk domain.Chunk
			blob  []byte
		)
		if err := rows.Scan(&idStr, &chunk.Source, &chunk.Page, &chunk.Ordinal, &chunk.Text, &blob); err != nil {
			return nil, fmt.Errorf("scanning chunk row: %w", err)
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("%w: bad chunk id %q", domain.ErrIndexCorrupt, idStr)
		}
		chunk.ID = id

		scored = append(scored, domain.ScoredChunk{
			Chunk: chunk,
			Score: cosineSimilarity(vector, bytesToFloat32Slice(blob)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunk rows: %w", err)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// Count reports the number of stored chunks.
func (s *SQLiteIndex) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// Manifest returns the recorded build manifest, or nil if no completed
// build has been recorded.
func (s *SQLiteIndex) Manifest(ctx context.Context) (*Manifest, error) {
	var (
		builtAt string
		m       Manifest
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT built_at, chunk_count, embedder_version, source_fingerprint FROM manifest WHERE id = 1`).
		Scan(&builtAt, &m.ChunkCount, &m.EmbedderVersion, &m.SourceFingerprint)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	m.BuiltAt, err = time.Parse(time.RFC3339, builtAt)
	if err != nil {
		return nil, fmt.Errorf("%w: bad manifest timestamp %q", domain.ErrIndexCorrupt, builtAt)
	}
	return &m, nil
}

// WriteManifest records a completed build.
func (s *SQLiteIndex) WriteManifest(ctx context.Context, m Manifest) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO manifest (id, built_at, chunk_count, embedder_version, source_fingerprint)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			built_at = excluded.built_at,
			chunk_count = excluded.chunk_count,
			embedder_version = excluded.embedder_version,
			source_fingerprint = excluded.source_fingerprint`,
		m.BuiltAt.UTC().Format(time.RFC3339), m.ChunkCount, m.EmbedderVersion, m.SourceFingerprint)
	if err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// Reset clears chunks and manifest. Used to discard a failed partial build
// so the next start retries from the empty state.
func (s *SQLiteIndex) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning reset transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return fmt.Errorf("clearing chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM manifest`); err != nil {
		return fmt.Errorf("clearing manifest: %w", err)
	}
	return tx.Commit()
}

func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return []byte{}
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

func cosineSimilarity(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
