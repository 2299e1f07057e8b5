package loader_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"kb-chatbot/internal/domain"
	"kb-chatbot/internal/loader"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRunner is a test double for CommandRunner.
type mockRunner struct {
	output []byte
	err    error
}

func (m *mockRunner) Run(_ context.Context, _ string, _ ...string) ([]byte, error) {
	return m.output, m.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_MissingFolderIsEmpty(t *testing.T) {
	l := loader.New(testLogger())
	docs, err := l.Load(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.NoError(t, err)
	assert.Empty(t, docs)
}

func TestLoad_Markdown(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notes.md", "# Title\n\nBody text.")
	writeFile(t, dir, "ignored.txt", "not supported")

	l := loader.New(testLogger())
	docs, err := l.Load(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "# Title\n\nBody text.", docs[0].Text)
	assert.Equal(t, filepath.Join(dir, "notes.md"), docs[0].Source)
	assert.Equal(t, 0, docs[0].Page)
}

func TestLoad_PDFSplitsPages(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "report.pdf", "%PDF-fake")

	l := loader.New(testLogger(), loader.WithRunner(&mockRunner{
		output: []byte("page one text\fpage two text\f"),
	}))
	docs, err := l.Load(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "page one text", docs[0].Text)
	assert.Equal(t, 1, docs[0].Page)
	assert.Equal(t, "page two text", docs[1].Text)
	assert.Equal(t, 2, docs[1].Page)
}

func TestLoad_DocumentCountAtLeastFileCount(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "alpha")
	writeFile(t, dir, "b.md", "beta")
	writeFile(t, dir, "c.pdf", "%PDF-fake")

	l := loader.New(testLogger(), loader.WithRunner(&mockRunner{
		output: []byte("p1\fp2\fp3"),
	}))
	docs, err := l.Load(context.Background(), dir)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(docs), 3)
}

func TestLoad_CorruptPDFSurfacesLoadError(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "broken.pdf", "garbage")

	l := loader.New(testLogger(), loader.WithRunner(&mockRunner{
		err: errors.New("exit status 1"),
	}))
	_, err := l.Load(context.Background(), dir)
	require.Error(t, err)

	var loadErr *domain.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, path, loadErr.Path)
}

func TestLoad_BlankPDFStillYieldsOneDocument(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "blank.pdf", "%PDF-fake")

	l := loader.New(testLogger(), loader.WithRunner(&mockRunner{output: []byte("\f")}))
	docs, err := l.Load(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, 1, docs[0].Page)
	assert.Empty(t, docs[0].Text)
}
