package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/sibila-go/internal/domain/entities"
)

// stubExtractor implements ports.TextExtractor for testing
type stubExtractor struct {
	text string
	err  error
}

func (s stubExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	return s.text, s.err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestTextLoader_LoadTxtFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sts-1.txt")
	writeFile(t, path, "Hello World")

	doc, err := NewTextLoader(nil).Load(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, "sts-1", doc.ID)
	assert.Equal(t, "sts-1.txt", doc.Name)
	assert.Equal(t, "Hello World", doc.Text)
	assert.Equal(t, map[string]any{"filename": "sts-1.txt"}, doc.Meta.Fields())
}

func TestTextLoader_Sidecar(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sts-1.txt")
	writeFile(t, path, "texto")
	writeFile(t, filepath.Join(dir, "sts-1.meta.json"), `{"category":"penal","case_id":"PEN-0001"}`)

	doc, err := NewTextLoader(nil).Load(context.Background(), path)

	require.NoError(t, err)
	jm, ok := doc.Meta.(*entities.JurisMeta)
	require.True(t, ok, "typed sidecar decodes as JurisMeta")
	assert.Equal(t, "penal", *jm.Category)
	assert.Equal(t, "sts-1.txt", *jm.Filename)
}

func TestTextLoader_InvalidSidecarIgnored(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sts-1.txt")
	writeFile(t, path, "texto")
	writeFile(t, filepath.Join(dir, "sts-1.meta.json"), `{not json`)

	doc, err := NewTextLoader(nil).Load(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"filename": "sts-1.txt"}, doc.Meta.Fields())
}

func TestPDFLoader_ExtractionFailureDegrades(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.pdf")
	writeFile(t, path, "%PDF-garbage")

	doc, err := NewPDFLoader(stubExtractor{err: errors.New("broken")}, nil).Load(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, "scan", doc.ID)
	assert.Empty(t, doc.Text)
}

func TestMultiLoader_DispatchByExtension(t *testing.T) {
	dir := t.TempDir()
	txtPath := filepath.Join(dir, "a.txt")
	pdfPath := filepath.Join(dir, "b.PDF")
	writeFile(t, txtPath, "txt content")
	writeFile(t, pdfPath, "%PDF")

	loader := NewMultiLoader(stubExtractor{text: "pdf content"}, nil)

	txt, err := loader.Load(context.Background(), txtPath)
	require.NoError(t, err)
	pdf, err := loader.Load(context.Background(), pdfPath)
	require.NoError(t, err)

	assert.Equal(t, "txt content", txt.Text)
	assert.Equal(t, "pdf content", pdf.Text)

	_, err = loader.Load(context.Background(), filepath.Join(dir, "notes.md"))
	assert.ErrorIs(t, err, entities.ErrInvalidInput)
}

func TestMultiLoader_LoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "primero")
	writeFile(t, filepath.Join(dir, "nested", "b.txt"), "segundo")
	writeFile(t, filepath.Join(dir, "empty.txt"), "   \n ")
	writeFile(t, filepath.Join(dir, "a.meta.json"), `{"category":"civil"}`)
	writeFile(t, filepath.Join(dir, "readme.md"), "ignored")

	docs, err := NewMultiLoader(stubExtractor{}, nil).LoadDir(context.Background(), dir)

	require.NoError(t, err)
	require.Len(t, docs, 2)
	ids := []string{docs[0].ID, docs[1].ID}
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestMultiLoader_LoadDirMissing(t *testing.T) {
	_, err := NewMultiLoader(stubExtractor{}, nil).LoadDir(context.Background(), "/nonexistent/folder")
	assert.ErrorIs(t, err, entities.ErrMissingResource)
}

func TestLoader_NonexistentFile(t *testing.T) {
	_, err := NewTextLoader(nil).Load(context.Background(), "/nonexistent/file.txt")
	assert.Error(t, err, "should error on nonexistent file")
}
