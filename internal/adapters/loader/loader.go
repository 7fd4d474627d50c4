// Package loader reads raw documents and their metadata sidecars from disk.
// Clean Architecture: Adapters implementing ports.DocumentLoader.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/0xcro3dile/sibila-go/internal/domain/entities"
	"github.com/0xcro3dile/sibila-go/internal/domain/ports"
)

// TextLoader loads plain text documents (.txt).
type TextLoader struct {
	log ports.Logger
}

// NewTextLoader creates a new text document loader.
func NewTextLoader(log ports.Logger) *TextLoader {
	if log == nil {
		log = ports.NopLogger{}
	}
	return &TextLoader{log: log}
}

// Load reads a text document from the given path. Invalid UTF-8 is dropped.
func (l *TextLoader) Load(ctx context.Context, path string) (*entities.Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return newDocument(path, strings.ToValidUTF8(string(content), ""), l.log), nil
}

// SupportedExtensions returns file extensions this loader handles.
func (l *TextLoader) SupportedExtensions() []string {
	return []string{entities.ExtText}
}

// PDFLoader loads PDF documents through a text extractor.
type PDFLoader struct {
	extractor ports.TextExtractor
	log       ports.Logger
}

// NewPDFLoader creates a PDF loader backed by extractor.
func NewPDFLoader(extractor ports.TextExtractor, log ports.Logger) *PDFLoader {
	if log == nil {
		log = ports.NopLogger{}
	}
	return &PDFLoader{extractor: extractor, log: log}
}

// Load reads a PDF and extracts its text. Extraction failures degrade to
// an empty document with a warning; only I/O errors are returned.
func (l *PDFLoader) Load(ctx context.Context, path string) (*entities.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	text, err := l.extractor.Extract(ctx, data)
	if err != nil {
		l.log.Warn("loader", "PDF extraction failed", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		text = ""
	}
	return newDocument(path, text, l.log), nil
}

// SupportedExtensions returns file extensions.
func (l *PDFLoader) SupportedExtensions() []string {
	return []string{entities.ExtPDF}
}

// MultiLoader combines multiple loaders.
type MultiLoader struct {
	loaders map[string]ports.DocumentLoader
	log     ports.Logger
}

// NewMultiLoader creates a loader that handles .txt and .pdf files.
func NewMultiLoader(extractor ports.TextExtractor, log ports.Logger) *MultiLoader {
	if log == nil {
		log = ports.NopLogger{}
	}
	m := &MultiLoader{
		loaders: make(map[string]ports.DocumentLoader),
		log:     log,
	}
	for _, l := range []ports.DocumentLoader{NewTextLoader(log), NewPDFLoader(extractor, log)} {
		for _, ext := range l.SupportedExtensions() {
			m.loaders[ext] = l
		}
	}
	return m
}

// Load dispatches to the appropriate loader based on extension.
func (m *MultiLoader) Load(ctx context.Context, path string) (*entities.Document, error) {
	ext, ok := entities.DocumentExt(path)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported file %s", entities.ErrInvalidInput, filepath.Base(path))
	}
	return m.loaders[ext].Load(ctx, path)
}

// SupportedExtensions returns all supported extensions.
func (m *MultiLoader) SupportedExtensions() []string {
	return entities.SupportedExtensions()
}

// LoadDir walks dir recursively and loads every supported document.
// Documents without text are skipped with a warning.
func (m *MultiLoader) LoadDir(ctx context.Context, dir string) ([]entities.Document, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: data folder %s: %v", entities.ErrMissingResource, dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", entities.ErrInvalidInput, dir)
	}

	var docs []entities.Document
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := entities.DocumentExt(path); !ok {
			return nil
		}

		doc, err := m.Load(ctx, path)
		if err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
		if strings.TrimSpace(doc.Text) == "" {
			m.log.Warn("loader", "no extractable text, skipping", map[string]interface{}{"path": path})
			return nil
		}
		docs = append(docs, *doc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// newDocument builds the document for path: the id is the file name
// without extension and the metadata comes from the sidecar, if any, with
// filename defaulted to the file name.
func newDocument(path, text string, log ports.Logger) *entities.Document {
	name := filepath.Base(path)
	return &entities.Document{
		ID:   entities.DocIDFromName(name),
		Name: name,
		Text: text,
		Meta: entities.WithFilename(readSidecar(path, log), name),
	}
}

// readSidecar loads "<base>.meta.json" next to path. Missing sidecars are
// silent; unreadable ones are logged and ignored.
func readSidecar(path string, log ports.Logger) entities.RawMetadata {
	metaPath := entities.SidecarName(path)
	data, err := os.ReadFile(metaPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err == nil {
		var meta entities.RawMetadata
		if meta, err = entities.DecodeRawMetadata(data); err == nil {
			return meta
		}
	}
	log.Warn("loader", "invalid sidecar ignored", map[string]interface{}{
		"path":  metaPath,
		"error": err.Error(),
	})
	return nil
}
