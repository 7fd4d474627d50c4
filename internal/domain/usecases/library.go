package usecases

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/0xcro3dile/sibila-go/internal/domain/entities"
	"github.com/0xcro3dile/sibila-go/internal/domain/ports"
)

// UploadedFile is one raw file received for storage.
type UploadedFile struct {
	Name string
	Data []byte
}

// LibraryUseCase manages raw documents in the blob store and feeds them to
// the ingestion pipeline. Deleting a stored file never touches the index.
type LibraryUseCase struct {
	store     ports.BlobStore
	extractor ports.TextExtractor
	ingest    *IngestUseCase
	log       ports.Logger
}

// NewLibraryUseCase creates a LibraryUseCase with injected dependencies.
func NewLibraryUseCase(store ports.BlobStore, extractor ports.TextExtractor, ingest *IngestUseCase, log ports.Logger) *LibraryUseCase {
	if log == nil {
		log = ports.NopLogger{}
	}
	return &LibraryUseCase{
		store:     store,
		extractor: extractor,
		ingest:    ingest,
		log:       log,
	}
}

// Upload saves files as-is and returns their names in upload order.
func (uc *LibraryUseCase) Upload(ctx context.Context, files []UploadedFile) ([]string, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files", entities.ErrInvalidInput)
	}
	saved := make([]string, 0, len(files))
	for _, f := range files {
		if err := uc.store.Save(ctx, f.Name, f.Data); err != nil {
			return saved, fmt.Errorf("saving %s: %w", f.Name, err)
		}
		saved = append(saved, f.Name)
	}
	uc.log.Info("library", "files uploaded", map[string]interface{}{"count": len(saved)})
	return saved, nil
}

// List returns the sorted names of stored files.
func (uc *LibraryUseCase) List(ctx context.Context) ([]string, error) {
	return uc.store.List(ctx)
}

// Read returns the text of a stored file. PDFs are extracted and
// normalized; extraction failures degrade to empty text. Anything else is
// returned as stored, with invalid UTF-8 dropped.
func (uc *LibraryUseCase) Read(ctx context.Context, name string) (string, error) {
	data, err := uc.store.Read(ctx, name)
	if err != nil {
		return "", err
	}
	if strings.ToLower(filepath.Ext(name)) == entities.ExtPDF {
		return uc.pdfText(ctx, name, data), nil
	}
	return strings.ToValidUTF8(string(data), ""), nil
}

// Delete removes a stored file. Its chunks stay in the index.
func (uc *LibraryUseCase) Delete(ctx context.Context, name string) error {
	if err := uc.store.Delete(ctx, name); err != nil {
		return err
	}
	uc.log.Info("library", "file deleted", map[string]interface{}{"name": name})
	return nil
}

// IngestStored upserts stored files into the index. The document id is the
// file name without extension; a "<base>.meta.json" sidecar, when stored,
// supplies its metadata. An empty names list ingests every stored document.
// Files with no extractable text are skipped with a warning.
func (uc *LibraryUseCase) IngestStored(ctx context.Context, names []string) (*entities.IngestSummary, error) {
	if len(names) == 0 {
		all, err := uc.store.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, n := range all {
			if _, ok := entities.DocumentExt(n); ok {
				names = append(names, n)
			}
		}
	}

	docs := make([]entities.Document, 0, len(names))
	for _, name := range names {
		doc, err := uc.load(ctx, name)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			continue
		}
		docs = append(docs, *doc)
	}
	if len(docs) == 0 {
		return nil, entities.ErrEmptyInput
	}
	return uc.ingest.Ingest(ctx, docs, entities.ModeUpsert)
}

func (uc *LibraryUseCase) load(ctx context.Context, name string) (*entities.Document, error) {
	ext, ok := entities.DocumentExt(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a .txt or .pdf file", entities.ErrInvalidInput, name)
	}
	data, err := uc.store.Read(ctx, name)
	if err != nil {
		return nil, err
	}

	var text string
	if ext == entities.ExtPDF {
		text = uc.pdfText(ctx, name, data)
	} else {
		text = NormalizeText(strings.ToValidUTF8(string(data), ""))
	}
	if text == "" {
		uc.log.Warn("library", "no extractable text, skipping", map[string]interface{}{"name": name})
		return nil, nil
	}

	return &entities.Document{
		ID:   entities.DocIDFromName(name),
		Name: name,
		Text: text,
		Meta: entities.WithFilename(uc.sidecar(ctx, name), name),
	}, nil
}

// sidecar loads the stored metadata of name. A missing or unreadable
// sidecar yields nil.
func (uc *LibraryUseCase) sidecar(ctx context.Context, name string) entities.RawMetadata {
	metaName := entities.SidecarName(name)
	data, err := uc.store.Read(ctx, metaName)
	if err != nil {
		if !errors.Is(err, entities.ErrMissingResource) {
			uc.log.Warn("library", "reading sidecar failed", map[string]interface{}{"name": metaName, "error": err.Error()})
		}
		return nil
	}
	meta, err := entities.DecodeRawMetadata(data)
	if err != nil {
		uc.log.Warn("library", "invalid sidecar ignored", map[string]interface{}{"name": metaName, "error": err.Error()})
		return nil
	}
	return meta
}

func (uc *LibraryUseCase) pdfText(ctx context.Context, name string, data []byte) string {
	if uc.extractor == nil {
		uc.log.Warn("library", "no PDF extractor configured", map[string]interface{}{"name": name})
		return ""
	}
	text, err := uc.extractor.Extract(ctx, data)
	if err != nil {
		uc.log.Warn("library", "PDF extraction failed", map[string]interface{}{"name": name, "error": err.Error()})
		return ""
	}
	return NormalizeText(text)
}
