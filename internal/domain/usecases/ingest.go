package usecases

import (
	"context"
	"errors"
	"fmt"

	"github.com/0xcro3dile/sibila-go/internal/domain/entities"
	"github.com/0xcro3dile/sibila-go/internal/domain/ports"
)

// IngestUseCase turns documents into chunks and writes them to the vector index.
// Each call issues one batched write, followed in upsert mode by one batched
// prune; the index's own atomicity is the only transaction boundary.
type IngestUseCase struct {
	index   ports.VectorIndex
	chunker *Chunker
	log     ports.Logger
}

// NewIngestUseCase creates an IngestUseCase with injected dependencies.
// A nil chunker selects the default 1500/150 window.
func NewIngestUseCase(index ports.VectorIndex, chunker *Chunker, log ports.Logger) *IngestUseCase {
	if chunker == nil {
		chunker = &Chunker{maxChars: DefaultMaxChars, overlap: DefaultOverlap}
	}
	if log == nil {
		log = ports.NopLogger{}
	}
	return &IngestUseCase{
		index:   index,
		chunker: chunker,
		log:     log,
	}
}

// Ingest stores a batch of documents.
//
// ModeUpsert is the canonical path: documents are chunked, written with
// Upsert, and chunks left over from a longer previous version are pruned,
// so re-ingesting a document is idempotent.
//
// ModeAdd is the whole-document compatibility path: each document becomes a
// single chunk (ordinal 0) written with Add; the index rejects the batch
// with ErrDuplicateID if any id is already stored.
func (uc *IngestUseCase) Ingest(ctx context.Context, docs []entities.Document, mode entities.IngestMode) (*entities.IngestSummary, error) {
	for _, d := range docs {
		if d.ID == "" {
			return nil, fmt.Errorf("%w: doc_id is required", entities.ErrInvalidInput)
		}
	}

	switch mode {
	case entities.ModeUpsert, "":
		return uc.upsert(ctx, docs)
	case entities.ModeAdd:
		return uc.add(ctx, docs)
	default:
		return nil, fmt.Errorf("%w: unknown ingest mode %q", entities.ErrInvalidInput, mode)
	}
}

func (uc *IngestUseCase) upsert(ctx context.Context, docs []entities.Document) (*entities.IngestSummary, error) {
	submitted := len(docs)
	docs = lastByID(docs)

	var batch ports.IndexBatch
	counts := make([]int, len(docs))
	for i, doc := range docs {
		parts := uc.chunker.Split(NormalizeText(doc.Text))
		meta := uc.sanitize(doc)
		for ordinal, text := range parts {
			batch.Append(newChunk(doc.ID, ordinal, text, meta))
		}
		counts[i] = len(parts)
	}
	if batch.Len() == 0 {
		return nil, entities.ErrEmptyInput
	}

	if err := uc.index.Upsert(ctx, batch); err != nil {
		return nil, indexError("upserting chunks", err)
	}

	if err := uc.index.Delete(ctx, staleChunks(docs, counts)); err != nil {
		ids := make([]string, len(docs))
		for i, d := range docs {
			ids[i] = d.ID
		}
		// The new chunks are already written; older chunks past the new
		// count stay until the same documents are upserted again.
		uc.log.Error("ingest", "stale chunk pruning failed after upsert", map[string]interface{}{
			"doc_ids": ids,
			"chunks":  batch.Len(),
			"error":   err.Error(),
		})
		return nil, indexError("pruning stale chunks", err)
	}

	uc.log.Info("ingest", "documents upserted", map[string]interface{}{
		"docs":   submitted,
		"chunks": batch.Len(),
	})
	return &entities.IngestSummary{IngestedChunks: batch.Len(), Documents: submitted, Mode: entities.ModeUpsert}, nil
}

func (uc *IngestUseCase) add(ctx context.Context, docs []entities.Document) (*entities.IngestSummary, error) {
	seen := make(map[string]struct{}, len(docs))
	var batch ports.IndexBatch
	for _, doc := range docs {
		if _, dup := seen[doc.ID]; dup {
			return nil, fmt.Errorf("%w: doc_id %q repeated in batch", entities.ErrInvalidInput, doc.ID)
		}
		seen[doc.ID] = struct{}{}

		text := NormalizeText(doc.Text)
		if text == "" {
			continue
		}
		batch.Append(newChunk(doc.ID, 0, text, uc.sanitize(doc)))
	}
	if batch.Len() == 0 {
		return nil, entities.ErrEmptyInput
	}

	if err := uc.index.Add(ctx, batch); err != nil {
		return nil, indexError("adding documents", err)
	}

	uc.log.Info("ingest", "documents added", map[string]interface{}{
		"docs":   len(docs),
		"chunks": batch.Len(),
	})
	return &entities.IngestSummary{IngestedChunks: batch.Len(), Documents: len(docs), Mode: entities.ModeAdd}, nil
}

// Delete removes every chunk of a document from the index.
func (uc *IngestUseCase) Delete(ctx context.Context, documentID string) error {
	if documentID == "" {
		return fmt.Errorf("%w: doc_id is required", entities.ErrInvalidInput)
	}
	if err := uc.index.Delete(ctx, entities.Filter{entities.MetaDocID: documentID}); err != nil {
		return indexError("deleting document", err)
	}
	uc.log.Info("ingest", "document removed from index", map[string]interface{}{"doc_id": documentID})
	return nil
}

func (uc *IngestUseCase) sanitize(doc entities.Document) entities.Metadata {
	meta, dropped := SanitizeMetadata(doc.Meta)
	for _, d := range dropped {
		uc.log.Warn("ingest", "metadata field dropped", map[string]interface{}{
			"doc_id": doc.ID,
			"key":    d.Key,
			"error":  d.Error(),
		})
	}
	return meta
}

// newChunk builds a stored chunk, injecting doc_id and ordinal into a copy
// of the sanitized document metadata.
func newChunk(docID string, ordinal int, text string, meta entities.Metadata) entities.Chunk {
	m := make(entities.Metadata, len(meta)+2)
	for k, v := range meta {
		m[k] = v
	}
	m[entities.MetaDocID] = docID
	m[entities.MetaOrdinal] = int64(ordinal)

	return entities.Chunk{
		ID:         ChunkID(docID, ordinal),
		DocumentID: docID,
		Ordinal:    ordinal,
		Text:       text,
		Metadata:   m,
	}
}

// lastByID keeps the last occurrence of each doc_id, in first-seen order.
func lastByID(docs []entities.Document) []entities.Document {
	pos := make(map[string]int, len(docs))
	out := make([]entities.Document, 0, len(docs))
	for _, d := range docs {
		if i, ok := pos[d.ID]; ok {
			out[i] = d
			continue
		}
		pos[d.ID] = len(out)
		out = append(out, d)
	}
	return out
}

// staleChunks matches, for every document, the chunks at or beyond its new
// chunk count. Several documents are joined with $or so pruning is a single
// index call.
func staleChunks(docs []entities.Document, counts []int) entities.Filter {
	clauses := make([]any, len(docs))
	for i, doc := range docs {
		clauses[i] = map[string]any{"$and": []any{
			map[string]any{entities.MetaDocID: doc.ID},
			map[string]any{entities.MetaOrdinal: map[string]any{"$gte": int64(counts[i])}},
		}}
	}
	if len(clauses) == 1 {
		return entities.Filter(clauses[0].(map[string]any))
	}
	return entities.Filter{"$or": clauses}
}

// indexError wraps an index failure as ErrIndexUnavailable unless the
// adapter already classified it.
func indexError(op string, err error) error {
	for _, known := range []error{
		entities.ErrIndexUnavailable,
		entities.ErrDuplicateID,
		entities.ErrUnsupportedFilter,
		entities.ErrInvalidInput,
	} {
		if errors.Is(err, known) {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return fmt.Errorf("%s: %w: %w", op, entities.ErrIndexUnavailable, err)
}
