package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/sibila-go/internal/domain/entities"
)

func TestIngestUseCase_UpsertChunksDocument(t *testing.T) {
	ctx := context.Background()
	idx := newMemoryIndex()
	uc := NewIngestUseCase(idx, nil, nil)

	summary, err := uc.Ingest(ctx, []entities.Document{
		{ID: "case-1", Text: strings.Repeat("A", 2000), Meta: entities.FreeformMeta{"category": "penal"}},
	}, entities.ModeUpsert)
	require.NoError(t, err)
	assert.Equal(t, &entities.IngestSummary{IngestedChunks: 2, Documents: 1, Mode: entities.ModeUpsert}, summary)

	got, err := idx.Get(ctx, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"case-1__0", "case-1__1"}, got.IDs)
	assert.Equal(t, "case-1", got.Metadatas[1][entities.MetaDocID])
	assert.Equal(t, int64(1), got.Metadatas[1][entities.MetaOrdinal])
	assert.Equal(t, "penal", got.Metadatas[0]["category"])
}

func TestIngestUseCase_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	idx := newMemoryIndex()
	uc := NewIngestUseCase(idx, nil, nil)
	doc := entities.Document{ID: "case-1", Text: strings.Repeat("A", 2000)}

	_, err := uc.Ingest(ctx, []entities.Document{doc}, entities.ModeUpsert)
	require.NoError(t, err)
	first, err := idx.Get(ctx, 0, nil)
	require.NoError(t, err)

	_, err = uc.Ingest(ctx, []entities.Document{doc}, entities.ModeUpsert)
	require.NoError(t, err)
	second, err := idx.Get(ctx, 0, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"case-1__0", "case-1__1"}, second.IDs)
	assert.Equal(t, first.IDs, second.IDs)
	assert.Equal(t, first.Documents, second.Documents)
	assert.Equal(t, first.Metadatas, second.Metadatas)
}

func TestIngestUseCase_UpsertPrunesStaleChunks(t *testing.T) {
	ctx := context.Background()
	idx := newMemoryIndex()
	uc := NewIngestUseCase(idx, nil, nil)

	_, err := uc.Ingest(ctx, []entities.Document{
		{ID: "case-1", Text: strings.Repeat("A", 4000)},
		{ID: "case-2", Text: "otro documento"},
	}, "")
	require.NoError(t, err)
	require.Equal(t, 4, idx.Count())

	_, err = uc.Ingest(ctx, []entities.Document{{ID: "case-1", Text: "versión corta"}}, entities.ModeUpsert)
	require.NoError(t, err)

	got, err := idx.Get(ctx, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"case-1__0", "case-2__0"}, got.IDs)
	assert.Equal(t, []string{"versión corta", "otro documento"}, got.Documents)
}

func TestIngestUseCase_UpsertPrunesInOneCall(t *testing.T) {
	ctx := context.Background()
	idx := newCountingIndex()
	uc := NewIngestUseCase(idx, nil, nil)

	docs := make([]entities.Document, 50)
	for i := range docs {
		docs[i] = entities.Document{ID: fmt.Sprintf("doc-%02d", i), Text: strings.Repeat("B", 2000)}
	}
	_, err := uc.Ingest(ctx, docs, entities.ModeUpsert)
	require.NoError(t, err)
	require.Len(t, idx.deletes, 1)
	assert.Len(t, idx.deletes[0]["$or"], 50)

	for i := range docs {
		docs[i].Text = "breve"
	}
	_, err = uc.Ingest(ctx, docs, entities.ModeUpsert)
	require.NoError(t, err)
	assert.Len(t, idx.deletes, 2)
	assert.Equal(t, 50, idx.Count())
}

func TestIngestUseCase_UpsertPruneFailure(t *testing.T) {
	ctx := context.Background()
	idx := newCountingIndex()
	log := &recordingLogger{}
	uc := NewIngestUseCase(idx, nil, log)

	_, err := uc.Ingest(ctx, []entities.Document{{ID: "a", Text: strings.Repeat("a", 4000)}}, entities.ModeUpsert)
	require.NoError(t, err)
	require.Equal(t, 3, idx.Count())

	idx.deleteErr = errors.New("connection reset")
	_, err = uc.Ingest(ctx, []entities.Document{{ID: "a", Text: "versión corta"}}, entities.ModeUpsert)
	require.ErrorIs(t, err, entities.ErrIndexUnavailable)
	assert.Contains(t, err.Error(), "pruning stale chunks")
	require.Equal(t, 1, log.count("error"))
	assert.Equal(t, []string{"a"}, log.entries[len(log.entries)-1].details["doc_ids"])

	got, err := idx.Get(ctx, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a__0", "a__1", "a__2"}, got.IDs, "stale chunks remain until the next upsert")
	assert.Equal(t, "versión corta", got.Documents[0])

	idx.deleteErr = nil
	_, err = uc.Ingest(ctx, []entities.Document{{ID: "a", Text: "versión corta"}}, entities.ModeUpsert)
	require.NoError(t, err)
	got, err = idx.Get(ctx, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a__0"}, got.IDs)
	assert.Equal(t, []string{"versión corta"}, got.Documents)
}

func TestIngestUseCase_UpsertLastOccurrenceWins(t *testing.T) {
	ctx := context.Background()
	idx := newMemoryIndex()
	uc := NewIngestUseCase(idx, nil, nil)

	summary, err := uc.Ingest(ctx, []entities.Document{
		{ID: "a", Text: "primera"},
		{ID: "a", Text: "segunda"},
	}, entities.ModeUpsert)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.IngestedChunks)
	assert.Equal(t, 2, summary.Documents)

	got, err := idx.Get(ctx, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"segunda"}, got.Documents)
}

func TestIngestUseCase_EmptyInput(t *testing.T) {
	uc := NewIngestUseCase(newMemoryIndex(), nil, nil)
	docs := []entities.Document{{ID: "a", Text: "   \n\t "}}

	_, err := uc.Ingest(context.Background(), docs, entities.ModeUpsert)
	assert.ErrorIs(t, err, entities.ErrEmptyInput)

	_, err = uc.Ingest(context.Background(), docs, entities.ModeAdd)
	assert.ErrorIs(t, err, entities.ErrEmptyInput)

	_, err = uc.Ingest(context.Background(), nil, entities.ModeUpsert)
	assert.ErrorIs(t, err, entities.ErrEmptyInput)
}

func TestIngestUseCase_InvalidInput(t *testing.T) {
	uc := NewIngestUseCase(newMemoryIndex(), nil, nil)

	_, err := uc.Ingest(context.Background(), []entities.Document{{Text: "sin id"}}, entities.ModeUpsert)
	assert.ErrorIs(t, err, entities.ErrInvalidInput)

	_, err = uc.Ingest(context.Background(), []entities.Document{{ID: "a", Text: "x"}}, "replace")
	assert.ErrorIs(t, err, entities.ErrInvalidInput)
}

func TestIngestUseCase_AddStoresWholeDocuments(t *testing.T) {
	ctx := context.Background()
	idx := newMemoryIndex()
	uc := NewIngestUseCase(idx, nil, nil)

	summary, err := uc.Ingest(ctx, []entities.Document{
		{ID: "a", Text: strings.Repeat("B", 3000)},
		{ID: "b", Text: "breve"},
	}, entities.ModeAdd)
	require.NoError(t, err)
	assert.Equal(t, &entities.IngestSummary{IngestedChunks: 2, Documents: 2, Mode: entities.ModeAdd}, summary)

	got, err := idx.Get(ctx, 0, entities.Filter{entities.MetaDocID: "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a__0"}, got.IDs)
	assert.Len(t, got.Documents[0], 3000)

	_, err = uc.Ingest(ctx, []entities.Document{{ID: "b", Text: "de nuevo"}}, entities.ModeAdd)
	assert.ErrorIs(t, err, entities.ErrDuplicateID)
}

func TestIngestUseCase_AddRejectsRepeatedIDs(t *testing.T) {
	uc := NewIngestUseCase(newMemoryIndex(), nil, nil)
	_, err := uc.Ingest(context.Background(), []entities.Document{
		{ID: "a", Text: "uno"},
		{ID: "a", Text: "dos"},
	}, entities.ModeAdd)
	assert.ErrorIs(t, err, entities.ErrInvalidInput)
}

func TestIngestUseCase_LogsDroppedMetadata(t *testing.T) {
	log := &recordingLogger{}
	uc := NewIngestUseCase(newMemoryIndex(), nil, log)

	_, err := uc.Ingest(context.Background(), []entities.Document{
		{ID: "a", Text: "texto", Meta: entities.FreeformMeta{"tags": []any{"x"}, "year": 2020}},
	}, entities.ModeUpsert)
	require.NoError(t, err)
	assert.Equal(t, 1, log.count("warn"))
}

func TestIngestUseCase_IndexFailure(t *testing.T) {
	idx := &mockIndex{err: errors.New("connection refused")}
	uc := NewIngestUseCase(idx, nil, nil)

	_, err := uc.Ingest(context.Background(), []entities.Document{{ID: "a", Text: "x"}}, entities.ModeUpsert)
	assert.ErrorIs(t, err, entities.ErrIndexUnavailable)

	idx.err = entities.ErrDuplicateID
	_, err = uc.Ingest(context.Background(), []entities.Document{{ID: "a", Text: "x"}}, entities.ModeAdd)
	assert.ErrorIs(t, err, entities.ErrDuplicateID)
	assert.NotErrorIs(t, err, entities.ErrIndexUnavailable)
}

func TestIngestUseCase_Delete(t *testing.T) {
	ctx := context.Background()
	idx := newMemoryIndex()
	uc := NewIngestUseCase(idx, nil, nil)

	_, err := uc.Ingest(ctx, []entities.Document{
		{ID: "a", Text: strings.Repeat("C", 2000)},
		{ID: "b", Text: "queda"},
	}, entities.ModeUpsert)
	require.NoError(t, err)

	require.NoError(t, uc.Delete(ctx, "a"))
	got, err := idx.Get(ctx, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"b__0"}, got.IDs)

	assert.ErrorIs(t, uc.Delete(ctx, ""), entities.ErrInvalidInput)
}

func TestIngestUseCase_CustomChunker(t *testing.T) {
	chunker, err := NewChunker(10, 2)
	require.NoError(t, err)
	idx := newMemoryIndex()
	uc := NewIngestUseCase(idx, chunker, nil)

	summary, err := uc.Ingest(context.Background(), []entities.Document{{ID: "a", Text: strings.Repeat("x", 26)}}, entities.ModeUpsert)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.IngestedChunks)
}
