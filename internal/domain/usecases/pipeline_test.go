package usecases

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/sibila-go/internal/domain/entities"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"nul bytes", "a\x00b", "a b"},
		{"cr and tabs", "a\r\n\t\tb", "a\n b"},
		{"trailing blanks", "line one   \nline two", "line one\nline two"},
		{"blank line run", "a\n\n\n\n\nb", "a\n\nb"},
		{"paragraph kept", "a\n\nb", "a\n\nb"},
		{"trimmed", "  \n texto \n ", "texto"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeText(tt.in))
		})
	}
}

func TestNormalizeText_Idempotent(t *testing.T) {
	in := "SENTENCIA\r\n\r\n\r\n\tFUNDAMENTOS  \n\n\n\nFALLO\x00"
	once := NormalizeText(in)
	assert.Equal(t, once, NormalizeText(once))
}

func TestChunkText(t *testing.T) {
	text := strings.Repeat("A", 2000)
	chunks := ChunkText(text, 1500, 150)
	require.Len(t, chunks, 2)
	assert.Equal(t, text[:1500], chunks[0])
	assert.Equal(t, text[1350:], chunks[1])
}

func TestChunkText_Short(t *testing.T) {
	assert.Equal(t, []string{"hola"}, ChunkText("  hola  ", 1500, 150))
	assert.Nil(t, ChunkText(" \n\t ", 1500, 150))
}

func TestChunkText_CountsRunes(t *testing.T) {
	chunks := ChunkText(strings.Repeat("ñ", 10), 4, 1)
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 4)
	}
	assert.Equal(t, "ññññ", chunks[0])
	assert.Equal(t, "ññññ", chunks[2])
}

func TestChunkText_Reconstructs(t *testing.T) {
	text := NormalizeText(strings.Repeat("Artículo 24. Tutela judicial efectiva.\n\n", 40))
	for _, w := range [][2]int{{1500, 150}, {100, 0}, {37, 36}, {64, 10}} {
		chunks := ChunkText(text, w[0], w[1])
		require.NotEmpty(t, chunks)

		var b strings.Builder
		b.WriteString(chunks[0])
		for _, c := range chunks[1:] {
			b.WriteString(string([]rune(c)[w[1]:]))
		}
		assert.Equal(t, text, b.String(), "window %v", w)
	}
}

func TestChunkText_ExactWindow(t *testing.T) {
	text := strings.Repeat("b", 1500)
	assert.Equal(t, []string{text}, ChunkText(text, 1500, 150))
}

func TestNewChunker(t *testing.T) {
	c, err := NewChunker(0, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxChars, c.MaxChars())
	assert.Equal(t, DefaultOverlap, c.Overlap())

	c, err = NewChunker(100, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Overlap())

	for _, bad := range [][2]int{{100, 100}, {100, 150}, {-1, 0}, {100, -1}} {
		_, err := NewChunker(bad[0], bad[1])
		assert.ErrorIs(t, err, entities.ErrInvalidInput, "window %v", bad)
	}
}

func TestSanitizeMetadata(t *testing.T) {
	raw := entities.FreeformMeta{
		"tags":   []any{"a", "b"},
		"active": true,
		"notes":  nil,
		"count":  3,
	}
	got, dropped := SanitizeMetadata(raw)
	assert.Equal(t, entities.Metadata{"active": true, "count": int64(3)}, got)
	require.Len(t, dropped, 1)
	assert.Equal(t, "tags", dropped[0].Key)

	again, dropped := SanitizeMetadata(got)
	assert.Equal(t, got, again)
	assert.Empty(t, dropped)
}

func TestSanitizeMetadata_Kinds(t *testing.T) {
	got, dropped := SanitizeMetadata(entities.FreeformMeta{
		"f32":   float32(0.5),
		"u8":    uint8(7),
		"jint":  jsonNumber("12"),
		"jflt":  jsonNumber("1.25"),
		"name":  "x",
		"inner": map[string]any{"a": 1},
	})
	assert.Equal(t, entities.Metadata{
		"f32":  0.5,
		"u8":   int64(7),
		"jint": int64(12),
		"jflt": 1.25,
		"name": "x",
	}, got)
	require.Len(t, dropped, 1)
	assert.Equal(t, "inner", dropped[0].Key)
}

func TestSanitizeMetadata_Typed(t *testing.T) {
	cat := "penal"
	got, dropped := SanitizeMetadata(&entities.JurisMeta{
		Category: &cat,
		Extra:    map[string]any{"category": "ignored", "year": 2021, "list": []string{"x"}},
	})
	assert.Equal(t, entities.Metadata{"category": "penal", "year": int64(2021)}, got)
	assert.Len(t, dropped, 1)

	empty, dropped := SanitizeMetadata(nil)
	assert.Empty(t, empty)
	assert.Empty(t, dropped)
}

func TestChunkID(t *testing.T) {
	assert.Equal(t, "case-1__0", ChunkID("case-1", 0))
	assert.Equal(t, "sts 12/2020__14", ChunkID("sts 12/2020", 14))
}

func TestNewChunk(t *testing.T) {
	meta := entities.Metadata{"category": "penal", "doc_id": "spoofed"}
	c := newChunk("sts-1", 2, "texto", meta)

	assert.Equal(t, entities.Chunk{
		ID:         "sts-1__2",
		DocumentID: "sts-1",
		Ordinal:    2,
		Text:       "texto",
		Metadata:   entities.Metadata{"category": "penal", "doc_id": "sts-1", "ordinal": int64(2)},
	}, c)
	assert.Equal(t, "spoofed", meta["doc_id"], "input metadata is not mutated")
}
