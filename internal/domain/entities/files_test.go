package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentExt(t *testing.T) {
	tests := []struct {
		name string
		ext  string
		ok   bool
	}{
		{"a.txt", ".txt", true},
		{"A.PDF", ".pdf", true},
		{"dir/b.pdf", ".pdf", true},
		{"a.meta.json", "", false},
		{"a.png", ".png", false},
		{"noext", "", false},
	}
	for _, tt := range tests {
		ext, ok := DocumentExt(tt.name)
		assert.Equal(t, tt.ok, ok, tt.name)
		assert.Equal(t, tt.ext, ext, tt.name)
	}
}

func TestNames(t *testing.T) {
	assert.Equal(t, "sts-123", DocIDFromName("/data/sts-123.pdf"))
	assert.Equal(t, "v1.2", DocIDFromName("v1.2.txt"))
	assert.Equal(t, "/data/sts-123.meta.json", SidecarName("/data/sts-123.pdf"))
	assert.True(t, IsSidecar("X.META.JSON"))
	assert.False(t, IsSidecar("meta.json.txt"))
}

func TestWithFilename(t *testing.T) {
	typed := WithFilename(nil, "a.pdf").(*JurisMeta)
	require.NotNil(t, typed.Filename)
	assert.Equal(t, "a.pdf", *typed.Filename)

	cat := "penal"
	orig := &JurisMeta{Category: &cat}
	got := WithFilename(orig, "b.pdf").(*JurisMeta)
	assert.Equal(t, "b.pdf", *got.Filename)
	assert.Nil(t, orig.Filename, "input must not be modified")

	name := "given.pdf"
	kept := WithFilename(&JurisMeta{Filename: &name}, "other.pdf").(*JurisMeta)
	assert.Equal(t, "given.pdf", *kept.Filename)

	free := FreeformMeta{"year": 2020}
	out := WithFilename(free, "c.txt")
	assert.Equal(t, map[string]any{"year": 2020, "filename": "c.txt"}, out.Fields())
	assert.NotContains(t, free, "filename")
}
