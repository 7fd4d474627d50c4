package entities

import (
	"path/filepath"
	"strings"
)

// SidecarSuffix marks the JSON metadata file stored next to a raw document:
// "sts-123.pdf" is described by "sts-123.meta.json".
const SidecarSuffix = ".meta.json"

// Extensions of raw documents the pipeline can turn into text.
const (
	ExtText = ".txt"
	ExtPDF  = ".pdf"
)

// SupportedExtensions lists the raw document extensions, lower case.
func SupportedExtensions() []string {
	return []string{ExtText, ExtPDF}
}

// DocumentExt returns the lower-cased extension of name and whether the
// pipeline can ingest it. Sidecars are never documents.
func DocumentExt(name string) (string, bool) {
	if IsSidecar(name) {
		return "", false
	}
	ext := strings.ToLower(filepath.Ext(name))
	return ext, ext == ExtText || ext == ExtPDF
}

// IsSidecar reports whether name is a metadata sidecar.
func IsSidecar(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), SidecarSuffix)
}

// DocIDFromName derives a document id from a file name: the base name
// without its extension.
func DocIDFromName(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// SidecarName returns the sidecar file name for a raw document path.
func SidecarName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + SidecarSuffix
}

// WithFilename returns meta with "filename" set to name unless the caller
// already provided one. The input is never modified.
func WithFilename(meta RawMetadata, name string) RawMetadata {
	switch m := meta.(type) {
	case nil:
		return &JurisMeta{Filename: &name}
	case *JurisMeta:
		if m == nil {
			return &JurisMeta{Filename: &name}
		}
		if m.Filename != nil {
			return m
		}
		cp := *m
		cp.Filename = &name
		return &cp
	default:
		fields := meta.Fields()
		if _, ok := fields[MetaFilename]; !ok {
			fields[MetaFilename] = name
		}
		return FreeformMeta(fields)
	}
}
