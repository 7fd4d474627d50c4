// Package entities contains core business entities.
// These are the enterprise business rules - pure domain objects with no external dependencies.
package entities

// Document is a caller-submitted legal text (judgment, statute) awaiting ingestion.
// It is immutable once submitted; re-ingesting the same ID is a new version.
type Document struct {
	ID   string
	Name string // Source file name, when the document came from the blob store
	Text string
	Meta RawMetadata
}

// Chunk is a bounded window of a document, the unit actually stored and retrieved.
// ID is always ChunkID(DocumentID, Ordinal).
type Chunk struct {
	ID         string
	DocumentID string
	Ordinal    int
	Text       string
	Metadata   Metadata
}

// Metadata is the flat scalar map the vector index accepts.
// Values are string, int64, float64 or bool.
type Metadata map[string]any

// Reserved metadata keys injected by the ingestion pipeline.
const (
	MetaDocID   = "doc_id"
	MetaOrdinal = "ordinal"
)

// Well-known metadata keys used for enumeration and filtering.
const (
	MetaCategory = "category"
	MetaCaseID   = "case_id"
	MetaFilename = "filename"
)

// Filter is an index-native predicate over stored metadata. A key maps
// either to a scalar (exact match) or to an operator object such as
// {"$in": [...]}; "$and"/"$or" combine sub-filters.
type Filter map[string]any

// Result is one retrieved chunk with its score.
// Score is whatever the index returned (distance or similarity), never renormalized.
type Result struct {
	DocID   string         `json:"doc_id"`
	ChunkID string         `json:"chunk_id,omitempty"`
	Text    string         `json:"text"`
	Score   float64        `json:"score"`
	Meta    map[string]any `json:"meta"`
}

// QueryRequest is a retrieval request. A nil TopK means "use the default".
type QueryRequest struct {
	Query   string `json:"query"`
	TopK    *int   `json:"top_k,omitempty"`
	Filters Filter `json:"filters,omitempty"`
}

// IngestMode selects between the two ingestion semantics.
type IngestMode string

const (
	// ModeUpsert chunks documents and replaces any prior chunks of the same doc_id.
	ModeUpsert IngestMode = "upsert"
	// ModeAdd stores each document whole and refuses ids already in the index.
	ModeAdd IngestMode = "add"
)

// IngestSummary reports what a single ingestion request stored.
type IngestSummary struct {
	IngestedChunks int        `json:"ingested_chunks"`
	Documents      int        `json:"docs"`
	Mode           IngestMode `json:"mode"`
}

// Fields lets sanitized metadata be fed back through the sanitizer.
func (m Metadata) Fields() map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
