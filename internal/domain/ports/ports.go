// Package ports defines interfaces for external dependencies.
// Clean Architecture: These are the boundaries - usecases depend on these abstractions,
// not concrete implementations. Adapters implement these interfaces.
package ports

import (
	"context"

	"github.com/0xcro3dile/sibila-go/internal/domain/entities"
)

// IndexBatch is a write request in parallel-array form: IDs[i], Documents[i]
// and Metadatas[i] describe the same stored chunk.
type IndexBatch struct {
	IDs       []string
	Documents []string
	Metadatas []entities.Metadata
}

// Len returns the number of entries in the batch.
func (b IndexBatch) Len() int { return len(b.IDs) }

// Append adds one chunk as the next row of the batch.
func (b *IndexBatch) Append(c entities.Chunk) {
	b.IDs = append(b.IDs, c.ID)
	b.Documents = append(b.Documents, c.Text)
	b.Metadatas = append(b.Metadatas, c.Metadata)
}

// QueryResponse mirrors the index's per-query nested arrays. The pipeline
// issues one query text at a time, so only row 0 is ever populated.
// Distances is the canonical score field; Scores is the alternate field some
// index responses carry instead. Score entries stay untyped because the
// index may return non-numeric values.
type QueryResponse struct {
	IDs       [][]string         `json:"ids"`
	Documents [][]string         `json:"documents"`
	Metadatas [][]map[string]any `json:"metadatas"`
	Distances [][]any            `json:"distances"`
	Scores    [][]any            `json:"scores,omitempty"`
}

// GetResponse is the result of a metadata scan.
type GetResponse struct {
	IDs       []string         `json:"ids"`
	Documents []string         `json:"documents"`
	Metadatas []map[string]any `json:"metadatas"`
}

// VectorIndex stores chunk text with metadata and serves similarity search.
// It is opened once per process and shared by every request.
type VectorIndex interface {
	// Upsert inserts or replaces entries by id.
	Upsert(ctx context.Context, batch IndexBatch) error
	// Add inserts entries; if any id already exists the whole batch is
	// rejected with entities.ErrDuplicateID.
	Add(ctx context.Context, batch IndexBatch) error
	// Query returns up to n entries nearest to text that satisfy filter (nil: no filter).
	Query(ctx context.Context, text string, n int, filter entities.Filter) (*QueryResponse, error)
	// Get scans up to limit entries in storage order.
	Get(ctx context.Context, limit int, filter entities.Filter) (*GetResponse, error)
	// Delete removes every entry matching filter. A nil filter is rejected.
	Delete(ctx context.Context, filter entities.Filter) error
	// Close releases the index handle.
	Close() error
}

// EmbeddingService generates vector embeddings for text.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch generates embeddings for multiple texts efficiently.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// BlobStore keeps raw uploaded files by name.
type BlobStore interface {
	Save(ctx context.Context, name string, data []byte) error
	List(ctx context.Context) ([]string, error)
	// Read returns entities.ErrMissingResource when name is absent.
	Read(ctx context.Context, name string) ([]byte, error)
	// Delete returns entities.ErrMissingResource when name is absent.
	Delete(ctx context.Context, name string) error
}

// TextExtractor pulls plain text out of binary documents (PDF).
// Extraction is best effort; callers degrade failures to empty text.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// DocumentLoader reads a document and its sidecar metadata from a path.
type DocumentLoader interface {
	// Load reads a document from the given path.
	Load(ctx context.Context, path string) (*entities.Document, error)
	// SupportedExtensions returns file extensions this loader handles.
	SupportedExtensions() []string
}

// FileWatcher monitors a directory for changes.
type FileWatcher interface {
	// Watch starts monitoring the directory and emits events.
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)
	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)

// Logger is the structured logger the use cases write to.
// module names the emitting component; details are attached as fields.
type Logger interface {
	Debug(module, message string, details map[string]interface{})
	Info(module, message string, details map[string]interface{})
	Warn(module, message string, details map[string]interface{})
	Error(module, message string, details map[string]interface{})
}

// NopLogger discards every entry. Constructors fall back to it when given
// a nil Logger.
type NopLogger struct{}

func (NopLogger) Debug(string, string, map[string]interface{}) {}
func (NopLogger) Info(string, string, map[string]interface{})  {}
func (NopLogger) Warn(string, string, map[string]interface{})  {}
func (NopLogger) Error(string, string, map[string]interface{}) {}
