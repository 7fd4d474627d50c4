package vectordb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mattn/go-sqlite3"

	"github.com/0xcro3dile/sibila-go/internal/domain/entities"
	"github.com/0xcro3dile/sibila-go/internal/domain/ports"
)

// SQLiteIndex implements ports.VectorIndex with SQLite persistence.
// Embeddings are stored as JSON and ranked by brute-force cosine distance,
// which is fine for a single-node legal corpus.
type SQLiteIndex struct {
	mu       sync.RWMutex
	db       *sql.DB
	embedder ports.EmbeddingService
}

// NewSQLiteIndex opens (or creates) the index database at path.
func NewSQLiteIndex(path string, embedder ports.EmbeddingService) (*SQLiteIndex, error) {
	if path == "" {
		path = filepath.Join(".", "index", "sibila.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// a single connection serializes writers and avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	idx := &SQLiteIndex{db: db, embedder: embedder}
	if err := idx.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return idx, nil
}

// initSchema creates the necessary tables. seq preserves insertion order
// across upserts.
func (s *SQLiteIndex) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		document TEXT NOT NULL,
		metadata TEXT NOT NULL,
		embedding BLOB NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Upsert inserts or replaces entries by id.
func (s *SQLiteIndex) Upsert(ctx context.Context, batch ports.IndexBatch) error {
	return s.write(ctx, batch, `
		INSERT INTO chunks (id, document, metadata, embedding)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document = excluded.document,
			metadata = excluded.metadata,
			embedding = excluded.embedding
	`)
}

// Add inserts entries in one transaction; an existing id aborts the batch
// with entities.ErrDuplicateID.
func (s *SQLiteIndex) Add(ctx context.Context, batch ports.IndexBatch) error {
	if dups := duplicateIDs(batch.IDs); len(dups) > 0 {
		return fmt.Errorf("%w: %s", entities.ErrDuplicateID, strings.Join(dups, ", "))
	}
	return s.write(ctx, batch, `
		INSERT INTO chunks (id, document, metadata, embedding)
		VALUES (?, ?, ?, ?)
	`)
}

func (s *SQLiteIndex) write(ctx context.Context, batch ports.IndexBatch, query string) error {
	if err := validateBatch(batch); err != nil {
		return err
	}
	if batch.Len() == 0 {
		return nil
	}
	vectors, err := s.embedder.EmbedBatch(ctx, batch.Documents)
	if err != nil {
		return fmt.Errorf("embedding documents: %w: %w", entities.ErrIndexUnavailable, err)
	}
	if len(vectors) != batch.Len() {
		return fmt.Errorf("%w: embedder returned %d vectors for %d texts", entities.ErrIndexUnavailable, len(vectors), batch.Len())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w: %w", entities.ErrIndexUnavailable, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing statement: %w: %w", entities.ErrIndexUnavailable, err)
	}
	defer stmt.Close()

	for i, id := range batch.IDs {
		meta, err := encodeMeta(batch.Metadatas[i])
		if err != nil {
			return err
		}
		embeddingJSON, err := json.Marshal(vectors[i])
		if err != nil {
			return fmt.Errorf("encoding embedding: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, id, batch.Documents[i], string(meta), embeddingJSON); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s", entities.ErrDuplicateID, id)
			}
			return fmt.Errorf("inserting chunk %s: %w: %w", id, entities.ErrIndexUnavailable, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w: %w", entities.ErrIndexUnavailable, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

type sqliteRow struct {
	id       string
	document string
	meta     map[string]any
	vector   []float32
}

// scan loads every row matching filter in storage order and hands it to fn
// until fn returns false. Filters are evaluated in Go against the decoded
// metadata.
func (s *SQLiteIndex) scan(ctx context.Context, withVectors bool, filter entities.Filter, fn func(sqliteRow) bool) error {
	cols := "id, document, metadata, ''"
	if withVectors {
		cols = "id, document, metadata, embedding"
	}
	rows, err := s.db.QueryContext(ctx, "SELECT "+cols+" FROM chunks ORDER BY seq")
	if err != nil {
		return fmt.Errorf("querying chunks: %w: %w", entities.ErrIndexUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r             sqliteRow
			metaJSON      string
			embeddingJSON []byte
		)
		if err := rows.Scan(&r.id, &r.document, &metaJSON, &embeddingJSON); err != nil {
			return fmt.Errorf("scanning row: %w: %w", entities.ErrIndexUnavailable, err)
		}
		if r.meta, err = decodeMeta([]byte(metaJSON)); err != nil {
			continue // Skip corrupted metadata
		}
		if ok, _ := Match(r.meta, filter); !ok {
			continue
		}
		if withVectors {
			if err := json.Unmarshal(embeddingJSON, &r.vector); err != nil {
				continue // Skip corrupted embeddings
			}
		}
		if !fn(r) {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating chunks: %w: %w", entities.ErrIndexUnavailable, err)
	}
	return nil
}

// Query finds the n entries nearest to text among those matching filter.
func (s *SQLiteIndex) Query(ctx context.Context, text string, n int, filter entities.Filter) (*ports.QueryResponse, error) {
	if err := ValidateFilter(filter); err != nil {
		return nil, err
	}
	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w: %w", entities.ErrIndexUnavailable, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var cands []candidate
	err = s.scan(ctx, true, filter, func(r sqliteRow) bool {
		cands = append(cands, candidate{
			id:       r.id,
			document: r.document,
			meta:     r.meta,
			distance: cosineDistance(vector, r.vector),
		})
		return true
	})
	if err != nil {
		return nil, err
	}
	return rank(cands, n), nil
}

// Get scans up to limit entries in insertion order. A non-positive limit scans everything.
func (s *SQLiteIndex) Get(ctx context.Context, limit int, filter entities.Filter) (*ports.GetResponse, error) {
	if err := ValidateFilter(filter); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	resp := &ports.GetResponse{}
	err := s.scan(ctx, false, filter, func(r sqliteRow) bool {
		resp.IDs = append(resp.IDs, r.id)
		resp.Documents = append(resp.Documents, r.document)
		resp.Metadatas = append(resp.Metadatas, r.meta)
		return limit <= 0 || len(resp.IDs) < limit
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Delete removes every entry matching filter.
func (s *SQLiteIndex) Delete(ctx context.Context, filter entities.Filter) error {
	if err := requireDeleteFilter(filter); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	err := s.scan(ctx, false, filter, func(r sqliteRow) bool {
		ids = append(ids, r.id)
		return true
	})
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w: %w", entities.ErrIndexUnavailable, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "DELETE FROM chunks WHERE id = ?")
	if err != nil {
		return fmt.Errorf("preparing statement: %w: %w", entities.ErrIndexUnavailable, err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("deleting chunk %s: %w: %w", id, entities.ErrIndexUnavailable, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w: %w", entities.ErrIndexUnavailable, err)
	}
	return nil
}

// Count returns the number of stored chunks.
func (s *SQLiteIndex) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}
