package vectordb

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/0xcro3dile/sibila-go/internal/domain/entities"
	"github.com/0xcro3dile/sibila-go/internal/domain/ports"
)

// MemoryIndex is an in-process vector index. Nothing survives a restart;
// it backs tests and the "memory" index type.
// Open-Closed: Can be replaced with SQLiteIndex without changing usecases.
type MemoryIndex struct {
	mu       sync.RWMutex
	embedder ports.EmbeddingService
	entries  map[string]memoryEntry
	order    []string // insertion order, for Get and tie-breaking
}

type memoryEntry struct {
	document string
	meta     map[string]any
	vector   []float32
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex(embedder ports.EmbeddingService) *MemoryIndex {
	return &MemoryIndex{
		embedder: embedder,
		entries:  make(map[string]memoryEntry),
	}
}

// Upsert inserts or replaces entries by id.
func (s *MemoryIndex) Upsert(ctx context.Context, batch ports.IndexBatch) error {
	if err := validateBatch(batch); err != nil {
		return err
	}
	vectors, err := s.embed(ctx, batch.Documents)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(batch, vectors)
	return nil
}

// Add inserts entries, rejecting the whole batch if any id is already stored.
func (s *MemoryIndex) Add(ctx context.Context, batch ports.IndexBatch) error {
	if err := validateBatch(batch); err != nil {
		return err
	}
	if dups := duplicateIDs(batch.IDs); len(dups) > 0 {
		return fmt.Errorf("%w: %s", entities.ErrDuplicateID, strings.Join(dups, ", "))
	}
	vectors, err := s.embed(ctx, batch.Documents)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var existing []string
	for _, id := range batch.IDs {
		if _, ok := s.entries[id]; ok {
			existing = append(existing, id)
		}
	}
	if len(existing) > 0 {
		return fmt.Errorf("%w: %s", entities.ErrDuplicateID, strings.Join(existing, ", "))
	}
	s.put(batch, vectors)
	return nil
}

func (s *MemoryIndex) put(batch ports.IndexBatch, vectors [][]float32) {
	for i, id := range batch.IDs {
		if _, ok := s.entries[id]; !ok {
			s.order = append(s.order, id)
		}
		s.entries[id] = memoryEntry{
			document: batch.Documents[i],
			meta:     cloneMeta(batch.Metadatas[i]),
			vector:   vectors[i],
		}
	}
}

// Query returns the n entries nearest to text among those matching filter.
func (s *MemoryIndex) Query(ctx context.Context, text string, n int, filter entities.Filter) (*ports.QueryResponse, error) {
	if err := ValidateFilter(filter); err != nil {
		return nil, err
	}
	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w: %w", entities.ErrIndexUnavailable, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	cands := make([]candidate, 0, len(s.order))
	for _, id := range s.order {
		e := s.entries[id]
		if ok, _ := Match(e.meta, filter); !ok {
			continue
		}
		cands = append(cands, candidate{
			id:       id,
			document: e.document,
			meta:     cloneMeta(e.meta),
			distance: cosineDistance(vector, e.vector),
		})
	}
	return rank(cands, n), nil
}

// Get scans up to limit entries in insertion order. A non-positive limit scans everything.
func (s *MemoryIndex) Get(ctx context.Context, limit int, filter entities.Filter) (*ports.GetResponse, error) {
	if err := ValidateFilter(filter); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	resp := &ports.GetResponse{}
	for _, id := range s.order {
		if limit > 0 && len(resp.IDs) >= limit {
			break
		}
		e := s.entries[id]
		if ok, _ := Match(e.meta, filter); !ok {
			continue
		}
		resp.IDs = append(resp.IDs, id)
		resp.Documents = append(resp.Documents, e.document)
		resp.Metadatas = append(resp.Metadatas, cloneMeta(e.meta))
	}
	return resp, nil
}

// Delete removes every entry matching filter.
func (s *MemoryIndex) Delete(ctx context.Context, filter entities.Filter) error {
	if err := requireDeleteFilter(filter); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.order[:0]
	for _, id := range s.order {
		if ok, _ := Match(s.entries[id].meta, filter); ok {
			delete(s.entries, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return nil
}

// Count returns the number of stored entries.
func (s *MemoryIndex) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close is a no-op.
func (s *MemoryIndex) Close() error { return nil }

func (s *MemoryIndex) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding documents: %w: %w", entities.ErrIndexUnavailable, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: embedder returned %d vectors for %d texts", entities.ErrIndexUnavailable, len(vectors), len(texts))
	}
	return vectors, nil
}
