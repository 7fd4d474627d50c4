// Package vectordb provides vector index adapters.
// Clean Architecture: Adapters implementing ports.VectorIndex.
// MemoryIndex and SQLiteIndex embed text themselves and rank by cosine
// distance in process; PGVectorIndex ranks inside Postgres; ChromaIndex
// delegates everything to a remote Chroma server.
package vectordb

import (
	"fmt"
	"math"
	"sort"

	"github.com/0xcro3dile/sibila-go/internal/domain/entities"
	"github.com/0xcro3dile/sibila-go/internal/domain/ports"
)

// validateBatch checks the parallel arrays of a write request.
func validateBatch(b ports.IndexBatch) error {
	if len(b.Documents) != len(b.IDs) || len(b.Metadatas) != len(b.IDs) {
		return fmt.Errorf("%w: batch arrays differ in length (ids=%d documents=%d metadatas=%d)",
			entities.ErrInvalidInput, len(b.IDs), len(b.Documents), len(b.Metadatas))
	}
	for _, id := range b.IDs {
		if id == "" {
			return fmt.Errorf("%w: empty id in batch", entities.ErrInvalidInput)
		}
	}
	return nil
}

// duplicateIDs returns the ids repeated inside the batch.
func duplicateIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	var dups []string
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			dups = append(dups, id)
			continue
		}
		seen[id] = struct{}{}
	}
	return dups
}

// requireDeleteFilter rejects the nil filter so a bad call cannot wipe the index.
func requireDeleteFilter(f entities.Filter) error {
	if len(f) == 0 {
		return fmt.Errorf("%w: delete requires a filter", entities.ErrInvalidInput)
	}
	return ValidateFilter(f)
}

// cosineSimilarity calculates cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// cosineDistance is 1 - cosine similarity: 0 for identical directions.
func cosineDistance(a, b []float32) float64 {
	return 1 - cosineSimilarity(a, b)
}

// candidate is one stored entry considered for a query.
type candidate struct {
	id       string
	document string
	meta     map[string]any
	distance float64
}

// rank sorts candidates by ascending distance (stable, so storage order
// breaks ties) and packs the best n into a single-row QueryResponse.
func rank(cands []candidate, n int) *ports.QueryResponse {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].distance < cands[j].distance
	})
	if n >= 0 && len(cands) > n {
		cands = cands[:n]
	}

	ids := make([]string, len(cands))
	docs := make([]string, len(cands))
	metas := make([]map[string]any, len(cands))
	dists := make([]any, len(cands))
	for i, c := range cands {
		ids[i] = c.id
		docs[i] = c.document
		metas[i] = c.meta
		dists[i] = c.distance
	}
	return &ports.QueryResponse{
		IDs:       [][]string{ids},
		Documents: [][]string{docs},
		Metadatas: [][]map[string]any{metas},
		Distances: [][]any{dists},
	}
}

func cloneMeta(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
