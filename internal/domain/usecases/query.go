// Package usecases - query.go plans retrieval requests and assembles results.
package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/0xcro3dile/sibila-go/internal/domain/entities"
	"github.com/0xcro3dile/sibila-go/internal/domain/ports"
)

// Result-set bounds applied to every query.
const (
	DefaultTopK = 5
	MinTopK     = 1
	MaxTopK     = 20
)

// QueryUseCase turns a QueryRequest into one index query and zips the
// index's parallel arrays into Results.
type QueryUseCase struct {
	index       ports.VectorIndex
	defaultTopK int
	log         ports.Logger
}

// NewQueryUseCase creates a QueryUseCase with injected dependencies.
func NewQueryUseCase(index ports.VectorIndex, defaultTopK int, log ports.Logger) *QueryUseCase {
	if defaultTopK <= 0 {
		defaultTopK = DefaultTopK
	}
	if log == nil {
		log = ports.NopLogger{}
	}
	return &QueryUseCase{
		index:       index,
		defaultTopK: ClampTopK(defaultTopK),
		log:         log,
	}
}

// ClampTopK bounds n to [MinTopK, MaxTopK].
func ClampTopK(n int) int {
	if n < MinTopK {
		return MinTopK
	}
	if n > MaxTopK {
		return MaxTopK
	}
	return n
}

// Query searches the index. An empty filter map is sent as no filter.
func (uc *QueryUseCase) Query(ctx context.Context, req entities.QueryRequest) ([]entities.Result, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("%w: query text is required", entities.ErrInvalidInput)
	}

	n := uc.defaultTopK
	if req.TopK != nil {
		n = ClampTopK(*req.TopK)
	}

	var filter entities.Filter
	if len(req.Filters) > 0 {
		filter = req.Filters
	}

	resp, err := uc.index.Query(ctx, req.Query, n, filter)
	if err != nil {
		return nil, indexError("querying index", err)
	}

	results := assemble(resp)
	uc.log.Debug("query", "query served", map[string]interface{}{
		"top_k":    n,
		"filtered": filter != nil,
		"results":  len(results),
	})
	return results, nil
}

// assemble zips row 0 of the response positionally. The documents row
// drives the length; shorter sibling rows yield zero values.
func assemble(resp *ports.QueryResponse) []entities.Result {
	if resp == nil || len(resp.Documents) == 0 {
		return []entities.Result{}
	}
	docs := resp.Documents[0]
	ids := firstRow(resp.IDs)
	metas := firstRow(resp.Metadatas)
	scores := firstRow(resp.Distances)
	if len(scores) == 0 {
		scores = firstRow(resp.Scores)
	}

	results := make([]entities.Result, len(docs))
	for i, text := range docs {
		meta := map[string]any{}
		if i < len(metas) && metas[i] != nil {
			meta = metas[i]
		}
		r := entities.Result{
			Text: text,
			Meta: meta,
		}
		if id, ok := meta[entities.MetaDocID].(string); ok {
			r.DocID = id
		}
		if i < len(ids) {
			r.ChunkID = ids[i]
		}
		if i < len(scores) {
			r.Score = toScore(scores[i])
		}
		results[i] = r
	}
	return results
}

func firstRow[T any](rows [][]T) []T {
	if len(rows) == 0 {
		return nil
	}
	return rows[0]
}

// toScore coerces a numeric index score to float64. Strings, bools and
// anything else non-numeric become 0.0.
func toScore(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
	}
	return 0.0
}
