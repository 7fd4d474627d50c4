package vectordb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/0xcro3dile/sibila-go/internal/domain/entities"
	"github.com/0xcro3dile/sibila-go/internal/domain/ports"
)

// ChromaIndex implements ports.VectorIndex against a Chroma server's REST
// API. Embeddings are computed client side and sent with every write and
// query, so the server needs no embedding function.
type ChromaIndex struct {
	baseURL    string
	apiPath    string
	collection string
	client     *http.Client
	embedder   ports.EmbeddingService

	mu           sync.Mutex
	collectionID string
}

// Collections endpoints of the Chroma REST API. The v1 surface is
// deprecated upstream; v2 scopes collections by tenant and database.
const (
	ChromaV1APIPath = "/api/v1/collections"
	ChromaV2APIPath = "/api/v2/tenants/default_tenant/databases/default_database/collections"
)

// ChromaOption customizes a ChromaIndex.
type ChromaOption func(*ChromaIndex)

// WithAPIPath sets the collections endpoint path, e.g. ChromaV2APIPath.
func WithAPIPath(path string) ChromaOption {
	return func(c *ChromaIndex) {
		if path != "" {
			c.apiPath = "/" + strings.Trim(path, "/")
		}
	}
}

// NewChromaIndex creates a Chroma adapter. The collection is resolved
// (get-or-create) on first use.
func NewChromaIndex(baseURL, collection string, embedder ports.EmbeddingService, opts ...ChromaOption) *ChromaIndex {
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}
	if collection == "" {
		collection = "sibila"
	}
	c := &ChromaIndex{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiPath:    ChromaV1APIPath,
		collection: collection,
		client:     &http.Client{Timeout: 60 * time.Second},
		embedder:   embedder,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chromaWrite struct {
	IDs        []string         `json:"ids"`
	Documents  []string         `json:"documents"`
	Metadatas  []map[string]any `json:"metadatas"`
	Embeddings [][]float32      `json:"embeddings"`
}

type chromaQuery struct {
	QueryEmbeddings [][]float32     `json:"query_embeddings"`
	NResults        int             `json:"n_results"`
	Where           entities.Filter `json:"where,omitempty"`
	Include         []string        `json:"include"`
}

type chromaGet struct {
	IDs     []string        `json:"ids,omitempty"`
	Where   entities.Filter `json:"where,omitempty"`
	Limit   int             `json:"limit,omitempty"`
	Include []string        `json:"include"`
}

type chromaDelete struct {
	Where entities.Filter `json:"where"`
}

// Upsert inserts or replaces entries by id.
func (c *ChromaIndex) Upsert(ctx context.Context, batch ports.IndexBatch) error {
	body, err := c.writeBody(ctx, batch)
	if err != nil || body == nil {
		return err
	}
	return c.call(ctx, "upsert", body, nil)
}

// Add inserts entries. Chroma itself skips existing ids silently, so the
// ids are checked first and the batch is rejected if any already exists.
func (c *ChromaIndex) Add(ctx context.Context, batch ports.IndexBatch) error {
	if dups := duplicateIDs(batch.IDs); len(dups) > 0 {
		return fmt.Errorf("%w: %s", entities.ErrDuplicateID, strings.Join(dups, ", "))
	}
	if batch.Len() > 0 {
		var existing ports.GetResponse
		if err := c.call(ctx, "get", chromaGet{IDs: batch.IDs, Include: []string{}}, &existing); err != nil {
			return err
		}
		if len(existing.IDs) > 0 {
			return fmt.Errorf("%w: %s", entities.ErrDuplicateID, strings.Join(existing.IDs, ", "))
		}
	}

	body, err := c.writeBody(ctx, batch)
	if err != nil || body == nil {
		return err
	}
	return c.call(ctx, "add", body, nil)
}

func (c *ChromaIndex) writeBody(ctx context.Context, batch ports.IndexBatch) (*chromaWrite, error) {
	if err := validateBatch(batch); err != nil {
		return nil, err
	}
	if batch.Len() == 0 {
		return nil, nil
	}
	vectors, err := c.embedder.EmbedBatch(ctx, batch.Documents)
	if err != nil {
		return nil, fmt.Errorf("embedding documents: %w: %w", entities.ErrIndexUnavailable, err)
	}
	metas := make([]map[string]any, batch.Len())
	for i, m := range batch.Metadatas {
		metas[i] = m
	}
	return &chromaWrite{
		IDs:        batch.IDs,
		Documents:  batch.Documents,
		Metadatas:  metas,
		Embeddings: vectors,
	}, nil
}

// Query returns the n entries nearest to text among those matching filter.
func (c *ChromaIndex) Query(ctx context.Context, text string, n int, filter entities.Filter) (*ports.QueryResponse, error) {
	vector, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w: %w", entities.ErrIndexUnavailable, err)
	}
	req := chromaQuery{
		QueryEmbeddings: [][]float32{vector},
		NResults:        n,
		Where:           chromaWhere(filter),
		Include:         []string{"documents", "metadatas", "distances"},
	}
	var resp ports.QueryResponse
	if err := c.call(ctx, "query", req, &resp); err != nil {
		return nil, err
	}
	for _, row := range resp.Metadatas {
		for _, m := range row {
			fixNumbers(m)
		}
	}
	return &resp, nil
}

// Get scans up to limit entries.
func (c *ChromaIndex) Get(ctx context.Context, limit int, filter entities.Filter) (*ports.GetResponse, error) {
	req := chromaGet{
		Where:   chromaWhere(filter),
		Limit:   limit,
		Include: []string{"documents", "metadatas"},
	}
	var resp ports.GetResponse
	if err := c.call(ctx, "get", req, &resp); err != nil {
		return nil, err
	}
	for _, m := range resp.Metadatas {
		fixNumbers(m)
	}
	return &resp, nil
}

// Delete removes every entry matching filter.
func (c *ChromaIndex) Delete(ctx context.Context, filter entities.Filter) error {
	if len(filter) == 0 {
		return fmt.Errorf("%w: delete requires a filter", entities.ErrInvalidInput)
	}
	return c.call(ctx, "delete", chromaDelete{Where: chromaWhere(filter)}, nil)
}

// Close releases idle connections.
func (c *ChromaIndex) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// chromaWhere adapts a filter to Chroma's where syntax, which requires an
// explicit $and when more than one field is constrained. Empty becomes nil.
func chromaWhere(f entities.Filter) entities.Filter {
	if len(f) == 0 {
		return nil
	}
	if len(f) == 1 {
		return f
	}
	clauses := make([]any, 0, len(f))
	for k, v := range f {
		clauses = append(clauses, map[string]any{k: v})
	}
	return entities.Filter{opAnd: clauses}
}

// resolveCollection gets or creates the collection and caches its id.
func (c *ChromaIndex) resolveCollection(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.collectionID != "" {
		return c.collectionID, nil
	}

	var out struct {
		ID string `json:"id"`
	}
	body := map[string]any{"name": c.collection, "get_or_create": true}
	if err := c.postJSON(ctx, c.baseURL+c.apiPath, body, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("%w: chroma returned no collection id", entities.ErrIndexUnavailable)
	}
	c.collectionID = out.ID
	return out.ID, nil
}

func (c *ChromaIndex) call(ctx context.Context, op string, body, out any) error {
	id, err := c.resolveCollection(ctx)
	if err != nil {
		return err
	}
	return c.postJSON(ctx, fmt.Sprintf("%s%s/%s/%s", c.baseURL, c.apiPath, url.PathEscape(id), op), body, out)
}

func (c *ChromaIndex) postJSON(ctx context.Context, endpoint string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding chroma request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("chroma POST %s: %w: %w", endpoint, entities.ErrIndexUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: chroma POST %s failed: %s: %s", entities.ErrIndexUnavailable, endpoint, resp.Status, bytes.TrimSpace(msg))
	}
	if out == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decoding chroma response: %w: %w", entities.ErrIndexUnavailable, err)
	}
	return nil
}
