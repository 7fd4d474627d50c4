package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/sibila-go/internal/adapters/blobstore"
	"github.com/0xcro3dile/sibila-go/internal/adapters/embedding"
	"github.com/0xcro3dile/sibila-go/internal/adapters/vectordb"
	"github.com/0xcro3dile/sibila-go/internal/domain/entities"
	"github.com/0xcro3dile/sibila-go/internal/domain/ports"
	"github.com/0xcro3dile/sibila-go/internal/domain/usecases"
	"github.com/0xcro3dile/sibila-go/internal/infrastructure/logger"
)

type stubExtractor struct{ text string }

func (s stubExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	return s.text, nil
}

// downIndex fails every call the way an unreachable index would.
type downIndex struct{}

var errDown = errors.New("dial tcp: connection refused")

func (downIndex) Upsert(context.Context, ports.IndexBatch) error { return errDown }
func (downIndex) Add(context.Context, ports.IndexBatch) error    { return errDown }
func (downIndex) Query(context.Context, string, int, entities.Filter) (*ports.QueryResponse, error) {
	return nil, errDown
}
func (downIndex) Get(context.Context, int, entities.Filter) (*ports.GetResponse, error) {
	return nil, errDown
}
func (downIndex) Delete(context.Context, entities.Filter) error { return errDown }
func (downIndex) Close() error                                  { return nil }

func newTestServer(t *testing.T, index ports.VectorIndex) *Server {
	t.Helper()
	if index == nil {
		index = vectordb.NewMemoryIndex(embedding.NewHashingEmbedder(256))
	}
	store, err := blobstore.NewFSStore(t.TempDir())
	require.NoError(t, err)

	log := logger.NewNop()
	ingest := usecases.NewIngestUseCase(index, nil, log)
	return NewServer(
		ingest,
		usecases.NewQueryUseCase(index, 5, log),
		usecases.NewCatalogUseCase(index, 0),
		usecases.NewLibraryUseCase(store, stubExtractor{text: "texto extraído del pdf"}, ingest, log),
		log,
		Options{DataDir: store.Dir()},
	)
}

type response struct {
	status int
	header http.Header
	body   envelope
	data   map[string]any
}

func do(t *testing.T, s *Server, req *http.Request) response {
	t.Helper()
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := response{status: resp.StatusCode, header: resp.Header}
	require.NoError(t, json.Unmarshal(raw, &out.body), "body: %s", raw)
	if m, ok := out.body.Data.(map[string]any); ok {
		out.data = m
	}
	return out
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	resp := do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, resp.status)
	assert.True(t, resp.body.OK)
	assert.NotEmpty(t, resp.header.Get(requestIDHeader))
}

func TestRequestIDPropagated(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	resp := do(t, s, req)
	assert.Equal(t, "abc-123", resp.header.Get(requestIDHeader))
}

func TestIngestAndQuery(t *testing.T) {
	s := newTestServer(t, nil)

	resp := do(t, s, jsonRequest(http.MethodPost, "/ingest", `[
		{"doc_id":"pen-1","text":"robo con violencia en vivienda","meta":{"category":"penal","case_id":"PEN-0001"}},
		{"doc_id":"civ-1","text":"contrato de arrendamiento de vivienda","meta":{"category":"civil"}}
	]`))
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, float64(2), resp.data["ingested_chunks"])
	assert.Equal(t, float64(2), resp.data["docs"])
	assert.Equal(t, "upsert", resp.data["mode"])

	resp = do(t, s, jsonRequest(http.MethodPost, "/query", `{"query":"vivienda","top_k":5,"filters":{"category":"penal"}}`))
	require.Equal(t, http.StatusOK, resp.status)
	results := resp.data["results"].([]any)
	require.Len(t, results, 1)
	first := results[0].(map[string]any)
	assert.Equal(t, "pen-1", first["doc_id"])
	assert.Equal(t, "pen-1__0", first["chunk_id"])
	assert.Equal(t, "penal", first["meta"].(map[string]any)["category"])

	resp = do(t, s, httptest.NewRequest(http.MethodGet, "/categories", nil))
	assert.Equal(t, []any{"civil", "penal"}, resp.data["categories"])

	resp = do(t, s, httptest.NewRequest(http.MethodGet, "/cases", nil))
	assert.Equal(t, []any{"PEN-0001"}, resp.data["cases"])

	resp = do(t, s, httptest.NewRequest(http.MethodDelete, "/index/pen-1", nil))
	require.Equal(t, http.StatusOK, resp.status)
	resp = do(t, s, httptest.NewRequest(http.MethodGet, "/cases", nil))
	assert.Empty(t, resp.data["cases"])
}

func TestDeleteIndexedEscapedID(t *testing.T) {
	s := newTestServer(t, nil)

	resp := do(t, s, jsonRequest(http.MethodPost, "/ingest", `[
		{"doc_id":"sts 12/2020","text":"recurso de casación estimado","meta":{"category":"penal"}},
		{"doc_id":"sts 13/2020","text":"recurso de casación desestimado","meta":{"category":"civil"}}
	]`))
	require.Equal(t, http.StatusOK, resp.status)

	resp = do(t, s, httptest.NewRequest(http.MethodDelete, "/index/sts%2012%2F2020", nil))
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, "sts 12/2020", resp.data["deleted"])

	resp = do(t, s, httptest.NewRequest(http.MethodGet, "/categories", nil))
	assert.Equal(t, []any{"civil"}, resp.data["categories"])
}

func TestIngestWrappedBody(t *testing.T) {
	s := newTestServer(t, nil)
	resp := do(t, s, jsonRequest(http.MethodPost, "/ingest", `{"items":[{"doc_id":"a","text":"uno"}]}`))
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, float64(1), resp.data["ingested_chunks"])
}

func TestIngestDocumentsDuplicate(t *testing.T) {
	s := newTestServer(t, nil)
	body := `[{"doc_id":"a","text":"documento completo"}]`

	resp := do(t, s, jsonRequest(http.MethodPost, "/ingest/documents", body))
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, "add", resp.data["mode"])

	resp = do(t, s, jsonRequest(http.MethodPost, "/ingest/documents", body))
	assert.Equal(t, http.StatusConflict, resp.status)
	assert.False(t, resp.body.OK)
	assert.Equal(t, "duplicate_id", resp.body.Error.Code)
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t, nil)
	tests := []struct {
		name   string
		req    *http.Request
		status int
		code   string
	}{
		{"blank documents", jsonRequest(http.MethodPost, "/ingest", `[{"doc_id":"a","text":"  "}]`), 400, "empty_input"},
		{"missing doc id", jsonRequest(http.MethodPost, "/ingest", `[{"text":"x"}]`), 400, "invalid_input"},
		{"malformed body", jsonRequest(http.MethodPost, "/ingest", `{"items":`), 400, "invalid_input"},
		{"blank query", jsonRequest(http.MethodPost, "/query", `{"query":" "}`), 400, "invalid_input"},
		{"bad filter", jsonRequest(http.MethodPost, "/query", `{"query":"x","filters":{"category":{"$regex":"p"}}}`), 400, "unsupported_filter"},
		{"missing doc", httptest.NewRequest(http.MethodGet, "/docs/none.txt", nil), 404, "not_found"},
		{"unknown route", httptest.NewRequest(http.MethodGet, "/nope", nil), 404, "http_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, s, tt.req)
			assert.Equal(t, tt.status, resp.status)
			require.NotNil(t, resp.body.Error)
			assert.Equal(t, tt.code, resp.body.Error.Code)
		})
	}
}

func TestIndexUnavailable(t *testing.T) {
	s := newTestServer(t, downIndex{})

	resp := do(t, s, jsonRequest(http.MethodPost, "/query", `{"query":"x"}`))
	assert.Equal(t, http.StatusServiceUnavailable, resp.status)
	assert.Equal(t, "index_unavailable", resp.body.Error.Code)

	resp = do(t, s, httptest.NewRequest(http.MethodGet, "/categories", nil))
	assert.Equal(t, http.StatusServiceUnavailable, resp.status)
}

func multipartUpload(t *testing.T, files map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := w.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestStoredDocuments(t *testing.T) {
	s := newTestServer(t, nil)

	resp := do(t, s, multipartUpload(t, map[string]string{
		"sts-1.pdf":       "%PDF-1.4",
		"sts-1.meta.json": `{"category":"penal"}`,
		"nota.txt":        "una nota",
	}))
	require.Equal(t, http.StatusCreated, resp.status)
	assert.Len(t, resp.data["saved"], 3)

	resp = do(t, s, httptest.NewRequest(http.MethodGet, "/docs", nil))
	assert.Equal(t, []any{"nota.txt", "sts-1.meta.json", "sts-1.pdf"}, resp.data["files"])

	resp = do(t, s, httptest.NewRequest(http.MethodGet, "/docs/sts-1.pdf", nil))
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, "sts-1", resp.data["doc_id"])
	assert.Equal(t, "texto extraído del pdf", resp.data["text"])

	resp = do(t, s, jsonRequest(http.MethodPost, "/ingest/stored", `{"names":["sts-1.pdf"]}`))
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, float64(1), resp.data["ingested_chunks"])

	resp = do(t, s, httptest.NewRequest(http.MethodGet, "/categories", nil))
	assert.Equal(t, []any{"penal"}, resp.data["categories"])

	resp = do(t, s, jsonRequest(http.MethodPost, "/ingest/stored", ``))
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, float64(2), resp.data["docs"])

	resp = do(t, s, httptest.NewRequest(http.MethodDelete, "/docs/sts-1.pdf", nil))
	require.Equal(t, http.StatusOK, resp.status)

	// Deleting the raw file leaves its chunks searchable.
	resp = do(t, s, jsonRequest(http.MethodPost, "/query", `{"query":"texto","filters":{"doc_id":"sts-1"}}`))
	assert.Len(t, resp.data["results"], 1)
}

func TestUploadRequiresMultipart(t *testing.T) {
	s := newTestServer(t, nil)
	resp := do(t, s, jsonRequest(http.MethodPost, "/upload", `{}`))
	assert.Equal(t, http.StatusBadRequest, resp.status)
}
