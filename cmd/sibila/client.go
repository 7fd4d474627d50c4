package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/0xcro3dile/sibila-go/internal/domain/entities"
)

// ingestClient posts documents to a running server's ingest endpoints.
type ingestClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func newIngestClient(baseURL, token string) *ingestClient {
	return &ingestClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// Ingest sends docs as a bare list first and, if the server rejects it,
// once more wrapped as {"items": [...]}.
func (c *ingestClient) Ingest(ctx context.Context, docs []entities.Document, mode entities.IngestMode) (*entities.IngestSummary, error) {
	path := "/ingest"
	if mode == entities.ModeAdd {
		path = "/ingest/documents"
	}

	items := make([]map[string]any, len(docs))
	for i, d := range docs {
		items[i] = map[string]any{"doc_id": d.ID, "text": d.Text, "meta": d.Meta}
	}

	status, body, err := c.post(ctx, path, items)
	if err != nil {
		return nil, err
	}
	if status >= 400 && status != http.StatusConflict {
		status, body, err = c.post(ctx, path, map[string]any{"items": items})
		if err != nil {
			return nil, err
		}
	}

	var resp struct {
		OK    bool                    `json:"ok"`
		Data  *entities.IngestSummary `json:"data"`
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("POST %s: status %d: %s", path, status, truncate(body, 300))
	}
	if status >= 400 || !resp.OK || resp.Data == nil {
		msg := truncate(body, 300)
		if resp.Error != nil {
			msg = resp.Error.Message
		}
		return nil, fmt.Errorf("POST %s: status %d: %s", path, status, msg)
	}
	return resp.Data, nil
}

func (c *ingestClient) post(ctx context.Context, path string, payload any) (int, []byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func truncate(b []byte, n int) string {
	s := string(b)
	if len(s) > n {
		return s[:n]
	}
	return s
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
