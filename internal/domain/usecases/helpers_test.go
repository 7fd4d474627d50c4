package usecases

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/0xcro3dile/sibila-go/internal/adapters/embedding"
	"github.com/0xcro3dile/sibila-go/internal/adapters/vectordb"
	"github.com/0xcro3dile/sibila-go/internal/domain/entities"
	"github.com/0xcro3dile/sibila-go/internal/domain/ports"
)

func jsonNumber(s string) json.Number { return json.Number(s) }

func newMemoryIndex() *vectordb.MemoryIndex {
	return vectordb.NewMemoryIndex(embedding.NewHashingEmbedder(256))
}

// mockIndex implements ports.VectorIndex with canned responses and
// records what it was asked.
type mockIndex struct {
	queryResp *ports.QueryResponse
	getResp   *ports.GetResponse
	err       error

	lastN      int
	lastFilter entities.Filter
	lastLimit  int
	deletes    []entities.Filter
}

func (m *mockIndex) Upsert(ctx context.Context, batch ports.IndexBatch) error { return m.err }
func (m *mockIndex) Add(ctx context.Context, batch ports.IndexBatch) error    { return m.err }

func (m *mockIndex) Query(ctx context.Context, text string, n int, filter entities.Filter) (*ports.QueryResponse, error) {
	m.lastN = n
	m.lastFilter = filter
	if m.err != nil {
		return nil, m.err
	}
	return m.queryResp, nil
}

func (m *mockIndex) Get(ctx context.Context, limit int, filter entities.Filter) (*ports.GetResponse, error) {
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	return m.getResp, nil
}

func (m *mockIndex) Delete(ctx context.Context, filter entities.Filter) error {
	m.deletes = append(m.deletes, filter)
	return m.err
}

func (m *mockIndex) Close() error { return nil }

// countingIndex wraps a MemoryIndex, counts Delete calls and can fail them.
type countingIndex struct {
	*vectordb.MemoryIndex
	deleteErr error
	deletes   []entities.Filter
}

func newCountingIndex() *countingIndex {
	return &countingIndex{MemoryIndex: newMemoryIndex()}
}

func (c *countingIndex) Delete(ctx context.Context, filter entities.Filter) error {
	c.deletes = append(c.deletes, filter)
	if c.deleteErr != nil {
		return c.deleteErr
	}
	return c.MemoryIndex.Delete(ctx, filter)
}

// recordingLogger keeps every entry for assertions.
type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

type logEntry struct {
	level, module, message string
	details                map[string]interface{}
}

func (l *recordingLogger) add(level, module, message string, details map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level, module, message, details})
}

func (l *recordingLogger) Debug(m, msg string, d map[string]interface{}) { l.add("debug", m, msg, d) }
func (l *recordingLogger) Info(m, msg string, d map[string]interface{})  { l.add("info", m, msg, d) }
func (l *recordingLogger) Warn(m, msg string, d map[string]interface{})  { l.add("warn", m, msg, d) }
func (l *recordingLogger) Error(m, msg string, d map[string]interface{}) { l.add("error", m, msg, d) }

func (l *recordingLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.level == level {
			n++
		}
	}
	return n
}
