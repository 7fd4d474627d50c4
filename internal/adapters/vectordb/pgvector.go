package vectordb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/0xcro3dile/sibila-go/internal/domain/entities"
	"github.com/0xcro3dile/sibila-go/internal/domain/ports"
)

// pgChunk is the Postgres row of one stored chunk.
type pgChunk struct {
	Seq       int64           `gorm:"primaryKey;autoIncrement"`
	ChunkID   string          `gorm:"type:text;not null;uniqueIndex"`
	Document  string          `gorm:"type:text;not null"`
	Metadata  datatypes.JSON  `gorm:"type:jsonb;not null"`
	Embedding pgvector.Vector `gorm:"type:vector;not null"`
	CreatedAt time.Time       `gorm:"autoCreateTime"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime"`
}

func (pgChunk) TableName() string {
	return "sibila_chunks"
}

// PGVectorIndex implements ports.VectorIndex on Postgres with the pgvector
// extension. Ranking uses the cosine distance operator (<=>) and filters
// are translated to jsonb predicates.
type PGVectorIndex struct {
	db       *gorm.DB
	embedder ports.EmbeddingService
}

// NewPGVectorIndex connects to dsn, enables the vector extension and
// migrates the chunk table.
func NewPGVectorIndex(dsn string, embedder ports.EmbeddingService) (*PGVectorIndex, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w: %w", entities.ErrIndexUnavailable, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("enabling pgvector: %w: %w", entities.ErrIndexUnavailable, err)
	}
	if err := db.AutoMigrate(&pgChunk{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrating chunk table: %w: %w", entities.ErrIndexUnavailable, err)
	}
	return &PGVectorIndex{db: db, embedder: embedder}, nil
}

func (s *PGVectorIndex) rows(ctx context.Context, batch ports.IndexBatch) ([]pgChunk, error) {
	if err := validateBatch(batch); err != nil {
		return nil, err
	}
	if batch.Len() == 0 {
		return nil, nil
	}
	vectors, err := s.embedder.EmbedBatch(ctx, batch.Documents)
	if err != nil {
		return nil, fmt.Errorf("embedding documents: %w: %w", entities.ErrIndexUnavailable, err)
	}
	if len(vectors) != batch.Len() {
		return nil, fmt.Errorf("%w: embedder returned %d vectors for %d texts", entities.ErrIndexUnavailable, len(vectors), batch.Len())
	}

	rows := make([]pgChunk, batch.Len())
	for i, id := range batch.IDs {
		meta, err := encodeMeta(batch.Metadatas[i])
		if err != nil {
			return nil, err
		}
		rows[i] = pgChunk{
			ChunkID:   id,
			Document:  batch.Documents[i],
			Metadata:  datatypes.JSON(meta),
			Embedding: pgvector.NewVector(vectors[i]),
		}
	}
	return rows, nil
}

// Upsert inserts or replaces entries by id in one statement.
func (s *PGVectorIndex) Upsert(ctx context.Context, batch ports.IndexBatch) error {
	if dups := duplicateIDs(batch.IDs); len(dups) > 0 {
		// ON CONFLICT cannot touch the same row twice in one statement
		return fmt.Errorf("%w: ids repeated in batch: %s", entities.ErrInvalidInput, strings.Join(dups, ", "))
	}
	rows, err := s.rows(ctx, batch)
	if err != nil || len(rows) == 0 {
		return err
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "chunk_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"document", "metadata", "embedding", "updated_at"}),
		}).
		Create(&rows).Error
	if err != nil {
		return fmt.Errorf("upserting chunks: %w: %w", entities.ErrIndexUnavailable, err)
	}
	return nil
}

// Add inserts entries in one transaction; an existing id aborts the batch
// with entities.ErrDuplicateID.
func (s *PGVectorIndex) Add(ctx context.Context, batch ports.IndexBatch) error {
	if dups := duplicateIDs(batch.IDs); len(dups) > 0 {
		return fmt.Errorf("%w: %s", entities.ErrDuplicateID, strings.Join(dups, ", "))
	}
	rows, err := s.rows(ctx, batch)
	if err != nil || len(rows) == 0 {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []string
		if err := tx.Model(&pgChunk{}).Where("chunk_id IN ?", batch.IDs).Pluck("chunk_id", &existing).Error; err != nil {
			return fmt.Errorf("checking ids: %w: %w", entities.ErrIndexUnavailable, err)
		}
		if len(existing) > 0 {
			return fmt.Errorf("%w: %s", entities.ErrDuplicateID, strings.Join(existing, ", "))
		}
		if err := tx.Create(&rows).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: %v", entities.ErrDuplicateID, err)
			}
			return fmt.Errorf("inserting chunks: %w: %w", entities.ErrIndexUnavailable, err)
		}
		return nil
	})
}

type pgScored struct {
	ChunkID  string
	Document string
	Metadata datatypes.JSON
	Distance float64
}

// Query returns the n entries nearest to text among those matching filter.
func (s *PGVectorIndex) Query(ctx context.Context, text string, n int, filter entities.Filter) (*ports.QueryResponse, error) {
	where, args, err := pgWhere(filter)
	if err != nil {
		return nil, err
	}
	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w: %w", entities.ErrIndexUnavailable, err)
	}

	q := s.db.WithContext(ctx).
		Model(&pgChunk{}).
		Select("chunk_id, document, metadata, embedding <=> ? AS distance", pgvector.NewVector(vector))
	if where != "" {
		q = q.Where(where, args...)
	}
	var found []pgScored
	if err := q.Order("distance").Order("seq").Limit(n).Scan(&found).Error; err != nil {
		return nil, fmt.Errorf("querying chunks: %w: %w", entities.ErrIndexUnavailable, err)
	}

	cands := make([]candidate, 0, len(found))
	for _, r := range found {
		meta, err := decodeMeta(r.Metadata)
		if err != nil {
			continue
		}
		cands = append(cands, candidate{id: r.ChunkID, document: r.Document, meta: meta, distance: r.Distance})
	}
	return rank(cands, n), nil
}

// Get scans up to limit entries in insertion order. A non-positive limit scans everything.
func (s *PGVectorIndex) Get(ctx context.Context, limit int, filter entities.Filter) (*ports.GetResponse, error) {
	where, args, err := pgWhere(filter)
	if err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Model(&pgChunk{}).Select("chunk_id, document, metadata")
	if where != "" {
		q = q.Where(where, args...)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var found []pgScored
	if err := q.Order("seq").Scan(&found).Error; err != nil {
		return nil, fmt.Errorf("scanning chunks: %w: %w", entities.ErrIndexUnavailable, err)
	}

	resp := &ports.GetResponse{}
	for _, r := range found {
		meta, err := decodeMeta(r.Metadata)
		if err != nil {
			continue
		}
		resp.IDs = append(resp.IDs, r.ChunkID)
		resp.Documents = append(resp.Documents, r.Document)
		resp.Metadatas = append(resp.Metadatas, meta)
	}
	return resp, nil
}

// Delete removes every entry matching filter.
func (s *PGVectorIndex) Delete(ctx context.Context, filter entities.Filter) error {
	if err := requireDeleteFilter(filter); err != nil {
		return err
	}
	where, args, err := pgWhere(filter)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Where(where, args...).Delete(&pgChunk{}).Error; err != nil {
		return fmt.Errorf("deleting chunks: %w: %w", entities.ErrIndexUnavailable, err)
	}
	return nil
}

// Close closes the connection pool.
func (s *PGVectorIndex) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// pgWhere translates a filter to a jsonb predicate over the metadata
// column. Keys are visited in sorted order so the SQL is deterministic.
func pgWhere(f entities.Filter) (string, []any, error) {
	if len(f) == 0 {
		return "", nil, nil
	}
	if err := ValidateFilter(f); err != nil {
		return "", nil, err
	}
	return pgClause(f)
}

func pgClause(f map[string]any) (string, []any, error) {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var (
		parts []string
		args  []any
	)
	for _, key := range keys {
		var (
			sql string
			a   []any
			err error
		)
		if key == opAnd || key == opOr {
			sql, a, err = pgLogical(key, f[key])
		} else {
			sql, a, err = pgField(key, f[key])
		}
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		args = append(args, a...)
	}
	if len(parts) == 1 {
		return parts[0], args, nil
	}
	return "(" + strings.Join(parts, " AND ") + ")", args, nil
}

func pgLogical(op string, cond any) (string, []any, error) {
	subs, err := subFilters(cond)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %s: %v", entities.ErrUnsupportedFilter, op, err)
	}
	if len(subs) == 0 {
		if op == opAnd {
			return "TRUE", nil, nil
		}
		return "FALSE", nil, nil
	}
	joiner := " AND "
	if op == opOr {
		joiner = " OR "
	}
	var (
		parts []string
		args  []any
	)
	for _, sub := range subs {
		sql, a, err := pgClause(sub)
		if err != nil {
			return "", nil, err
		}
		if sql == "" {
			sql = "TRUE"
		}
		parts = append(parts, sql)
		args = append(args, a...)
	}
	return "(" + strings.Join(parts, joiner) + ")", args, nil
}

func pgField(key string, cond any) (string, []any, error) {
	ops, ok := cond.(map[string]any)
	if !ok {
		if f, isFilter := cond.(entities.Filter); isFilter {
			ops, ok = f, true
		}
	}
	if !ok {
		ops = map[string]any{opEq: cond}
	}

	opNames := make([]string, 0, len(ops))
	for op := range ops {
		opNames = append(opNames, op)
	}
	sort.Strings(opNames)

	var (
		parts []string
		args  []any
	)
	for _, op := range opNames {
		sql, a, err := pgOp(key, op, ops[op])
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		args = append(args, a...)
	}
	if len(parts) == 1 {
		return parts[0], args, nil
	}
	return "(" + strings.Join(parts, " AND ") + ")", args, nil
}

const pgValue = "metadata -> ?::text"

func pgOp(key, op string, arg any) (string, []any, error) {
	switch op {
	case opEq:
		v, err := jsonbArg(arg)
		if err != nil {
			return "", nil, err
		}
		return pgValue + " = ?::jsonb", []any{key, v}, nil
	case opNe:
		v, err := jsonbArg(arg)
		if err != nil {
			return "", nil, err
		}
		return "(" + pgValue + " IS NULL OR " + pgValue + " <> ?::jsonb)", []any{key, key, v}, nil
	case opGt, opGte, opLt, opLte:
		v, err := jsonbArg(arg)
		if err != nil {
			return "", nil, err
		}
		sym := map[string]string{opGt: ">", opGte: ">=", opLt: "<", opLte: "<="}[op]
		// jsonb orders across types, so compare only like with like
		return "(jsonb_typeof(" + pgValue + ") = jsonb_typeof(?::jsonb) AND " + pgValue + " " + sym + " ?::jsonb)",
			[]any{key, v, key, v}, nil
	case opIn, opNin:
		list, ok := arg.([]any)
		if !ok {
			var err error
			if list, err = anySlice(arg); err != nil {
				return "", nil, fmt.Errorf("%w: %s: %v", entities.ErrUnsupportedFilter, op, err)
			}
		}
		if len(list) == 0 {
			if op == opIn {
				return "FALSE", nil, nil
			}
			return "TRUE", nil, nil
		}
		var (
			ors  []string
			args []any
		)
		for _, item := range list {
			v, err := jsonbArg(item)
			if err != nil {
				return "", nil, err
			}
			ors = append(ors, pgValue+" = ?::jsonb")
			args = append(args, key, v)
		}
		in := "(" + strings.Join(ors, " OR ") + ")"
		if op == opIn {
			return in, args, nil
		}
		return "(" + pgValue + " IS NULL OR NOT " + in + ")", append([]any{key}, args...), nil
	}
	return "", nil, fmt.Errorf("%w: operator %s", entities.ErrUnsupportedFilter, op)
}

// jsonbArg encodes a scalar filter operand as a jsonb literal.
func jsonbArg(v any) (string, error) {
	switch v.(type) {
	case string, bool, int, int32, int64, float32, float64, json.Number:
	default:
		return "", fmt.Errorf("%w: operand of type %T", entities.ErrUnsupportedFilter, v)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("%w: %v", entities.ErrUnsupportedFilter, err)
	}
	return string(b), nil
}
