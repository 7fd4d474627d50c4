package main

import (
	"context"
	"fmt"
	"time"

	"github.com/0xcro3dile/sibila-go/internal/adapters/blobstore"
	"github.com/0xcro3dile/sibila-go/internal/adapters/embedding"
	"github.com/0xcro3dile/sibila-go/internal/adapters/loader"
	"github.com/0xcro3dile/sibila-go/internal/adapters/parser"
	"github.com/0xcro3dile/sibila-go/internal/adapters/vectordb"
	"github.com/0xcro3dile/sibila-go/internal/domain/ports"
	"github.com/0xcro3dile/sibila-go/internal/domain/usecases"
	"github.com/0xcro3dile/sibila-go/internal/infrastructure/config"
)

// services holds the use cases built from one configuration. The index is
// opened once and shared by every use case.
type services struct {
	index     ports.VectorIndex
	extractor ports.TextExtractor
	loader    *loader.MultiLoader
	store     *blobstore.FSStore
	ingest    *usecases.IngestUseCase
	query     *usecases.QueryUseCase
	catalog   *usecases.CatalogUseCase
	library   *usecases.LibraryUseCase
}

func buildServices(cfg *config.AppConfig, log ports.Logger) (*services, error) {
	embedder := newEmbedder(cfg, log)

	index, err := newIndex(cfg, embedder)
	if err != nil {
		return nil, fmt.Errorf("opening %s index: %w", cfg.Index.Type, err)
	}

	chunker, err := usecases.NewChunker(cfg.Chunk.MaxChars, cfg.Chunk.Overlap)
	if err != nil {
		index.Close()
		return nil, err
	}

	store, err := blobstore.NewFSStore(cfg.DataDir)
	if err != nil {
		index.Close()
		return nil, err
	}

	extractor := newExtractor(cfg, log)
	ingest := usecases.NewIngestUseCase(index, chunker, log)

	return &services{
		index:     index,
		extractor: extractor,
		loader:    loader.NewMultiLoader(extractor, log),
		store:     store,
		ingest:    ingest,
		query:     usecases.NewQueryUseCase(index, cfg.Query.TopK, log),
		catalog:   usecases.NewCatalogUseCase(index, cfg.Catalog.ScanLimit),
		library:   usecases.NewLibraryUseCase(store, extractor, ingest, log),
	}, nil
}

func (s *services) Close() error {
	return s.index.Close()
}

func newEmbedder(cfg *config.AppConfig, log ports.Logger) ports.EmbeddingService {
	switch cfg.Embedder.Type {
	case config.EmbedderOllama:
		return embedding.NewOllamaAdapter(
			cfg.Embedder.Ollama.URL,
			cfg.Embedder.Ollama.Model,
			embedding.WithTimeout(time.Duration(cfg.Embedder.Ollama.TimeoutSecs)*time.Second),
			embedding.WithLogger(log),
		)
	default:
		return embedding.NewHashingEmbedder(cfg.Embedder.Dimensions)
	}
}

func newIndex(cfg *config.AppConfig, embedder ports.EmbeddingService) (ports.VectorIndex, error) {
	switch cfg.Index.Type {
	case config.IndexMemory:
		return vectordb.NewMemoryIndex(embedder), nil
	case config.IndexChroma:
		return vectordb.NewChromaIndex(cfg.Index.Chroma.URL, cfg.Index.Chroma.Collection, embedder,
			vectordb.WithAPIPath(cfg.Index.Chroma.APIPath)), nil
	case config.IndexPGVector:
		return vectordb.NewPGVectorIndex(cfg.Index.PGVector.DSN, embedder)
	default:
		return vectordb.NewSQLiteIndex(cfg.Index.SQLite.Path, embedder)
	}
}

// newExtractor picks the PDF text extractor. An unreachable parsing
// service is only reported; extraction degrades to empty text per file.
func newExtractor(cfg *config.AppConfig, log ports.Logger) ports.TextExtractor {
	if cfg.PDF.Extractor == config.ExtractorService {
		svc := parser.NewServiceExtractor(cfg.PDF.ServiceURL)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if !svc.Healthy(ctx) {
			log.Warn("wiring", "pdf service not reachable", map[string]interface{}{"url": cfg.PDF.ServiceURL})
		}
		return svc
	}
	return parser.NewNativePDFExtractor()
}
