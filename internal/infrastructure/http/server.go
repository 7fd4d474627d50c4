// Package http provides the HTTP server infrastructure.
// Clean Architecture: Framework/driver layer - outermost circle.
package http

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/0xcro3dile/sibila-go/internal/domain/ports"
	"github.com/0xcro3dile/sibila-go/internal/domain/usecases"
)

// Options configures the listener and middleware.
type Options struct {
	Addr        string
	CorsOrigins string
	BodyLimitMB int
	DataDir     string // reported back by uploads
}

// Server is the HTTP server for the ingestion and retrieval API.
type Server struct {
	app     *fiber.App
	ingest  *usecases.IngestUseCase
	query   *usecases.QueryUseCase
	catalog *usecases.CatalogUseCase
	library *usecases.LibraryUseCase
	log     ports.Logger
	opts    Options
}

// NewServer creates a new HTTP server and registers its routes.
func NewServer(
	ingestUC *usecases.IngestUseCase,
	queryUC *usecases.QueryUseCase,
	catalogUC *usecases.CatalogUseCase,
	libraryUC *usecases.LibraryUseCase,
	log ports.Logger,
	opts Options,
) *Server {
	if opts.BodyLimitMB <= 0 {
		opts.BodyLimitMB = 50
	}
	if opts.CorsOrigins == "" {
		opts.CorsOrigins = "*"
	}

	s := &Server{
		ingest:  ingestUC,
		query:   queryUC,
		catalog: catalogUC,
		library: libraryUC,
		log:     log,
		opts:    opts,
	}

	app := fiber.New(fiber.Config{
		BodyLimit:             opts.BodyLimitMB * 1024 * 1024,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: opts.CorsOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, " + requestIDHeader,
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}))
	app.Use(requestID())
	app.Use(accessLog(log))

	s.app = app
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.app.Get("/health", s.handleHealth)

	s.app.Post("/upload", s.handleUpload)
	s.app.Get("/docs", s.handleListDocs)
	s.app.Get("/docs/:name", s.handleReadDoc)
	s.app.Delete("/docs/:name", s.handleDeleteDoc)

	s.app.Post("/ingest", s.handleIngest)
	s.app.Post("/ingest/documents", s.handleIngestDocuments)
	s.app.Post("/ingest/stored", s.handleIngestStored)
	s.app.Delete("/index/:doc_id", s.handleDeleteIndexed)

	s.app.Get("/categories", s.handleCategories)
	s.app.Get("/cases", s.handleCases)
	s.app.Post("/query", s.handleQuery)
}

// App exposes the fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server", "listening", map[string]interface{}{"addr": s.opts.Addr})
		errCh <- s.app.Listen(s.opts.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
}
