package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/url"

	"github.com/gofiber/fiber/v2"

	"github.com/0xcro3dile/sibila-go/internal/domain/entities"
	"github.com/0xcro3dile/sibila-go/internal/domain/usecases"
)

// handleHealth returns server health status.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ok": true})
}

// handleUpload stores the multipart "files" (or "file") parts as-is.
func (s *Server) handleUpload(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return fmt.Errorf("%w: expected multipart form: %v", entities.ErrInvalidInput, err)
	}
	headers := append(form.File["files"], form.File["file"]...)

	files := make([]usecases.UploadedFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return fmt.Errorf("opening %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("reading %s: %w", fh.Filename, err)
		}
		files = append(files, usecases.UploadedFile{Name: fh.Filename, Data: data})
	}

	saved, err := s.library.Upload(c.UserContext(), files)
	if err != nil {
		return err
	}
	return created(c, fiber.Map{"saved": saved, "folder": s.opts.DataDir})
}

// handleListDocs lists stored raw files.
func (s *Server) handleListDocs(c *fiber.Ctx) error {
	names, err := s.library.List(c.UserContext())
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"files": names})
}

// handleReadDoc returns the text of a stored file.
func (s *Server) handleReadDoc(c *fiber.Ctx) error {
	name, err := pathParam(c, "name")
	if err != nil {
		return err
	}
	text, err := s.library.Read(c.UserContext(), name)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"doc_id": entities.DocIDFromName(name), "name": name, "text": text})
}

// handleDeleteDoc removes a stored file; indexed chunks are kept.
func (s *Server) handleDeleteDoc(c *fiber.Ctx) error {
	name, err := pathParam(c, "name")
	if err != nil {
		return err
	}
	if err := s.library.Delete(c.UserContext(), name); err != nil {
		return err
	}
	return ok(c, fiber.Map{"deleted": name})
}

// handleIngest upserts chunked documents.
func (s *Server) handleIngest(c *fiber.Ctx) error {
	return s.ingestBody(c, entities.ModeUpsert)
}

// handleIngestDocuments adds whole documents without chunking.
func (s *Server) handleIngestDocuments(c *fiber.Ctx) error {
	return s.ingestBody(c, entities.ModeAdd)
}

func (s *Server) ingestBody(c *fiber.Ctx, mode entities.IngestMode) error {
	items, err := entities.DecodeIngestItems(c.Body())
	if err != nil {
		return err
	}
	docs := make([]entities.Document, len(items))
	for i, it := range items {
		docs[i] = it.Document()
	}

	summary, err := s.ingest.Ingest(c.UserContext(), docs, mode)
	if err != nil {
		return err
	}
	return ok(c, summary)
}

// handleIngestStored ingests files already in the blob store. An empty
// body or names list ingests every stored document.
func (s *Server) handleIngestStored(c *fiber.Ctx) error {
	var req struct {
		Names []string `json:"names"`
	}
	if body := bytes.TrimSpace(c.Body()); len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			return fmt.Errorf("%w: %v", entities.ErrInvalidInput, err)
		}
	}

	summary, err := s.library.IngestStored(c.UserContext(), req.Names)
	if err != nil {
		return err
	}
	return ok(c, summary)
}

// handleDeleteIndexed removes a document's chunks from the index.
func (s *Server) handleDeleteIndexed(c *fiber.Ctx) error {
	docID, err := pathParam(c, "doc_id")
	if err != nil {
		return err
	}
	if err := s.ingest.Delete(c.UserContext(), docID); err != nil {
		return err
	}
	return ok(c, fiber.Map{"deleted": docID})
}

func (s *Server) handleCategories(c *fiber.Ctx) error {
	values, err := s.catalog.Categories(c.UserContext())
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"categories": values})
}

func (s *Server) handleCases(c *fiber.Ctx) error {
	values, err := s.catalog.Cases(c.UserContext())
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"cases": values})
}

// handleQuery runs a retrieval request.
func (s *Server) handleQuery(c *fiber.Ctx) error {
	var req entities.QueryRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return fmt.Errorf("%w: %v", entities.ErrInvalidInput, err)
	}

	results, err := s.query.Query(c.UserContext(), req)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"results": results})
}

// pathParam returns a route parameter with percent-escapes decoded. The
// router sees the raw path, so an escaped "/" stays inside one segment.
func pathParam(c *fiber.Ctx, key string) (string, error) {
	v, err := url.PathUnescape(c.Params(key))
	if err != nil {
		return "", fmt.Errorf("%w: malformed %s in path", entities.ErrInvalidInput, key)
	}
	return v, nil
}
