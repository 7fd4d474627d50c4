package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/0xcro3dile/sibila-go/internal/domain/entities"
)

// errorBody is the error half of the response envelope.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type envelope struct {
	OK    bool       `json:"ok"`
	Data  any        `json:"data,omitempty"`
	Error *errorBody `json:"error,omitempty"`
}

func ok(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusOK).JSON(envelope{OK: true, Data: data})
}

func created(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(envelope{OK: true, Data: data})
}

// errorStatus maps domain errors to HTTP status codes and stable codes.
func errorStatus(err error) (int, string) {
	var fe *fiber.Error
	switch {
	case errors.Is(err, entities.ErrEmptyInput):
		return fiber.StatusBadRequest, "empty_input"
	case errors.Is(err, entities.ErrInvalidInput):
		return fiber.StatusBadRequest, "invalid_input"
	case errors.Is(err, entities.ErrUnsupportedFilter):
		return fiber.StatusBadRequest, "unsupported_filter"
	case errors.Is(err, entities.ErrMissingResource):
		return fiber.StatusNotFound, "not_found"
	case errors.Is(err, entities.ErrDuplicateID):
		return fiber.StatusConflict, "duplicate_id"
	case errors.Is(err, entities.ErrIndexUnavailable):
		return fiber.StatusServiceUnavailable, "index_unavailable"
	case errors.As(err, &fe):
		return fe.Code, "http_error"
	default:
		return fiber.StatusInternalServerError, "internal"
	}
}

// handleError is the fiber error handler: every failing handler ends here.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	status, code := errorStatus(err)
	details := map[string]interface{}{
		"request_id": c.Locals(requestIDKey),
		"method":     c.Method(),
		"path":       c.Path(),
		"status":     status,
		"error":      err.Error(),
	}
	if status >= fiber.StatusInternalServerError {
		s.log.Error("http", "request failed", details)
	} else {
		s.log.Warn("http", "request rejected", details)
	}
	return c.Status(status).JSON(envelope{Error: &errorBody{Code: code, Message: err.Error()}})
}
