package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/tom2tomtomtom/Playbook/internal/answer"
	"github.com/tom2tomtomtom/Playbook/internal/extract"
	"github.com/tom2tomtomtom/Playbook/internal/index"
	"github.com/tom2tomtomtom/Playbook/internal/logging"
	"github.com/tom2tomtomtom/Playbook/internal/metadata"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// statusFor maps domain errors to HTTP status codes. Order matters:
// empty documents are also ingestion errors.
func statusFor(err error) int {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he.Code
	case errors.Is(err, extract.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, index.ErrEmptyDocument), errors.Is(err, extract.ErrCorruptDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, index.ErrInvalidPage):
		return http.StatusBadRequest
	case errors.Is(err, metadata.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, index.ErrIngestion), errors.Is(err, answer.ErrGeneration):
		return http.StatusBadGateway
	case errors.Is(err, index.ErrRetrieval):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// handleError writes {"detail": ...}. Internal errors are logged and
// reported generically.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := statusFor(err)
	detail := err.Error()

	var he *echo.HTTPError
	if errors.As(err, &he) {
		if msg, ok := he.Message.(string); ok {
			detail = msg
		} else {
			detail = http.StatusText(he.Code)
		}
	}

	fields := append(logging.ContextFields(c.Request().Context()), zap.Int("status", code), zap.Error(err))
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", fields...)
		if code == http.StatusInternalServerError {
			detail = "internal server error"
		}
	} else {
		s.logger.Debug("request rejected", fields...)
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	if werr := c.JSON(code, ErrorResponse{Detail: detail}); werr != nil {
		s.logger.Warn("writing error response", zap.Error(werr))
	}
}

func badRequest(msg string) error {
	return echo.NewHTTPError(http.StatusBadRequest, msg)
}
