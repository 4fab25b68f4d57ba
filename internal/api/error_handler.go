package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/documentai/docai/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error string `json:"error"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<message>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := resolveError(err, log, c)
		_ = c.JSON(code, errorResponse{Error: msg})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	// The remote API answered with a non-2xx status.
	var se *domain.StatusError
	if errors.As(err, &se) {
		return remoteStatus(se.Code), se.Error()
	}

	// Known domain errors → deterministic HTTP codes.
	switch {
	case errors.Is(err, domain.ErrUnreachable):
		return http.StatusBadGateway, "document service unreachable"
	case errors.Is(err, domain.ErrMalformedResponse):
		return http.StatusBadGateway, "malformed response from document service"
	case errors.Is(err, domain.ErrSuperseded):
		return http.StatusConflict, "superseded by a newer session operation"
	case errors.Is(err, domain.ErrNoCredential):
		return http.StatusUnauthorized, "not signed in"
	case errors.Is(err, domain.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType, err.Error()
	case errors.Is(err, domain.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, err.Error()
	case errors.Is(err, domain.ErrNoFile),
		errors.Is(err, domain.ErrEmptyMessage),
		errors.Is(err, domain.ErrNoFileSelected):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, domain.ErrUserExists):
		return http.StatusConflict, "user already exists"
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, "internal server error"
}

// remoteStatus translates an upstream status for local callers. Auth
// failures surface as 401, other client errors pass through and anything
// else is a gateway failure.
func remoteStatus(code int) int {
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return http.StatusUnauthorized
	case code >= 400 && code < 500:
		return code
	default:
		return http.StatusBadGateway
	}
}
