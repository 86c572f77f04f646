package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/rental-backend/internal/service"
	"github.com/shinyyama/rental-backend/internal/session"
)

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error errorPayload `json:"error"`
}

func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Error: errorPayload{
			Code:    code,
			Message: message,
		},
	}
}

// writeError maps service errors onto HTTP statuses. fallback is shown for
// unexpected failures instead of the raw error.
func writeError(c echo.Context, err error, fallback string) error {
	status, code, msg := classify(err, fallback)
	return c.JSON(status, NewErrorResponse(code, msg))
}

// RespondError writes err in the API error envelope. Middleware uses it so
// rejections before a handler look the same as handler errors.
func RespondError(c echo.Context, err error) error {
	return writeError(c, err, "request failed")
}

func classify(err error, fallback string) (int, string, string) {
	switch {
	case errors.Is(err, session.ErrNoSession):
		return http.StatusUnauthorized, "unauthorized", "missing session"
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, "bad_request", err.Error()
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "forbidden", "forbidden"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found", "not found"
	case errors.Is(err, service.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited", err.Error()
	case service.IsRetryable(err):
		return http.StatusServiceUnavailable, "unavailable", fallback + ", please retry"
	default:
		return http.StatusInternalServerError, "internal_error", fallback
	}
}

func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
