package presenter

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/totegamma/memorial"
	"github.com/totegamma/memorial/internal/domain"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

func fail(c echo.Context, status int, msg, code string) error {
	return c.JSON(status, errorResponse{Error: msg, Code: code})
}

// OK wraps a successful response.
func OK(c echo.Context, payload any) error {
	return c.JSON(http.StatusOK, memorial.Envelope[any]{Success: true, Data: payload})
}

func Created(c echo.Context, payload any) error {
	return c.JSON(http.StatusCreated, memorial.Envelope[any]{Success: true, Data: payload})
}

func BadRequest(c echo.Context, err error) error {
	slog.DebugContext(c.Request().Context(), "bad request", slog.String("error", err.Error()), slog.String("module", "rest"))
	return fail(c, http.StatusBadRequest, err.Error(), "")
}

func BadRequestMessage(c echo.Context, msg string) error {
	slog.DebugContext(c.Request().Context(), "bad request", slog.String("error", msg), slog.String("module", "rest"))
	return fail(c, http.StatusBadRequest, msg, "")
}

func Unauthorized(c echo.Context, msg string) error {
	return fail(c, http.StatusUnauthorized, msg, "")
}

func Forbidden(c echo.Context, msg string) error {
	return fail(c, http.StatusForbidden, msg, "")
}

func NotFound(c echo.Context, msg string) error {
	return fail(c, http.StatusNotFound, msg, "")
}

func Conflict(c echo.Context, msg, code string) error {
	return fail(c, http.StatusConflict, msg, code)
}

func InternalError(c echo.Context, err error) error {
	slog.ErrorContext(c.Request().Context(), "internal error", slog.String("error", err.Error()), slog.String("module", "rest"))
	return fail(c, http.StatusInternalServerError, "internal server error", "")
}

// Error writes the response matching a domain error.
func Error(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return BadRequest(c, err)
	case errors.Is(err, domain.ErrUnauthorized):
		return Unauthorized(c, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		return Forbidden(c, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return NotFound(c, err.Error())
	case errors.Is(err, domain.ErrUserNotConfirmed):
		return Conflict(c, err.Error(), memorial.CodeUserNotConfirmed)
	case errors.Is(err, domain.ErrCodeMismatch):
		return fail(c, http.StatusBadRequest, err.Error(), memorial.CodeCodeMismatch)
	case errors.Is(err, domain.ErrConflict):
		return Conflict(c, err.Error(), "")
	default:
		return InternalError(c, err)
	}
}
