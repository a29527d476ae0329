package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/dorm-occupancy/internal/apperrors"
)

// errorBody is the JSON shape of every failed request.
type errorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// respondError maps domain errors to HTTP status codes and writes the
// error body.  Unknown errors are logged and reported as 500 without
// leaking their text.
func respondError(c echo.Context, log *zap.Logger, err error) error {
	var verr *apperrors.ValidationError
	if errors.As(err, &verr) {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "validation_failed", Message: "invalid data", Errors: verr.Fields})
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok {
			msg = s
		}
		return c.JSON(he.Code, errorBody{Error: "bad_request", Message: msg})
	}

	status, code := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, apperrors.ErrCapacity):
		status, code = http.StatusConflict, "capacity_exceeded"
	case errors.Is(err, apperrors.ErrConflict):
		status, code = http.StatusConflict, "conflict"
	case errors.Is(err, apperrors.ErrTransient):
		status, code = http.StatusServiceUnavailable, "unavailable"
	}
	if status == http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Error(err))
		return c.JSON(status, errorBody{Error: code, Message: "server error"})
	}
	return c.JSON(status, errorBody{Error: code, Message: apperrors.Message(err)})
}
