package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/loandesk/loanengine/cmd/loanengine/service"
)

// writeError maps domain error kinds to HTTP responses. Anything not
// in the taxonomy is treated as a storage-level failure.
func writeError(c echo.Context, err error) error {
	var validation *service.ValidationError
	if errors.As(err, &validation) {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": validation.Error(),
			"field": validation.Field,
		})
	}

	var notFound *service.NotFoundError
	if errors.As(err, &notFound) {
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"error": notFound.Error(),
		})
	}

	var conflict *service.ConflictError
	if errors.As(err, &conflict) {
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error":    conflict.Error(),
			"blocking": conflict.Blocking,
		})
	}

	var state *service.StateError
	if errors.As(err, &state) {
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error": state.Error(),
		})
	}

	return c.JSON(http.StatusInternalServerError, map[string]interface{}{
		"error": "internal error",
	})
}

// parseUUID parses a uuid path parameter, rejecting malformed input
// before it reaches a service.
func parseUUID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name+" format")
	}
	return id, nil
}
