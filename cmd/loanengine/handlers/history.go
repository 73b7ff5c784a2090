package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/loandesk/loanengine/cmd/loanengine/models"
	"github.com/loandesk/loanengine/cmd/loanengine/service"
	"github.com/loandesk/loanengine/common/bootstrap"
)

// HistoryHandler serves the append-only ledger to audit collaborators
type HistoryHandler struct {
	components *bootstrap.Components
	history    *service.HistoryService
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(components *bootstrap.Components, history *service.HistoryService) *HistoryHandler {
	return &HistoryHandler{
		components: components,
		history:    history,
	}
}

// Query returns ledger entries filtered by asset and/or period
// GET /api/v1/history?asset_id=...&from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *HistoryHandler) Query(c echo.Context) error {
	var assetID *uuid.UUID
	if raw := c.QueryParam("asset_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid asset_id format")
		}
		assetID = &parsed
	}

	var from, to *models.Date
	if raw := c.QueryParam("from"); raw != "" {
		parsed, err := models.ParseDate(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid from date, expected YYYY-MM-DD")
		}
		from = &parsed
	}
	if raw := c.QueryParam("to"); raw != "" {
		parsed, err := models.ParseDate(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid to date, expected YYYY-MM-DD")
		}
		to = &parsed
	}

	events, err := h.history.Query(c.Request().Context(), assetID, from, to)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}
