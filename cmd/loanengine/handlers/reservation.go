package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/loandesk/loanengine/cmd/loanengine/middleware"
	"github.com/loandesk/loanengine/cmd/loanengine/repository"
	"github.com/loandesk/loanengine/cmd/loanengine/service"
	"github.com/loandesk/loanengine/common/bootstrap"
)

// ReservationHandler handles reservation booking requests
type ReservationHandler struct {
	components      *bootstrap.Components
	lifecycle       *service.LifecycleService
	reservationRepo *repository.ReservationRepository
}

// NewReservationHandler creates a new reservation handler
func NewReservationHandler(components *bootstrap.Components, lifecycle *service.LifecycleService, reservationRepo *repository.ReservationRepository) *ReservationHandler {
	return &ReservationHandler{
		components:      components,
		lifecycle:       lifecycle,
		reservationRepo: reservationRepo,
	}
}

// CreateReservation places a future hold on an asset
// POST /api/v1/reservations
func (h *ReservationHandler) CreateReservation(c echo.Context) error {
	req := &service.CreateReservationRequest{}
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	res, err := h.lifecycle.CreateReservation(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, res)
}

// CancelReservation removes a reservation from the active set
// DELETE /api/v1/reservations/:id
func (h *ReservationHandler) CancelReservation(c echo.Context) error {
	reservationID, err := parseUUID(c, "id")
	if err != nil {
		return err
	}

	cancelledBy := c.QueryParam("cancelled_by")
	if cancelledBy == "" {
		cancelledBy = middleware.GetActor(c)
	}

	if err := h.lifecycle.CancelReservation(c.Request().Context(), reservationID, cancelledBy); err != nil {
		return writeError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

// ListReservations lists reservations with optional filters
// GET /api/v1/reservations?asset_id=...
func (h *ReservationHandler) ListReservations(c echo.Context) error {
	var assetID *uuid.UUID
	if raw := c.QueryParam("asset_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid asset_id format")
		}
		assetID = &parsed
	}

	reservations, err := h.reservationRepo.List(c.Request().Context(), assetID)
	if err != nil {
		h.components.Logger.Error("failed to list reservations", "error", err)
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"reservations": reservations,
		"count":        len(reservations),
	})
}
