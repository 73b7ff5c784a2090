package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/loandesk/loanengine/cmd/loanengine/repository"
	"github.com/loandesk/loanengine/cmd/loanengine/service"
	"github.com/loandesk/loanengine/common/bootstrap"
)

// LoanHandler handles loan booking requests
type LoanHandler struct {
	components *bootstrap.Components
	lifecycle  *service.LifecycleService
	loanRepo   *repository.LoanRepository
}

// NewLoanHandler creates a new loan handler
func NewLoanHandler(components *bootstrap.Components, lifecycle *service.LifecycleService, loanRepo *repository.LoanRepository) *LoanHandler {
	return &LoanHandler{
		components: components,
		lifecycle:  lifecycle,
		loanRepo:   loanRepo,
	}
}

// CreateLoan books an asset out to a holder
// POST /api/v1/loans
func (h *LoanHandler) CreateLoan(c echo.Context) error {
	req := &service.CreateLoanRequest{}
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	loan, err := h.lifecycle.CreateLoan(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, loan)
}

type returnRequest struct {
	ReturnedBy string `json:"returned_by"`
}

// ReturnLoan closes an open loan
// POST /api/v1/loans/:id/return
func (h *LoanHandler) ReturnLoan(c echo.Context) error {
	loanID, err := parseUUID(c, "id")
	if err != nil {
		return err
	}

	req := &returnRequest{}
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	loan, err := h.lifecycle.ReturnLoan(c.Request().Context(), loanID, req.ReturnedBy)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, loan)
}

// ListLoans lists loans with optional filters
// GET /api/v1/loans?asset_id=...&open=true
func (h *LoanHandler) ListLoans(c echo.Context) error {
	var assetID *uuid.UUID
	if raw := c.QueryParam("asset_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid asset_id format")
		}
		assetID = &parsed
	}
	openOnly := c.QueryParam("open") == "true"

	loans, err := h.loanRepo.List(c.Request().Context(), assetID, openOnly)
	if err != nil {
		h.components.Logger.Error("failed to list loans", "error", err)
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"loans": loans,
		"count": len(loans),
	})
}
