package handlers

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/loandesk/loanengine/cmd/loanengine/models"
	"github.com/loandesk/loanengine/cmd/loanengine/service"
	"github.com/loandesk/loanengine/common/bootstrap"
)

// AssetHandler handles asset registry requests
type AssetHandler struct {
	components *bootstrap.Components
	assets     *service.AssetService
	lifecycle  *service.LifecycleService
}

// NewAssetHandler creates a new asset handler
func NewAssetHandler(components *bootstrap.Components, assets *service.AssetService, lifecycle *service.LifecycleService) *AssetHandler {
	return &AssetHandler{
		components: components,
		assets:     assets,
		lifecycle:  lifecycle,
	}
}

// CreateAsset provisions a new asset
// POST /api/v1/assets
func (h *AssetHandler) CreateAsset(c echo.Context) error {
	req := &service.CreateAssetRequest{}
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	asset, err := h.assets.CreateAsset(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, asset)
}

// GetAsset retrieves an asset by id
// GET /api/v1/assets/:id
func (h *AssetHandler) GetAsset(c echo.Context) error {
	assetID, err := parseUUID(c, "id")
	if err != nil {
		return err
	}

	asset, err := h.assets.GetAsset(c.Request().Context(), assetID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, asset)
}

// ListAssets lists assets with optional filters
// GET /api/v1/assets?status=available&include_archived=true
func (h *AssetHandler) ListAssets(c echo.Context) error {
	status := models.AssetStatus(c.QueryParam("status"))
	includeArchived := c.QueryParam("include_archived") == "true"

	assets, err := h.assets.ListAssets(c.Request().Context(), status, includeArchived)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"assets": assets,
		"count":  len(assets),
	})
}

// PatchAsset applies an RFC 6902 patch to provisioning fields
// PATCH /api/v1/assets/:id
func (h *AssetHandler) PatchAsset(c echo.Context) error {
	assetID, err := parseUUID(c, "id")
	if err != nil {
		return err
	}

	patchDoc, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
	}

	asset, err := h.assets.PatchAsset(c.Request().Context(), assetID, patchDoc)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, asset)
}

// ArchiveAsset soft-deletes an asset
// DELETE /api/v1/assets/:id
func (h *AssetHandler) ArchiveAsset(c echo.Context) error {
	assetID, err := parseUUID(c, "id")
	if err != nil {
		return err
	}

	if err := h.assets.ArchiveAsset(c.Request().Context(), assetID); err != nil {
		return writeError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

type maintenanceRequest struct {
	Status string `json:"status"`
	Actor  string `json:"actor"`
}

// SetMaintenance toggles an asset in or out of a maintenance state
// POST /api/v1/assets/:id/maintenance
func (h *AssetHandler) SetMaintenance(c echo.Context) error {
	assetID, err := parseUUID(c, "id")
	if err != nil {
		return err
	}

	req := &maintenanceRequest{}
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	asset, err := h.lifecycle.SetMaintenance(c.Request().Context(), assetID, models.AssetStatus(req.Status), req.Actor)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, asset)
}
