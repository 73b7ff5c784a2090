package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/loandesk/loanengine/cmd/loanengine/container"
	"github.com/loandesk/loanengine/cmd/loanengine/handlers"
	"github.com/loandesk/loanengine/cmd/loanengine/middleware"
)

// RegisterAssetRoutes registers all asset registry routes
func RegisterAssetRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewAssetHandler(c.Components, c.AssetService, c.LifecycleService)

	assets := e.Group("/api/v1/assets")
	assets.Use(middleware.ExtractActor())
	{
		assets.POST("", h.CreateAsset)                    // POST /api/v1/assets
		assets.GET("", h.ListAssets)                      // GET /api/v1/assets
		assets.GET("/:id", h.GetAsset)                    // GET /api/v1/assets/:id
		assets.PATCH("/:id", h.PatchAsset)                // PATCH /api/v1/assets/:id
		assets.DELETE("/:id", h.ArchiveAsset)             // DELETE /api/v1/assets/:id
		assets.POST("/:id/maintenance", h.SetMaintenance) // POST /api/v1/assets/:id/maintenance
	}
}
