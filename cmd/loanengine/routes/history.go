package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/loandesk/loanengine/cmd/loanengine/container"
	"github.com/loandesk/loanengine/cmd/loanengine/handlers"
)

// RegisterHistoryRoutes registers the ledger query routes
func RegisterHistoryRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewHistoryHandler(c.Components, c.HistoryService)

	e.GET("/api/v1/history", h.Query) // GET /api/v1/history
}
