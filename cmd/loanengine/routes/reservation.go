package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/loandesk/loanengine/cmd/loanengine/container"
	"github.com/loandesk/loanengine/cmd/loanengine/handlers"
	"github.com/loandesk/loanengine/cmd/loanengine/middleware"
)

// RegisterReservationRoutes registers all reservation routes
func RegisterReservationRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewReservationHandler(c.Components, c.LifecycleService, c.ReservationRepo)

	reservations := e.Group("/api/v1/reservations")
	reservations.Use(middleware.ExtractActor())
	{
		reservations.POST("", h.CreateReservation)          // POST /api/v1/reservations
		reservations.GET("", h.ListReservations)            // GET /api/v1/reservations
		reservations.DELETE("/:id", h.CancelReservation)    // DELETE /api/v1/reservations/:id
	}
}
