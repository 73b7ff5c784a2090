package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/loandesk/loanengine/cmd/loanengine/container"
	"github.com/loandesk/loanengine/cmd/loanengine/handlers"
)

// RegisterCalendarRoutes registers the calendar projection routes
func RegisterCalendarRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewCalendarHandler(c.Components, c.CalendarService)

	calendar := e.Group("/api/v1/calendar")
	{
		calendar.GET("/day/:date", h.GetDayDetail)   // GET /api/v1/calendar/day/2026-03-15
		calendar.GET("/:year/:month", h.GetMonthView) // GET /api/v1/calendar/2026/3
	}
}
