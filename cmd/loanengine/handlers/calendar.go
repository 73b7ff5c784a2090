package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/loandesk/loanengine/cmd/loanengine/models"
	"github.com/loandesk/loanengine/cmd/loanengine/service"
	"github.com/loandesk/loanengine/common/bootstrap"
)

// CalendarHandler serves calendar projections
type CalendarHandler struct {
	components *bootstrap.Components
	calendar   *service.CalendarService
}

// NewCalendarHandler creates a new calendar handler
func NewCalendarHandler(components *bootstrap.Components, calendar *service.CalendarService) *CalendarHandler {
	return &CalendarHandler{
		components: components,
		calendar:   calendar,
	}
}

// GetMonthView returns per-day event buckets for a month
// GET /api/v1/calendar/:year/:month
func (h *CalendarHandler) GetMonthView(c echo.Context) error {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil || year < 1970 || year > 9999 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid year")
	}
	month, err := strconv.Atoi(c.Param("month"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid month")
	}

	view, err := h.calendar.GetMonthView(c.Request().Context(), year, time.Month(month))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, view)
}

// GetDayDetail returns the events active on a single day
// GET /api/v1/calendar/day/:date
func (h *CalendarHandler) GetDayDetail(c echo.Context) error {
	day, err := models.ParseDate(c.Param("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
	}

	events, err := h.calendar.GetDayDetail(c.Request().Context(), day)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"date":   day,
		"events": events,
		"count":  len(events),
	})
}
