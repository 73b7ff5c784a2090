package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/loandesk/loanengine/cmd/loanengine/container"
	"github.com/loandesk/loanengine/cmd/loanengine/handlers"
	"github.com/loandesk/loanengine/cmd/loanengine/middleware"
)

// RegisterLoanRoutes registers all loan booking routes
func RegisterLoanRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewLoanHandler(c.Components, c.LifecycleService, c.LoanRepo)

	loans := e.Group("/api/v1/loans")
	loans.Use(middleware.ExtractActor())
	{
		loans.POST("", h.CreateLoan)            // POST /api/v1/loans
		loans.GET("", h.ListLoans)              // GET /api/v1/loans
		loans.POST("/:id/return", h.ReturnLoan) // POST /api/v1/loans/:id/return
	}
}
