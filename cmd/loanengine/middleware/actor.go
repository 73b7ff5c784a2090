package middleware

import (
	"github.com/labstack/echo/v4"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ActorKey is the context key holding the acting user's identifier.
const ActorKey ContextKey = "actor"

// ExtractActor stores the X-User-ID header in the request context.
// Authentication itself is an external collaborator; the engine only
// records who acted for ledger attribution.
func ExtractActor() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor := c.Request().Header.Get("X-User-ID")
			if actor != "" {
				c.Set(string(ActorKey), actor)
			}
			return next(c)
		}
	}
}

// GetActor retrieves the acting user from the request context.
// Returns empty string if not set.
func GetActor(c echo.Context) string {
	actor := c.Get(string(ActorKey))
	if actor == nil {
		return ""
	}
	return actor.(string)
}
