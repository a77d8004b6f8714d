package eligibility

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers eligibility routes
func RegisterRoutes(g *echo.Group, handler *Handler) {
	g.GET("", handler.Check)
}
