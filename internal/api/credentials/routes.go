package credentials

import (
	"github.com/labstack/echo/v4"

	"github.com/mvn-raffle/photoproxy/internal/middleware"
	"github.com/mvn-raffle/photoproxy/pkg/auth"
)

// RegisterRoutes registers credential routes
func RegisterRoutes(g *echo.Group, handler *Handler) {
	g.GET("", handler.GetStatus)
	g.PUT("", handler.UpdateCredentials, middleware.RequireRole(auth.Admin))
}
