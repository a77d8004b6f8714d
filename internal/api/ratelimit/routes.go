package ratelimit

import (
	"github.com/labstack/echo/v4"

	"github.com/mvn-raffle/photoproxy/internal/middleware"
	"github.com/mvn-raffle/photoproxy/pkg/auth"
)

// RegisterRoutes registers rate limit routes
func RegisterRoutes(g *echo.Group, handler *Handler) {
	g.GET("", handler.GetStatus)
	g.POST("/reset", handler.Reset, middleware.RequireRole(auth.Admin))
}
