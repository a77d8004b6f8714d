package photo

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers photo routes
func RegisterRoutes(e *echo.Echo, handler *Handler) {
	e.GET("/photo", handler.GetPhoto)
	e.GET("/kpa-photo", handler.GetPhoto)
}
