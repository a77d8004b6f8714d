package middleware

import (
	"github.com/labstack/echo/v4"
)

// InstanceHeader identifies the proxy instance that produced a response.
const InstanceHeader = "X-Photoproxy-Instance"

// InstanceIDMiddleware adds the X-Photoproxy-Instance header to all responses
// This lets operators tell replicas apart when comparing cache behaviour
func InstanceIDMiddleware(instanceID string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set(InstanceHeader, instanceID)
			return next(c)
		}
	}
}
