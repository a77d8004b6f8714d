package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mvn-raffle/photoproxy/pkg/metrics"
)

// MetricsMiddleware collects HTTP request metrics
func MetricsMiddleware(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			m.ObserveRequest(c.Request().Method, path, status, time.Since(start))

			return err
		}
	}
}
