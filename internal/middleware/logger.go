package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/mvn-raffle/photoproxy/pkg/logging"
)

// LoggerMiddleware provides request logging through zap
func LoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURIPath:  true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			// the query carries signed photo URLs, so only the path is logged
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("path", v.URIPath),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("ip", v.RemoteIP),
				zap.String("cache", c.Response().Header().Get("X-Cache")),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
				logging.Logger.Warn("request", fields...)
				return nil
			}
			logging.Logger.Info("request", fields...)
			return nil
		},
	})
}

// CORSMiddleware lets the raffle page load photos from another origin
func CORSMiddleware() echo.MiddlewareFunc {
	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{echo.GET, echo.POST, echo.PUT, echo.OPTIONS},
		AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, "If-None-Match", "X-API-Key"},
		ExposeHeaders: []string{"X-Cache", echo.HeaderRetryAfter, InstanceHeader},
	})
}

// RecoverMiddleware provides panic recovery
func RecoverMiddleware() echo.MiddlewareFunc {
	return middleware.Recover()
}
