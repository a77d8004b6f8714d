package ratelimit

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mvn-raffle/photoproxy/internal/middleware"
	"github.com/mvn-raffle/photoproxy/pkg/logging"
	"github.com/mvn-raffle/photoproxy/pkg/response"
	"github.com/mvn-raffle/photoproxy/pkg/upstream"
)

// Limiter is the outbound vendor limiter. *upstream.Limiter implements it.
type Limiter interface {
	Status() upstream.LimiterStatus
	Reset()
}

// Handler exposes the outbound limiter
type Handler struct {
	limiter Limiter
}

// NewHandler creates a new rate limit handler
func NewHandler(limiter Limiter) *Handler {
	return &Handler{limiter: limiter}
}

// GetStatus handles GET /rate-limit
func (h *Handler) GetStatus(c echo.Context) error {
	return response.OK(c, "", h.limiter.Status())
}

// Reset handles POST /rate-limit/reset
func (h *Handler) Reset(c echo.Context) error {
	h.limiter.Reset()

	user := "unknown"
	if u, ok := middleware.GetUserFromContext(c); ok {
		user = u.Name
	}
	logging.Logger.Warn("Outbound rate limiter reset", zap.String("user", user))

	return response.OK(c, "Rate limiter reset", h.limiter.Status())
}
