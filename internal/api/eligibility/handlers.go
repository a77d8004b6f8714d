package eligibility

import (
	"errors"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mvn-raffle/photoproxy/pkg/eligibility"
	"github.com/mvn-raffle/photoproxy/pkg/logging"
	"github.com/mvn-raffle/photoproxy/pkg/response"
)

// Handler relays eligibility checks for drawn winners
type Handler struct {
	gateway eligibility.Gateway
}

// NewHandler creates a new eligibility handler
func NewHandler(gateway eligibility.Gateway) *Handler {
	return &Handler{gateway: gateway}
}

// Check handles GET /eligibility?name=<employee>
func (h *Handler) Check(c echo.Context) error {
	name := c.QueryParam("name")

	result, err := h.gateway.Check(c.Request().Context(), name)
	switch {
	case err == nil:
		return response.OK(c, "", result)
	case errors.Is(err, eligibility.ErrEmptyName):
		return response.BadRequest(c, err.Error())
	case errors.Is(err, eligibility.ErrGatewayUnavailable):
		logging.Logger.Warn("Eligibility gateway unavailable",
			zap.String("employee", name),
			zap.Error(err))
		return response.ServiceUnavailable(c, "Eligibility service unavailable")
	}

	logging.Logger.Error("Eligibility check failed",
		zap.String("employee", name),
		zap.Error(err))
	return response.InternalServerError(c, "Eligibility check failed")
}
