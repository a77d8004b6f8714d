package credentials

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mvn-raffle/photoproxy/internal/api/common"
	"github.com/mvn-raffle/photoproxy/internal/middleware"
	"github.com/mvn-raffle/photoproxy/pkg/logging"
	"github.com/mvn-raffle/photoproxy/pkg/response"
	"github.com/mvn-raffle/photoproxy/pkg/vendorauth"
)

// Store holds the active vendor session. *vendorauth.Context implements it.
type Store interface {
	Replace(cred vendorauth.Credential) error
	Status() vendorauth.Status
}

// Handler lets the credential refresher rotate the vendor session
type Handler struct {
	store Store
}

// NewHandler creates a new credentials handler
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// GetStatus handles GET /credentials
func (h *Handler) GetStatus(c echo.Context) error {
	return response.OK(c, "", h.store.Status())
}

// UpdateCredentials handles PUT /credentials
func (h *Handler) UpdateCredentials(c echo.Context) error {
	var req common.UpdateCredentialsRequest
	if err := c.Bind(&req); err != nil {
		logging.Logger.Error("Failed to bind request", zap.Error(err))
		return response.BadRequest(c, "Invalid request")
	}

	if err := c.Validate(&req); err != nil {
		logging.Logger.Error("Request validation failed", zap.Error(err))
		return response.BadRequest(c, err.Error())
	}

	if err := h.store.Replace(req.Credential()); err != nil {
		return response.BadRequest(c, err.Error())
	}

	user := "unknown"
	if u, ok := middleware.GetUserFromContext(c); ok {
		user = u.Name
	}
	logging.Logger.Info("Vendor credentials rotated",
		zap.String("user", user),
		logging.SecretLen("session_cookie", req.SessionCookie),
		logging.SecretLen("tenant_cookie", req.TenantCookie),
		zap.Bool("csrf_token", req.CSRFToken != ""),
		zap.Bool("bearer_token", req.BearerToken != ""))

	return response.OK(c, "Credentials updated", h.store.Status())
}
