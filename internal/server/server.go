package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mvn-raffle/photoproxy/internal/api/common"
	"github.com/mvn-raffle/photoproxy/internal/api/credentials"
	eligibilityapi "github.com/mvn-raffle/photoproxy/internal/api/eligibility"
	"github.com/mvn-raffle/photoproxy/internal/api/photo"
	"github.com/mvn-raffle/photoproxy/internal/api/ratelimit"
	"github.com/mvn-raffle/photoproxy/internal/api/user"
	"github.com/mvn-raffle/photoproxy/internal/middleware"
	"github.com/mvn-raffle/photoproxy/pkg/cache"
	"github.com/mvn-raffle/photoproxy/pkg/config"
	"github.com/mvn-raffle/photoproxy/pkg/eligibility"
	"github.com/mvn-raffle/photoproxy/pkg/logging"
	"github.com/mvn-raffle/photoproxy/pkg/metrics"
	"github.com/mvn-raffle/photoproxy/pkg/photoproxy"
	"github.com/mvn-raffle/photoproxy/pkg/upstream"
	"github.com/mvn-raffle/photoproxy/pkg/vendorauth"
)

// VersionInfo contains build version information
type VersionInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
}

// CustomValidator wraps the validator
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates the request validator used by echo
func NewValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New()}
}

// Validate validates the struct
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// Dependencies are the components the routes are served from
type Dependencies struct {
	Auth     *vendorauth.Context
	Limiter  *upstream.Limiter
	Cache    cache.PhotoCache
	Photos   *photoproxy.Service
	Gateway  eligibility.Gateway
	Metrics  *metrics.Metrics
	CacheTTL time.Duration
}

// Server represents the proxy server
type Server struct {
	echo        *echo.Echo
	cfg         *config.Config
	deps        Dependencies
	instanceID  string
	versionInfo *VersionInfo
}

// New creates a new proxy server instance and registers all routes
func New(
	e *echo.Echo,
	cfg *config.Config,
	deps Dependencies,
	instanceID string, // proxy instance ID for telling replicas apart
	versionInfo *VersionInfo, // Version information for /version endpoint
) *Server {
	srv := &Server{
		echo:        e,
		cfg:         cfg,
		deps:        deps,
		instanceID:  instanceID,
		versionInfo: versionInfo,
	}

	photo.RegisterRoutes(e, photo.NewHandler(deps.Photos, deps.CacheTTL))

	apiKeys := cfg.AllAPIKeys()
	if len(apiKeys) == 0 {
		logging.Logger.Warn("No API keys configured, admin routes will reject every request")
	}

	api := e.Group("/api/v1")
	api.Use(middleware.APIKeyMiddleware(apiKeys))
	// Add version header only to authenticated requests (security: prevents version fingerprinting)
	api.Use(middleware.VersionMiddleware(srv.versionInfo.Version))

	credentials.RegisterRoutes(api.Group("/credentials"), credentials.NewHandler(deps.Auth))
	ratelimit.RegisterRoutes(api.Group("/rate-limit"), ratelimit.NewHandler(deps.Limiter))
	eligibilityapi.RegisterRoutes(api.Group("/eligibility"), eligibilityapi.NewHandler(deps.Gateway))
	user.RegisterRoutes(api.Group("/user"), user.NewHandler())

	// Version endpoint (requires auth - security: prevents version fingerprinting by unauthenticated users)
	api.GET("/version", srv.handleVersion)

	// Health check (no auth required - for load balancers/probes)
	// Supports ?info=true to return credential, cache and limiter state
	e.GET("/health", srv.handleHealth)
	e.GET("/metrics", echo.WrapHandler(deps.Metrics.Handler()))

	return srv
}

// handleHealth handles the health check endpoint
// Returns 200 OK for normal health checks
// Returns JSON with proxy state when ?info=true is specified
func (s *Server) handleHealth(c echo.Context) error {
	if c.QueryParam("info") != "true" {
		return c.NoContent(http.StatusOK)
	}

	info := common.HealthInfo{
		Status:      "ok",
		InstanceID:  s.instanceID,
		PublicURL:   s.cfg.Server.PublicURL,
		Credentials: s.deps.Auth.Status(),
		Cache: common.CacheInfo{
			Backend:    s.deps.Cache.Backend(),
			Entries:    s.deps.Cache.Len(),
			TTLSeconds: int(s.deps.CacheTTL.Seconds()),
		},
		RateLimit: s.deps.Limiter.Status(),
	}
	if !info.Credentials.Configured {
		info.Status = "degraded"
	}
	return c.JSON(http.StatusOK, info)
}

// handleVersion handles the version endpoint
func (s *Server) handleVersion(c echo.Context) error {
	return c.JSON(http.StatusOK, s.versionInfo)
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	errCh := make(chan error, 1)

	go func() {
		logging.Logger.Info("Starting server", zap.String("addr", addr))
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logging.Logger.Info("Shutting down server", zap.Duration("timeout", timeout))
	return s.echo.Shutdown(shutdownCtx)
}
