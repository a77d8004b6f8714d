package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	internalMiddleware "github.com/mvn-raffle/photoproxy/internal/middleware"
	"github.com/mvn-raffle/photoproxy/internal/server"
	"github.com/mvn-raffle/photoproxy/pkg/cache"
	"github.com/mvn-raffle/photoproxy/pkg/config"
	"github.com/mvn-raffle/photoproxy/pkg/eligibility"
	"github.com/mvn-raffle/photoproxy/pkg/logging"
	"github.com/mvn-raffle/photoproxy/pkg/metrics"
	"github.com/mvn-raffle/photoproxy/pkg/photokey"
	"github.com/mvn-raffle/photoproxy/pkg/photoproxy"
	pkgServer "github.com/mvn-raffle/photoproxy/pkg/server"
	"github.com/mvn-raffle/photoproxy/pkg/upstream"
	"github.com/mvn-raffle/photoproxy/pkg/vendorauth"
)

// Set via -ldflags at build time
var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	// registered first so it runs after every other deferred cleanup
	exitCode := 0
	defer func() {
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	}()

	// Parse flags
	var configPath string
	flag.StringVar(&configPath, "config-path", "config.local.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Configuration loaded from %s", configPath)

	// Initialize structured logging
	if err := logging.InitLogger(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer func() { _ = logging.Logger.Sync() }()
	logging.Logger.Info("Structured logging initialized",
		zap.String("level", cfg.Logging.Level),
		zap.String("format", cfg.Logging.Format))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	instanceID, err := pkgServer.GetOrCreateInstanceID(cfg.Server.InstanceIDPath)
	if err != nil {
		logging.Logger.Fatal("Failed to get or create instance ID", zap.Error(err))
	}

	// Vendor session
	auth := vendorauth.NewContext(vendorauth.Settings{
		SessionCookieName: cfg.Vendor.SessionCookieName,
		TenantCookieName:  cfg.Vendor.TenantCookieName,
		CSRFHeader:        cfg.Vendor.CSRFHeader,
		UserAgent:         cfg.Vendor.UserAgent,
		Referer:           cfg.Vendor.Referer,
	}, vendorauth.Credential{
		SessionCookie: cfg.Credentials.SessionCookie,
		TenantCookie:  cfg.Credentials.TenantCookie,
		CSRFToken:     cfg.Credentials.CSRFToken,
		BearerToken:   cfg.Credentials.BearerToken,
	})
	if st := auth.Status(); st.Configured {
		logging.Logger.Info("Vendor credentials loaded",
			logging.SecretLen("session_cookie", cfg.Credentials.SessionCookie),
			zap.Bool("csrf_token", st.HasCSRFToken),
			zap.Bool("bearer_token", st.HasBearerToken))
	} else {
		logging.Logger.Warn("Vendor credentials not configured, photo misses will be rejected until rotated in")
	}

	// Outbound vendor access
	limiter := upstream.NewLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst)
	fetcher, err := upstream.NewFetcher(upstream.Config{
		URLTemplate:       cfg.Vendor.URLTemplate,
		Timeout:           cfg.Vendor.Timeout,
		MaxBodyBytes:      cfg.Vendor.MaxBodyBytes,
		DefaultRetryAfter: cfg.RateLimit.BlockOn429,
		MaxRedirects:      cfg.Vendor.MaxRedirects,
	}, limiter)
	if err != nil {
		logging.Logger.Fatal("Failed to create vendor fetcher", zap.Error(err))
	}

	photos := cache.New(ctx, cache.Settings{
		Backend:     cfg.Cache.Backend,
		LevelDBPath: cfg.Cache.LevelDBPath,
		RedisAddr:   cfg.Cache.RedisAddr,
		RedisPrefix: cfg.Cache.RedisPrefix,
		Options: cache.Options{
			TTL:        cfg.Cache.TTL,
			MaxEntries: cfg.Cache.MaxEntries,
		},
	})
	defer func() {
		if err := photos.Close(); err != nil {
			logging.Logger.Warn("Failed to close photo cache", zap.Error(err))
		}
	}()

	m := metrics.New()
	svc := photoproxy.NewService(photokey.NewExtractor(cfg.Vendor.UploadMarker), auth, fetcher, photos, m)

	gateway := eligibility.New(cfg.Eligibility.URL, cfg.Eligibility.Timeout)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = server.NewValidator()

	e.Use(internalMiddleware.RecoverMiddleware())
	e.Use(internalMiddleware.LoggerMiddleware())
	e.Use(internalMiddleware.CORSMiddleware())
	e.Use(internalMiddleware.InstanceIDMiddleware(instanceID))
	e.Use(internalMiddleware.MetricsMiddleware(m))

	srv := server.New(e, cfg, server.Dependencies{
		Auth:     auth,
		Limiter:  limiter,
		Cache:    photos,
		Photos:   svc,
		Gateway:  gateway,
		Metrics:  m,
		CacheTTL: cfg.Cache.TTL,
	}, instanceID, &server.VersionInfo{
		Version:   version,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
	})
	logging.Logger.Info("Server initialized", zap.String("instance_id", instanceID))

	if err := srv.Start(ctx); err != nil {
		// deferred cache close and log sync still run before exit
		logging.Logger.Error("Server error", zap.Error(err))
		exitCode = 1
	}
}
