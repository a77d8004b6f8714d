package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const envPrefix = "PHOTOPROXY_"

// applyEnv overrides file values with PHOTOPROXY_* variables and PORT.
func (c *Config) applyEnv() error {
	var err error
	setString := func(name string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if err != nil {
			return
		}
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			n, perr := strconv.Atoi(v)
			if perr != nil {
				err = fmt.Errorf("invalid %s%s: %w", envPrefix, name, perr)
				return
			}
			*dst = n
		}
	}
	setDuration := func(name string, dst *time.Duration) {
		if err != nil {
			return
		}
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			d, perr := time.ParseDuration(v)
			if perr != nil {
				err = fmt.Errorf("invalid %s%s: %w", envPrefix, name, perr)
				return
			}
			*dst = d
		}
	}

	if v := os.Getenv("PORT"); v != "" {
		port, perr := strconv.Atoi(v)
		if perr != nil {
			return fmt.Errorf("invalid PORT: %w", perr)
		}
		c.Server.Port = port
	}
	setInt("PORT", &c.Server.Port)
	setString("PUBLIC_URL", &c.Server.PublicURL)
	setString("ADMIN_API_KEY", &c.Server.AdminAPIKey)
	setString("INSTANCE_ID_PATH", &c.Server.InstanceIDPath)

	setString("LOG_LEVEL", &c.Logging.Level)
	setString("LOG_FORMAT", &c.Logging.Format)

	setString("VENDOR_URL_TEMPLATE", &c.Vendor.URLTemplate)
	setString("UPLOAD_MARKER", &c.Vendor.UploadMarker)
	setDuration("VENDOR_TIMEOUT", &c.Vendor.Timeout)

	setString("SESSION_COOKIE", &c.Credentials.SessionCookie)
	setString("TENANT_COOKIE", &c.Credentials.TenantCookie)
	setString("CSRF_TOKEN", &c.Credentials.CSRFToken)
	setString("BEARER_TOKEN", &c.Credentials.BearerToken)

	setString("CACHE_BACKEND", &c.Cache.Backend)
	setDuration("CACHE_TTL", &c.Cache.TTL)
	setInt("CACHE_MAX_ENTRIES", &c.Cache.MaxEntries)
	setString("LEVELDB_PATH", &c.Cache.LevelDBPath)
	setString("REDIS_ADDR", &c.Cache.RedisAddr)
	setString("REDIS_PREFIX", &c.Cache.RedisPrefix)

	setInt("RATE_LIMIT_PER_MINUTE", &c.RateLimit.PerMinute)
	setInt("RATE_LIMIT_BURST", &c.RateLimit.Burst)

	setString("ELIGIBILITY_URL", &c.Eligibility.URL)
	setDuration("ELIGIBILITY_TIMEOUT", &c.Eligibility.Timeout)

	return err
}
