package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full proxy configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	Vendor      VendorConfig      `yaml:"vendor"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Cache       CacheConfig       `yaml:"cache"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Eligibility EligibilityConfig `yaml:"eligibility"`
}

type ServerConfig struct {
	Port      int    `yaml:"port" validate:"min=1,max=65535"`
	PublicURL string `yaml:"public_url" validate:"omitempty,url"`
	// AdminAPIKey is shorthand for a single admin entry in APIKeys.
	AdminAPIKey     string        `yaml:"admin_api_key"`
	APIKeys         []APIKey      `yaml:"api_keys" validate:"dive"`
	InstanceIDPath  string        `yaml:"instance_id_path"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"min=0"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

type VendorConfig struct {
	URLTemplate       string        `yaml:"url_template" validate:"required,contains={key}"`
	UploadMarker      string        `yaml:"upload_marker" validate:"required"`
	SessionCookieName string        `yaml:"session_cookie_name" validate:"required"`
	TenantCookieName  string        `yaml:"tenant_cookie_name" validate:"required"`
	CSRFHeader        string        `yaml:"csrf_header"`
	UserAgent         string        `yaml:"user_agent"`
	Referer           string        `yaml:"referer"`
	Timeout           time.Duration `yaml:"timeout" validate:"min=15s,max=30s"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes" validate:"min=1024"`
	MaxRedirects      int           `yaml:"max_redirects" validate:"min=0,max=10"`
}

// CredentialsConfig seeds the vendor session at startup. Values are usually
// supplied through the environment and rotated later over the admin API.
type CredentialsConfig struct {
	SessionCookie string `yaml:"session_cookie"`
	TenantCookie  string `yaml:"tenant_cookie"`
	CSRFToken     string `yaml:"csrf_token"`
	BearerToken   string `yaml:"bearer_token"`
}

type CacheConfig struct {
	Backend     string        `yaml:"backend" validate:"oneof=memory leveldb redis"`
	TTL         time.Duration `yaml:"ttl" validate:"min=1s"`
	MaxEntries  int           `yaml:"max_entries" validate:"min=0"`
	LevelDBPath string        `yaml:"leveldb_path" validate:"required_if=Backend leveldb"`
	RedisAddr   string        `yaml:"redis_addr" validate:"required_if=Backend redis"`
	RedisPrefix string        `yaml:"redis_prefix"`
}

type RateLimitConfig struct {
	// PerMinute of 0 disables the local token bucket.
	PerMinute  int           `yaml:"per_minute" validate:"min=0"`
	Burst      int           `yaml:"burst" validate:"min=1"`
	BlockOn429 time.Duration `yaml:"block_on_429" validate:"min=0"`
}

type EligibilityConfig struct {
	URL     string        `yaml:"url" validate:"omitempty,url"`
	Timeout time.Duration `yaml:"timeout" validate:"min=0"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			InstanceIDPath:  "./data/instance-id",
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Vendor: VendorConfig{
			URLTemplate:       "https://mvncorp.kpaehs.com/get-upload?key={key}",
			UploadMarker:      "get-upload",
			SessionCookieName: "6Pphk3dbK4Y-mvncorp",
			TenantCookieName:  "last-subdomain",
			CSRFHeader:        "isc-csrf-token",
			UserAgent:         "Mozilla/5.0 (compatible; WinnersCardBot/1.0)",
			Referer:           "https://mvncorp.kpaehs.com/",
			Timeout:           20 * time.Second,
			MaxBodyBytes:      10 << 20,
			MaxRedirects:      5,
		},
		Cache: CacheConfig{
			Backend:     "memory",
			TTL:         time.Hour,
			LevelDBPath: "./data/photos",
			RedisPrefix: "photoproxy",
		},
		RateLimit: RateLimitConfig{
			PerMinute:  75,
			Burst:      5,
			BlockOn429: 60 * time.Second,
		},
		Eligibility: EligibilityConfig{Timeout: 30 * time.Second},
	}
}

// Load reads .env (if present), the YAML file at path (if present) over the
// defaults, then applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and the API key list.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return validateAPIKeys(c.AllAPIKeys())
}
