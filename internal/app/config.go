package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Commerce backend drivers.
const (
	CommerceMemory     = "memory"
	CommerceStorefront = "storefront"
)

// Storage drivers for the cart identifier slot.
const (
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
	StorageSQLite   = "sqlite"
	StorageMemory   = "memory"
)

// Config holds the complete application configuration, loadable from
// environment variables (LUMIERE_ prefix), flags, or YAML config files.
type Config struct {
	Addr               string `default:"0.0.0.0:8080" usage:"HTTP listen address"`
	FeaturedCollection string `default:"new-arrivals" usage:"Collection handle shown on the home page" flag:"featured-collection"`
	Commerce           CommerceConfig
	Storage            StorageConfig
	Session            SessionConfig
	RateLimit          RateLimitConfig
	CORS               CORSConfig
	Graceful           GracefulConfig
}

// CommerceConfig selects and configures the commerce backend.
type CommerceConfig struct {
	Driver      string        `default:"memory" usage:"Commerce backend: memory or storefront"`
	Endpoint    string        `usage:"Storefront GraphQL endpoint URL"`
	AccessToken string        `usage:"Storefront access token" flag:"access-token"`
	Timeout     time.Duration `default:"10s" usage:"Storefront request timeout"`
}

// StorageConfig selects where session cart identifiers are persisted.
type StorageConfig struct {
	Driver      string        `default:"memory" usage:"Cart id storage: postgres, redis, sqlite or memory"`
	DatabaseURL string        `usage:"PostgreSQL connection URL (LUMIERE_STORAGE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL    string        `usage:"Redis URL (LUMIERE_STORAGE_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	SQLitePath  string        `default:"lumiere.db" usage:"SQLite database file" flag:"sqlite-path"`
	TTL         time.Duration `default:"240h" usage:"Forget cart ids of sessions idle this long; 0 keeps them"`
}

// SessionConfig controls the shopper session cookie and in-memory stores.
type SessionConfig struct {
	CookieName  string        `default:"lumiere_session" usage:"Session cookie name" flag:"cookie-name"`
	Secure      bool          `default:"false" usage:"Mark the session cookie Secure" flag:"cookie-secure"`
	IdleTimeout time.Duration `default:"30m" usage:"Drop in-memory cart stores idle this long" flag:"idle-timeout"`
	LazyCreate  bool          `default:"false" usage:"Create remote carts on first add instead of first visit" flag:"lazy-create"`
	MaxSessions int           `default:"100000" usage:"Liveness fails above this many in-memory sessions" flag:"max-sessions"`
}

// RateLimitConfig controls the per-session sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"120" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (the session cookie); needs explicit origins" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		Files: []string{"config.yaml", "/etc/lumiere/config.yaml"},
	})
}

func loadConfig(base aconfig.Config) (*Config, error) {
	var cfg Config
	base.EnvPrefix = "LUMIERE"
	base.FileDecoders = map[string]aconfig.FileDecoder{
		".yaml": aconfigyaml.New(),
	}
	loader := aconfig.LoaderFor(&cfg, base)
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks driver names and the settings each driver needs.
func (c *Config) Validate() error {
	switch c.Commerce.Driver {
	case CommerceMemory:
	case CommerceStorefront:
		if c.Commerce.Endpoint == "" {
			return errors.New("storefront endpoint is required: set LUMIERE_COMMERCE_ENDPOINT")
		}
	default:
		return errors.Errorf("unknown commerce driver %q", c.Commerce.Driver)
	}

	switch c.Storage.Driver {
	case StorageMemory:
	case StoragePostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("database URL is required: set LUMIERE_STORAGE_DATABASE_URL or DATABASE_URL")
		}
	case StorageRedis:
		if c.Storage.RedisURL == "" {
			return errors.New("redis URL is required: set LUMIERE_STORAGE_REDIS_URL or REDIS_URL")
		}
	case StorageSQLite:
		if c.Storage.SQLitePath == "" {
			return errors.New("sqlite path is required")
		}
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.CORS.AllowCredentials && allowsAnyOrigin(c.CORS.Origins) {
		return errors.New("cors credentials need an explicit origin list: set LUMIERE_CORS_ORIGINS")
	}

	if c.Storage.TTL < 0 {
		return errors.New("storage TTL must not be negative")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's LUMIERE_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.Storage.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.Storage.DatabaseURL = v
		}
	}
	if c.Storage.RedisURL == "" {
		if v := os.Getenv("REDIS_URL"); v != "" {
			c.Storage.RedisURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}

func allowsAnyOrigin(origins []string) bool {
	if len(origins) == 0 {
		return true
	}
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
