// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Visibility engines accepted in VISIBILITY_ENGINE.
const (
	EngineNative = "native"
	EngineOPA    = "opa"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// GRPCAddr is the address the gRPC server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// HTTPAddr serves the calendar feeds, /healthz and /metrics.
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisURL is the redis:// URL of the per-device organization preference store.
	// Empty keeps preferences in process memory.
	RedisURL string `mapstructure:"REDIS_URL"`
	// PreferenceTTL expires stored preferences of idle devices (e.g. "720h"); 0 keeps them forever.
	PreferenceTTL string `mapstructure:"PREFERENCE_TTL"`
	// JWTPublicKey is the PEM-encoded public key or path to file used to validate access tokens.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTPrivateKey is optional; the server only validates tokens. cmd/seed uses it to mint demo tokens.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTIssuer is the expected iss claim.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the expected aud claim.
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the lifetime of tokens minted by cmd/seed (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// OTLPEndpoint enables OTel export when set (e.g. "localhost:4317").
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	ServiceName  string `mapstructure:"OTEL_SERVICE_NAME"`

	// VisibilityEngine is "native" or "opa".
	VisibilityEngine string `mapstructure:"VISIBILITY_ENGINE"`
	// ICalCacheTTL is how long rendered feeds are reused (e.g. "5m"); 0 disables the cache.
	ICalCacheTTL string `mapstructure:"ICAL_CACHE_TTL"`
	// ICalCacheSize bounds the number of cached feeds.
	ICalCacheSize int `mapstructure:"ICAL_CACHE_SIZE"`
	// ICalLookbackDays limits exported events to those starting at most this many days ago.
	ICalLookbackDays int `mapstructure:"ICAL_LOOKBACK_DAYS"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := newViper()

	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("HTTP_ADDR", ":8081")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("PREFERENCE_TTL", "0")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_ISSUER", "pulsedeck-auth")
	v.SetDefault("JWT_AUDIENCE", "pulsedeck-api")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "pulsedeck")
	v.SetDefault("VISIBILITY_ENGINE", EngineNative)
	v.SetDefault("ICAL_CACHE_TTL", "5m")
	v.SetDefault("ICAL_CACHE_SIZE", 1024)
	v.SetDefault("ICAL_LOOKBACK_DAYS", 90)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.GRPCAddr == "" {
		return nil, errors.New("config: GRPC_ADDR must be set")
	}
	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	cfg.VisibilityEngine = strings.ToLower(strings.TrimSpace(cfg.VisibilityEngine))
	if cfg.VisibilityEngine != EngineNative && cfg.VisibilityEngine != EngineOPA {
		return nil, errors.New("config: VISIBILITY_ENGINE must be native or opa")
	}
	if cfg.ICalCacheSize < 0 {
		return nil, errors.New("config: ICAL_CACHE_SIZE must not be negative")
	}
	if cfg.ICalLookbackDays < 0 {
		return nil, errors.New("config: ICAL_LOOKBACK_DAYS must not be negative")
	}
	if cfg.Env == "production" && cfg.JWTPublicKey == "" {
		return nil, errors.New("config: JWT_PUBLIC_KEY must be set when APP_ENV=production")
	}

	return &cfg, nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return positiveDuration(c.JWTAccessTTL, 15*time.Minute)
}

// CacheTTL parses ICalCacheTTL. An invalid value yields the 5m default; "0" disables caching.
func (c *Config) CacheTTL() time.Duration {
	d, err := time.ParseDuration(c.ICalCacheTTL)
	if err != nil || d < 0 {
		return 5 * time.Minute
	}
	return d
}

// PrefTTL parses PreferenceTTL. Zero, negative or invalid values mean no expiry.
func (c *Config) PrefTTL() time.Duration {
	return positiveDuration(c.PreferenceTTL, 0)
}

// Lookback returns ICalLookbackDays as a duration.
func (c *Config) Lookback() time.Duration {
	return time.Duration(c.ICalLookbackDays) * 24 * time.Hour
}

// ClientConfig configures the pdctl command line client.
type ClientConfig struct {
	// Server is the gRPC address of the access API.
	Server string `mapstructure:"PULSEDECK_SERVER"`
	// Token is the access token issued by the auth provider.
	Token string `mapstructure:"PULSEDECK_TOKEN"`
	// DeviceID names this device; the server keys stored preferences by it.
	DeviceID string `mapstructure:"PULSEDECK_DEVICE_ID"`
	// PrefsFile overrides the location of the local preference file.
	PrefsFile string `mapstructure:"PULSEDECK_PREFS_FILE"`
	// JWTPublicKey, when set, lets the client validate the token locally before using it.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	JWTIssuer    string `mapstructure:"JWT_ISSUER"`
	JWTAudience  string `mapstructure:"JWT_AUDIENCE"`
	LogLevel     string `mapstructure:"LOG_LEVEL"`
}

// LoadClient reads the client settings the same way Load reads the server settings.
func LoadClient() (*ClientConfig, error) {
	v := newViper()

	v.SetDefault("PULSEDECK_SERVER", "localhost:8080")
	v.SetDefault("PULSEDECK_TOKEN", "")
	v.SetDefault("PULSEDECK_DEVICE_ID", "cli")
	v.SetDefault("PULSEDECK_PREFS_FILE", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "pulsedeck-auth")
	v.SetDefault("JWT_AUDIENCE", "pulsedeck-api")
	v.SetDefault("LOG_LEVEL", "warn")

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.Server == "" {
		return nil, errors.New("config: PULSEDECK_SERVER must be set")
	}
	return &cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound
	v.AutomaticEnv()
	return v
}

func positiveDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
