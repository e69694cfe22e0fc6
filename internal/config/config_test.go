package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GRPCAddr != ":8080" {
		t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, ":8080")
	}
	if cfg.HTTPAddr != ":8081" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8081")
	}
	if cfg.JWTIssuer != "pulsedeck-auth" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "pulsedeck-auth")
	}
	if cfg.JWTAudience != "pulsedeck-api" {
		t.Errorf("JWTAudience = %q, want %q", cfg.JWTAudience, "pulsedeck-api")
	}
	if cfg.VisibilityEngine != EngineNative {
		t.Errorf("VisibilityEngine = %q, want native", cfg.VisibilityEngine)
	}
	if cfg.ICalCacheSize != 1024 {
		t.Errorf("ICalCacheSize = %d, want 1024", cfg.ICalCacheSize)
	}
	if cfg.Lookback() != 90*24*time.Hour {
		t.Errorf("Lookback = %v, want 90 days", cfg.Lookback())
	}
	if cfg.CacheTTL() != 5*time.Minute {
		t.Errorf("CacheTTL = %v, want 5m", cfg.CacheTTL())
	}
	if cfg.PrefTTL() != 0 {
		t.Errorf("PrefTTL = %v, want 0", cfg.PrefTTL())
	}
	if cfg.ServiceName != "pulsedeck" {
		t.Errorf("ServiceName = %q", cfg.ServiceName)
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("GRPC_ADDR", ":9090")
	os.Setenv("JWT_ISSUER", "custom-issuer")
	os.Setenv("VISIBILITY_ENGINE", "OPA")
	os.Setenv("ICAL_CACHE_TTL", "0")
	os.Setenv("PREFERENCE_TTL", "720h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GRPCAddr != ":9090" {
		t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, ":9090")
	}
	if cfg.JWTIssuer != "custom-issuer" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "custom-issuer")
	}
	if cfg.VisibilityEngine != EngineOPA {
		t.Errorf("VisibilityEngine = %q, want opa", cfg.VisibilityEngine)
	}
	if cfg.CacheTTL() != 0 {
		t.Errorf("CacheTTL = %v, want 0 (disabled)", cfg.CacheTTL())
	}
	if cfg.PrefTTL() != 720*time.Hour {
		t.Errorf("PrefTTL = %v, want 720h", cfg.PrefTTL())
	}
}

func TestLoad_Validation(t *testing.T) {
	testCases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"unknown engine", map[string]string{"VISIBILITY_ENGINE": "rego"}, "config: VISIBILITY_ENGINE must be native or opa"},
		{"negative cache size", map[string]string{"ICAL_CACHE_SIZE": "-1"}, "config: ICAL_CACHE_SIZE must not be negative"},
		{"negative lookback", map[string]string{"ICAL_LOOKBACK_DAYS": "-3"}, "config: ICAL_LOOKBACK_DAYS must not be negative"},
		{"production without key", map[string]string{"APP_ENV": "production"}, "config: JWT_PUBLIC_KEY must be set when APP_ENV=production"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tc.env {
				os.Setenv(k, v)
			}
			cfg, err := Load()
			if err == nil {
				t.Fatal("Load should return error")
			}
			if cfg != nil {
				t.Error("Load should return nil config on error")
			}
			if err.Error() != tc.want {
				t.Errorf("error = %q, want %q", err.Error(), tc.want)
			}
		})
	}
}

func TestAccessTTL(t *testing.T) {
	testCases := []struct {
		value string
		want  time.Duration
	}{
		{"30m", 30 * time.Minute},
		{"invalid", 15 * time.Minute},
		{"0", 15 * time.Minute},
		{"-5m", 15 * time.Minute},
	}
	for _, tc := range testCases {
		t.Run(tc.value, func(t *testing.T) {
			cfg := &Config{JWTAccessTTL: tc.value}
			if got := cfg.AccessTTL(); got != tc.want {
				t.Errorf("AccessTTL = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCacheTTL_Invalid(t *testing.T) {
	cfg := &Config{ICalCacheTTL: "soon"}
	if got := cfg.CacheTTL(); got != 5*time.Minute {
		t.Errorf("CacheTTL = %v, want default 5m", got)
	}
}

func TestLoadClient(t *testing.T) {
	os.Clearenv()
	os.Setenv("PULSEDECK_TOKEN", "tok")

	cfg, err := LoadClient()
	if err != nil {
		t.Fatalf("LoadClient: %v", err)
	}
	if cfg.Server != "localhost:8080" {
		t.Errorf("Server = %q", cfg.Server)
	}
	if cfg.Token != "tok" {
		t.Errorf("Token = %q", cfg.Token)
	}
	if cfg.DeviceID != "cli" {
		t.Errorf("DeviceID = %q, want cli", cfg.DeviceID)
	}
}
