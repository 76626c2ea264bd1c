// README: Config loader tests.
package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfigFile(t, `
db:
  dsn: postgres://localhost/taxi_test
auth:
  jwt_secret: test-secret
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("http.addr = %q, want :8080", cfg.HTTP.Addr)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("redis.addr = %q, want localhost:6379", cfg.Redis.Addr)
	}
	if cfg.Commission.DefaultPct != 5.0 {
		t.Errorf("commission.default_pct = %v, want 5.0", cfg.Commission.DefaultPct)
	}
	if cfg.Commission.StarValue != 20 {
		t.Errorf("commission.star_value = %d, want 20", cfg.Commission.StarValue)
	}
	if cfg.Commission.RateCacheSeconds != 300 {
		t.Errorf("commission.rate_cache_seconds = %d, want 300", cfg.Commission.RateCacheSeconds)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, `
http:
  addr: ":9000"
db:
  dsn: postgres://localhost/taxi_test
auth:
  jwt_secret: file-secret
commission:
  default_pct: 5
  star_value: 20
`)
	t.Setenv("TAXI_HTTP_ADDR", ":7070")
	t.Setenv("TAXI_JWT_SECRET", "env-secret")
	t.Setenv("TAXI_COMMISSION_PCT", "7.5")
	t.Setenv("TAXI_STAR_VALUE", "10")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Addr != ":7070" {
		t.Errorf("http.addr = %q, want :7070", cfg.HTTP.Addr)
	}
	if cfg.Auth.JWTSecret != "env-secret" {
		t.Errorf("auth.jwt_secret = %q, want env-secret", cfg.Auth.JWTSecret)
	}
	if cfg.Commission.DefaultPct != 7.5 {
		t.Errorf("commission.default_pct = %v, want 7.5", cfg.Commission.DefaultPct)
	}
	if cfg.Commission.StarValue != 10 {
		t.Errorf("commission.star_value = %d, want 10", cfg.Commission.StarValue)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"no dsn", "auth:\n  jwt_secret: s\n"},
		{"no jwt secret", "db:\n  dsn: postgres://localhost/taxi_test\n"},
		{"negative star value", "db:\n  dsn: postgres://x\nauth:\n  jwt_secret: s\ncommission:\n  star_value: -1\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfigFile(t, tc.body)); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}
