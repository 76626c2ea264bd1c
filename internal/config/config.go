// README: Config loader; YAML file with env-var overrides.
package config

import (
	"errors"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	DB struct {
		DSN string `yaml:"dsn"`
	} `yaml:"db"`
	Redis struct {
		Addr string `yaml:"addr"`
	} `yaml:"redis"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`
	Commission struct {
		// DefaultPct is the fallback commission percentage when no
		// per-city rate row exists.
		DefaultPct float64 `yaml:"default_pct"`
		// StarValue is the cash value of one Star in the smallest
		// currency unit.
		StarValue int64 `yaml:"star_value"`
		// RateCacheSeconds bounds how long a rate row is served from redis.
		RateCacheSeconds int `yaml:"rate_cache_seconds"`
	} `yaml:"commission"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("TAXI_CONFIG")
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if cfg.DB.DSN == "" {
		return nil, errors.New("db.dsn is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}
	if cfg.Commission.StarValue <= 0 {
		return nil, errors.New("commission.star_value must be positive")
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Commission.DefaultPct == 0 {
		cfg.Commission.DefaultPct = 5.0
	}
	if cfg.Commission.StarValue == 0 {
		cfg.Commission.StarValue = 20
	}
	if cfg.Commission.RateCacheSeconds == 0 {
		cfg.Commission.RateCacheSeconds = 300
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TAXI_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("TAXI_DB_DSN"); v != "" {
		cfg.DB.DSN = v
	}
	if v := os.Getenv("TAXI_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("TAXI_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("TAXI_COMMISSION_PCT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Commission.DefaultPct = f
		}
	}
	if v := os.Getenv("TAXI_STAR_VALUE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Commission.StarValue = n
		}
	}
	if v := os.Getenv("TAXI_RATE_CACHE_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Commission.RateCacheSeconds = n
		}
	}
}
