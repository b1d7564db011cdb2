// Package config handles application configuration from environment variables
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Port        int    `env:"PORT" envDefault:"8000"`
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"1"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	// RedisAddr enables queued record writes through asynq when set.
	RedisAddr string `env:"REDIS_ADDR"`

	Upstream UpstreamConfig
}

// UpstreamConfig holds the credentials and endpoints of every data provider
type UpstreamConfig struct {
	Timeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"0s"`

	Geocode    ProviderConfig `envPrefix:"GEOCODE_"`
	Weather    ProviderConfig `envPrefix:"WEATHER_"`
	Eventbrite ProviderConfig `envPrefix:"EVENTBRITE_"`
	Movie      ProviderConfig `envPrefix:"MOVIE_"`
	Yelp       ProviderConfig `envPrefix:"YELP_"`
}

// ProviderConfig is one provider's key and optional base URL override
type ProviderConfig struct {
	APIKey  string `env:"API_KEY"`
	BaseURL string `env:"BASE_URL"`
}

// Configured reports whether the provider has a key
func (p ProviderConfig) Configured() bool {
	return p.APIKey != ""
}

// Load reads a .env file when present, then parses the environment.
func Load() (*Config, error) {
	// Missing .env is the normal case outside local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.DBMaxConns < 1 {
		return nil, fmt.Errorf("DB_MAX_CONNS must be at least 1, got %d", cfg.DBMaxConns)
	}
	if cfg.Upstream.Timeout < 0 {
		return nil, fmt.Errorf("UPSTREAM_TIMEOUT must not be negative, got %s", cfg.Upstream.Timeout)
	}
	return cfg, nil
}

// Missing lists the env vars of providers with no key
func (u UpstreamConfig) Missing() []string {
	var missing []string
	for _, p := range []struct {
		name string
		cfg  ProviderConfig
	}{
		{"GEOCODE_API_KEY", u.Geocode},
		{"WEATHER_API_KEY", u.Weather},
		{"EVENTBRITE_API_KEY", u.Eventbrite},
		{"MOVIE_API_KEY", u.Movie},
		{"YELP_API_KEY", u.Yelp},
	} {
		if !p.cfg.Configured() {
			missing = append(missing, p.name)
		}
	}
	return missing
}

// Validate reports provider keys that are not set. The server still starts
// without them; the affected routes answer 500.
func (c *Config) Validate() error {
	if missing := c.Upstream.Missing(); len(missing) > 0 {
		return errors.New("missing provider keys: " + strings.Join(missing, ", "))
	}
	return nil
}
