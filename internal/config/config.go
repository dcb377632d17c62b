package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port              int    `env:"PORT" envDefault:"8080"`
	DatabaseURL       string `env:"DATABASE_URL,required"`
	RedisURL          string `env:"REDIS_URL,required"`
	ContentTTLSeconds int    `env:"CONTENT_TTL_SECONDS" envDefault:"86400"`
	SessionTTLSeconds int    `env:"SESSION_TTL_SECONDS" envDefault:"86400"`
	SessionCodeLength int    `env:"SESSION_CODE_LENGTH" envDefault:"6"`
	LogLevel          string `env:"LOG_LEVEL" envDefault:"info"`
}

// ContentTTL is the default lifetime of a stored content entry.
func (c *Config) ContentTTL() time.Duration {
	return time.Duration(c.ContentTTLSeconds) * time.Second
}

// SessionTTL is the idle lifetime of a session before the cleanup job ends it.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	if c.SessionCodeLength < 4 || c.SessionCodeLength > 12 {
		return fmt.Errorf("SESSION_CODE_LENGTH must be between 4 and 12, got %d", c.SessionCodeLength)
	}
	if c.ContentTTLSeconds <= 0 {
		return fmt.Errorf("CONTENT_TTL_SECONDS must be positive, got %d", c.ContentTTLSeconds)
	}
	if c.SessionTTLSeconds <= 0 {
		return fmt.Errorf("SESSION_TTL_SECONDS must be positive, got %d", c.SessionTTLSeconds)
	}

	if isProduction {
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if c.ContentTTL() > MaxContentTTL {
			log.Warn().Dur("ttl", c.ContentTTL()).Msg("CONTENT_TTL_SECONDS exceeds the per-request maximum and will be clamped")
		}
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
