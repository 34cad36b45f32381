package config

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	DatabaseURL       string        `env:"DATABASE_URL,required"`
	ObfuscatorURL     string        `env:"OBFUSCATOR_URL,required"`
	ObfuscatorTimeout time.Duration `env:"OBFUSCATOR_TIMEOUT,default=30s"`
	Port              int           `env:"PORT,default=8080"`
	LogLevel          string        `env:"LOG_LEVEL,default=info"`
	CORSOrigins       []string      `env:"CORS_ORIGINS"`
	MigrationsDir     string        `env:"MIGRATIONS_DIR,default=migrations"`

	// HTTP server timeouts
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT,default=15s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT,default=30s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT,default=60s"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.ObfuscatorURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("OBFUSCATOR_URL must be an absolute URL, got %q", c.ObfuscatorURL)
	}

	if c.ObfuscatorTimeout <= 0 {
		return fmt.Errorf("OBFUSCATOR_TIMEOUT must be positive, got %s", c.ObfuscatorTimeout)
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}

	return nil
}
