package server

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the relay configuration, read from RELAY_* variables.
type Config struct {
	Addr            string        `envconfig:"ADDR" default:":8080"`
	Store           string        `envconfig:"STORE" default:"memory"`
	DatabaseURL     string        `envconfig:"DATABASE_URL"`
	JWTSecret       string        `envconfig:"JWT_SECRET"`
	AllowedOrigins  []string      `envconfig:"ALLOWED_ORIGINS" default:"*"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"5s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"10s"`
	IdleTimeout     time.Duration `envconfig:"IDLE_TIMEOUT" default:"120s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	PingInterval    time.Duration `envconfig:"PING_INTERVAL" default:"30s"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
}

// Store kinds.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// LoadConfig reads the relay configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("RELAY", &cfg); err != nil {
		return Config{}, fmt.Errorf("relay config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks that the settings are usable together.
func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("relay config: RELAY_DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("relay config: unknown store %q", c.Store)
	}
	return nil
}
