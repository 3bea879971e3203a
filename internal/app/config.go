package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"securechat/internal/delivery"
	"securechat/internal/domain"
)

// Backend kinds.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRelay  = "relay"
)

// Config holds runtime wiring options for building the app.
type Config struct {
	Home       string // data directory, default $HOME/.securechat
	User       string // local user id
	Passphrase string // protects the device key file; empty keeps the key in memory only
	Token      string // relay bearer token

	Backend       string `default:"sqlite"`
	SQLitePath    string `envconfig:"SQLITE_PATH"`
	RelayURL      string `envconfig:"RELAY_URL" default:"http://127.0.0.1:8080"`
	DirectoryFile string `envconfig:"DIRECTORY_FILE"`
	Delivery      string `default:"push"`
	Curve         string `default:"x25519"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"warn"`

	PollInterval        time.Duration `envconfig:"POLL_INTERVAL" default:"1s"`
	PeerKeyPollInterval time.Duration `envconfig:"PEER_KEY_POLL_INTERVAL" default:"1500ms"`
	PeerKeyTimeout      time.Duration `envconfig:"PEER_KEY_TIMEOUT" default:"15s"`
	TypingWindow        time.Duration `envconfig:"TYPING_WINDOW" default:"4s"`
	TypingThrottle      time.Duration `envconfig:"TYPING_THROTTLE" default:"1500ms"`

	Clock clock.Clock `ignored:"true"`
}

// LoadConfig loads the named .env files when they exist, then reads
// SECURECHAT_* variables.
func LoadConfig(envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	var cfg Config
	if err := envconfig.Process("SECURECHAT", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Normalize fills derived defaults and validates the combination.
func (c Config) Normalize() (Config, error) {
	if c.Home == "" {
		dir, err := os.UserHomeDir()
		if err != nil {
			return c, err
		}
		c.Home = filepath.Join(dir, ".securechat")
	}
	if c.SQLitePath == "" {
		c.SQLitePath = filepath.Join(c.Home, "chat.db")
	}
	if c.DirectoryFile == "" {
		c.DirectoryFile = filepath.Join(c.Home, "users.json")
	}
	if c.Backend == "" {
		c.Backend = BackendSQLite
	}
	if c.Delivery == "" {
		c.Delivery = string(delivery.ModePush)
	}
	if c.Curve == "" {
		c.Curve = string(domain.CurveX25519)
	}

	switch c.Backend {
	case BackendMemory, BackendSQLite:
	case BackendRelay:
		if c.RelayURL == "" {
			return c, errors.New("config: relay backend needs a relay url")
		}
	default:
		return c, fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	switch delivery.Mode(c.Delivery) {
	case delivery.ModePush, delivery.ModePoll:
	default:
		return c, fmt.Errorf("config: unknown delivery %q", c.Delivery)
	}
	if !domain.Curve(c.Curve).Valid() {
		return c, fmt.Errorf("config: unknown curve %q", c.Curve)
	}
	return c, nil
}

// UserHome is the per-user directory under Home.
func (c Config) UserHome() string { return filepath.Join(c.Home, c.User) }
