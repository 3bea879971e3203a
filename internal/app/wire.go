package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/benbjohnson/clock"

	"securechat/internal/chat"
	"securechat/internal/delivery"
	"securechat/internal/directory"
	"securechat/internal/domain"
	"securechat/internal/logging"
	"securechat/internal/relay"
	"securechat/internal/schedule"
	"securechat/internal/services/exchange"
	"securechat/internal/services/keys"
	"securechat/internal/services/message"
	"securechat/internal/services/presence"
	"securechat/internal/services/registry"
	"securechat/internal/store"
)

// Wire bundles the backend, delivery channel and services for one user.
type Wire struct {
	Config    Config
	Log       logging.Logger
	Clock     clock.Clock
	Scheduler *schedule.Scheduler
	Backend   domain.Backend
	Channel   domain.Channel
	Directory domain.UserDirectory

	Keys     *keys.Service
	Registry *registry.Service
	Exchange *exchange.Service
	Messages *message.Service
	Presence *presence.Service

	closers []func() error
}

// NewWire constructs the dependency graph from cfg.
func NewWire(ctx context.Context, cfg Config, log logging.Logger) (*Wire, error) {
	cfg, err := cfg.Normalize()
	if err != nil {
		return nil, err
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("%w: no user configured", domain.ErrInvalidArgument)
	}
	log = logging.OrNop(log).With("user", cfg.User)
	c := cfg.Clock
	if c == nil {
		c = clock.New()
	}
	if err := os.MkdirAll(cfg.UserHome(), 0o700); err != nil {
		return nil, err
	}

	w := &Wire{Config: cfg, Log: log, Clock: c, Scheduler: schedule.New(c)}

	var watcher domain.Watcher
	switch cfg.Backend {
	case BackendMemory:
		m := store.NewMemory(c)
		w.Backend, watcher = m, m
	case BackendSQLite:
		s, err := store.OpenSQLite(ctx, cfg.SQLitePath, c)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", cfg.SQLitePath, err)
		}
		w.Backend = s
		w.closers = append(w.closers, s.Close)
	case BackendRelay:
		rc := relay.NewClient(cfg.RelayURL, cfg.Token, log)
		w.Backend, watcher = rc, rc
	}

	w.Channel, err = delivery.New(delivery.Mode(cfg.Delivery), watcher, w.Scheduler, cfg.PollInterval, log)
	if err != nil {
		_ = w.Close()
		return nil, err
	}

	dir, err := directory.LoadFile(cfg.DirectoryFile)
	if err != nil {
		_ = w.Close()
		return nil, err
	}
	w.Directory = dir

	var keyStore domain.KeyPairStore
	if cfg.Passphrase != "" {
		keyStore = store.NewKeyFile(cfg.UserHome(), cfg.Passphrase)
	}
	w.Keys = keys.New(domain.Curve(cfg.Curve), keyStore, log)
	w.Registry = registry.New(w.Backend, w.Channel, c, log)
	w.Exchange = exchange.New(w.Backend, w.Scheduler, exchange.Config{
		PollInterval: cfg.PeerKeyPollInterval,
		Timeout:      cfg.PeerKeyTimeout,
	}, log)
	w.Messages = message.New(w.Backend, w.Channel, log)
	w.Presence = presence.New(w.Backend, w.Channel, c, log)
	return w, nil
}

// ChatDeps returns the services a conversation runs on.
func (w *Wire) ChatDeps() chat.Deps {
	return chat.Deps{
		Keys:           w.Keys,
		Registry:       w.Registry,
		Exchange:       w.Exchange,
		Messages:       w.Messages,
		Presence:       w.Presence,
		Directory:      w.Directory,
		Clock:          w.Clock,
		Log:            w.Log,
		TypingWindow:   w.Config.TypingWindow,
		TypingThrottle: w.Config.TypingThrottle,
	}
}

// Close releases the backend.
func (w *Wire) Close() error {
	var errs []error
	for i := len(w.closers) - 1; i >= 0; i-- {
		errs = append(errs, w.closers[i]())
	}
	w.closers = nil
	return errors.Join(errs...)
}
