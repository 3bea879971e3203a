package exchange

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"securechat/internal/domain"
	"securechat/internal/logging"
	"securechat/internal/protocol/pairwise"
	"securechat/internal/schedule"
)

const (
	// DefaultPollInterval is how often a pending exchange re-reads the session.
	DefaultPollInterval = 1500 * time.Millisecond
	// DefaultTimeout bounds how long an exchange waits for the peer key.
	DefaultTimeout = 15 * time.Second
)

// State is the lifecycle of one key exchange.
type State int

const (
	StateUninitialized State = iota
	StateKeyPublished
	StateKeyExchangePending
	StateSecure
	StateKeyExchangeTimeout
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateKeyPublished:
		return "key_published"
	case StateKeyExchangePending:
		return "key_exchange_pending"
	case StateSecure:
		return "secure"
	case StateKeyExchangeTimeout:
		return "key_exchange_timeout"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config tunes the peer-key wait.
type Config struct {
	PollInterval time.Duration
	Timeout      time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Service publishes key material and derives shared secrets.
type Service struct {
	backend domain.Backend
	sched   *schedule.Scheduler
	cfg     Config
	log     logging.Logger
}

// New constructs the exchange service.
func New(backend domain.Backend, sched *schedule.Scheduler, cfg Config, log logging.Logger) *Service {
	return &Service{backend: backend, sched: sched, cfg: cfg.withDefaults(), log: logging.OrNop(log)}
}

// PublishPublicKey merges key into the session's key map under user.
func (s *Service) PublishPublicKey(ctx context.Context, id domain.SessionID, user domain.UserID, key domain.PublicKey) error {
	if err := s.backend.MergePublicKey(ctx, id, user, key); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPublishKey, err)
	}
	return nil
}

// PeerPublicKeys returns the session's current key map.
func (s *Service) PeerPublicKeys(ctx context.Context, id domain.SessionID) (map[domain.UserID]domain.PublicKey, error) {
	sess, err := s.backend.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return maps.Clone(sess.PublicKeys), nil
}

// DeriveSharedSecret runs ECDH and HKDF between self and peer.
func (s *Service) DeriveSharedSecret(self domain.KeyPair, peer domain.PublicKey) (domain.SharedSecret, error) {
	return pairwise.Derive(self, peer)
}

// Params describes one side of an exchange.
type Params struct {
	SessionID domain.SessionID
	SelfID    domain.UserID
	PeerID    domain.UserID
	KeyPair   domain.KeyPair
	PublicKey domain.PublicKey
}

// Exchange tracks a running key exchange.
type Exchange struct {
	svc      *Service
	p        Params
	onSecure func(context.Context, domain.SharedSecret)
	log      logging.Logger

	mu        sync.Mutex
	state     State
	published bool
	secret    *domain.SharedSecret
	started   time.Time
	task      *schedule.Task
	done      chan struct{}
	doneOnce  sync.Once
}

// Start publishes our key and tries to derive the secret right away. If the
// peer key is absent it keeps polling on the scheduler until the key appears,
// the timeout elapses, or Stop is called.
func (s *Service) Start(ctx context.Context, p Params, onSecure func(context.Context, domain.SharedSecret)) *Exchange {
	ex := &Exchange{
		svc:      s,
		p:        p,
		onSecure: onSecure,
		log:      s.log.With("session", p.SessionID, "self", p.SelfID, "peer", p.PeerID),
		done:     make(chan struct{}),
	}

	ex.publish(ctx)
	if ex.tryDerive(ctx) {
		return ex
	}

	ex.mu.Lock()
	ex.state = StateKeyExchangePending
	ex.started = s.sched.Now()
	ex.mu.Unlock()
	ex.log.Debug(ctx, "waiting for peer public key")

	task := s.sched.Every(s.cfg.PollInterval, ex.poll)
	ex.mu.Lock()
	ex.task = task
	ex.mu.Unlock()
	return ex
}

// poll runs on the scheduler while the exchange is pending.
func (ex *Exchange) poll(ctx context.Context) bool {
	ex.mu.Lock()
	published := ex.published
	ex.mu.Unlock()
	if !published {
		ex.publish(ctx)
	}
	if ex.tryDerive(ctx) {
		return false
	}
	if ex.svc.sched.Now().Sub(ex.startedAt()) >= ex.svc.cfg.Timeout {
		ex.mu.Lock()
		ex.state = StateKeyExchangeTimeout
		ex.mu.Unlock()
		ex.log.Warn(ctx, "key exchange timed out", "after", ex.svc.cfg.Timeout)
		ex.finish()
		return false
	}
	return true
}

func (ex *Exchange) publish(ctx context.Context) {
	if err := ex.svc.PublishPublicKey(ctx, ex.p.SessionID, ex.p.SelfID, ex.p.PublicKey); err != nil {
		if ctx.Err() == nil {
			ex.log.Warn(ctx, "publish public key failed, will retry", "err", err)
		}
		return
	}
	ex.mu.Lock()
	ex.published = true
	if ex.state == StateUninitialized {
		ex.state = StateKeyPublished
	}
	ex.mu.Unlock()
}

// tryDerive reports whether the exchange became secure.
func (ex *Exchange) tryDerive(ctx context.Context) bool {
	keys, err := ex.svc.PeerPublicKeys(ctx, ex.p.SessionID)
	if err != nil {
		if ctx.Err() == nil {
			ex.log.Warn(ctx, "read session keys failed", "err", err)
		}
		return false
	}
	peerKey, ok := keys[ex.p.PeerID]
	if !ok || peerKey.IsZero() {
		return false
	}
	secret, err := ex.svc.DeriveSharedSecret(ex.p.KeyPair, peerKey)
	if err != nil {
		ex.log.Error(ctx, "derive shared secret failed", "err", err)
		return false
	}

	ex.mu.Lock()
	ex.state = StateSecure
	ex.secret = &secret
	ex.mu.Unlock()
	ex.log.Info(ctx, "session secure")

	if ex.onSecure != nil {
		ex.onSecure(ctx, secret)
	}
	ex.finish()
	return true
}

func (ex *Exchange) startedAt() time.Time {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.started
}

func (ex *Exchange) finish() {
	ex.doneOnce.Do(func() { close(ex.done) })
}

// State returns the current lifecycle state.
func (ex *Exchange) State() State {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.state
}

// Secret returns the shared secret once the exchange is secure.
func (ex *Exchange) Secret() (domain.SharedSecret, bool) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	if ex.secret == nil {
		return domain.SharedSecret{}, false
	}
	return *ex.secret, true
}

// Err reports why the exchange is not secure, or nil once it is.
func (ex *Exchange) Err() error {
	switch ex.State() {
	case StateSecure:
		return nil
	case StateKeyExchangeTimeout:
		return domain.ErrKeyExchangeTimeout
	default:
		return domain.ErrPeerKeyUnavailable
	}
}

// Done is closed when the exchange becomes secure, times out, or is stopped.
func (ex *Exchange) Done() <-chan struct{} { return ex.done }

// Stop cancels polling. It is idempotent and must not be called from onSecure.
func (ex *Exchange) Stop() {
	ex.mu.Lock()
	task := ex.task
	ex.mu.Unlock()
	if task != nil {
		task.Stop()
	}
	ex.finish()
}

// Wait blocks until the exchange settles or ctx ends, and returns Err.
func (ex *Exchange) Wait(ctx context.Context) error {
	select {
	case <-ex.done:
		return ex.Err()
	case <-ctx.Done():
		return errors.Join(ctx.Err(), ex.Err())
	}
}

// Compile-time assertion that Service implements domain.KeyExchange.
var _ domain.KeyExchange = (*Service)(nil)
