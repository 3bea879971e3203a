package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"securechat/internal/directory"
	"securechat/internal/domain"
	"securechat/internal/logging"
	"securechat/internal/services/exchange"
	"securechat/internal/services/message"
	"securechat/internal/services/outbox"
	"securechat/internal/services/presence"
)

// Deps are the services a Conversation runs on.
type Deps struct {
	Keys      domain.KeyManager
	Registry  domain.ChatRegistry
	Exchange  *exchange.Service
	Messages  domain.MessageService
	Presence  domain.PresenceService
	Directory domain.UserDirectory
	Clock     clock.Clock
	Log       logging.Logger

	TypingWindow   time.Duration
	TypingThrottle time.Duration
}

// Params identify the conversation.
type Params struct {
	SelfID    domain.UserID
	PeerID    domain.UserID
	ContextID string
}

// View is what a presentation layer renders.
type View struct {
	SessionID domain.SessionID
	State     exchange.State
	PeerName  string
	Messages  []domain.DecryptedMessage
	Presence  domain.Presence
	Pending   int
}

// Conversation is an open chat with one peer.
type Conversation struct {
	deps     Deps
	params   Params
	onUpdate func(View)
	log      logging.Logger

	session  domain.SessionID
	peerName string
	outbox   *outbox.Outbox
	throttle *presence.Throttle

	mu      sync.Mutex
	ex      *exchange.Exchange
	secret  *domain.SharedSecret
	sess    domain.Session
	raw     []domain.Message
	seen    int
	subs    []domain.Subscription
	closed  bool
	settled chan struct{}

	sendMu  sync.Mutex
	emitMu  sync.Mutex
	retryMu sync.Mutex
}

// Open starts a conversation between p.SelfID and p.PeerID. onUpdate may be
// nil; it must not call Close.
func Open(ctx context.Context, deps Deps, p Params, onUpdate func(View)) (*Conversation, error) {
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.TypingWindow <= 0 {
		deps.TypingWindow = presence.DefaultTypingWindow
	}
	if deps.TypingThrottle <= 0 {
		deps.TypingThrottle = presence.DefaultTypingThrottle
	}
	if onUpdate == nil {
		onUpdate = func(View) {}
	}
	log := logging.OrNop(deps.Log).With("self", p.SelfID, "peer", p.PeerID)

	pair, pub, err := localKey(ctx, deps.Keys)
	if err != nil {
		return nil, err
	}
	sess, err := deps.Registry.GetOrCreateChat(ctx, p.SelfID, p.PeerID, p.ContextID, pub)
	if err != nil {
		return nil, err
	}

	c := &Conversation{
		deps:     deps,
		params:   p,
		onUpdate: onUpdate,
		log:      log.With("session", sess.ID),
		session:  sess.ID,
		peerName: directory.DisplayName(ctx, deps.Directory, p.PeerID),
		outbox:   outbox.New(),
		throttle: presence.NewThrottle(deps.Clock, deps.TypingThrottle),
		sess:     sess,
	}
	if err := c.startExchange(ctx, pair, pub); err != nil {
		return nil, err
	}

	msgSub, err := deps.Messages.SubscribeMessages(ctx, sess.ID, c.onMessages)
	if err != nil {
		c.abort()
		return nil, err
	}
	c.addSub(msgSub)
	sessSub, err := deps.Presence.SubscribeSession(ctx, sess.ID, c.onSession)
	if err != nil {
		c.abort()
		return nil, err
	}
	c.addSub(sessSub)

	if err := deps.Presence.SetLastSeen(ctx, sess.ID, p.SelfID); err != nil {
		c.log.Warn(ctx, "mark last seen failed", "err", err)
	}
	c.emit()
	return c, nil
}

// SessionID returns the id of the underlying session.
func (c *Conversation) SessionID() domain.SessionID { return c.session }

// Settled is closed once the current key exchange has become secure or
// given up.
func (c *Conversation) Settled() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settled
}

// Retry restarts a key exchange that timed out. It is a no-op in any other
// state. Concurrent calls start at most one exchange.
func (c *Conversation) Retry(ctx context.Context) error {
	c.retryMu.Lock()
	defer c.retryMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrClosed
	}
	retry := c.secret == nil && c.ex != nil && c.ex.State() == exchange.StateKeyExchangeTimeout
	c.mu.Unlock()
	if !retry {
		return nil
	}

	pair, pub, err := localKey(ctx, c.deps.Keys)
	if err != nil {
		return err
	}
	c.log.Info(ctx, "retrying key exchange")
	if err := c.startExchange(ctx, pair, pub); err != nil {
		return err
	}
	c.emit()
	return nil
}

// State returns the key exchange state.
func (c *Conversation) State() exchange.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Conversation) stateLocked() exchange.State {
	if c.secret != nil {
		return exchange.StateSecure
	}
	if c.ex == nil {
		return exchange.StateUninitialized
	}
	return c.ex.State()
}

// Send encrypts and appends text. Surrounding whitespace is trimmed and blank
// text is ignored. Before the session is secure the text is queued and sent
// once the shared secret is available.
func (c *Conversation) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	c.sendMu.Lock()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.sendMu.Unlock()
		return domain.ErrClosed
	}
	secret := c.secret
	c.mu.Unlock()

	if secret == nil {
		c.outbox.Enqueue(text)
		c.sendMu.Unlock()
		c.log.Debug(ctx, "queued message until session is secure", "pending", c.outbox.Len())
		c.emit()
		return nil
	}

	err := c.flushLocked(ctx, *secret)
	if err == nil {
		err = c.sendLocked(ctx, *secret, text)
	} else {
		c.outbox.Enqueue(text)
	}
	c.sendMu.Unlock()
	return err
}

// Typing records a typing mark for self, at most once per throttle interval.
func (c *Conversation) Typing(ctx context.Context) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return domain.ErrClosed
	}
	if !c.throttle.Allow() {
		return nil
	}
	return c.deps.Presence.SetTyping(ctx, c.session, c.params.SelfID)
}

// View builds the current view. Peer typing is evaluated against the clock
// at the time of the call.
func (c *Conversation) View() View {
	c.mu.Lock()
	raw := append([]domain.Message(nil), c.raw...)
	sess := c.sess.Clone()
	state := c.stateLocked()
	var secret *domain.SharedSecret
	if c.secret != nil {
		s := *c.secret
		secret = &s
	}
	c.mu.Unlock()

	v := View{
		SessionID: c.session,
		State:     state,
		PeerName:  c.peerName,
		Presence:  presence.Snapshot(sess, c.params.SelfID, c.deps.Clock.Now(), c.deps.TypingWindow),
		Pending:   c.outbox.Len(),
	}
	if secret != nil {
		v.Messages = message.DecryptAll(context.Background(), *secret, raw, c.log)
	}
	return v
}

// Decrypt opens msgs with the conversation's shared secret, in order,
// skipping any that fail.
func (c *Conversation) Decrypt(ctx context.Context, msgs []domain.Message) ([]domain.DecryptedMessage, error) {
	c.mu.Lock()
	secret := c.secret
	c.mu.Unlock()
	if secret == nil {
		return nil, domain.ErrSessionNotSecure
	}
	sorted := append([]domain.Message(nil), msgs...)
	domain.SortMessages(sorted)
	return message.DecryptAll(ctx, *secret, sorted, c.log), nil
}

// Err reports why the conversation is not secure, or nil once it is.
func (c *Conversation) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.secret != nil {
		return nil
	}
	if c.ex == nil {
		return domain.ErrSessionNotSecure
	}
	return c.ex.Err()
}

// Close stops the key exchange and the subscriptions and records a final
// last-seen mark. It is idempotent; only the first call writes the mark.
func (c *Conversation) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	ex := c.ex
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	if ex != nil {
		ex.Stop()
	}
	for _, s := range subs {
		s.Unsubscribe()
	}
	// Wait out a send or flush that started before closed was set.
	c.sendMu.Lock()
	c.sendMu.Unlock()
	if n := c.outbox.Len(); n > 0 {
		c.log.Warn(ctx, "closing with unsent messages", "pending", n)
	}
	if err := c.deps.Presence.SetLastSeen(ctx, c.session, c.params.SelfID); err != nil {
		return fmt.Errorf("close conversation: %w", err)
	}
	return nil
}

func localKey(ctx context.Context, km domain.KeyManager) (domain.KeyPair, domain.PublicKey, error) {
	pair, err := km.GetOrCreateKeyPair(ctx)
	if err != nil {
		return domain.KeyPair{}, domain.PublicKey{}, err
	}
	pub, err := km.ExportPublic(pair)
	if err != nil {
		return domain.KeyPair{}, domain.PublicKey{}, fmt.Errorf("%w: %v", domain.ErrKeyGeneration, err)
	}
	return pair, pub, nil
}

// startExchange installs a new exchange unless the conversation has closed,
// in which case the exchange is stopped and ErrClosed returned.
func (c *Conversation) startExchange(ctx context.Context, pair domain.KeyPair, pub domain.PublicKey) error {
	settled := make(chan struct{})
	ex := c.deps.Exchange.Start(ctx, exchange.Params{
		SessionID: c.session,
		SelfID:    c.params.SelfID,
		PeerID:    c.params.PeerID,
		KeyPair:   pair,
		PublicKey: pub,
	}, c.onSecure)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		ex.Stop()
		return domain.ErrClosed
	}
	c.ex = ex
	c.settled = settled
	c.mu.Unlock()
	go c.watchExchange(ex, settled)
	return nil
}

func (c *Conversation) onSecure(ctx context.Context, secret domain.SharedSecret) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.secret = &secret
	c.mu.Unlock()

	c.sendMu.Lock()
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		c.sendMu.Unlock()
		return
	}
	if err := c.flushLocked(ctx, secret); err != nil {
		c.log.Warn(ctx, "flush queued messages failed", "err", err, "pending", c.outbox.Len())
	}
	c.sendMu.Unlock()
	c.emit()
}

// flushLocked sends everything in the outbox. sendMu must be held. Items not
// sent are put back in order.
func (c *Conversation) flushLocked(ctx context.Context, secret domain.SharedSecret) error {
	queued := c.outbox.Drain()
	for i, text := range queued {
		if err := c.sendLocked(ctx, secret, text); err != nil {
			c.outbox.Requeue(queued[i:])
			return err
		}
	}
	return nil
}

func (c *Conversation) sendLocked(ctx context.Context, secret domain.SharedSecret, text string) error {
	payload, err := message.Encrypt(secret, c.session, c.params.SelfID, text)
	if err != nil {
		return err
	}
	_, err = c.deps.Messages.SendMessage(ctx, c.session, c.params.SelfID, payload)
	return err
}

func (c *Conversation) onMessages(msgs []domain.Message) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.raw = msgs
	fresh := len(msgs) > c.seen
	c.seen = len(msgs)
	c.mu.Unlock()

	if fresh {
		if err := c.deps.Presence.SetLastSeen(context.Background(), c.session, c.params.SelfID); err != nil {
			c.log.Warn(context.Background(), "mark last seen failed", "err", err)
		}
	}
	c.emit()
}

func (c *Conversation) onSession(sess domain.Session) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.sess = sess
	c.mu.Unlock()
	c.emit()
}

func (c *Conversation) watchExchange(ex *exchange.Exchange, settled chan struct{}) {
	<-ex.Done()
	close(settled)
	if err := ex.Err(); errors.Is(err, domain.ErrKeyExchangeTimeout) {
		c.log.Warn(context.Background(), "peer key did not arrive, messages will stay queued")
	}
	c.emit()
}

func (c *Conversation) emit() {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}
	c.onUpdate(c.View())
}

func (c *Conversation) addSub(s domain.Subscription) {
	c.mu.Lock()
	c.subs = append(c.subs, s)
	c.mu.Unlock()
}

func (c *Conversation) abort() {
	c.mu.Lock()
	c.closed = true
	ex := c.ex
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()
	if ex != nil {
		ex.Stop()
	}
	for _, s := range subs {
		s.Unsubscribe()
	}
}
