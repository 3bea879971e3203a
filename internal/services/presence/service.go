package presence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"securechat/internal/domain"
	"securechat/internal/logging"
)

const (
	// DefaultTypingWindow is how long a typing mark counts as "typing".
	DefaultTypingWindow = 4 * time.Second
	// DefaultTypingThrottle is the minimum gap between typing writes.
	DefaultTypingThrottle = 1500 * time.Millisecond
)

// Service writes presence marks to the backend.
type Service struct {
	backend domain.Backend
	channel domain.Channel
	clock   clock.Clock
	log     logging.Logger
}

// New constructs a presence service.
func New(backend domain.Backend, channel domain.Channel, c clock.Clock, log logging.Logger) *Service {
	if c == nil {
		c = clock.New()
	}
	return &Service{backend: backend, channel: channel, clock: c, log: logging.OrNop(log)}
}

// SetTyping records that user is typing now.
func (s *Service) SetTyping(ctx context.Context, id domain.SessionID, user domain.UserID) error {
	if err := s.backend.MergeTyping(ctx, id, user, domain.NewTimestamp(s.clock.Now())); err != nil {
		return fmt.Errorf("set typing: %w", err)
	}
	return nil
}

// SetLastSeen records that user viewed the session now.
func (s *Service) SetLastSeen(ctx context.Context, id domain.SessionID, user domain.UserID) error {
	if err := s.backend.MergeLastSeen(ctx, id, user, domain.NewTimestamp(s.clock.Now())); err != nil {
		return fmt.Errorf("set last seen: %w", err)
	}
	return nil
}

// SubscribeSession delivers the full session record whenever it may have changed.
func (s *Service) SubscribeSession(ctx context.Context, id domain.SessionID, cb func(domain.Session)) (domain.Subscription, error) {
	sub, err := s.channel.Subscribe(ctx, domain.SessionResource(id), func(ctx context.Context) {
		sess, err := s.backend.GetSession(ctx, id)
		if err != nil {
			if ctx.Err() == nil {
				s.log.Warn(ctx, "fetch session failed", "session", id, "err", err)
			}
			return
		}
		cb(sess)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDeliveryChannel, err)
	}
	return sub, nil
}

// IsTyping reports whether user's typing mark in sess is younger than window
// at now. A mark from the future counts as typing.
func IsTyping(sess domain.Session, user domain.UserID, now time.Time, window time.Duration) bool {
	at, ok := sess.Typing[user]
	if !ok || at.IsZero() {
		return false
	}
	return now.Sub(at.Time) < window
}

// Snapshot computes the presence view of sess for self.
func Snapshot(sess domain.Session, self domain.UserID, now time.Time, window time.Duration) domain.Presence {
	var p domain.Presence
	p.SelfLastSeen = sess.LastSeen[self]
	if peer, ok := sess.Peer(self); ok {
		p.PeerTyping = IsTyping(sess, peer, now, window)
		p.PeerLastSeen = sess.LastSeen[peer]
	}
	return p
}

// Throttle admits at most one event per interval.
type Throttle struct {
	clock    clock.Clock
	interval time.Duration

	mu   sync.Mutex
	last time.Time
}

// NewThrottle returns a throttle on c.
func NewThrottle(c clock.Clock, interval time.Duration) *Throttle {
	if c == nil {
		c = clock.New()
	}
	return &Throttle{clock: c, interval: interval}
}

// Allow reports whether an event may go through now, and if so records it.
func (t *Throttle) Allow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()
	if !t.last.IsZero() && now.Sub(t.last) < t.interval {
		return false
	}
	t.last = now
	return true
}

// Compile-time assertion that Service implements domain.PresenceService.
var _ domain.PresenceService = (*Service)(nil)
