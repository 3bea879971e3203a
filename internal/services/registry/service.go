package registry

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"securechat/internal/domain"
	"securechat/internal/logging"
)

// Service locates sessions on a Backend.
type Service struct {
	backend domain.Backend
	channel domain.Channel
	clock   clock.Clock
	log     logging.Logger
}

// New constructs a registry. channel drives SubscribeChats and may be nil when
// subscriptions are not needed.
func New(backend domain.Backend, channel domain.Channel, c clock.Clock, log logging.Logger) *Service {
	if c == nil {
		c = clock.New()
	}
	return &Service{backend: backend, channel: channel, clock: c, log: logging.OrNop(log)}
}

// GetOrCreateChat returns the session for {self, peer}. A new session is
// seeded with selfKey; an existing one is returned unchanged. Either way
// selfKey is then published into the session, and a publish failure is only
// logged.
func (s *Service) GetOrCreateChat(
	ctx context.Context,
	self, peer domain.UserID,
	contextID string,
	selfKey domain.PublicKey,
) (domain.Session, error) {
	if self == "" || peer == "" || self == peer {
		return domain.Session{}, fmt.Errorf("%w: %q and %q", domain.ErrInvalidParticipants, self, peer)
	}

	candidate := domain.Session{
		ID:           domain.SessionID(uuid.NewString()),
		Participants: []domain.UserID{self, peer},
		PublicKeys:   map[domain.UserID]domain.PublicKey{},
		ContextID:    contextID,
		CreatedAt:    domain.NewTimestamp(s.clock.Now()),
		Typing:       map[domain.UserID]domain.Timestamp{},
		LastSeen:     map[domain.UserID]domain.Timestamp{},
	}
	if !selfKey.IsZero() {
		candidate.PublicKeys[self] = selfKey
	}

	sess, created, err := s.backend.UpsertSession(ctx, candidate)
	if err != nil {
		return domain.Session{}, fmt.Errorf("get or create chat: %w", err)
	}
	log := s.log.With("session", sess.ID, "self", self, "peer", peer)
	if created {
		log.Info(ctx, "created chat session")
	} else {
		log.Debug(ctx, "found chat session")
	}

	if !selfKey.IsZero() {
		if err := s.backend.MergePublicKey(ctx, sess.ID, self, selfKey); err != nil {
			log.Warn(ctx, "publish public key failed", "err", err)
		}
	}
	return sess, nil
}

// ListChats returns every session user participates in, oldest first.
func (s *Service) ListChats(ctx context.Context, user domain.UserID) ([]domain.Session, error) {
	sessions, err := s.backend.ListSessions(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	return sessions, nil
}

// SubscribeChats delivers user's full chat list whenever it may have changed.
func (s *Service) SubscribeChats(ctx context.Context, user domain.UserID, cb func([]domain.Session)) (domain.Subscription, error) {
	if s.channel == nil {
		return nil, fmt.Errorf("%w: no delivery channel", domain.ErrDeliveryChannel)
	}
	sub, err := s.channel.Subscribe(ctx, domain.UserChatsResource(user), func(ctx context.Context) {
		sessions, err := s.backend.ListSessions(ctx, user)
		if err != nil {
			if ctx.Err() == nil {
				s.log.Warn(ctx, "fetch chat list failed", "user", user, "err", err)
			}
			return
		}
		cb(sessions)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDeliveryChannel, err)
	}
	return sub, nil
}

// UnreadCount counts messages from other participants newer than user's
// last-seen instant in sess. With no last-seen entry every peer message is unread.
func UnreadCount(sess domain.Session, msgs []domain.Message, user domain.UserID) int {
	seen, ok := sess.LastSeen[user]
	n := 0
	for _, m := range msgs {
		if m.SenderID == user {
			continue
		}
		if !ok || seen.IsZero() || m.CreatedAt.After(seen.Time) {
			n++
		}
	}
	return n
}

// Compile-time assertion that Service implements domain.ChatRegistry.
var _ domain.ChatRegistry = (*Service)(nil)
