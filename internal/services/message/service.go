package message

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"securechat/internal/domain"
	"securechat/internal/logging"
	"securechat/internal/protocol/pairwise"
)

// Service sends and streams session messages.
type Service struct {
	backend domain.Backend
	channel domain.Channel
	log     logging.Logger
}

// New constructs a message service.
func New(backend domain.Backend, channel domain.Channel, log logging.Logger) *Service {
	return &Service{backend: backend, channel: channel, log: logging.OrNop(log)}
}

// SendMessage appends an encrypted payload to the session. The backend stamps
// the message with its append time.
func (s *Service) SendMessage(ctx context.Context, id domain.SessionID, sender domain.UserID, p domain.Payload) (domain.Message, error) {
	if p.Type == "" {
		p.Type = domain.MessageTypeText
	}
	if p.Type != domain.MessageTypeText {
		return domain.Message{}, fmt.Errorf("%w: message type %q", domain.ErrInvalidArgument, p.Type)
	}
	if len(p.Ciphertext) == 0 || len(p.IV) == 0 {
		return domain.Message{}, fmt.Errorf("%w: empty ciphertext or iv", domain.ErrInvalidArgument)
	}
	m, err := s.backend.AppendMessage(ctx, domain.Message{
		ID:         domain.MessageID(uuid.NewString()),
		SessionID:  id,
		SenderID:   sender,
		Ciphertext: p.Ciphertext,
		IV:         p.IV,
		Type:       p.Type,
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("send message: %w", err)
	}
	return m, nil
}

// SubscribeMessages delivers the full ordered message list of the session
// whenever it may have changed.
func (s *Service) SubscribeMessages(ctx context.Context, id domain.SessionID, cb func([]domain.Message)) (domain.Subscription, error) {
	sub, err := s.channel.Subscribe(ctx, domain.MessagesResource(id), func(ctx context.Context) {
		msgs, err := s.backend.ListMessages(ctx, id)
		if err != nil {
			if ctx.Err() == nil {
				s.log.Warn(ctx, "fetch messages failed", "session", id, "err", err)
			}
			return
		}
		domain.SortMessages(msgs)
		cb(msgs)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDeliveryChannel, err)
	}
	return sub, nil
}

// Encrypt seals text for sender in session.
func Encrypt(secret domain.SharedSecret, session domain.SessionID, sender domain.UserID, text string) (domain.Payload, error) {
	iv, ct, err := pairwise.Seal(secret, pairwise.AssociatedData(session, sender), []byte(text))
	if err != nil {
		return domain.Payload{}, fmt.Errorf("%w: %v", domain.ErrEncrypt, err)
	}
	return domain.Payload{Ciphertext: ct, IV: iv, Type: domain.MessageTypeText}, nil
}

// Decrypt opens one stored message.
func Decrypt(secret domain.SharedSecret, m domain.Message) (domain.DecryptedMessage, error) {
	pt, err := pairwise.Open(secret, pairwise.AssociatedData(m.SessionID, m.SenderID), m.IV, m.Ciphertext)
	if err != nil {
		return domain.DecryptedMessage{}, fmt.Errorf("%w: message %s: %v", domain.ErrDecrypt, m.ID, err)
	}
	return domain.DecryptedMessage{ID: m.ID, SenderID: m.SenderID, Text: string(pt), CreatedAt: m.CreatedAt}, nil
}

// DecryptAll decrypts msgs in order, skipping and logging any that fail.
func DecryptAll(ctx context.Context, secret domain.SharedSecret, msgs []domain.Message, log logging.Logger) []domain.DecryptedMessage {
	log = logging.OrNop(log)
	out := make([]domain.DecryptedMessage, 0, len(msgs))
	for _, m := range msgs {
		dm, err := Decrypt(secret, m)
		if err != nil {
			log.Warn(ctx, "skipping undecryptable message", "session", m.SessionID, "message", m.ID, "err", err)
			continue
		}
		out = append(out, dm)
	}
	return out
}

// Compile-time assertion that Service implements domain.MessageService.
var _ domain.MessageService = (*Service)(nil)
