package interfaces

import (
	"context"

	domaintypes "securechat/internal/domain/types"
)

// KeyManager owns the device key pair.
type KeyManager interface {
	GetOrCreateKeyPair(ctx context.Context) (domaintypes.KeyPair, error)
	ExportPublic(kp domaintypes.KeyPair) (domaintypes.PublicKey, error)
}

// ChatRegistry finds or creates the session for a participant pair.
type ChatRegistry interface {
	GetOrCreateChat(
		ctx context.Context,
		self, peer domaintypes.UserID,
		contextID string,
		selfKey domaintypes.PublicKey,
	) (domaintypes.Session, error)
	ListChats(ctx context.Context, user domaintypes.UserID) ([]domaintypes.Session, error)
}

// KeyExchange publishes local key material and derives the shared secret.
type KeyExchange interface {
	PublishPublicKey(ctx context.Context, id domaintypes.SessionID, user domaintypes.UserID, key domaintypes.PublicKey) error
	PeerPublicKeys(ctx context.Context, id domaintypes.SessionID) (map[domaintypes.UserID]domaintypes.PublicKey, error)
	DeriveSharedSecret(self domaintypes.KeyPair, peer domaintypes.PublicKey) (domaintypes.SharedSecret, error)
}

// MessageService appends encrypted messages and streams the ordered history.
type MessageService interface {
	SendMessage(ctx context.Context, id domaintypes.SessionID, sender domaintypes.UserID, p domaintypes.Payload) (domaintypes.Message, error)
	SubscribeMessages(ctx context.Context, id domaintypes.SessionID, cb func([]domaintypes.Message)) (Subscription, error)
}

// PresenceService records typing and last-seen instants.
type PresenceService interface {
	SetTyping(ctx context.Context, id domaintypes.SessionID, user domaintypes.UserID) error
	SetLastSeen(ctx context.Context, id domaintypes.SessionID, user domaintypes.UserID) error
	SubscribeSession(ctx context.Context, id domaintypes.SessionID, cb func(domaintypes.Session)) (Subscription, error)
}
