package interfaces

import (
	"context"

	domaintypes "securechat/internal/domain/types"
)

// Backend is the shared record store both participants talk to. Every
// implementation must treat a participant pair as unordered and unique, merge
// per-user map entries without clobbering other users, and return messages
// ordered by CreatedAt then Seq.
type Backend interface {
	// UpsertSession returns the existing session for s's participant pair, or
	// stores s and returns it. The bool reports whether s was created.
	UpsertSession(ctx context.Context, s domaintypes.Session) (domaintypes.Session, bool, error)
	GetSession(ctx context.Context, id domaintypes.SessionID) (domaintypes.Session, error)
	ListSessions(ctx context.Context, user domaintypes.UserID) ([]domaintypes.Session, error)

	// MergePublicKey sets user's entry only. A second key from the same user
	// replaces the first; a peer that already derived a secret from the old
	// key keeps it and can no longer open messages sealed under the new one.
	MergePublicKey(ctx context.Context, id domaintypes.SessionID, user domaintypes.UserID, key domaintypes.PublicKey) error
	MergeTyping(ctx context.Context, id domaintypes.SessionID, user domaintypes.UserID, at domaintypes.Timestamp) error
	MergeLastSeen(ctx context.Context, id domaintypes.SessionID, user domaintypes.UserID, at domaintypes.Timestamp) error

	// AppendMessage stores m, assigning Seq and, when zero, CreatedAt.
	AppendMessage(ctx context.Context, m domaintypes.Message) (domaintypes.Message, error)
	ListMessages(ctx context.Context, id domaintypes.SessionID) ([]domaintypes.Message, error)
}

// KeyPairStore persists the device key pair between runs.
type KeyPairStore interface {
	SaveKeyPair(kp domaintypes.KeyPair) error
	// LoadKeyPair returns ok=false when nothing has been saved yet.
	LoadKeyPair() (kp domaintypes.KeyPair, ok bool, err error)
}

// UserDirectory resolves user ids to profiles for display.
type UserDirectory interface {
	GetUserByID(ctx context.Context, id domaintypes.UserID) (domaintypes.UserProfile, error)
}
