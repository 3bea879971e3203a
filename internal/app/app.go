package app

import (
	"context"
	"fmt"
	"sort"

	"securechat/internal/chat"
	"securechat/internal/directory"
	"securechat/internal/domain"
	"securechat/internal/services/registry"
)

// App is the set of use cases for one local user.
type App struct {
	wire *Wire
	self domain.UserID
}

// New returns the use cases for the wire's configured user.
func New(w *Wire) *App {
	return &App{wire: w, self: domain.UserID(w.Config.User)}
}

// Self returns the local user id.
func (a *App) Self() domain.UserID { return a.self }

// ChatSummary is one row of the chat list.
type ChatSummary struct {
	SessionID    domain.SessionID
	Peer         domain.UserID
	PeerName     string
	ContextID    string
	Unread       int
	Messages     int
	LastActivity domain.Timestamp
}

// Fingerprint returns the device public key and its fingerprint, creating
// the key pair if needed.
func (a *App) Fingerprint(ctx context.Context) (domain.PublicKey, domain.Fingerprint, error) {
	kp, err := a.wire.Keys.GetOrCreateKeyPair(ctx)
	if err != nil {
		return domain.PublicKey{}, "", err
	}
	pub, err := a.wire.Keys.ExportPublic(kp)
	if err != nil {
		return domain.PublicKey{}, "", err
	}
	return pub, a.wire.Keys.Fingerprint(kp), nil
}

// Open starts a conversation with peer.
func (a *App) Open(ctx context.Context, peer domain.UserID, contextID string, onUpdate func(chat.View)) (*chat.Conversation, error) {
	return chat.Open(ctx, a.wire.ChatDeps(), chat.Params{SelfID: a.self, PeerID: peer, ContextID: contextID}, onUpdate)
}

// Chats lists the user's sessions, most recently active first.
func (a *App) Chats(ctx context.Context) ([]ChatSummary, error) {
	sessions, err := a.wire.Registry.ListChats(ctx, a.self)
	if err != nil {
		return nil, err
	}
	out := make([]ChatSummary, 0, len(sessions))
	for _, s := range sessions {
		msgs, err := a.wire.Backend.ListMessages(ctx, s.ID)
		if err != nil {
			return nil, fmt.Errorf("list messages of %s: %w", s.ID, err)
		}
		peer, _ := s.Peer(a.self)
		row := ChatSummary{
			SessionID:    s.ID,
			Peer:         peer,
			PeerName:     directory.DisplayName(ctx, a.wire.Directory, peer),
			ContextID:    s.ContextID,
			Unread:       registry.UnreadCount(s, msgs, a.self),
			Messages:     len(msgs),
			LastActivity: s.CreatedAt,
		}
		if n := len(msgs); n > 0 {
			row.LastActivity = msgs[n-1].CreatedAt
		}
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastActivity.After(out[j].LastActivity.Time) })
	return out, nil
}

// Send opens a conversation with peer, sends text and waits for the key
// exchange to settle so the message is not left queued.
func (a *App) Send(ctx context.Context, peer domain.UserID, contextID, text string) error {
	conv, err := a.Open(ctx, peer, contextID, nil)
	if err != nil {
		return err
	}
	defer conv.Close(context.WithoutCancel(ctx))

	if err := conv.Send(ctx, text); err != nil {
		return err
	}
	if err := a.settle(ctx, conv); err != nil {
		return fmt.Errorf("message to %s not sent: %w", peer, err)
	}
	// Anything typed before the exchange was flushed by now.
	if conv.View().Pending > 0 {
		return fmt.Errorf("message to %s not sent: %w", peer, domain.ErrSessionNotSecure)
	}
	return nil
}

// History returns the decrypted conversation with peer.
func (a *App) History(ctx context.Context, peer domain.UserID) ([]domain.DecryptedMessage, error) {
	conv, err := a.Open(ctx, peer, "", nil)
	if err != nil {
		return nil, err
	}
	defer conv.Close(context.WithoutCancel(ctx))

	if err := a.settle(ctx, conv); err != nil {
		return nil, err
	}
	msgs, err := a.wire.Backend.ListMessages(ctx, conv.SessionID())
	if err != nil {
		return nil, err
	}
	return conv.Decrypt(ctx, msgs)
}

// settle waits for the conversation's key exchange to finish.
func (a *App) settle(ctx context.Context, conv *chat.Conversation) error {
	select {
	case <-conv.Settled():
		return conv.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
