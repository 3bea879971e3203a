package registry_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"securechat/internal/delivery"
	"securechat/internal/domain"
	"securechat/internal/logging"
	"securechat/internal/schedule"
	"securechat/internal/services/registry"
	"securechat/internal/store"
)

var (
	aliceKey = domain.PublicKey{Kty: "OKP", Crv: "X25519", X: "YQ"}
	bobKey   = domain.PublicKey{Kty: "OKP", Crv: "X25519", X: "Yg"}
)

type failingKeys struct {
	domain.Backend
}

func (failingKeys) MergePublicKey(context.Context, domain.SessionID, domain.UserID, domain.PublicKey) error {
	return errors.New("write rejected")
}

func newRegistry(b domain.Backend) *registry.Service {
	return registry.New(b, nil, clock.NewMock(), nil)
}

func TestGetOrCreateChat_SameSessionForEitherOrder(t *testing.T) {
	b := store.NewMemory(nil)
	reg := newRegistry(b)
	ctx := context.Background()

	s1, err := reg.GetOrCreateChat(ctx, "alice", "bob", "listing-9", aliceKey)
	require.NoError(t, err)
	s2, err := reg.GetOrCreateChat(ctx, "bob", "alice", "", bobKey)
	require.NoError(t, err)
	assert.Equal(t, s1.ID, s2.ID)
	assert.Equal(t, "listing-9", s2.ContextID)

	got, err := b.GetSession(ctx, s1.ID)
	require.NoError(t, err)
	assert.Equal(t, aliceKey, got.PublicKeys["alice"])
	assert.Equal(t, bobKey, got.PublicKeys["bob"])
}

func TestGetOrCreateChat_ExistingReturnedUnchanged(t *testing.T) {
	reg := newRegistry(store.NewMemory(nil))
	ctx := context.Background()

	_, err := reg.GetOrCreateChat(ctx, "alice", "bob", "", aliceKey)
	require.NoError(t, err)
	s, err := reg.GetOrCreateChat(ctx, "bob", "alice", "", bobKey)
	require.NoError(t, err)
	_, ok := s.PublicKeys["bob"]
	assert.False(t, ok, "returned record is the one found, before bob's publish")
}

func TestGetOrCreateChat_InvalidParticipants(t *testing.T) {
	reg := newRegistry(store.NewMemory(nil))
	for _, pair := range [][2]domain.UserID{{"alice", "alice"}, {"", "bob"}, {"alice", ""}} {
		_, err := reg.GetOrCreateChat(context.Background(), pair[0], pair[1], "", aliceKey)
		assert.ErrorIs(t, err, domain.ErrInvalidParticipants)
	}
}

func TestGetOrCreateChat_PublishFailureIsSilent(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	reg := registry.New(failingKeys{store.NewMemory(nil)}, nil, nil, logging.NewZapLogger(zap.New(core)))

	s, err := reg.GetOrCreateChat(context.Background(), "alice", "bob", "", aliceKey)
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, 1, logs.FilterMessage("publish public key failed").Len())
}

func TestGetOrCreateChat_ConcurrentFirstContact(t *testing.T) {
	b := store.NewMemory(nil)
	reg := newRegistry(b)

	var (
		wg  sync.WaitGroup
		ids [2]domain.SessionID
	)
	for i, pair := range [][2]domain.UserID{{"alice", "bob"}, {"bob", "alice"}} {
		wg.Add(1)
		go func(i int, self, peer domain.UserID) {
			defer wg.Done()
			s, err := reg.GetOrCreateChat(context.Background(), self, peer, "", domain.PublicKey{})
			assert.NoError(t, err)
			ids[i] = s.ID
		}(i, pair[0], pair[1])
	}
	wg.Wait()
	assert.Equal(t, ids[0], ids[1])

	chats, err := reg.ListChats(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, chats, 1)
}

func TestSubscribeChats(t *testing.T) {
	mock := clock.NewMock()
	b := store.NewMemory(mock)
	ch := delivery.NewPoll(schedule.New(mock), time.Second)
	reg := registry.New(b, ch, mock, nil)
	ctx := context.Background()

	var (
		mu   sync.Mutex
		last []domain.Session
	)
	sub, err := reg.SubscribeChats(ctx, "alice", func(ss []domain.Session) {
		mu.Lock()
		last = ss
		mu.Unlock()
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	_, err = reg.GetOrCreateChat(ctx, "alice", "bob", "", aliceKey)
	require.NoError(t, err)
	mock.Add(time.Second)
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(last) == 1
	}, time.Second, time.Millisecond)
}

func TestUnreadCount(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	at := func(sec int) domain.Timestamp { return domain.NewTimestamp(base.Add(time.Duration(sec) * time.Second)) }

	msgs := []domain.Message{
		{SenderID: "bob", CreatedAt: at(1)},
		{SenderID: "alice", CreatedAt: at(2)},
		{SenderID: "bob", CreatedAt: at(3)},
		{SenderID: "bob", CreatedAt: at(5)},
	}
	sess := domain.Session{LastSeen: map[domain.UserID]domain.Timestamp{"alice": at(3)}}

	assert.Equal(t, 1, registry.UnreadCount(sess, msgs, "alice"))
	assert.Equal(t, 3, registry.UnreadCount(domain.Session{}, msgs, "alice"))
	assert.Equal(t, 1, registry.UnreadCount(domain.Session{}, msgs, "bob"))
}
