package presence_test

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"securechat/internal/delivery"
	"securechat/internal/domain"
	"securechat/internal/schedule"
	"securechat/internal/services/presence"
	"securechat/internal/store"
)

var t0 = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func TestIsTyping_Window(t *testing.T) {
	sess := domain.Session{Typing: map[domain.UserID]domain.Timestamp{"bob": domain.NewTimestamp(t0)}}
	w := presence.DefaultTypingWindow

	assert.True(t, presence.IsTyping(sess, "bob", t0, w))
	assert.True(t, presence.IsTyping(sess, "bob", t0.Add(3999*time.Millisecond), w))
	assert.False(t, presence.IsTyping(sess, "bob", t0.Add(4000*time.Millisecond), w))
	assert.False(t, presence.IsTyping(sess, "bob", t0.Add(4001*time.Millisecond), w))
	assert.True(t, presence.IsTyping(sess, "bob", t0.Add(-time.Second), w), "future marks count as typing")
	assert.False(t, presence.IsTyping(sess, "alice", t0, w))
}

func TestSetTypingAndLastSeen(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(t0)
	b := store.NewMemory(mock)
	ctx := context.Background()
	s, _, err := b.UpsertSession(ctx, domain.Session{Participants: []domain.UserID{"alice", "bob"}})
	require.NoError(t, err)

	svc := presence.New(b, delivery.NewPoll(schedule.New(mock), time.Second), mock, nil)
	require.NoError(t, svc.SetTyping(ctx, s.ID, "bob"))
	mock.Add(time.Second)
	require.NoError(t, svc.SetLastSeen(ctx, s.ID, "alice"))

	got, err := b.GetSession(ctx, s.ID)
	require.NoError(t, err)

	snap := presence.Snapshot(got, "alice", mock.Now(), presence.DefaultTypingWindow)
	assert.True(t, snap.PeerTyping)
	assert.True(t, snap.SelfLastSeen.Equal(t0.Add(time.Second)))
	assert.True(t, snap.PeerLastSeen.IsZero())

	later := presence.Snapshot(got, "alice", t0.Add(5*time.Second), presence.DefaultTypingWindow)
	assert.False(t, later.PeerTyping)

	assert.ErrorIs(t, svc.SetTyping(ctx, "missing", "bob"), domain.ErrNotFound)
}

func TestSubscribeSession(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(t0)
	b := store.NewMemory(mock)
	ctx := context.Background()
	s, _, err := b.UpsertSession(ctx, domain.Session{Participants: []domain.UserID{"alice", "bob"}})
	require.NoError(t, err)

	svc := presence.New(b, delivery.NewPush(b, nil, nil), mock, nil)
	got := make(chan domain.Session, 8)
	sub, err := svc.SubscribeSession(ctx, s.ID, func(s domain.Session) { got <- s })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	<-got
	require.NoError(t, svc.SetTyping(ctx, s.ID, "bob"))
	select {
	case sess := <-got:
		assert.Contains(t, sess.Typing, domain.UserID("bob"))
	case <-time.After(time.Second):
		t.Fatal("no session update delivered")
	}
}

func TestThrottle(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(t0)
	th := presence.NewThrottle(mock, presence.DefaultTypingThrottle)

	assert.True(t, th.Allow())
	assert.False(t, th.Allow())
	mock.Add(1499 * time.Millisecond)
	assert.False(t, th.Allow())
	mock.Add(time.Millisecond)
	assert.True(t, th.Allow())
}
