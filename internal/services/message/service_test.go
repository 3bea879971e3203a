package message_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"securechat/internal/crypto"
	"securechat/internal/delivery"
	"securechat/internal/domain"
	"securechat/internal/logging"
	"securechat/internal/protocol/pairwise"
	"securechat/internal/schedule"
	"securechat/internal/services/message"
	"securechat/internal/store"
)

func sharedSecrets(t *testing.T) (domain.SharedSecret, domain.SharedSecret) {
	t.Helper()
	a, err := crypto.GenerateKeyPair(domain.CurveX25519)
	require.NoError(t, err)
	b, err := crypto.GenerateKeyPair(domain.CurveX25519)
	require.NoError(t, err)
	aPub, _ := crypto.ExportPublic(a)
	bPub, _ := crypto.ExportPublic(b)
	ka, err := pairwise.Derive(a, bPub)
	require.NoError(t, err)
	kb, err := pairwise.Derive(b, aPub)
	require.NoError(t, err)
	return ka, kb
}

func setup(t *testing.T) (*message.Service, *store.Memory, *clock.Mock, domain.SessionID) {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC))
	b := store.NewMemory(mock)
	s, _, err := b.UpsertSession(context.Background(), domain.Session{Participants: []domain.UserID{"alice", "bob"}})
	require.NoError(t, err)
	ch := delivery.NewPush(b, delivery.NewPoll(schedule.New(mock), time.Second), nil)
	return message.New(b, ch, nil), b, mock, s.ID
}

func TestEncryptDecrypt_AcrossParticipants(t *testing.T) {
	ka, kb := sharedSecrets(t)
	svc, _, _, sid := setup(t)
	ctx := context.Background()

	p, err := message.Encrypt(ka, sid, "alice", "hi bob")
	require.NoError(t, err)
	m, err := svc.SendMessage(ctx, sid, "alice", p)
	require.NoError(t, err)
	assert.Equal(t, domain.MessageTypeText, m.Type)
	assert.NotContains(t, string(m.Ciphertext), "hi bob")

	dm, err := message.Decrypt(kb, m)
	require.NoError(t, err)
	assert.Equal(t, "hi bob", dm.Text)
	assert.Equal(t, domain.UserID("alice"), dm.SenderID)
}

func TestDecrypt_RejectsRelabelledSender(t *testing.T) {
	ka, kb := sharedSecrets(t)
	p, err := message.Encrypt(ka, "s1", "alice", "hi")
	require.NoError(t, err)

	m := domain.Message{ID: "m1", SessionID: "s1", SenderID: "bob", Ciphertext: p.Ciphertext, IV: p.IV}
	_, err = message.Decrypt(kb, m)
	assert.ErrorIs(t, err, domain.ErrDecrypt)
}

func TestSendMessage_Validation(t *testing.T) {
	svc, _, _, sid := setup(t)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, sid, "alice", domain.Payload{Ciphertext: []byte("c"), IV: []byte("i"), Type: "image"})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = svc.SendMessage(ctx, sid, "alice", domain.Payload{})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = svc.SendMessage(ctx, "missing", "alice", domain.Payload{Ciphertext: []byte("c"), IV: []byte("i")})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDecryptAll_SkipsAndLogsFailures(t *testing.T) {
	ka, kb := sharedSecrets(t)
	var msgs []domain.Message
	for i, text := range []string{"one", "two", "three"} {
		p, err := message.Encrypt(ka, "s1", "alice", text)
		require.NoError(t, err)
		msgs = append(msgs, domain.Message{ID: domain.MessageID(text), SessionID: "s1", SenderID: "alice", Ciphertext: p.Ciphertext, IV: p.IV, Seq: int64(i)})
	}
	msgs[1].Ciphertext[0] ^= 0xff

	core, logs := observer.New(zapcore.WarnLevel)
	out := message.DecryptAll(context.Background(), kb, msgs, logging.NewZapLogger(zap.New(core)))

	require.Len(t, out, 2)
	assert.Equal(t, "one", out[0].Text)
	assert.Equal(t, "three", out[1].Text)
	assert.Equal(t, 1, logs.FilterMessage("skipping undecryptable message").Len())
}

func TestSubscribeMessages_OrderedFullState(t *testing.T) {
	ka, _ := sharedSecrets(t)
	svc, _, _, sid := setup(t)
	ctx := context.Background()

	var (
		mu   sync.Mutex
		last []domain.Message
	)
	sub, err := svc.SubscribeMessages(ctx, sid, func(ms []domain.Message) {
		mu.Lock()
		last = ms
		mu.Unlock()
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	for _, text := range []string{"a", "b", "c"} {
		p, err := message.Encrypt(ka, sid, "alice", text)
		require.NoError(t, err)
		_, err = svc.SendMessage(ctx, sid, "alice", p)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(last) == 3
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(last); i++ {
		assert.Less(t, last[i-1].Seq, last[i].Seq)
	}
}
