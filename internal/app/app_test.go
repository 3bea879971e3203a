package app_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"securechat/internal/app"
	"securechat/internal/domain"
	"securechat/internal/services/exchange"
)

// sharedFileConfig points two users at one SQLite file with fast polling.
func sharedFileConfig(t *testing.T, home, user string) app.Config {
	t.Helper()
	return app.Config{
		Home:                home,
		User:                user,
		Passphrase:          "correct horse",
		Backend:             app.BackendSQLite,
		SQLitePath:          filepath.Join(home, "shared.db"),
		Delivery:            "push",
		Curve:               "x25519",
		PollInterval:        20 * time.Millisecond,
		PeerKeyPollInterval: 20 * time.Millisecond,
		PeerKeyTimeout:      3 * time.Second,
	}
}

func newApp(t *testing.T, cfg app.Config) *app.App {
	t.Helper()
	w, err := app.NewWire(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return app.New(w)
}

func TestApp_SharedFileConversation(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, "users.json"),
		[]byte(`[{"id":"bob","username":"Bobby"}]`), 0o600))

	alice := newApp(t, sharedFileConfig(t, home, "alice"))
	bob := newApp(t, sharedFileConfig(t, home, "bob"))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, fp, err := alice.Fingerprint(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, fp)
	assert.FileExists(t, filepath.Join(home, "alice", "device_key.json.enc"))

	bobConv, err := bob.Open(ctx, "alice", "", nil)
	require.NoError(t, err)
	assert.Equal(t, exchange.StateKeyExchangePending, bobConv.State())

	require.NoError(t, alice.Send(ctx, "bob", "", "hello"))

	select {
	case <-bobConv.Settled():
	case <-ctx.Done():
		t.Fatal("bob never settled")
	}
	require.NoError(t, bobConv.Err())
	require.NoError(t, bobConv.Close(ctx))

	hist, err := bob.History(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "hello", hist[0].Text)
	assert.Equal(t, domain.UserID("alice"), hist[0].SenderID)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, alice.Send(ctx, "bob", "", "again"))

	chats, err := bob.Chats(ctx)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, domain.UserID("alice"), chats[0].Peer)
	assert.Equal(t, 2, chats[0].Messages)
	assert.Equal(t, 1, chats[0].Unread)

	chats, err = alice.Chats(ctx)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "Bobby", chats[0].PeerName)
	assert.Zero(t, chats[0].Unread)
}

func TestApp_KeyPairSurvivesRestart(t *testing.T) {
	home := t.TempDir()
	cfg := sharedFileConfig(t, home, "alice")
	ctx := context.Background()

	first, fp1, err := newApp(t, cfg).Fingerprint(ctx)
	require.NoError(t, err)
	second, fp2, err := newApp(t, cfg).Fingerprint(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, fp1, fp2)
}

func TestApp_SendTimesOutWithoutPeer(t *testing.T) {
	cfg := sharedFileConfig(t, t.TempDir(), "alice")
	cfg.Backend = app.BackendMemory
	cfg.PeerKeyTimeout = 100 * time.Millisecond
	a := newApp(t, cfg)

	err := a.Send(context.Background(), "bob", "", "anyone?")
	assert.ErrorIs(t, err, domain.ErrKeyExchangeTimeout)
}

func TestNewWire_RequiresUser(t *testing.T) {
	cfg := sharedFileConfig(t, t.TempDir(), "")
	_, err := app.NewWire(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}
