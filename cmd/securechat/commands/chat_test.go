package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"securechat/internal/chat"
	"securechat/internal/domain"
	"securechat/internal/services/exchange"
)

func TestRenderer_PrintsOnlyChanges(t *testing.T) {
	var buf bytes.Buffer
	r := &renderer{out: &buf, self: "alice"}
	at := domain.NewTimestamp(time.Date(2024, 1, 2, 3, 4, 0, 0, time.Local))

	r.render(chat.View{PeerName: "bob", State: exchange.StateKeyExchangePending, Pending: 1})
	r.render(chat.View{PeerName: "bob", State: exchange.StateKeyExchangePending, Pending: 1})
	r.render(chat.View{
		PeerName: "bob",
		State:    exchange.StateSecure,
		Messages: []domain.DecryptedMessage{
			{ID: "m1", SenderID: "alice", Text: "hi", CreatedAt: at},
			{ID: "m2", SenderID: "bob", Text: "hey", CreatedAt: at},
		},
		Presence: domain.Presence{PeerTyping: true},
	})
	r.render(chat.View{
		PeerName: "bob",
		State:    exchange.StateSecure,
		Messages: []domain.DecryptedMessage{
			{ID: "m1", SenderID: "alice", Text: "hi", CreatedAt: at},
			{ID: "m2", SenderID: "bob", Text: "hey", CreatedAt: at},
		},
	})

	got := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{
		"-- bob: connecting...",
		"-- 1 message(s) queued until the session is secure",
		"-- bob: secure",
		"[2024-01-02 03:04] me: hi",
		"[2024-01-02 03:04] bob: hey",
		"-- bob is typing...",
	}, got)
}

func TestRenderer_PrintsLateMessageThatSortsEarlier(t *testing.T) {
	var buf bytes.Buffer
	r := &renderer{out: &buf, self: "alice"}
	early := domain.NewTimestamp(time.Date(2024, 1, 2, 3, 4, 0, 0, time.Local))
	later := domain.NewTimestamp(early.Add(time.Minute))

	r.render(chat.View{
		PeerName: "bob",
		State:    exchange.StateSecure,
		Messages: []domain.DecryptedMessage{{ID: "m2", SenderID: "alice", Text: "second", CreatedAt: later}},
	})
	r.render(chat.View{
		PeerName: "bob",
		State:    exchange.StateSecure,
		Messages: []domain.DecryptedMessage{
			{ID: "m1", SenderID: "bob", Text: "first", CreatedAt: early},
			{ID: "m2", SenderID: "alice", Text: "second", CreatedAt: later},
		},
	})

	got := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{
		"-- bob: secure",
		"[2024-01-02 03:05] me: second",
		"[2024-01-02 03:04] bob: first",
	}, got)
}
