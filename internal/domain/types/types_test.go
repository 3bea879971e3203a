package types_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"securechat/internal/domain/types"
)

func TestTimestamp_JSONRoundTrip(t *testing.T) {
	ts := types.NewTimestamp(time.Date(2024, 3, 9, 10, 11, 12, 345_678_000, time.FixedZone("x", 3600)))

	b, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, `"2024-03-09T09:11:12.345Z"`, string(b))

	var back types.Timestamp
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, back.Equal(ts.Time))
}

func TestTimestamp_AcceptsMillisAndNull(t *testing.T) {
	var ts types.Timestamp
	require.NoError(t, json.Unmarshal([]byte(`1700000000123`), &ts))
	assert.Equal(t, int64(1700000000123), ts.Millis())

	require.NoError(t, json.Unmarshal([]byte(`null`), &ts))
	assert.True(t, ts.IsZero())

	b, err := json.Marshal(types.Timestamp{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))
}

func TestParseTimestamp(t *testing.T) {
	got, err := types.ParseTimestamp("2024-01-02T03:04:05Z")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02T03:04:05.000Z", got.String())

	got, err = types.ParseTimestamp("1000")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got.Millis())

	_, err = types.ParseTimestamp("yesterday")
	assert.Error(t, err)
}

func TestPairKey_OrderIndependent(t *testing.T) {
	assert.Equal(t, types.PairKey("alice", "bob"), types.PairKey("bob", "alice"))
	assert.NotEqual(t, types.PairKey("alice", "bob"), types.PairKey("alice", "carol"))
}

func TestSession_Peer(t *testing.T) {
	s := types.Session{Participants: []types.UserID{"alice", "bob"}}

	peer, ok := s.Peer("alice")
	require.True(t, ok)
	assert.Equal(t, types.UserID("bob"), peer)

	_, ok = s.Peer("mallory")
	assert.False(t, ok)
}

func TestSession_CloneIsDeep(t *testing.T) {
	s := types.Session{
		Participants: []types.UserID{"alice", "bob"},
		PublicKeys:   map[types.UserID]types.PublicKey{"alice": {Kty: "OKP", Crv: "X25519", X: "a"}},
	}
	c := s.Clone()
	c.PublicKeys["bob"] = types.PublicKey{Kty: "OKP"}
	c.Participants[0] = "carol"

	assert.Len(t, s.PublicKeys, 1)
	assert.Equal(t, types.UserID("alice"), s.Participants[0])
	assert.NotNil(t, c.Typing)
}

func TestUserProfile_DisplayName(t *testing.T) {
	assert.Equal(t, "ali", types.UserProfile{ID: "u1", Username: "ali", Email: "a@x"}.DisplayName())
	assert.Equal(t, "a@x", types.UserProfile{ID: "u1", Email: "a@x"}.DisplayName())
	assert.Equal(t, "u1", types.UserProfile{ID: "u1"}.DisplayName())
}

func TestSortMessages_CreatedAtThenSeq(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ts := types.NewTimestamp(base)
	msgs := []types.Message{
		{ID: "late", CreatedAt: types.NewTimestamp(base.Add(time.Second)), Seq: 1},
		{ID: "b", CreatedAt: ts, Seq: 3},
		{ID: "a", CreatedAt: ts, Seq: 2},
	}
	types.SortMessages(msgs)
	assert.Equal(t, []types.MessageID{"a", "b", "late"}, []types.MessageID{msgs[0].ID, msgs[1].ID, msgs[2].ID})
}
