package types

import (
	"maps"
	"slices"
)

// Session is the shared record of a two-party chat. It holds no private keys
// and no plaintext.
type Session struct {
	ID           SessionID            `json:"id"`
	Participants []UserID             `json:"participants"`
	PublicKeys   map[UserID]PublicKey `json:"participantsPublicKeys"`
	ContextID    string               `json:"contextId,omitempty"`
	CreatedAt    Timestamp            `json:"created_at"`
	Typing       map[UserID]Timestamp `json:"typing"`
	LastSeen     map[UserID]Timestamp `json:"lastSeen"`
}

// HasParticipant reports whether id is one of the session's participants.
func (s Session) HasParticipant(id UserID) bool {
	return slices.Contains(s.Participants, id)
}

// Peer returns the participant that is not self.
func (s Session) Peer(self UserID) (UserID, bool) {
	if !s.HasParticipant(self) {
		return "", false
	}
	for _, p := range s.Participants {
		if p != self {
			return p, true
		}
	}
	return "", false
}

// PairKey returns the order-independent key of the participant set.
func (s Session) PairKey() string {
	if len(s.Participants) != 2 {
		return ""
	}
	return PairKey(s.Participants[0], s.Participants[1])
}

// Clone returns a deep copy of the session so callers can mutate maps freely.
func (s Session) Clone() Session {
	out := s
	out.Participants = slices.Clone(s.Participants)
	out.PublicKeys = maps.Clone(s.PublicKeys)
	out.Typing = maps.Clone(s.Typing)
	out.LastSeen = maps.Clone(s.LastSeen)
	if out.PublicKeys == nil {
		out.PublicKeys = map[UserID]PublicKey{}
	}
	if out.Typing == nil {
		out.Typing = map[UserID]Timestamp{}
	}
	if out.LastSeen == nil {
		out.LastSeen = map[UserID]Timestamp{}
	}
	return out
}

// PairKey joins two user ids in sorted order so that {a,b} and {b,a}
// collapse to the same key.
func PairKey(a, b UserID) string {
	if b < a {
		a, b = b, a
	}
	return string(a) + "\x1f" + string(b)
}

// Presence is the presence view of a session from one participant's side.
type Presence struct {
	PeerTyping   bool      `json:"peerTyping"`
	PeerLastSeen Timestamp `json:"peerLastSeen"`
	SelfLastSeen Timestamp `json:"selfLastSeen"`
}
