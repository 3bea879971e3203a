package types

// UserID is the opaque identity of a chat participant.
type UserID string

// String returns the string form of the user identifier.
func (u UserID) String() string { return string(u) }

// SessionID identifies a two-party chat session.
type SessionID string

// String returns the string form of the session identifier.
func (id SessionID) String() string { return string(id) }

// MessageID identifies a single message within a session.
type MessageID string

// String returns the string form of the message identifier.
func (id MessageID) String() string { return string(id) }

// Fingerprint is a short identifier for public keys presented to users.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }

// UserProfile is the directory record used to label a peer.
type UserProfile struct {
	ID       UserID `json:"id"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

// DisplayName prefers the username, then the email, then the raw id.
func (p UserProfile) DisplayName() string {
	switch {
	case p.Username != "":
		return p.Username
	case p.Email != "":
		return p.Email
	default:
		return string(p.ID)
	}
}
