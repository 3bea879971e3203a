package relay

import (
	"securechat/internal/domain"
)

// CreateSessionRequest is the body of POST /v1/sessions.
type CreateSessionRequest struct {
	ID           domain.SessionID                    `json:"id,omitempty" validate:"omitempty,max=128"`
	Participants []domain.UserID                     `json:"participants" validate:"len=2,dive,required,max=128"`
	PublicKeys   map[domain.UserID]domain.PublicKey `json:"participantsPublicKeys,omitempty"`
	ContextID    string                              `json:"contextId,omitempty" validate:"max=256"`
}

// CreateSessionResponse reports the stored session and whether this request
// created it.
type CreateSessionResponse struct {
	Session domain.Session `json:"session"`
	Created bool           `json:"created"`
}

// PublicKeyRequest is the body of PUT /v1/sessions/{id}/keys/{user}.
type PublicKeyRequest struct {
	Kty string `json:"kty" validate:"required,oneof=OKP EC"`
	Crv string `json:"crv" validate:"required,oneof=X25519 P-256"`
	X   string `json:"x" validate:"required,max=128"`
	Y   string `json:"y,omitempty" validate:"required_if=Kty EC,max=128"`
}

// Key converts the request into a domain public key.
func (r PublicKeyRequest) Key() domain.PublicKey {
	return domain.PublicKey{Kty: r.Kty, Crv: r.Crv, X: r.X, Y: r.Y}
}

// StampRequest is the body of the typing and last-seen endpoints. A zero At
// is stamped by the relay.
type StampRequest struct {
	At domain.Timestamp `json:"at"`
}

// MessageRequest is the body of POST /v1/sessions/{id}/messages.
type MessageRequest struct {
	ID         domain.MessageID   `json:"id,omitempty" validate:"omitempty,max=128"`
	SenderID   domain.UserID      `json:"senderId" validate:"required,max=128"`
	Ciphertext []byte             `json:"ciphertext" validate:"required"`
	IV         []byte             `json:"iv" validate:"required"`
	Type       domain.MessageType `json:"type" validate:"omitempty,oneof=text"`
}

// WatchEvent is one frame on the websocket change feed.
type WatchEvent struct {
	Kind domain.ResourceKind `json:"kind"`
	ID   string              `json:"id"`
}

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the status code, a machine readable reason and a human
// readable message.
type ErrorDetail struct {
	Code    int    `json:"code"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
}
