package types

import (
	"cmp"
	"slices"
)

// MessageType tags message payloads. Only text exists today.
type MessageType string

// MessageTypeText is a UTF-8 text message.
const MessageTypeText MessageType = "text"

// Message is the stored, encrypted record. Seq is assigned by the backend on
// append and breaks ties between equal CreatedAt values.
type Message struct {
	ID         MessageID   `json:"id"`
	SessionID  SessionID   `json:"sessionId"`
	Seq        int64       `json:"seq"`
	SenderID   UserID      `json:"senderId"`
	Ciphertext []byte      `json:"ciphertext"`
	IV         []byte      `json:"iv"`
	Type       MessageType `json:"type"`
	CreatedAt  Timestamp   `json:"created_at"`
}

// Payload is what the sender hands to the message store.
type Payload struct {
	Ciphertext []byte      `json:"ciphertext"`
	IV         []byte      `json:"iv"`
	Type       MessageType `json:"type"`
}

// DecryptedMessage is a message after successful decryption, for display only.
type DecryptedMessage struct {
	ID        MessageID `json:"id"`
	SenderID  UserID    `json:"senderId"`
	Text      string    `json:"text"`
	CreatedAt Timestamp `json:"created_at"`
}

// SortMessages orders msgs by CreatedAt, then Seq.
func SortMessages(msgs []Message) {
	slices.SortStableFunc(msgs, func(a, b Message) int {
		if c := a.CreatedAt.Compare(b.CreatedAt.Time); c != 0 {
			return c
		}
		return cmp.Compare(a.Seq, b.Seq)
	})
}
