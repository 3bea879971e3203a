package domain

import (
	interfaces "securechat/internal/domain/interfaces"
	types "securechat/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	UserID           = types.UserID
	SessionID        = types.SessionID
	MessageID        = types.MessageID
	Fingerprint      = types.Fingerprint
	UserProfile      = types.UserProfile
	Timestamp        = types.Timestamp
	Curve            = types.Curve
	KeyPair          = types.KeyPair
	PublicKey        = types.PublicKey
	SharedSecret     = types.SharedSecret
	X25519Public     = types.X25519Public
	X25519Private    = types.X25519Private
	Session          = types.Session
	Presence         = types.Presence
	MessageType      = types.MessageType
	Message          = types.Message
	Payload          = types.Payload
	DecryptedMessage = types.DecryptedMessage
	ResourceKind     = types.ResourceKind
	Resource         = types.Resource
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	Backend         = interfaces.Backend
	KeyPairStore    = interfaces.KeyPairStore
	UserDirectory   = interfaces.UserDirectory
	Watcher         = interfaces.Watcher
	Subscription    = interfaces.Subscription
	Channel         = interfaces.Channel
	KeyManager      = interfaces.KeyManager
	ChatRegistry    = interfaces.ChatRegistry
	KeyExchange     = interfaces.KeyExchange
	MessageService  = interfaces.MessageService
	PresenceService = interfaces.PresenceService
)

// Re-exported constants so callers need only import domain.
const (
	CurveX25519       = types.CurveX25519
	CurveP256         = types.CurveP256
	MessageTypeText   = types.MessageTypeText
	ResourceSession   = types.ResourceSession
	ResourceMessages  = types.ResourceMessages
	ResourceUserChats = types.ResourceUserChats
)

// Re-exported constructors.
var (
	NewTimestamp        = types.NewTimestamp
	TimestampFromMillis = types.TimestampFromMillis
	ParseTimestamp      = types.ParseTimestamp
	PairKey             = types.PairKey
	SortMessages        = types.SortMessages
	SessionResource     = types.SessionResource
	MessagesResource    = types.MessagesResource
	UserChatsResource   = types.UserChatsResource
)
