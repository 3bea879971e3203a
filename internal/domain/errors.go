package domain

import "errors"

// Sentinel errors shared across services, stores and transports. Callers
// match them with errors.Is; implementations wrap them with context.
var (
	// ErrKeyGeneration means the device key pair could not be created or loaded.
	ErrKeyGeneration = errors.New("key generation failed")
	// ErrPublishKey means the local public key could not be written to the session.
	ErrPublishKey = errors.New("publish public key failed")
	// ErrPeerKeyUnavailable means the peer has not published a key yet.
	ErrPeerKeyUnavailable = errors.New("peer public key unavailable")
	// ErrKeyExchangeTimeout means the peer key did not appear in time.
	ErrKeyExchangeTimeout = errors.New("key exchange timed out")
	// ErrEncrypt means a message could not be sealed.
	ErrEncrypt = errors.New("encrypt failed")
	// ErrDecrypt means a message could not be opened or authenticated.
	ErrDecrypt = errors.New("decrypt failed")
	// ErrDeliveryChannel means a subscription could not be established.
	ErrDeliveryChannel = errors.New("delivery channel failed")
	// ErrNotFound means the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidParticipants means the participant pair is malformed.
	ErrInvalidParticipants = errors.New("invalid participants")
	// ErrSessionNotSecure means no shared secret is available yet.
	ErrSessionNotSecure = errors.New("session not secure")
	// ErrClosed means the object has been closed.
	ErrClosed = errors.New("closed")
	// ErrUnauthorized means the caller may not act on the resource.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidArgument means a request field failed validation.
	ErrInvalidArgument = errors.New("invalid argument")
)
