// Package pairwise implements the two-party key agreement and message sealing
// used by a chat session.
//
// # Overview
//
// Each device holds one static ECDH key pair (X25519 or P-256). Once both
// participants have published their public keys to the session record, either
// side derives the same 32-byte session key:
//
//  1. Compute the raw ECDH output between our private key and the peer's public key.
//  2. Salt HKDF-SHA256 with a hash of both public keys in sorted order, so the
//     derivation is independent of which side runs it.
//  3. Expand with a fixed label to 32 bytes and wipe the raw ECDH output.
//
// Messages are sealed with ChaCha20-Poly1305 under a fresh random 96-bit nonce
// per message. The session id and sender id are bound as associated data, so a
// ciphertext replayed into another session or attributed to the other sender
// fails authentication.
//
// # Errors
//
// ErrCurveMismatch is returned when the two keys are on different curves.
// ErrAuth is returned by Open for any authentication failure.
package pairwise
