// Package chat drives one two-party conversation.
//
// A Conversation ties the services together for a single peer. Open obtains
// the device key, locates or creates the session, starts the key exchange and
// subscribes to the message list and the session record. Until the exchange
// is secure, outgoing text waits in an outbox; it is flushed in order once the
// shared secret is known. Every change is folded into a View and handed to
// the caller's update callback, never concurrently.
package chat
