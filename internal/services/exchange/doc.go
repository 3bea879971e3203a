// Package exchange publishes our public key into a session and waits for the
// peer's key to appear so both sides can derive the shared secret.
//
// An Exchange moves through these states:
//
//	Uninitialized -> KeyPublished -> KeyExchangePending -> Secure
//	                                                    \-> KeyExchangeTimeout
//
// While pending it re-reads the session every PollInterval and gives up once
// Timeout has elapsed. A failed publish is retried on each poll. onSecure runs
// exactly once, and never after Stop returns.
package exchange
