// Package message appends encrypted messages to a session and streams the
// session's ordered history.
//
// Stored messages carry only ciphertext and a per-message iv. Encrypt and
// Decrypt bind the session id and sender id as associated data. DecryptAll
// drops messages that fail to decrypt, logging each, so one corrupt record
// never hides the rest of the conversation.
package message
