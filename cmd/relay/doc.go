// Package main runs the securechat relay.
//
// The relay stores sessions (participants, public keys, typing and last-seen
// marks) and encrypted messages, and pushes change notifications to clients
// over websockets. See package internal/relay/server for the HTTP API.
//
// Usage
//
//	relay serve            listen on RELAY_ADDR (default :8080)
//	relay token <user>     print a bearer token signed with RELAY_JWT_SECRET
//
// Configuration comes from RELAY_* environment variables, optionally loaded
// from a .env file. RELAY_STORE selects "memory" (lost on exit) or
// "postgres" (RELAY_DATABASE_URL, migrated on start).
//
// The relay never sees plaintext or private keys; it only stores ciphertext
// and public keys.
package main
