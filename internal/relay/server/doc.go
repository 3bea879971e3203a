// Package server is the relay: a small HTTP JSON API over a domain.Backend
// plus a websocket change feed.
//
// HTTP API (all under /v1)
//
//	POST /sessions                         find or create the session for a pair
//	GET  /sessions/{id}                    read a session record
//	GET  /users/{id}/sessions              list a user's sessions
//	PUT  /sessions/{id}/keys/{user}        merge one participant's public key
//	PUT  /sessions/{id}/typing/{user}      record a typing mark
//	PUT  /sessions/{id}/last-seen/{user}   record a last-seen mark
//	POST /sessions/{id}/messages           append an encrypted message
//	GET  /sessions/{id}/messages           list messages in order
//	GET  /watch?kind=&id=                  websocket change feed
//
// GET /healthz answers outside /v1.
//
// Authentication is optional. With a JWT secret configured, every /v1 request
// needs an HS256 bearer token (or an access_token query parameter on /watch)
// whose subject is the caller's user id, and callers may only touch sessions
// they participate in and write their own per-user entries.
//
// The relay stamps message creation times itself. It never sees private keys
// or plaintext.
package server
