// Package store provides the persistence layers behind securechat sessions.
//
// It contains concrete implementations of the domain storage interfaces:
//   - Memory: an in-process Backend and Watcher guarded by a RWMutex, used for
//     single-process runs and as the relay's default storage.
//   - SQL: a Backend over database/sql with embedded goose migrations. SQLite
//     (modernc.org/sqlite) lets two local processes share one file; Postgres
//     (pgx) backs a relay deployment.
//   - KeyFile: the device key pair sealed under a passphrase
//     (scrypt + ChaCha20-Poly1305) and written atomically.
//
// Every Backend treats a participant pair as unordered and unique, merges
// per-user map entries without touching other users' entries, and returns
// messages ordered by created_at then seq.
package store
