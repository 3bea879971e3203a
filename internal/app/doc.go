// Package app wires application dependencies for the CLI.
//
// LoadConfig reads SECURECHAT_* settings, optionally seeded from a .env file.
// NewWire builds the backend, delivery channel and services from a Config,
// and App layers the per-user use cases on top: opening a conversation,
// listing chats with unread counts, one-shot sends and history.
package app
