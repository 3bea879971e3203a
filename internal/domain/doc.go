// Package domain defines core data models and interfaces shared across the app.
// It contains plain types (sessions, messages, keys, timestamps), the
// sentinel errors every layer wraps, and contracts (interfaces) only.
package domain
