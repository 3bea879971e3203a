// Package delivery keeps subscribers up to date with the current state of a
// backend resource.
//
// Two strategies implement domain.Channel:
//
//   - Poll re-fetches on a fixed interval regardless of change, with an
//     immediate first fetch.
//   - Push fetches once on subscribe and again on every change signal from a
//     domain.Watcher. When the watch cannot be opened, or drops later, the
//     subscription falls back to polling without the subscriber noticing.
//
// Delivery is at-least-once: callbacks always receive full state, so a
// duplicate is harmless. Unsubscribe is idempotent and, once it returns, the
// fetch callback will not run again.
package delivery
