// Package presence records typing and last-seen instants and derives the
// presence view of a session.
//
// Marks are stamped with the service clock, never the caller's. A peer is
// typing while their newest mark is younger than the typing window; writes
// from the local side are rate limited with a Throttle.
package presence
