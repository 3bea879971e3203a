// Package registry finds or creates the single session shared by a pair of
// users and lists a user's chats.
//
// A participant pair is unordered: {a,b} and {b,a} resolve to the same
// session. Creation races between the two participants are settled by the
// backend's unique pair key, so both sides always converge on one record.
package registry
