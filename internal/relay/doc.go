// Package relay speaks to a securechat relay over HTTP and websockets.
//
// Client implements domain.Backend with JSON requests against the relay's /v1
// API and domain.Watcher with the relay's websocket change feed, so a Push
// delivery channel can run against a remote store. The relay only ever sees
// public keys, ciphertext and presence timestamps.
//
// Wire errors are JSON bodies of the form
//
//	{"error": {"code": 404, "message": "session not found"}}
//
// and map onto the domain sentinels in both directions: StatusFor picks the
// status a server should answer with, ErrorFor rebuilds the sentinel on the
// client.
//
// The server side lives in package relay/server.
package relay
