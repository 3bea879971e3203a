// Package keys owns the device ECDH key pair.
//
// The pair is generated once per process and reused for every session. When
// a domain.KeyPairStore is configured, the pair is loaded from it on first
// use and saved after generation, so the device keeps its public key across
// restarts.
package keys
