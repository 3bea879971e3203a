// Package crypto exposes the key primitives used by securechat.
//
// Contents
//
//   - X25519 key generation, clamping and Diffie–Hellman (GenerateX25519, DH)
//   - P-256 ECDH on raw encodings (GenerateP256, DHP256)
//   - Curve-agnostic key pairs and their portable public form
//     (GenerateKeyPair, ExportPublic, ImportPublic)
//   - Short public-key fingerprints for display/logging (Fingerprint)
//
// # Notes
//
// Public keys travel as JSON Web Key members: {"kty":"OKP","crv":"X25519","x":...}
// or {"kty":"EC","crv":"P-256","x":...,"y":...}, coordinates in unpadded
// base64url. Private keys never leave the device.
package crypto
