package types

import "slices"

// Curve names the elliptic curve a key pair lives on.
type Curve string

const (
	// CurveX25519 is Curve25519 Diffie-Hellman (RFC 7748).
	CurveX25519 Curve = "x25519"
	// CurveP256 is NIST P-256 ECDH.
	CurveP256 Curve = "p256"
)

// Valid reports whether c is a supported curve.
func (c Curve) Valid() bool { return c == CurveX25519 || c == CurveP256 }

// String returns the curve name.
func (c Curve) String() string { return string(c) }

// X25519Public is a Curve25519 public key.
type X25519Public [32]byte

// Slice returns the key as a []byte.
func (p X25519Public) Slice() []byte { return p[:] }

// X25519Private is a Curve25519 private key.
type X25519Private [32]byte

// Slice returns the key as a []byte.
func (k X25519Private) Slice() []byte { return k[:] }

// KeyPair is the per-device ECDH key pair. Public holds the raw encoded
// public point (32 bytes for X25519, 65 bytes uncompressed for P-256).
type KeyPair struct {
	Curve   Curve  `json:"curve"`
	Private []byte `json:"private"`
	Public  []byte `json:"public"`
}

// IsZero reports whether no key material is present.
func (k KeyPair) IsZero() bool { return len(k.Private) == 0 && len(k.Public) == 0 }

// Clone returns a deep copy of the key pair.
func (k KeyPair) Clone() KeyPair {
	return KeyPair{Curve: k.Curve, Private: slices.Clone(k.Private), Public: slices.Clone(k.Public)}
}

// PublicKey is the portable key-parameter map for a public key
// (JSON Web Key members). X25519 keys use kty "OKP" and carry only x;
// P-256 keys use kty "EC" and carry x and y. Coordinates are base64url
// without padding.
type PublicKey struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y,omitempty"`
}

// IsZero reports whether the key is empty.
func (p PublicKey) IsZero() bool { return p == PublicKey{} }

// SharedSecret is the symmetric session key derived by both participants.
type SharedSecret [32]byte

// Slice returns the secret as a []byte.
func (s SharedSecret) Slice() []byte { return s[:] }
