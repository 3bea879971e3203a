package crypto

import (
	"crypto/ecdh"
	"crypto/rand"
	"fmt"
)

// p256CoordSize is the byte length of one affine P-256 coordinate.
const p256CoordSize = 32

// GenerateP256 returns a fresh P-256 key pair as raw bytes: the 32-byte scalar
// and the 65-byte uncompressed point.
func GenerateP256() (priv, pub []byte, err error) {
	k, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	return k.Bytes(), k.PublicKey().Bytes(), nil
}

// DHP256 computes P-256 ECDH between a raw scalar and a raw uncompressed point.
func DHP256(priv, pub []byte) ([]byte, error) {
	k, err := ecdh.P256().NewPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("p256 private key: %w", err)
	}
	p, err := ecdh.P256().NewPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("p256 public key: %w", err)
	}
	return k.ECDH(p)
}

// splitP256 splits an uncompressed point into its x and y coordinates.
func splitP256(pub []byte) (x, y []byte, err error) {
	if len(pub) != 1+2*p256CoordSize || pub[0] != 4 {
		return nil, nil, fmt.Errorf("p256 public key: want %d-byte uncompressed point", 1+2*p256CoordSize)
	}
	return pub[1 : 1+p256CoordSize], pub[1+p256CoordSize:], nil
}

// joinP256 rebuilds an uncompressed point and validates it is on the curve.
func joinP256(x, y []byte) ([]byte, error) {
	if len(x) > p256CoordSize || len(y) > p256CoordSize {
		return nil, fmt.Errorf("p256 public key: coordinate too long")
	}
	pub := make([]byte, 1+2*p256CoordSize)
	pub[0] = 4
	copy(pub[1+p256CoordSize-len(x):1+p256CoordSize], x)
	copy(pub[1+2*p256CoordSize-len(y):], y)
	if _, err := ecdh.P256().NewPublicKey(pub); err != nil {
		return nil, fmt.Errorf("p256 public key: %w", err)
	}
	return pub, nil
}
