package crypto

import (
	"errors"
	"fmt"

	"securechat/internal/domain"
)

const (
	jwkKtyOKP    = "OKP"
	jwkKtyEC     = "EC"
	jwkCrvX25519 = "X25519"
	jwkCrvP256   = "P-256"
)

// ErrUnsupportedCurve is returned for curves and key types outside X25519 and P-256.
var ErrUnsupportedCurve = errors.New("unsupported curve")

// GenerateKeyPair creates a fresh ECDH key pair on curve.
func GenerateKeyPair(curve domain.Curve) (domain.KeyPair, error) {
	switch curve {
	case domain.CurveX25519:
		priv, pub, err := GenerateX25519()
		if err != nil {
			return domain.KeyPair{}, err
		}
		return domain.KeyPair{Curve: curve, Private: priv.Slice(), Public: pub.Slice()}, nil
	case domain.CurveP256:
		priv, pub, err := GenerateP256()
		if err != nil {
			return domain.KeyPair{}, err
		}
		return domain.KeyPair{Curve: curve, Private: priv, Public: pub}, nil
	default:
		return domain.KeyPair{}, fmt.Errorf("%w: %q", ErrUnsupportedCurve, curve)
	}
}

// ExportPublic renders the public half of kp as a key-parameter map.
func ExportPublic(kp domain.KeyPair) (domain.PublicKey, error) {
	switch kp.Curve {
	case domain.CurveX25519:
		if len(kp.Public) != 32 {
			return domain.PublicKey{}, fmt.Errorf("x25519 public key: want 32 bytes, got %d", len(kp.Public))
		}
		return domain.PublicKey{Kty: jwkKtyOKP, Crv: jwkCrvX25519, X: B64URL(kp.Public)}, nil
	case domain.CurveP256:
		x, y, err := splitP256(kp.Public)
		if err != nil {
			return domain.PublicKey{}, err
		}
		return domain.PublicKey{Kty: jwkKtyEC, Crv: jwkCrvP256, X: B64URL(x), Y: B64URL(y)}, nil
	default:
		return domain.PublicKey{}, fmt.Errorf("%w: %q", ErrUnsupportedCurve, kp.Curve)
	}
}

// ImportPublic parses a key-parameter map back into a curve and raw point.
func ImportPublic(pk domain.PublicKey) (domain.Curve, []byte, error) {
	switch {
	case pk.Kty == jwkKtyOKP && pk.Crv == jwkCrvX25519:
		x, err := DecodeB64URL(pk.X)
		if err != nil {
			return "", nil, fmt.Errorf("x25519 public key: %w", err)
		}
		if len(x) != 32 {
			return "", nil, fmt.Errorf("x25519 public key: want 32 bytes, got %d", len(x))
		}
		return domain.CurveX25519, x, nil
	case pk.Kty == jwkKtyEC && pk.Crv == jwkCrvP256:
		x, err := DecodeB64URL(pk.X)
		if err != nil {
			return "", nil, fmt.Errorf("p256 public key x: %w", err)
		}
		y, err := DecodeB64URL(pk.Y)
		if err != nil {
			return "", nil, fmt.Errorf("p256 public key y: %w", err)
		}
		pub, err := joinP256(x, y)
		if err != nil {
			return "", nil, err
		}
		return domain.CurveP256, pub, nil
	default:
		return "", nil, fmt.Errorf("%w: kty=%q crv=%q", ErrUnsupportedCurve, pk.Kty, pk.Crv)
	}
}

// FingerprintPublic returns the short fingerprint of an exported public key.
func FingerprintPublic(pk domain.PublicKey) (domain.Fingerprint, error) {
	_, raw, err := ImportPublic(pk)
	if err != nil {
		return "", err
	}
	return domain.Fingerprint(Fingerprint(raw)), nil
}
