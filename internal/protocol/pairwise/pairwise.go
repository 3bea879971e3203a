package pairwise

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"securechat/internal/crypto"
	"securechat/internal/domain"
	"securechat/internal/util/memzero"
)

const (
	secretInfo = "securechat-pairwise-v1"
	// NonceSize is the per-message nonce length carried as the message iv.
	NonceSize = chacha20poly1305.NonceSize
)

var (
	// ErrCurveMismatch is returned when our key and the peer's key use different curves.
	ErrCurveMismatch = errors.New("pairwise: curve mismatch")
	// ErrAuth is returned when a ciphertext fails authentication.
	ErrAuth = errors.New("pairwise: message authentication failed")
)

// Derive computes the shared session secret between our key pair and the
// peer's exported public key. Derive(a, B) == Derive(b, A).
func Derive(self domain.KeyPair, peer domain.PublicKey) (domain.SharedSecret, error) {
	var out domain.SharedSecret

	curve, peerPub, err := crypto.ImportPublic(peer)
	if err != nil {
		return out, err
	}
	if curve != self.Curve {
		return out, fmt.Errorf("%w: ours %s, peer %s", ErrCurveMismatch, self.Curve, curve)
	}

	shared, err := dh(self, peerPub)
	if err != nil {
		return out, err
	}
	defer memzero.Zero(shared)

	r := hkdf.New(sha256.New, shared, transcriptSalt(self.Public, peerPub), []byte(secretInfo))
	if _, err := io.ReadFull(r, out[:]); err != nil {
		return domain.SharedSecret{}, err
	}
	return out, nil
}

// AssociatedData binds a ciphertext to its session and sender.
func AssociatedData(session domain.SessionID, sender domain.UserID) []byte {
	ad := make([]byte, 0, len(session)+len(sender)+1)
	ad = append(ad, session...)
	ad = append(ad, 0)
	ad = append(ad, sender...)
	return ad
}

// Seal encrypts plaintext under secret with a fresh random nonce.
func Seal(secret domain.SharedSecret, ad, plaintext []byte) (nonce, ciphertext []byte, err error) {
	aead, err := chacha20poly1305.New(secret.Slice())
	if err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}
	return nonce, aead.Seal(nil, nonce, plaintext, ad), nil
}

// Open authenticates and decrypts ciphertext.
func Open(secret domain.SharedSecret, ad, nonce, ciphertext []byte) ([]byte, error) {
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("%w: nonce must be %d bytes", ErrAuth, NonceSize)
	}
	aead, err := chacha20poly1305.New(secret.Slice())
	if err != nil {
		return nil, err
	}
	pt, err := aead.Open(nil, nonce, ciphertext, ad)
	if err != nil {
		return nil, ErrAuth
	}
	return pt, nil
}

func dh(self domain.KeyPair, peerPub []byte) ([]byte, error) {
	switch self.Curve {
	case domain.CurveX25519:
		var (
			priv domain.X25519Private
			pub  domain.X25519Public
		)
		copy(priv[:], self.Private)
		copy(pub[:], peerPub)
		defer memzero.Zero(priv[:])
		out, err := crypto.DH(priv, pub)
		if err != nil {
			return nil, err
		}
		return out[:], nil
	case domain.CurveP256:
		return crypto.DHP256(self.Private, peerPub)
	default:
		return nil, fmt.Errorf("%w: %q", crypto.ErrUnsupportedCurve, self.Curve)
	}
}

// transcriptSalt hashes both public keys in a fixed order.
func transcriptSalt(a, b []byte) []byte {
	if bytes.Compare(a, b) > 0 {
		a, b = b, a
	}
	h := sha256.New()
	h.Write(a)
	h.Write(b)
	return h.Sum(nil)
}
