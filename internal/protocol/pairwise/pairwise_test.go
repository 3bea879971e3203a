package pairwise_test

import (
	"bytes"
	"errors"
	"testing"

	"securechat/internal/crypto"
	"securechat/internal/domain"
	"securechat/internal/protocol/pairwise"
)

// makePair returns a fresh key pair and its exported public key.
func makePair(t *testing.T, curve domain.Curve) (domain.KeyPair, domain.PublicKey) {
	t.Helper()
	kp, err := crypto.GenerateKeyPair(curve)
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	pk, err := crypto.ExportPublic(kp)
	if err != nil {
		t.Fatalf("ExportPublic: %v", err)
	}
	return kp, pk
}

func TestDerive_Commutative(t *testing.T) {
	for _, curve := range []domain.Curve{domain.CurveX25519, domain.CurveP256} {
		t.Run(curve.String(), func(t *testing.T) {
			a, aPub := makePair(t, curve)
			b, bPub := makePair(t, curve)

			ab, err := pairwise.Derive(a, bPub)
			if err != nil {
				t.Fatalf("Derive(a, B): %v", err)
			}
			ba, err := pairwise.Derive(b, aPub)
			if err != nil {
				t.Fatalf("Derive(b, A): %v", err)
			}
			if ab != ba {
				t.Fatalf("derived secrets differ")
			}
			if ab == (domain.SharedSecret{}) {
				t.Fatalf("derived secret is zero")
			}

			c, _ := makePair(t, curve)
			cb, err := pairwise.Derive(c, bPub)
			if err != nil {
				t.Fatalf("Derive(c, B): %v", err)
			}
			if cb == ab {
				t.Fatalf("third party derived the same secret")
			}
		})
	}
}

func TestDerive_CurveMismatch(t *testing.T) {
	a, _ := makePair(t, domain.CurveX25519)
	_, bPub := makePair(t, domain.CurveP256)

	if _, err := pairwise.Derive(a, bPub); !errors.Is(err, pairwise.ErrCurveMismatch) {
		t.Fatalf("got %v, want ErrCurveMismatch", err)
	}
}

func TestSealOpen_RoundTrip(t *testing.T) {
	a, aPub := makePair(t, domain.CurveX25519)
	b, bPub := makePair(t, domain.CurveX25519)
	ka, _ := pairwise.Derive(a, bPub)
	kb, _ := pairwise.Derive(b, aPub)

	ad := pairwise.AssociatedData("s1", "alice")
	for _, msg := range []string{"", "hi", "héllo wörld ✓ 你好"} {
		nonce, ct, err := pairwise.Seal(ka, ad, []byte(msg))
		if err != nil {
			t.Fatalf("Seal: %v", err)
		}
		if len(nonce) != pairwise.NonceSize {
			t.Fatalf("nonce size %d", len(nonce))
		}
		pt, err := pairwise.Open(kb, ad, nonce, ct)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if string(pt) != msg {
			t.Fatalf("got %q, want %q", pt, msg)
		}
	}
}

func TestSeal_FreshNonce(t *testing.T) {
	a, _ := makePair(t, domain.CurveX25519)
	_, bPub := makePair(t, domain.CurveX25519)
	k, _ := pairwise.Derive(a, bPub)

	n1, c1, _ := pairwise.Seal(k, nil, []byte("same"))
	n2, c2, _ := pairwise.Seal(k, nil, []byte("same"))
	if bytes.Equal(n1, n2) || bytes.Equal(c1, c2) {
		t.Fatalf("nonce or ciphertext repeated")
	}
}

func TestOpen_Rejects(t *testing.T) {
	a, _ := makePair(t, domain.CurveX25519)
	_, bPub := makePair(t, domain.CurveX25519)
	c, _ := makePair(t, domain.CurveX25519)
	k, _ := pairwise.Derive(a, bPub)
	wrong, _ := pairwise.Derive(c, bPub)

	ad := pairwise.AssociatedData("s1", "alice")
	nonce, ct, err := pairwise.Seal(k, ad, []byte("secret"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	tampered := bytes.Clone(ct)
	tampered[0] ^= 1

	cases := map[string]func() error{
		"wrong key": func() error { _, err := pairwise.Open(wrong, ad, nonce, ct); return err },
		"other sender": func() error {
			_, err := pairwise.Open(k, pairwise.AssociatedData("s1", "bob"), nonce, ct)
			return err
		},
		"other session": func() error {
			_, err := pairwise.Open(k, pairwise.AssociatedData("s2", "alice"), nonce, ct)
			return err
		},
		"tampered": func() error { _, err := pairwise.Open(k, ad, nonce, tampered); return err },
		"short iv": func() error { _, err := pairwise.Open(k, ad, nonce[:4], ct); return err },
	}
	for name, fn := range cases {
		if err := fn(); !errors.Is(err, pairwise.ErrAuth) {
			t.Fatalf("%s: got %v, want ErrAuth", name, err)
		}
	}
}
