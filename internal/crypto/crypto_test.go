package crypto_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"securechat/internal/crypto"
	"securechat/internal/domain"
)

func TestExportImport_X25519(t *testing.T) {
	kp, err := crypto.GenerateKeyPair(domain.CurveX25519)
	require.NoError(t, err)

	pk, err := crypto.ExportPublic(kp)
	require.NoError(t, err)
	assert.Equal(t, "OKP", pk.Kty)
	assert.Equal(t, "X25519", pk.Crv)
	assert.Empty(t, pk.Y)
	assert.NotContains(t, pk.X, "=")

	curve, raw, err := crypto.ImportPublic(pk)
	require.NoError(t, err)
	assert.Equal(t, domain.CurveX25519, curve)
	assert.Equal(t, kp.Public, raw)
}

func TestExportImport_P256(t *testing.T) {
	kp, err := crypto.GenerateKeyPair(domain.CurveP256)
	require.NoError(t, err)
	require.Len(t, kp.Public, 65)

	pk, err := crypto.ExportPublic(kp)
	require.NoError(t, err)
	assert.Equal(t, "EC", pk.Kty)
	assert.Equal(t, "P-256", pk.Crv)
	assert.NotEmpty(t, pk.Y)

	curve, raw, err := crypto.ImportPublic(pk)
	require.NoError(t, err)
	assert.Equal(t, domain.CurveP256, curve)
	assert.Equal(t, kp.Public, raw)
}

func TestImportPublic_Rejects(t *testing.T) {
	cases := map[string]domain.PublicKey{
		"unknown kty":    {Kty: "RSA", Crv: "X25519", X: "AA"},
		"short x25519":   {Kty: "OKP", Crv: "X25519", X: crypto.B64URL([]byte{1, 2, 3})},
		"bad base64":     {Kty: "OKP", Crv: "X25519", X: "***"},
		"off-curve p256": {Kty: "EC", Crv: "P-256", X: crypto.B64URL(make([]byte, 32)), Y: crypto.B64URL(make([]byte, 32))},
	}
	for name, pk := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := crypto.ImportPublic(pk)
			assert.Error(t, err)
		})
	}
}

func TestGenerateKeyPair_UnsupportedCurve(t *testing.T) {
	_, err := crypto.GenerateKeyPair("ed448")
	assert.ErrorIs(t, err, crypto.ErrUnsupportedCurve)
}

func TestFingerprint_Stable(t *testing.T) {
	kp, err := crypto.GenerateKeyPair(domain.CurveX25519)
	require.NoError(t, err)
	pk, err := crypto.ExportPublic(kp)
	require.NoError(t, err)

	a, err := crypto.FingerprintPublic(pk)
	require.NoError(t, err)
	assert.Len(t, a.String(), 20)
	assert.Equal(t, domain.Fingerprint(crypto.Fingerprint(kp.Public)), a)
}
