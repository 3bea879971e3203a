package crypto

import "encoding/base64"

// B64 returns standard base64 encoding without newlines.
func B64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

// B64URL returns unpadded base64url, the encoding used for key coordinates.
func B64URL(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }

// DecodeB64URL decodes unpadded base64url, tolerating trailing padding.
func DecodeB64URL(s string) ([]byte, error) {
	for len(s) > 0 && s[len(s)-1] == '=' {
		s = s[:len(s)-1]
	}
	return base64.RawURLEncoding.DecodeString(s)
}
