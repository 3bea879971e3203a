package store

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"securechat/internal/util/memzero"
)

// keyFileVersion is written into every sealed key file and bound into its
// associated data.
const keyFileVersion = 2

// Upper bound on scrypt N accepted from a file on disk.
const maxScryptN = 1 << 20

var (
	// ErrWrongPassphrase is returned when the passphrase is incorrect or the
	// sealed key file was modified.
	ErrWrongPassphrase = errors.New("wrong passphrase or corrupted key file")

	// ErrKeyFileVersion is returned for a key file in an unknown format.
	ErrKeyFileVersion = errors.New("unsupported key file version")
)

// sealedKey is the JSON layout of the key file.
type sealedKey struct {
	V      int    `json:"v"`
	Salt   []byte `json:"salt"`
	N      int    `json:"scrypt_N"`
	R      int    `json:"scrypt_r"`
	P      int    `json:"scrypt_p"`
	Cipher []byte `json:"cipher"`
}

type scryptParams struct{ N, R, P int }

// seal encrypts raw under a key stretched from passphrase.
func seal(passphrase string, raw []byte, kdf scryptParams) ([]byte, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	aead, err := keyFileAEAD(passphrase, salt, kdf)
	if err != nil {
		return nil, err
	}
	// Each file gets a fresh salt and therefore a fresh key, so a fixed nonce is safe.
	nonce := make([]byte, chacha20poly1305.NonceSize)
	return json.Marshal(sealedKey{
		V:      keyFileVersion,
		Salt:   salt,
		N:      kdf.N,
		R:      kdf.R,
		P:      kdf.P,
		Cipher: aead.Seal(nil, nonce, raw, keyFileAD(keyFileVersion, salt)),
	})
}

// open reverses seal.
func open(passphrase string, b []byte) ([]byte, error) {
	var sk sealedKey
	if err := json.Unmarshal(b, &sk); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrongPassphrase, err)
	}
	if sk.V != keyFileVersion {
		return nil, fmt.Errorf("%w: %d", ErrKeyFileVersion, sk.V)
	}
	if sk.N <= 1 || sk.N > maxScryptN || sk.R <= 0 || sk.P <= 0 {
		return nil, fmt.Errorf("%w: bad scrypt parameters", ErrWrongPassphrase)
	}
	aead, err := keyFileAEAD(passphrase, sk.Salt, scryptParams{N: sk.N, R: sk.R, P: sk.P})
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	pt, err := aead.Open(nil, nonce, sk.Cipher, keyFileAD(sk.V, sk.Salt))
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return pt, nil
}

func keyFileAEAD(passphrase string, salt []byte, kdf scryptParams) (cipher.AEAD, error) {
	key, err := scrypt.Key([]byte(passphrase), salt, kdf.N, kdf.R, kdf.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(key)
	return chacha20poly1305.New(key)
}

// keyFileAD binds the format version and salt to the ciphertext.
func keyFileAD(v int, salt []byte) []byte {
	return append([]byte{'s', 'c', 'k', byte(v)}, salt...)
}

// scryptN is lowered by tests through SetScryptN.
var scryptN = 1 << 15

func defaultScrypt() scryptParams { return scryptParams{N: scryptN, R: 8, P: 1} }
