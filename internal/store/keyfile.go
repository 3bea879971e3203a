package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"securechat/internal/domain"
)

const keyPairFilename = "device_key.json.enc"

// ErrNoPassphrase is returned when saving or loading without a passphrase.
var ErrNoPassphrase = errors.New("passphrase required")

// KeyFile persists the device key pair to disk, sealed under a passphrase.
type KeyFile struct {
	dir        string
	passphrase string
	mu         sync.Mutex
}

// NewKeyFile returns a KeyFile rooted at dir.
func NewKeyFile(dir, passphrase string) *KeyFile {
	return &KeyFile{dir: dir, passphrase: passphrase}
}

// Path returns the file the key pair is stored in.
func (s *KeyFile) Path() string { return filepath.Join(s.dir, keyPairFilename) }

// SaveKeyPair writes the encrypted key pair to disk.
func (s *KeyFile) SaveKeyPair(kp domain.KeyPair) error {
	if s.passphrase == "" {
		return ErrNoPassphrase
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(kp)
	if err != nil {
		return err
	}
	ct, err := seal(s.passphrase, raw, defaultScrypt())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}
	return writeFile(s.Path(), ct, 0o600)
}

// LoadKeyPair reads and decrypts the key pair. ok is false when no file exists.
func (s *KeyFile) LoadKeyPair() (domain.KeyPair, bool, error) {
	if s.passphrase == "" {
		return domain.KeyPair{}, false, ErrNoPassphrase
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := readFile(s.Path())
	if err != nil {
		return domain.KeyPair{}, false, err
	}
	if b == nil {
		return domain.KeyPair{}, false, nil
	}
	pt, err := open(s.passphrase, b)
	if err != nil {
		return domain.KeyPair{}, false, err
	}
	var kp domain.KeyPair
	if err := json.Unmarshal(pt, &kp); err != nil {
		return domain.KeyPair{}, false, err
	}
	return kp, true, nil
}

// Compile-time assertion that KeyFile implements domain.KeyPairStore.
var _ domain.KeyPairStore = (*KeyFile)(nil)
