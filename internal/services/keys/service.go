package keys

import (
	"context"
	"fmt"
	"sync"

	"securechat/internal/crypto"
	"securechat/internal/domain"
	"securechat/internal/logging"
)

// Service manages the device key pair.
type Service struct {
	curve domain.Curve
	store domain.KeyPairStore // optional
	log   logging.Logger

	// generate is a seam for tests.
	generate func(domain.Curve) (domain.KeyPair, error)

	mu   sync.Mutex
	pair *domain.KeyPair
}

// New returns a key service for curve. store may be nil.
func New(curve domain.Curve, store domain.KeyPairStore, log logging.Logger) *Service {
	return &Service{
		curve:    curve,
		store:    store,
		log:      logging.OrNop(log),
		generate: crypto.GenerateKeyPair,
	}
}

// GetOrCreateKeyPair returns the device key pair, creating it on first call.
// Concurrent first calls observe the same pair.
func (s *Service) GetOrCreateKeyPair(ctx context.Context) (domain.KeyPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pair != nil {
		return s.pair.Clone(), nil
	}

	if s.store != nil {
		kp, ok, err := s.store.LoadKeyPair()
		if err != nil {
			return domain.KeyPair{}, fmt.Errorf("%w: load: %v", domain.ErrKeyGeneration, err)
		}
		if ok && kp.Curve == s.curve {
			s.pair = &kp
			s.log.Debug(ctx, "loaded device key pair", "curve", kp.Curve)
			return kp.Clone(), nil
		}
		if ok {
			s.log.Warn(ctx, "stored key pair uses another curve, generating a new one",
				"stored", kp.Curve, "want", s.curve)
		}
	}

	kp, err := s.generate(s.curve)
	if err != nil {
		return domain.KeyPair{}, fmt.Errorf("%w: %v", domain.ErrKeyGeneration, err)
	}
	if s.store != nil {
		if err := s.store.SaveKeyPair(kp); err != nil {
			s.log.Warn(ctx, "could not persist device key pair", "err", err)
		}
	}
	s.pair = &kp
	s.log.Info(ctx, "generated device key pair", "curve", kp.Curve)
	return kp.Clone(), nil
}

// ExportPublic returns the portable public key of kp.
func (s *Service) ExportPublic(kp domain.KeyPair) (domain.PublicKey, error) {
	return crypto.ExportPublic(kp)
}

// Fingerprint returns a short fingerprint of kp's public key.
func (s *Service) Fingerprint(kp domain.KeyPair) domain.Fingerprint {
	return domain.Fingerprint(crypto.Fingerprint(kp.Public))
}

// Compile-time assertion that Service implements domain.KeyManager.
var _ domain.KeyManager = (*Service)(nil)
