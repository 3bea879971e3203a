package keys

import "securechat/internal/domain"

// SetGenerate replaces the key generator.
func (s *Service) SetGenerate(fn func(domain.Curve) (domain.KeyPair, error)) { s.generate = fn }
