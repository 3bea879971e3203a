package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"securechat/internal/domain"
)

// Claims carries the caller's user id as the token subject.
type Claims struct {
	jwt.RegisteredClaims
}

// IssueToken signs a token for user valid for ttl.
func IssueToken(secret []byte, user domain.UserID, now time.Time, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("empty jwt secret")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(secret)
}

// ParseToken verifies tok and returns its subject.
func ParseToken(secret []byte, tok string, now time.Time) (domain.UserID, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", fmt.Errorf("%w: token without subject", domain.ErrUnauthorized)
	}
	return domain.UserID(claims.Subject), nil
}

type callerKey struct{}

// callerFrom returns the authenticated user id, and false when the relay runs
// without authentication.
func callerFrom(ctx context.Context) (domain.UserID, bool) {
	u, ok := ctx.Value(callerKey{}).(domain.UserID)
	return u, ok
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.secret) == 0 {
			next.ServeHTTP(w, r)
			return
		}
		tok := bearer(r)
		if tok == "" {
			s.fail(w, r, fmt.Errorf("%w: missing bearer token", domain.ErrUnauthorized))
			return
		}
		user, err := ParseToken(s.secret, tok, s.clock.Now())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, user)))
	})
}

func bearer(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}

// requireSelf fails unless the caller is user.
func requireSelf(ctx context.Context, user domain.UserID) error {
	caller, ok := callerFrom(ctx)
	if !ok || caller == user {
		return nil
	}
	return fmt.Errorf("%w: %s may not act for %s", domain.ErrUnauthorized, caller, user)
}

// requireParticipant fails unless the caller takes part in sess.
func requireParticipant(ctx context.Context, sess domain.Session) error {
	caller, ok := callerFrom(ctx)
	if !ok || sess.HasParticipant(caller) {
		return nil
	}
	return fmt.Errorf("%w: %s is not in session %s", domain.ErrUnauthorized, caller, sess.ID)
}
