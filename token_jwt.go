package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// purposeTokenClaims is the wire shape of a JWT purpose token.
type purposeTokenClaims struct {
	jwt.RegisteredClaims
	Purpose       string `json:"prp"`
	SecurityStamp string `json:"stp,omitempty"`
}

// JWTTokenProvider issues HS256-signed purpose tokens with a per-purpose
// lifetime from the Manager's TokenOptions. The provider is stateless, a
// token replayed before expiry validates again; single-use semantics belong
// to the consuming flow (e.g. the password reset handler marking the reset
// done). Tokens embed the security stamp, so rotating the stamp invalidates
// them before expiry.
type JWTTokenProvider[U any] struct {
	signingKey []byte
	issuer     string
	now        func() time.Time
}

// NewJWTTokenProvider returns a provider signing with the given key.
func NewJWTTokenProvider[U any](signingKey []byte) *JWTTokenProvider[U] {
	return &JWTTokenProvider[U]{
		signingKey: signingKey,
		now:        time.Now,
	}
}

func (p *JWTTokenProvider[U]) WithIssuer(issuer string) *JWTTokenProvider[U] {
	p.issuer = issuer
	return p
}

// WithClock overrides the clock used for issuing and validating, tests step
// time without sleeping.
func (p *JWTTokenProvider[U]) WithClock(now func() time.Time) *JWTTokenProvider[U] {
	if now != nil {
		p.now = now
	}
	return p
}

// Generate issues a token bound to (user, purpose) with the purpose's
// configured lifetime.
func (p *JWTTokenProvider[U]) Generate(ctx context.Context, purpose string, m *Manager[U], user *U) (string, error) {
	if len(p.signingKey) == 0 {
		return "", badInput("signing key must not be empty")
	}

	now := p.now()
	claims := &purposeTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    p.issuer,
			Subject:   m.GetUserID(user),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.Options().Tokens.LifetimeFor(purpose))),
		},
		Purpose: purpose,
	}

	if m.SupportsUserSecurityStamp() {
		stamp, err := m.GetSecurityStamp(ctx, user)
		if err != nil {
			return "", err
		}
		claims.SecurityStamp = stamp
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign purpose token")
	}
	return signed, nil
}

// Validate reports whether the token is intact, unexpired, and bound to the
// exact (user, purpose) pair, with a security stamp matching the store's
// current one. Malformed or mismatched tokens are a false verdict, not an
// error; only store faults surface as errors.
func (p *JWTTokenProvider[U]) Validate(ctx context.Context, purpose, token string, m *Manager[U], user *U) (bool, error) {
	parsed, err := jwt.ParseWithClaims(token, &purposeTokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.signingKey, nil
	}, jwt.WithTimeFunc(p.now))
	if err != nil || !parsed.Valid {
		return false, nil
	}

	claims, ok := parsed.Claims.(*purposeTokenClaims)
	if !ok {
		return false, nil
	}
	if claims.Purpose != purpose {
		return false, nil
	}
	if claims.Subject != m.GetUserID(user) {
		return false, nil
	}

	if m.SupportsUserSecurityStamp() {
		stamp, err := m.GetSecurityStamp(ctx, user)
		if err != nil {
			return false, err
		}
		if claims.SecurityStamp != stamp {
			return false, nil
		}
	}

	return true, nil
}

var _ TokenProvider[struct{}] = (*JWTTokenProvider[struct{}])(nil)
