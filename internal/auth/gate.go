// Package auth validates identity claims presented by connecting
// clients. Verification is pure: the gate holds no per-connection
// state and is safe to call from any number of goroutines.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the token contents. The subject is the user identity that
// the registry binds to a connection.
type Claims struct {
	Identity string `json:"identity"`
	jwt.RegisteredClaims
}

// Gate verifies HS256-signed identity tokens.
type Gate struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewGate creates a gate for the given shared secret. The ttl applies
// only to tokens the gate mints itself.
func NewGate(secret, issuer string, ttl time.Duration) *Gate {
	return &Gate{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
	}
}

// Verify checks the token signature and registered claims and returns
// the identity it carries. Expired tokens return ErrTokenExpired; all
// other failures return ErrTokenInvalid.
func (g *Gate) Verify(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return g.secret, nil
	}, jwt.WithIssuer(g.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return "", ErrTokenInvalid
	}
	if claims.Identity == "" {
		return "", ErrTokenInvalid
	}

	return claims.Identity, nil
}

// Mint issues a token for the given identity, valid for the configured
// TTL. Used by the CLI token helper and by tests.
func (g *Gate) Mint(identity string) (string, error) {
	now := time.Now()
	claims := Claims{
		Identity: identity,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.issuer,
			Subject:   identity,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(g.secret)
}
