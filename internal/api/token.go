// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 InnovaNet Contributors

package api

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/redinnova/innovanet/internal/auth"
)

// MinSecretLength is the shortest accepted HMAC signing secret in bytes.
const MinSecretLength = 32

const tokenIssuer = "innovanet"

// Claims are the bearer token claims. The subject is the account id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AccountID parses the subject as an account id.
func (c *Claims) AccountID() (ulid.ULID, error) {
	id, err := ulid.Parse(c.Subject)
	if err != nil {
		return ulid.ULID{}, oops.Code("TOKEN_INVALID").
			With("subject", c.Subject).
			Wrap(err)
	}
	return id, nil
}

// TokenMaker issues and parses HS256 bearer tokens.
type TokenMaker struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenMaker creates a TokenMaker signing with secret. Tokens expire after ttl.
func NewTokenMaker(secret string, ttl time.Duration) (*TokenMaker, error) {
	if len(secret) < MinSecretLength {
		return nil, oops.Code("TOKEN_INVALID_SECRET").
			With("min_length", MinSecretLength).
			Errorf("signing secret must be at least %d bytes", MinSecretLength)
	}
	if ttl <= 0 {
		return nil, oops.Code("TOKEN_INVALID_TTL").Errorf("token ttl must be positive")
	}
	return &TokenMaker{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for account. It returns the token and its expiry.
func (m *TokenMaker) Issue(account *auth.Account) (string, time.Time, error) {
	now := m.now()
	expires := now.Add(m.ttl)
	claims := Claims{
		Role: string(account.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   account.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, oops.Code("TOKEN_SIGN_FAILED").
			With("account_id", account.ID.String()).
			Wrap(err)
	}
	return signed, expires, nil
}

// Parse verifies the signature and expiry of token and returns its claims.
func (m *TokenMaker) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, oops.Code("TOKEN_INVALID").Wrap(err)
	}
	if !parsed.Valid {
		return nil, oops.Code("TOKEN_INVALID").Errorf("token is not valid")
	}
	return claims, nil
}
