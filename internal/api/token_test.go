// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 InnovaNet Contributors

package api

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redinnova/innovanet/internal/auth"
	"github.com/redinnova/innovanet/pkg/errutil"
)

func sampleAccount() *auth.Account {
	return &auth.Account{ID: ulid.Make(), Email: "lucia@example.org", Role: auth.RoleManager}
}

func TestNewTokenMaker_Validation(t *testing.T) {
	_, err := NewTokenMaker("short", time.Hour)
	errutil.AssertErrorCode(t, err, "TOKEN_INVALID_SECRET")

	_, err = NewTokenMaker(testSecret, 0)
	errutil.AssertErrorCode(t, err, "TOKEN_INVALID_TTL")
}

func TestTokenMaker_IssueAndParse(t *testing.T) {
	m, err := NewTokenMaker(testSecret, time.Hour)
	require.NoError(t, err)
	m.now = func() time.Time { return t0 }
	account := sampleAccount()

	token, expires, err := m.Issue(account)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Hour), expires)

	claims, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "manager", claims.Role)
	id, err := claims.AccountID()
	require.NoError(t, err)
	assert.Equal(t, account.ID, id)
}

func TestTokenMaker_Expired(t *testing.T) {
	m, err := NewTokenMaker(testSecret, time.Hour)
	require.NoError(t, err)
	m.now = func() time.Time { return t0 }
	token, _, err := m.Issue(sampleAccount())
	require.NoError(t, err)

	m.now = func() time.Time { return t0.Add(time.Hour + time.Second) }
	_, err = m.Parse(token)
	errutil.AssertErrorCode(t, err, "TOKEN_INVALID")
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestTokenMaker_RejectsOtherSigningMethods(t *testing.T) {
	m, err := NewTokenMaker(testSecret, time.Hour)
	require.NoError(t, err)

	claims := Claims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   ulid.Make().String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = m.Parse(hs512)
	errutil.AssertErrorCode(t, err, "TOKEN_INVALID")

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.Parse(unsigned)
	errutil.AssertErrorCode(t, err, "TOKEN_INVALID")
}

func TestTokenMaker_RequiresExpiryAndIssuer(t *testing.T) {
	m, err := NewTokenMaker(testSecret, time.Hour)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: tokenIssuer, Subject: ulid.Make().String()},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = m.Parse(noExpiry)
	errutil.AssertErrorCode(t, err, "TOKEN_INVALID")

	otherIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			Subject:   ulid.Make().String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = m.Parse(otherIssuer)
	errutil.AssertErrorCode(t, err, "TOKEN_INVALID")
}

func TestClaims_AccountID_Malformed(t *testing.T) {
	c := &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "not-a-ulid"}}
	_, err := c.AccountID()
	errutil.AssertErrorCode(t, err, "TOKEN_INVALID")
	errutil.AssertErrorContext(t, err, "subject", "not-a-ulid")
}
