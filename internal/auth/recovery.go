// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 InnovaNet Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"math/big"
	"time"

	"github.com/samber/oops"
)

// Recovery code defaults.
const (
	DefaultRecoveryTTL         = 15 * time.Minute
	DefaultRecoveryMaxAttempts = 3
	RecoveryCodeLength         = 8
)

// recoveryAlphabet is the character set of generated recovery codes.
const recoveryAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RecoveryCode is a pending password recovery code. Only the hash of the code is kept.
type RecoveryCode struct {
	CodeHash  string
	ExpiresAt time.Time
	Attempts  int
}

// NewRecoveryCode hashes code and returns a fresh record with zero attempts.
func NewRecoveryCode(code string, expiresAt time.Time) (*RecoveryCode, error) {
	if code == "" {
		return nil, oops.Code("RECOVERY_INVALID_CODE").Errorf("recovery code cannot be empty")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("RECOVERY_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}
	return &RecoveryCode{
		CodeHash:  HashRecoveryCode(code),
		ExpiresAt: expiresAt,
	}, nil
}

// IsExpiredAt reports whether the code is past its expiry at t.
// A code is still valid at exactly ExpiresAt.
func (r *RecoveryCode) IsExpiredAt(t time.Time) bool {
	return t.After(r.ExpiresAt)
}

// Matches compares code against the stored hash in constant time.
func (r *RecoveryCode) Matches(code string) bool {
	if code == "" || r.CodeHash == "" {
		return false
	}
	computed := HashRecoveryCode(code)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(r.CodeHash)) == 1
}

// HashRecoveryCode computes the hex SHA-256 of a recovery code.
func HashRecoveryCode(code string) string {
	h := sha256.Sum256([]byte(code))
	return hex.EncodeToString(h[:])
}

// CodeGenerator produces recovery codes.
type CodeGenerator interface {
	Generate() (string, error)
}

// RandomCodeGenerator draws uppercase alphanumeric codes from crypto/rand.
type RandomCodeGenerator struct {
	Length int
}

// Generate returns a new random code of g.Length characters (RecoveryCodeLength if unset).
func (g RandomCodeGenerator) Generate() (string, error) {
	n := g.Length
	if n <= 0 {
		n = RecoveryCodeLength
	}
	limit := big.NewInt(int64(len(recoveryAlphabet)))
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", oops.Code("RECOVERY_CODE_GENERATE_FAILED").
				With("operation", "crypto/rand.Int").
				Wrap(err)
		}
		buf[i] = recoveryAlphabet[idx.Int64()]
	}
	return string(buf), nil
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// RecoveryMessage is handed to a RecoveryNotifier after a code is issued.
type RecoveryMessage struct {
	AccountID string    `json:"account_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RecoveryNotifier delivers issued recovery codes to their owner.
type RecoveryNotifier interface {
	NotifyRecoveryCode(ctx context.Context, msg RecoveryMessage) error
}
