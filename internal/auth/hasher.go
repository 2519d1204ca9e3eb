// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 InnovaNet Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// Argon2Params are the cost parameters of an argon2id hash.
type Argon2Params struct {
	Time    uint32 // iterations
	Memory  uint32 // KiB
	Threads uint8
	SaltLen uint32
	KeyLen  uint32
}

// DefaultArgon2Params are the OWASP-recommended argon2id parameters.
var DefaultArgon2Params = Argon2Params{
	Time:    1,
	Memory:  64 * 1024,
	Threads: 4,
	SaltLen: 16,
	KeyLen:  32,
}

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces an encoded hash of the password.
	Hash(password string) (string, error)

	// Verify checks if the password matches the hash.
	// Returns (true, nil) on match, (false, nil) on mismatch, or error on invalid hash.
	Verify(password, hash string) (bool, error)

	// NeedsUpgrade returns true if the hash was produced with other parameters.
	NeedsUpgrade(hash string) bool
}

// Argon2idHasher implements PasswordHasher using argon2id in PHC string format.
type Argon2idHasher struct {
	params Argon2Params
}

// NewArgon2idHasher creates a hasher. Zero fields of params fall back to DefaultArgon2Params.
func NewArgon2idHasher(params Argon2Params) *Argon2idHasher {
	if params.Time == 0 {
		params.Time = DefaultArgon2Params.Time
	}
	if params.Memory == 0 {
		params.Memory = DefaultArgon2Params.Memory
	}
	if params.Threads == 0 {
		params.Threads = DefaultArgon2Params.Threads
	}
	if params.SaltLen == 0 {
		params.SaltLen = DefaultArgon2Params.SaltLen
	}
	if params.KeyLen == 0 {
		params.KeyLen = DefaultArgon2Params.KeyLen
	}
	return &Argon2idHasher{params: params}
}

// Hash produces an argon2id hash of the password:
// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks if the password matches the encoded hash.
func (h *Argon2idHasher) Verify(password, encodedHash string) (bool, error) {
	decoded, err := decodeArgon2Hash(encodedHash)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), decoded.salt,
		decoded.params.Time, decoded.params.Memory, decoded.params.Threads, decoded.params.KeyLen)

	return subtle.ConstantTimeCompare(computed, decoded.key) == 1, nil
}

// NeedsUpgrade returns true if the hash is not argon2id or uses other cost parameters.
func (h *Argon2idHasher) NeedsUpgrade(encodedHash string) bool {
	decoded, err := decodeArgon2Hash(encodedHash)
	if err != nil {
		return true
	}
	p := decoded.params
	return p.Time != h.params.Time || p.Memory != h.params.Memory || p.Threads != h.params.Threads
}

type argon2Hash struct {
	params Argon2Params
	salt   []byte
	key    []byte
}

func decodeArgon2Hash(encodedHash string) (*argon2Hash, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash format")
	}
	if parts[1] != "argon2id" {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if version != argon2.Version {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported argon2 version %d", version)
	}

	var memory, iterations, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if threads == 0 || threads > 255 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("threads value %d out of range", threads)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if len(key) == 0 || len(key) > 1<<10 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash key length: %d", len(key))
	}

	return &argon2Hash{
		params: Argon2Params{
			Time:    iterations,
			Memory:  memory,
			Threads: uint8(threads),
			SaltLen: uint32(len(salt)),
			KeyLen:  uint32(len(key)),
		},
		salt: salt,
		key:  key,
	}, nil
}
