// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 InnovaNet Contributors

package auth

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Role is the access level of an account in the network.
type Role string

// Roles known to the network, from most to least privileged.
const (
	RoleAdmin              Role = "admin"
	RoleGeneralCoordinator Role = "general_coordinator"
	RoleSubnetCoordinator  Role = "subnet_coordinator"
	RoleManager            Role = "manager"
	RoleGuest              Role = "guest"
)

// Roles lists every valid role.
var Roles = []Role{
	RoleAdmin,
	RoleGeneralCoordinator,
	RoleSubnetCoordinator,
	RoleManager,
	RoleGuest,
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// Account is one entry of the account directory.
type Account struct {
	ID             ulid.ULID
	Email          string
	Name           string
	LastName       string
	EnrollmentCode string
	Phone          string
	Center         string
	Network        string
	Role           Role
	ImageURL       string

	PasswordHash           string
	PasswordChangeRequired bool

	// Recovery is nil when no recovery code is pending.
	Recovery *RecoveryCode

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	if a.Recovery != nil {
		r := *a.Recovery
		c.Recovery = &r
	}
	return &c
}

// ClearRecovery drops any pending recovery code.
func (a *Account) ClearRecovery() {
	a.Recovery = nil
}

// RegistrationData is the self-service enrollment form.
type RegistrationData struct {
	Name           string
	LastName       string
	EnrollmentCode string
	Email          string
	Phone          string
	Center         string
}

// ProfileUpdate carries the editable profile fields. Nil fields are left as they are.
type ProfileUpdate struct {
	Name           *string
	LastName       *string
	EnrollmentCode *string
	Phone          *string
	Center         *string
	Network        *string
	Role           *Role
	ImageURL       *string
}

// Apply copies the set fields of u onto a.
func (u ProfileUpdate) Apply(a *Account) {
	if u.Name != nil {
		a.Name = *u.Name
	}
	if u.LastName != nil {
		a.LastName = *u.LastName
	}
	if u.EnrollmentCode != nil {
		a.EnrollmentCode = *u.EnrollmentCode
	}
	if u.Phone != nil {
		a.Phone = *u.Phone
	}
	if u.Center != nil {
		a.Center = *u.Center
	}
	if u.Network != nil {
		a.Network = *u.Network
	}
	if u.Role != nil {
		a.Role = *u.Role
	}
	if u.ImageURL != nil {
		a.ImageURL = *u.ImageURL
	}
}

// NewAccount creates a validated Account with a fresh ID.
// The password hash is set by the caller.
func NewAccount(email, name, enrollmentCode string, role Role, now time.Time) (*Account, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, oops.Code("AUTH_INVALID_ACCOUNT").Errorf("name cannot be empty")
	}
	if enrollmentCode == "" {
		return nil, oops.Code("AUTH_INVALID_ACCOUNT").Errorf("enrollment code cannot be empty")
	}
	if !role.Valid() {
		return nil, oops.Code("AUTH_INVALID_ACCOUNT").
			With("role", string(role)).
			Errorf("unknown role %q", role)
	}

	return &Account{
		ID:             ulid.Make(),
		Email:          email,
		Name:           name,
		EnrollmentCode: enrollmentCode,
		Role:           role,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// ValidateEmail checks that email is a bare address.
// Emails are matched exactly as stored, so surrounding whitespace is rejected
// rather than trimmed.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code("AUTH_INVALID_ACCOUNT").Errorf("email cannot be empty")
	}
	if strings.TrimSpace(email) != email {
		return oops.Code("AUTH_INVALID_ACCOUNT").Errorf("email cannot have surrounding whitespace")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return oops.Code("AUTH_INVALID_ACCOUNT").
			With("email", email).
			Errorf("email is not a valid address")
	}
	return nil
}

// AccountRepository manages account persistence.
//
// When called inside Transactor.InTransaction, GetByID and GetByEmail lock the
// returned account until the transaction ends.
type AccountRepository interface {
	// Create stores a new account.
	// Returns ErrDuplicateEmail if the email is taken.
	Create(ctx context.Context, account *Account) error

	// GetByID retrieves an account by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// GetByEmail retrieves an account by exact, case-sensitive email.
	// Returns ErrNotFound if no account has the given email.
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// Update replaces all stored fields of an existing account.
	Update(ctx context.Context, account *Account) error

	// List returns all accounts ordered by creation time.
	List(ctx context.Context) ([]*Account, error)

	// Delete removes an account.
	Delete(ctx context.Context, id ulid.ULID) error
}

// Transactor runs a unit of work atomically.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
