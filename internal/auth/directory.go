// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 InnovaNet Contributors

package auth

import (
	"context"
	"errors"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// AccountData describes an account created by an administrator or a seed file.
// If Password is empty the enrollment code becomes the first password and a
// password change is required.
type AccountData struct {
	Email          string
	Name           string
	LastName       string
	EnrollmentCode string
	Phone          string
	Center         string
	Network        string
	Role           Role
	ImageURL       string
	Password       string
}

// CreateAccount creates an account with an explicit role.
// Returns an error wrapping ErrDuplicateEmail if the email is taken.
func (s *CredentialService) CreateAccount(ctx context.Context, data AccountData) (*Account, error) {
	return s.create(ctx, OpCreateAccount, data)
}

func (s *CredentialService) create(ctx context.Context, operation string, data AccountData) (_ *Account, err error) {
	ctx, finish := s.begin(ctx, operation)
	outcome := OutcomeError
	defer func() { finish(outcome, err) }()

	account, err := NewAccount(data.Email, data.Name, data.EnrollmentCode, data.Role, s.clock.Now())
	if err != nil {
		outcome = OutcomeInvalid
		return nil, err
	}
	account.LastName = data.LastName
	account.Phone = data.Phone
	account.Center = data.Center
	account.Network = data.Network
	account.ImageURL = data.ImageURL

	secret := data.Password
	account.PasswordChangeRequired = secret == ""
	if secret == "" {
		secret = data.EnrollmentCode
	}
	account.PasswordHash, err = s.hasher.Hash(secret)
	if err != nil {
		return nil, oops.Code("AUTH_CREATE_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	if err = s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			outcome = OutcomeDuplicate
			return nil, oops.Code("AUTH_DUPLICATE_EMAIL").
				With("email", data.Email).
				Wrap(err)
		}
		return nil, oops.Code("AUTH_CREATE_FAILED").
			With("operation", "create account").
			Wrap(err)
	}

	outcome = OutcomeOK
	s.logger.InfoContext(ctx, "account created",
		"account_id", account.ID.String(),
		"role", string(account.Role),
	)
	return account, nil
}

// GetAccount returns the account with the given id.
// The error wraps ErrNotFound if it does not exist.
func (s *CredentialService) GetAccount(ctx context.Context, id ulid.ULID) (*Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("account_id", id.String()).
			Wrap(err)
	}
	return account, nil
}

// ListAccounts returns every account ordered by creation time.
func (s *CredentialService) ListAccounts(ctx context.Context) ([]*Account, error) {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, oops.Code("ACCOUNT_LIST_FAILED").Wrap(err)
	}
	return accounts, nil
}

// UpdateProfile applies profile changes to an account. A pending recovery
// code is not touched. A password the user chose is kept, but an account
// still on its enrollment code gets the new code as its password.
func (s *CredentialService) UpdateProfile(ctx context.Context, id ulid.ULID, update ProfileUpdate) (*Account, error) {
	if update.Role != nil && !update.Role.Valid() {
		return nil, oops.Code("AUTH_INVALID_ACCOUNT").
			With("role", string(*update.Role)).
			Errorf("unknown role %q", *update.Role)
	}
	if update.EnrollmentCode != nil && *update.EnrollmentCode == "" {
		return nil, oops.Code("AUTH_INVALID_ACCOUNT").Errorf("enrollment code cannot be empty")
	}

	var updated *Account
	err := s.tx.InTransaction(ctx, func(ctx context.Context) error {
		account, err := s.accounts.GetByID(ctx, id)
		if err != nil {
			return err
		}
		rehash := update.EnrollmentCode != nil &&
			account.PasswordChangeRequired &&
			*update.EnrollmentCode != account.EnrollmentCode
		update.Apply(account)
		if rehash {
			hash, err := s.hasher.Hash(account.EnrollmentCode)
			if err != nil {
				return oops.With("operation", "hash enrollment code").Wrap(err)
			}
			account.PasswordHash = hash
		}
		account.UpdatedAt = s.clock.Now()
		if err := s.accounts.Update(ctx, account); err != nil {
			return err
		}
		updated = account
		return nil
	})
	if err != nil {
		return nil, oops.Code("ACCOUNT_UPDATE_FAILED").
			With("account_id", id.String()).
			Wrap(err)
	}
	return updated, nil
}

// DeleteAccount removes an account. The error wraps ErrNotFound if it does not exist.
func (s *CredentialService) DeleteAccount(ctx context.Context, id ulid.ULID) error {
	if err := s.accounts.Delete(ctx, id); err != nil {
		return oops.Code("ACCOUNT_DELETE_FAILED").
			With("account_id", id.String()).
			Wrap(err)
	}
	s.logger.InfoContext(ctx, "account deleted", "account_id", id.String())
	return nil
}
