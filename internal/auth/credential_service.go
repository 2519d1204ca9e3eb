// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 InnovaNet Contributors

package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/redinnova/innovanet/pkg/errutil"
)

const tracerName = "github.com/redinnova/innovanet/internal/auth"

// dummyPasswordHash is verified against when no account matches, so a miss
// costs as much as a wrong password.
//
//nolint:gosec // G101: fake hash for timing equalisation, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// CredentialService owns login verification, enrollment-code first login,
// admin password reset and password recovery.
//
// Expected negative results (unknown account, wrong code, expired code,
// exhausted attempts) are reported as false / nil / "" with a nil error.
// Errors are reserved for invalid input and storage failures.
type CredentialService struct {
	accounts    AccountRepository
	tx          Transactor
	hasher      PasswordHasher
	clock       Clock
	codes       CodeGenerator
	notifier    RecoveryNotifier
	recoveryTTL time.Duration
	maxAttempts int
	logger      *slog.Logger
	tracer      trace.Tracer
}

// Option configures a CredentialService.
type Option func(*CredentialService)

// WithClock sets the time source used for expiry decisions.
func WithClock(c Clock) Option {
	return func(s *CredentialService) { s.clock = c }
}

// WithCodeGenerator sets the recovery code generator.
func WithCodeGenerator(g CodeGenerator) Option {
	return func(s *CredentialService) { s.codes = g }
}

// WithNotifier sets where issued recovery codes are delivered.
func WithNotifier(n RecoveryNotifier) Option {
	return func(s *CredentialService) { s.notifier = n }
}

// WithRecoveryPolicy overrides the recovery code lifetime and attempt limit.
// Non-positive values keep the defaults.
func WithRecoveryPolicy(ttl time.Duration, maxAttempts int) Option {
	return func(s *CredentialService) {
		if ttl > 0 {
			s.recoveryTTL = ttl
		}
		if maxAttempts > 0 {
			s.maxAttempts = maxAttempts
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *CredentialService) { s.logger = l }
}

// NewCredentialService creates a CredentialService.
func NewCredentialService(accounts AccountRepository, tx Transactor, hasher PasswordHasher, opts ...Option) (*CredentialService, error) {
	if accounts == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("account repository is required")
	}
	if tx == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("transactor is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("password hasher is required")
	}

	s := &CredentialService{
		accounts:    accounts,
		tx:          tx,
		hasher:      hasher,
		clock:       SystemClock{},
		codes:       RandomCodeGenerator{},
		recoveryTTL: DefaultRecoveryTTL,
		maxAttempts: DefaultRecoveryMaxAttempts,
		logger:      slog.Default(),
		tracer:      otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Authenticate returns the account for email if password is valid, or nil.
//
// While a password change is pending, the enrollment code is accepted in
// place of the password.
func (s *CredentialService) Authenticate(ctx context.Context, email, password string) (_ *Account, err error) {
	ctx, finish := s.begin(ctx, OpAuthenticate)
	outcome := OutcomeError
	defer func() { finish(outcome, err) }()

	account, err := s.accounts.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		//nolint:errcheck // result discarded, only the cost matters
		s.hasher.Verify(password, dummyPasswordHash)
		outcome = OutcomeNotFound
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get account by email").
			Wrap(err)
	}

	if account.PasswordChangeRequired && constantTimeEqual(password, account.EnrollmentCode) {
		outcome = OutcomeOK
		return account, nil
	}

	valid, err := s.hasher.Verify(password, account.PasswordHash)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("account_id", account.ID.String()).
			Wrap(err)
	}
	if !valid {
		outcome = OutcomeMismatch
		return nil, nil
	}

	s.upgradeHash(ctx, account, password)
	outcome = OutcomeOK
	return account, nil
}

// Register enrolls a new manager whose first password is the enrollment code.
// Returns an error wrapping ErrDuplicateEmail if the email is taken.
func (s *CredentialService) Register(ctx context.Context, data RegistrationData) (*Account, error) {
	return s.create(ctx, OpRegister, AccountData{
		Email:          data.Email,
		Name:           data.Name,
		LastName:       data.LastName,
		EnrollmentCode: data.EnrollmentCode,
		Phone:          data.Phone,
		Center:         data.Center,
		Role:           RoleManager,
	})
}

// AdminResetPassword puts the account back on its enrollment code and
// requires a password change. Returns false if the account does not exist.
func (s *CredentialService) AdminResetPassword(ctx context.Context, id ulid.ULID) (_ bool, err error) {
	ctx, finish := s.begin(ctx, OpAdminResetPassword)
	outcome := OutcomeError
	defer func() { finish(outcome, err) }()

	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		account, getErr := s.accounts.GetByID(ctx, id)
		if errors.Is(getErr, ErrNotFound) {
			outcome = OutcomeNotFound
			return nil
		}
		if getErr != nil {
			return oops.With("operation", "get account by id").Wrap(getErr)
		}

		hash, hashErr := s.hasher.Hash(account.EnrollmentCode)
		if hashErr != nil {
			return oops.With("operation", "hash enrollment code").Wrap(hashErr)
		}
		account.PasswordHash = hash
		account.PasswordChangeRequired = true
		account.UpdatedAt = s.clock.Now()

		if updErr := s.accounts.Update(ctx, account); updErr != nil {
			return oops.With("operation", "update account").Wrap(updErr)
		}
		outcome = OutcomeOK
		return nil
	})
	if err != nil {
		return false, oops.Code("AUTH_ADMIN_RESET_FAILED").
			With("account_id", id.String()).
			Wrap(err)
	}
	return outcome == OutcomeOK, nil
}

// IssueRecoveryCode creates a recovery code for email, replacing any pending
// one, and hands it to the notifier. Returns "" if no account matches.
func (s *CredentialService) IssueRecoveryCode(ctx context.Context, email string) (_ string, err error) {
	ctx, finish := s.begin(ctx, OpIssueRecoveryCode)
	outcome := OutcomeError
	defer func() { finish(outcome, err) }()

	code, err := s.codes.Generate()
	if err != nil {
		return "", oops.Code("RECOVERY_ISSUE_FAILED").
			With("operation", "generate code").
			Wrap(err)
	}

	var msg RecoveryMessage
	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		account, getErr := s.accounts.GetByEmail(ctx, email)
		if errors.Is(getErr, ErrNotFound) {
			outcome = OutcomeNotFound
			return nil
		}
		if getErr != nil {
			return oops.With("operation", "get account by email").Wrap(getErr)
		}

		now := s.clock.Now()
		recovery, recErr := NewRecoveryCode(code, now.Add(s.recoveryTTL))
		if recErr != nil {
			return recErr
		}
		account.Recovery = recovery
		account.UpdatedAt = now

		if updErr := s.accounts.Update(ctx, account); updErr != nil {
			return oops.With("operation", "update account").Wrap(updErr)
		}

		msg = RecoveryMessage{
			AccountID: account.ID.String(),
			Email:     account.Email,
			Name:      account.Name,
			Code:      code,
			ExpiresAt: recovery.ExpiresAt,
		}
		outcome = OutcomeOK
		return nil
	})
	if err != nil {
		return "", oops.Code("RECOVERY_ISSUE_FAILED").Wrap(err)
	}
	if outcome != OutcomeOK {
		return "", nil
	}

	if s.notifier != nil {
		if notifyErr := s.notifier.NotifyRecoveryCode(ctx, msg); notifyErr != nil {
			errutil.LogError(ctx, s.logger, "recovery code delivery failed", notifyErr)
		}
	}
	return code, nil
}

// VerifyRecoveryCode checks code against the pending recovery code of email.
//
// Every check counts as an attempt. Once the attempt count reaches the limit
// the code is discarded and the check fails, even when code is correct.
// A successful check does not consume the code; ResetPassword does.
func (s *CredentialService) VerifyRecoveryCode(ctx context.Context, email, code string) (_ bool, err error) {
	ctx, finish := s.begin(ctx, OpVerifyRecoveryCode)
	outcome := OutcomeError
	defer func() { finish(outcome, err) }()

	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		account, getErr := s.accounts.GetByEmail(ctx, email)
		if errors.Is(getErr, ErrNotFound) {
			outcome = OutcomeNotFound
			return nil
		}
		if getErr != nil {
			return oops.With("operation", "get account by email").Wrap(getErr)
		}
		if account.Recovery == nil {
			outcome = OutcomeNotFound
			return nil
		}

		now := s.clock.Now()
		switch {
		case account.Recovery.IsExpiredAt(now):
			account.ClearRecovery()
			outcome = OutcomeExpired
		default:
			account.Recovery.Attempts++
			if account.Recovery.Attempts >= s.maxAttempts {
				account.ClearRecovery()
				outcome = OutcomeAttemptsExceeded
			} else if account.Recovery.Matches(code) {
				outcome = OutcomeOK
			} else {
				outcome = OutcomeMismatch
			}
		}
		account.UpdatedAt = now

		if updErr := s.accounts.Update(ctx, account); updErr != nil {
			return oops.With("operation", "update account").Wrap(updErr)
		}
		return nil
	})
	if err != nil {
		outcome = OutcomeError
		return false, oops.Code("RECOVERY_VERIFY_FAILED").Wrap(err)
	}
	return outcome == OutcomeOK, nil
}

// ResetPassword sets a new password for email if code matches its pending,
// unexpired recovery code. A mismatch does not count as an attempt.
// PasswordChangeRequired is left as it is.
func (s *CredentialService) ResetPassword(ctx context.Context, email, code, newPassword string) (_ bool, err error) {
	ctx, finish := s.begin(ctx, OpResetPassword)
	outcome := OutcomeError
	defer func() { finish(outcome, err) }()

	if newPassword == "" {
		outcome = OutcomeInvalid
		return false, ErrEmptyPassword
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return false, oops.Code("RECOVERY_RESET_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		account, getErr := s.accounts.GetByEmail(ctx, email)
		if errors.Is(getErr, ErrNotFound) {
			outcome = OutcomeNotFound
			return nil
		}
		if getErr != nil {
			return oops.With("operation", "get account by email").Wrap(getErr)
		}
		if account.Recovery == nil {
			outcome = OutcomeNotFound
			return nil
		}
		if !account.Recovery.Matches(code) {
			outcome = OutcomeMismatch
			return nil
		}

		now := s.clock.Now()
		if account.Recovery.IsExpiredAt(now) {
			outcome = OutcomeExpired
		} else {
			account.PasswordHash = hash
			outcome = OutcomeOK
		}
		account.ClearRecovery()
		account.UpdatedAt = now

		if updErr := s.accounts.Update(ctx, account); updErr != nil {
			return oops.With("operation", "update account").Wrap(updErr)
		}
		return nil
	})
	if err != nil {
		outcome = OutcomeError
		return false, oops.Code("RECOVERY_RESET_FAILED").Wrap(err)
	}
	return outcome == OutcomeOK, nil
}

// ChangePassword replaces the password of an account and clears
// PasswordChangeRequired. Returns false if the account does not exist.
func (s *CredentialService) ChangePassword(ctx context.Context, id ulid.ULID, newPassword string) (_ bool, err error) {
	ctx, finish := s.begin(ctx, OpChangePassword)
	outcome := OutcomeError
	defer func() { finish(outcome, err) }()

	if newPassword == "" {
		outcome = OutcomeInvalid
		return false, ErrEmptyPassword
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return false, oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		account, getErr := s.accounts.GetByID(ctx, id)
		if errors.Is(getErr, ErrNotFound) {
			outcome = OutcomeNotFound
			return nil
		}
		if getErr != nil {
			return oops.With("operation", "get account by id").Wrap(getErr)
		}

		account.PasswordHash = hash
		account.PasswordChangeRequired = false
		account.UpdatedAt = s.clock.Now()

		if updErr := s.accounts.Update(ctx, account); updErr != nil {
			return oops.With("operation", "update account").Wrap(updErr)
		}
		outcome = OutcomeOK
		return nil
	})
	if err != nil {
		outcome = OutcomeError
		return false, oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("account_id", id.String()).
			Wrap(err)
	}
	return outcome == OutcomeOK, nil
}

// upgradeHash rehashes the password with current parameters. Failures are
// logged; the login still succeeds.
func (s *CredentialService) upgradeHash(ctx context.Context, account *Account, password string) {
	if !s.hasher.NeedsUpgrade(account.PasswordHash) {
		return
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		errutil.LogError(ctx, s.logger, "password hash upgrade failed", err)
		return
	}
	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		current, getErr := s.accounts.GetByID(ctx, account.ID)
		if getErr != nil {
			return getErr
		}
		if current.PasswordHash != account.PasswordHash {
			return nil
		}
		current.PasswordHash = hash
		return s.accounts.Update(ctx, current)
	})
	if err != nil {
		errutil.LogError(ctx, s.logger, "password hash upgrade failed", err)
		return
	}
	account.PasswordHash = hash
}

// begin starts a span for operation and returns a func that records the outcome.
func (s *CredentialService) begin(ctx context.Context, operation string) (context.Context, func(Outcome, error)) {
	started := time.Now()
	ctx, span := s.tracer.Start(ctx, "auth."+operation)

	return ctx, func(outcome Outcome, err error) {
		if err != nil {
			if outcome == OutcomeOK {
				outcome = OutcomeError
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.String("auth.outcome", string(outcome)))
		span.End()

		recordOutcome(operation, outcome, started)
		s.logger.DebugContext(ctx, "credential operation",
			"operation", operation,
			"outcome", string(outcome),
		)
	}
}

func constantTimeEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
