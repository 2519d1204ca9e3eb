// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 InnovaNet Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/redinnova/innovanet/internal/auth"
)

const accountColumns = `id, email, name, last_name, enrollment_code, phone, center, network,
	       role, image_url, password_hash, password_change_required,
	       recovery_code_hash, recovery_expires_at, recovery_attempts,
	       created_at, updated_at`

// AccountRepository implements auth.AccountRepository using PostgreSQL.
type AccountRepository struct {
	pool querier
}

var _ auth.AccountRepository = (*AccountRepository)(nil)

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool querier) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// Create stores a new account.
func (r *AccountRepository) Create(ctx context.Context, a *auth.Account) error {
	codeHash, expiresAt, attempts := recoveryColumns(a.Recovery)

	_, err := querierFromCtx(ctx, r.pool).Exec(ctx, `
		INSERT INTO accounts (
			id, email, name, last_name, enrollment_code, phone, center, network,
			role, image_url, password_hash, password_change_required,
			recovery_code_hash, recovery_expires_at, recovery_attempts,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`,
		a.ID.String(), a.Email, a.Name, a.LastName, a.EnrollmentCode, a.Phone, a.Center, a.Network,
		string(a.Role), a.ImageURL, a.PasswordHash, a.PasswordChangeRequired,
		codeHash, expiresAt, attempts,
		a.CreatedAt, a.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return oops.With("email", a.Email).Wrap(auth.ErrDuplicateEmail)
	}
	if err != nil {
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("account_id", a.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves an account by ID. Inside a transaction the row is locked.
func (r *AccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	row := querierFromCtx(ctx, r.pool).QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`+lockClause(ctx),
		id.String())

	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.With("account_id", id.String()).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("operation", "get account by id").
			With("account_id", id.String()).
			Wrap(err)
	}
	return a, nil
}

// GetByEmail retrieves an account by exact email. Inside a transaction the row is locked.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*auth.Account, error) {
	row := querierFromCtx(ctx, r.pool).QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = $1`+lockClause(ctx),
		email)

	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.With("email", email).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("operation", "get account by email").
			With("email", email).
			Wrap(err)
	}
	return a, nil
}

// Update replaces every stored field of the account.
func (r *AccountRepository) Update(ctx context.Context, a *auth.Account) error {
	codeHash, expiresAt, attempts := recoveryColumns(a.Recovery)

	result, err := querierFromCtx(ctx, r.pool).Exec(ctx, `
		UPDATE accounts SET
			email = $2, name = $3, last_name = $4, enrollment_code = $5, phone = $6,
			center = $7, network = $8, role = $9, image_url = $10,
			password_hash = $11, password_change_required = $12,
			recovery_code_hash = $13, recovery_expires_at = $14, recovery_attempts = $15,
			updated_at = $16
		WHERE id = $1
	`,
		a.ID.String(), a.Email, a.Name, a.LastName, a.EnrollmentCode, a.Phone,
		a.Center, a.Network, string(a.Role), a.ImageURL,
		a.PasswordHash, a.PasswordChangeRequired,
		codeHash, expiresAt, attempts,
		a.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return oops.With("email", a.Email).Wrap(auth.ErrDuplicateEmail)
	}
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "update account").
			With("account_id", a.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.With("account_id", a.ID.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

// List returns all accounts ordered by creation time.
func (r *AccountRepository) List(ctx context.Context) ([]*auth.Account, error) {
	rows, err := querierFromCtx(ctx, r.pool).Query(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY created_at, id`)
	if err != nil {
		return nil, oops.Code("ACCOUNT_LIST_FAILED").With("operation", "query accounts").Wrap(err)
	}
	defer rows.Close()

	var accounts []*auth.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, oops.Code("ACCOUNT_LIST_FAILED").With("operation", "scan account row").Wrap(err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("ACCOUNT_LIST_FAILED").With("operation", "iterate accounts").Wrap(err)
	}
	return accounts, nil
}

// Delete removes an account.
func (r *AccountRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := querierFromCtx(ctx, r.pool).Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("ACCOUNT_DELETE_FAILED").
			With("account_id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.With("account_id", id.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

func lockClause(ctx context.Context) string {
	if inTx(ctx) {
		return ` FOR UPDATE`
	}
	return ""
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// recoveryColumns maps a pending recovery code to its three nullable columns.
func recoveryColumns(rec *auth.RecoveryCode) (codeHash *string, expiresAt *time.Time, attempts *int) {
	if rec == nil {
		return nil, nil, nil
	}
	return &rec.CodeHash, &rec.ExpiresAt, &rec.Attempts
}

func scanAccount(row pgx.Row) (*auth.Account, error) {
	var (
		a         auth.Account
		idStr     string
		role      string
		codeHash  *string
		expiresAt *time.Time
		attempts  *int
	)
	err := row.Scan(
		&idStr, &a.Email, &a.Name, &a.LastName, &a.EnrollmentCode, &a.Phone, &a.Center, &a.Network,
		&role, &a.ImageURL, &a.PasswordHash, &a.PasswordChangeRequired,
		&codeHash, &expiresAt, &attempts,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.With("operation", "parse account id").With("account_id", idStr).Wrap(err)
	}
	a.Role = auth.Role(role)

	if codeHash != nil && expiresAt != nil {
		a.Recovery = &auth.RecoveryCode{CodeHash: *codeHash, ExpiresAt: *expiresAt}
		if attempts != nil {
			a.Recovery.Attempts = *attempts
		}
	}
	return &a, nil
}
