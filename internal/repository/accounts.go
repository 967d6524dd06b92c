package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/domain"
)

const accountColumns = `
	id, email, username, first_name, last_name, password_hash, email_verified, created_by,
	date_joined, last_login, is_maker, is_checker, is_active, is_staff, is_superuser, updated_at, version
`

func scanAccount(row interface{ Scan(...any) error }) (*domain.Account, error) {
	account := &domain.Account{}
	var createdBy uuid.NullUUID

	dst := []any{
		&account.ID,
		&account.Email,
		&account.Username,
		&account.FirstName,
		&account.LastName,
		&account.PasswordHash,
		&account.EmailVerified,
		&createdBy,
		&account.DateJoined,
		&account.LastLogin,
		&account.IsMaker,
		&account.IsChecker,
		&account.IsActive,
		&account.IsStaff,
		&account.IsSuperuser,
		&account.UpdatedAt,
		&account.Version,
	}
	if err := row.Scan(dst...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	if createdBy.Valid {
		account.CreatedBy = &createdBy.UUID
	}

	return account, nil
}

func (r *Repository) GetAccountByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	return scanAccount(r.dbpool.QueryRowContext(ctx, query, id))
}

func (r *Repository) GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	return scanAccount(r.dbpool.QueryRowContext(ctx, query, email))
}

func (r *Repository) CreateAccount(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (
			id, email, username, first_name, last_name, password_hash, email_verified, created_by,
			date_joined, last_login, is_maker, is_checker, is_active, is_staff, is_superuser
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING updated_at, version
	`

	if account.Username == "" {
		account.Username = account.Email
	}

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	args := []any{
		account.ID,
		account.Email,
		account.Username,
		account.FirstName,
		account.LastName,
		account.PasswordHash,
		account.EmailVerified,
		uuidOrNull(account.CreatedBy),
		account.DateJoined,
		account.LastLogin,
		account.IsMaker,
		account.IsChecker,
		account.IsActive,
		account.IsStaff,
		account.IsSuperuser,
	}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&account.UpdatedAt, &account.Version); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == "accounts_email_key" {
			return domain.ErrDuplicateEmail
		}
		return err
	}

	return nil
}

// UpdateAccount 只更新密码、登录时间和激活状态，角色在创建后不可修改
func (r *Repository) UpdateAccount(ctx context.Context, account *domain.Account) error {
	query := `
		UPDATE accounts
		SET
			username = $1,
			password_hash = $2,
			last_login = $3,
			is_active = $4,
			updated_at = $5,
			version = version + 1
		WHERE id = $6 AND version = $7
		RETURNING version
	`

	if account.Username == "" {
		account.Username = account.Email
	}
	account.UpdatedAt = time.Now()

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	args := []any{account.Username, account.PasswordHash, account.LastLogin, account.IsActive, account.UpdatedAt, account.ID, account.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&account.Version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEditConflict
		}
		return err
	}

	return nil
}

func (r *Repository) ListMakersCreatedBy(ctx context.Context, checkerID uuid.UUID) ([]*domain.Account, error) {
	query := `
		SELECT ` + accountColumns + ` FROM accounts
		WHERE created_by = $1 AND is_maker = TRUE
		ORDER BY date_joined
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, checkerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	makers := make([]*domain.Account, 0)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		makers = append(makers, account)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return makers, nil
}

func uuidOrNull(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
