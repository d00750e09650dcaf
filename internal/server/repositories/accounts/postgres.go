package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const accountFields = `id, email, name, password_hash, is_verified,
		verification_token, verification_token_expires_at,
		reset_password_token, reset_password_expires_at,
		last_login, created_at, updated_at`

const selectAccount = `SELECT ` + accountFields + `
	FROM accounts`

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (models.Account, error) {
	return r.queryOne(ctx, selectAccount+` WHERE email = $1`, email)
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (models.Account, error) {
	return r.queryOne(ctx, selectAccount+` WHERE id = $1`, id)
}

func (r *PostgresRepository) FindByVerificationToken(ctx context.Context, code string, now time.Time) (models.Account, error) {
	if code == "" {
		return models.Account{}, common.ErrorNotFound
	}
	return r.queryOne(ctx,
		selectAccount+` WHERE verification_token = $1 AND verification_token_expires_at > $2 LIMIT 1`,
		code, now)
}

func (r *PostgresRepository) FindByResetToken(ctx context.Context, token string, now time.Time) (models.Account, error) {
	if token == "" {
		return models.Account{}, common.ErrorNotFound
	}
	return r.queryOne(ctx,
		selectAccount+` WHERE reset_password_token = $1 AND reset_password_expires_at > $2 LIMIT 1`,
		token, now)
}

func (r *PostgresRepository) queryOne(ctx context.Context, query string, args ...any) (models.Account, error) {
	var a models.Account
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.IsVerified,
		&a.VerificationToken, &a.VerificationTokenExpiresAt,
		&a.ResetPasswordToken, &a.ResetPasswordExpiresAt,
		&a.LastLogin, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Account{}, common.ErrorNotFound
		}
		return models.Account{}, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) Create(ctx context.Context, a models.Account) error {
	query :=
		`INSERT INTO accounts (id, email, name, password_hash, is_verified,
			verification_token, verification_token_expires_at,
			reset_password_token, reset_password_expires_at,
			last_login, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.Email, a.Name, a.PasswordHash, a.IsVerified,
		a.VerificationToken, a.VerificationTokenExpiresAt,
		a.ResetPasswordToken, a.ResetPasswordExpiresAt,
		a.LastLogin, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) TouchLogin(ctx context.Context, id string, now time.Time) error {
	return r.execOne(ctx,
		`UPDATE accounts SET last_login = $2, updated_at = $2 WHERE id = $1`,
		id, now)
}

func (r *PostgresRepository) MarkVerified(ctx context.Context, id, code string, now time.Time) (models.Account, error) {
	return r.queryOne(ctx,
		`UPDATE accounts SET is_verified = TRUE,
			verification_token = NULL, verification_token_expires_at = NULL,
			updated_at = $3
		 WHERE id = $1 AND verification_token = $2 AND verification_token_expires_at > $3
		 RETURNING `+accountFields,
		id, code, now)
}

func (r *PostgresRepository) SetResetToken(ctx context.Context, id, token string, expiresAt, now time.Time) error {
	return r.execOne(ctx,
		`UPDATE accounts SET reset_password_token = $2, reset_password_expires_at = $3, updated_at = $4
		 WHERE id = $1`,
		id, token, expiresAt, now)
}

func (r *PostgresRepository) ConsumeReset(ctx context.Context, id, token, passwordHash string, now time.Time) error {
	return r.execOne(ctx,
		`UPDATE accounts SET password_hash = $3,
			reset_password_token = NULL, reset_password_expires_at = NULL,
			updated_at = $4
		 WHERE id = $1 AND reset_password_token = $2 AND reset_password_expires_at > $4`,
		id, token, passwordHash, now)
}

// execOne runs a single-row update; no matching row is common.ErrorNotFound.
func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
