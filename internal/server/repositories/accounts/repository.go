// Package accounts stores account records. Adapters exist for MongoDB,
// PostgreSQL and process memory; all of them satisfy Repository.
package accounts

import (
	"context"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// Repository is the account store used by the auth service.
//
// Lookups return common.ErrorNotFound when nothing matches. Create returns
// common.ErrorAlreadyExists when the email is taken, including when a
// concurrent Create won the race.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (models.Account, error)
	FindByID(ctx context.Context, id string) (models.Account, error)
	// FindByVerificationToken returns the account whose pending verification
	// code equals code and expires strictly after now.
	FindByVerificationToken(ctx context.Context, code string, now time.Time) (models.Account, error)
	// FindByResetToken returns the account whose pending reset token equals
	// token and expires strictly after now.
	FindByResetToken(ctx context.Context, token string, now time.Time) (models.Account, error)
	Create(ctx context.Context, account models.Account) error

	// The writes below touch only the fields of their own transition, so
	// overlapping requests on one account never undo each other. The
	// conditional ones return common.ErrorNotFound when the token is no
	// longer pending, which covers a concurrent request consuming it first.

	// TouchLogin sets lastLogin.
	TouchLogin(ctx context.Context, id string, now time.Time) error
	// MarkVerified sets isVerified and drops the verification code, provided
	// code is still pending on account id at now. It returns the updated record.
	MarkVerified(ctx context.Context, id, code string, now time.Time) (models.Account, error)
	// SetResetToken replaces any pending reset token of account id.
	SetResetToken(ctx context.Context, id, token string, expiresAt, now time.Time) error
	// ConsumeReset stores passwordHash and drops the reset token, provided
	// token is still pending on account id at now.
	ConsumeReset(ctx context.Context, id, token, passwordHash string, now time.Time) error
}
