package models

import (
	"time"
)

// Account is the persisted identity and credential record of a user.
//
// Token fields come in pairs: a token is present exactly when its expiry is.
// Values are treated as immutable; the transition methods return modified
// copies. Stores write only the fields a transition changes.
type Account struct {
	ID           string `bson:"_id" db:"id"`
	Email        string `bson:"email" db:"email"`
	Name         string `bson:"name" db:"name"`
	PasswordHash string `bson:"password" db:"password_hash" json:"-"`

	IsVerified                 bool       `bson:"isVerified" db:"is_verified"`
	VerificationToken          *string    `bson:"verificationToken,omitempty" db:"verification_token"`
	VerificationTokenExpiresAt *time.Time `bson:"verificationTokenExpiresAt,omitempty" db:"verification_token_expires_at"`

	ResetPasswordToken     *string    `bson:"resetPasswordToken,omitempty" db:"reset_password_token"`
	ResetPasswordExpiresAt *time.Time `bson:"resetPasswordExpiresAt,omitempty" db:"reset_password_expires_at"`

	LastLogin time.Time `bson:"lastLogin" db:"last_login"`
	CreatedAt time.Time `bson:"createdAt" db:"created_at"`
	UpdatedAt time.Time `bson:"updatedAt" db:"updated_at"`
}

// NewAccount builds an unverified account holding a pending verification code.
func NewAccount(id, name, email, passwordHash, code string, now time.Time, codeTTL time.Duration) Account {
	return Account{
		ID:           id,
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		LastLogin:    now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}.WithVerificationToken(code, now, codeTTL)
}

// WithVerificationToken replaces any pending verification code with code.
func (a Account) WithVerificationToken(code string, now time.Time, ttl time.Duration) Account {
	exp := now.Add(ttl)
	a.VerificationToken = &code
	a.VerificationTokenExpiresAt = &exp
	a.UpdatedAt = now
	return a
}

// Verified marks the email as confirmed and drops the consumed code.
func (a Account) Verified(now time.Time) Account {
	a.IsVerified = true
	a.VerificationToken = nil
	a.VerificationTokenExpiresAt = nil
	a.UpdatedAt = now
	return a
}

// WithResetToken replaces any pending reset token with token.
func (a Account) WithResetToken(token string, now time.Time, ttl time.Duration) Account {
	exp := now.Add(ttl)
	a.ResetPasswordToken = &token
	a.ResetPasswordExpiresAt = &exp
	a.UpdatedAt = now
	return a
}

// WithPassword stores a new password hash and drops the consumed reset token.
func (a Account) WithPassword(passwordHash string, now time.Time) Account {
	a.PasswordHash = passwordHash
	a.ResetPasswordToken = nil
	a.ResetPasswordExpiresAt = nil
	a.UpdatedAt = now
	return a
}

// LoggedIn records a successful login.
func (a Account) LoggedIn(now time.Time) Account {
	a.LastLogin = now
	a.UpdatedAt = now
	return a
}

// VerificationPending reports whether code is the outstanding verification
// code and has not expired at now.
func (a Account) VerificationPending(code string, now time.Time) bool {
	return tokenMatches(a.VerificationToken, a.VerificationTokenExpiresAt, code, now)
}

// ResetPending reports whether token is the outstanding reset token and has
// not expired at now.
func (a Account) ResetPending(token string, now time.Time) bool {
	return tokenMatches(a.ResetPasswordToken, a.ResetPasswordExpiresAt, token, now)
}

func tokenMatches(token *string, expiresAt *time.Time, candidate string, now time.Time) bool {
	if token == nil || expiresAt == nil || candidate == "" {
		return false
	}
	return *token == candidate && now.Before(*expiresAt)
}

// Summary returns the outward representation of the account.
func (a Account) Summary() AccountSummary {
	return AccountSummary{
		ID:         a.ID,
		Name:       a.Name,
		Email:      a.Email,
		IsVerified: a.IsVerified,
		LastLogin:  a.LastLogin,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

// AccountSummary is the only account shape that leaves the server. It has
// no credential fields.
type AccountSummary struct {
	ID         string    `json:"_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	IsVerified bool      `json:"isVerified"`
	LastLogin  time.Time `json:"lastLogin"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
