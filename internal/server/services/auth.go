// Package services contains the server-side business logic. AuthService is
// the account lifecycle engine: signup, email verification, login, password
// reset and session checks.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/notify"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/accounts"
	"github.com/google/uuid"
)

// Operation names, used as log fields and metric labels.
const (
	OpSignup         = "signup"
	OpLogin          = "login"
	OpLogout         = "logout"
	OpVerifyEmail    = "verify_email"
	OpForgotPassword = "forgot_password"
	OpResetPassword  = "reset_password"
	OpCheckSession   = "check_session"
)

// SessionIssuer mints session tokens for an account id.
type SessionIssuer interface {
	Sign(accountID string) (string, error)
}

// AuthResult is what signup and login hand back to the boundary: the
// outward account view plus a freshly minted session token.
type AuthResult struct {
	Account models.AccountSummary
	Token   string
}

type AuthService struct {
	accounts accounts.Repository
	sender   notify.Sender
	sessions SessionIssuer
	hasher   *cryptox.Hasher
	logger   logging.Logger
	metrics  *metrics.Metrics

	now           func() time.Time
	newID         func() string
	newCode       func() (string, error)
	newResetToken func() (string, error)

	verificationTTL     time.Duration
	resetTTL            time.Duration
	clientURL           string
	concealUnknownEmail bool
}

type Option func(*AuthService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *AuthService) { s.now = now } }

func WithHasher(h *cryptox.Hasher) Option { return func(s *AuthService) { s.hasher = h } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *AuthService) { s.metrics = m } }

// WithIDGenerator replaces the UUIDv4 account id generator.
func WithIDGenerator(f func() string) Option { return func(s *AuthService) { s.newID = f } }

// WithCodeGenerator replaces the verification code generator.
func WithCodeGenerator(f func() (string, error)) Option {
	return func(s *AuthService) { s.newCode = f }
}

// WithResetTokenGenerator replaces the reset token generator.
func WithResetTokenGenerator(f func() (string, error)) Option {
	return func(s *AuthService) { s.newResetToken = f }
}

func WithLifetimes(verification, reset time.Duration) Option {
	return func(s *AuthService) {
		s.verificationTTL = verification
		s.resetTTL = reset
	}
}

// WithClientURL sets the frontend base used to build reset links.
func WithClientURL(u string) Option {
	return func(s *AuthService) { s.clientURL = strings.TrimRight(u, "/") }
}

// WithConcealUnknownEmail makes ForgotPassword succeed silently for unknown
// emails instead of returning common.ErrorNotFound.
func WithConcealUnknownEmail(conceal bool) Option {
	return func(s *AuthService) { s.concealUnknownEmail = conceal }
}

// NewAuthService wires the engine. All three collaborators are required.
func NewAuthService(repo accounts.Repository, sender notify.Sender, sessions SessionIssuer, logger logging.Logger, opts ...Option) (*AuthService, error) {
	if repo == nil || sender == nil || sessions == nil {
		return nil, errors.New("auth service: account store, sender and session issuer are required")
	}
	if logger == nil {
		logger = logging.Discard()
	}
	s := &AuthService{
		accounts:        repo,
		sender:          sender,
		sessions:        sessions,
		hasher:          cryptox.NewHasher(cryptox.DefaultBcryptCost),
		logger:          logger.With("module", "auth"),
		now:             time.Now,
		newID:           uuid.NewString,
		newCode:         func() (string, error) { return cryptox.GenerateVerificationCode(common.VerificationCodeLength) },
		newResetToken:   cryptox.GenerateResetToken,
		verificationTTL: common.DefaultVerificationTTL,
		resetTTL:        common.DefaultResetTTL,
		clientURL:       "http://localhost:5173",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Signup registers an unverified account, mails its verification code and
// opens a session for it.
func (s *AuthService) Signup(ctx context.Context, name, email, password string) (res *AuthResult, err error) {
	defer s.observe(ctx, OpSignup, &err)

	if _, err := s.accounts.FindByEmail(ctx, email); err == nil {
		return nil, common.ErrorAlreadyExists
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, s.internal(OpSignup, "lookup account", err)
	}

	hash, err := s.hasher.HashPassword(password)
	if err != nil {
		return nil, s.internal(OpSignup, "hash password", err)
	}
	now := s.now()
	code, err := s.pendingFreeCode(ctx, now)
	if err != nil {
		return nil, s.internal(OpSignup, "generate verification code", err)
	}

	account := models.NewAccount(s.newID(), name, email, hash, code, now, s.verificationTTL)

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, s.internal(OpSignup, "create account", err)
	}

	if err := s.sender.SendVerification(ctx, account.Email, code); err != nil {
		return nil, s.internal(OpSignup, "send verification email", err)
	}

	token, err := s.sessions.Sign(account.ID)
	if err != nil {
		return nil, s.internal(OpSignup, "sign session", err)
	}

	s.logger.Info(ctx, "account created", "account_id", account.ID)
	return &AuthResult{Account: account.Summary(), Token: token}, nil
}

// Login checks credentials, requires a verified email and opens a session.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (res *AuthResult, err error) {
	defer s.observe(ctx, OpLogin, &err)

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, s.internal(OpLogin, "lookup account", err)
	}
	if !s.hasher.VerifyPassword(password, account.PasswordHash) {
		return nil, common.ErrInvalidCredentials
	}
	if !account.IsVerified {
		return nil, common.ErrNotVerified
	}

	now := s.now()
	if err := s.accounts.TouchLogin(ctx, account.ID, now); err != nil {
		return nil, s.internal(OpLogin, "record login", err)
	}
	account = account.LoggedIn(now)

	token, err := s.sessions.Sign(account.ID)
	if err != nil {
		return nil, s.internal(OpLogin, "sign session", err)
	}
	return &AuthResult{Account: account.Summary(), Token: token}, nil
}

// Logout has no server-side state to drop; the boundary clears the cookie.
func (s *AuthService) Logout(ctx context.Context) error {
	s.metrics.AuthOp(OpLogout, metrics.OutcomeOK)
	return nil
}

// VerifyEmail consumes a pending, unexpired verification code.
func (s *AuthService) VerifyEmail(ctx context.Context, code string) (summary *models.AccountSummary, err error) {
	defer s.observe(ctx, OpVerifyEmail, &err)

	now := s.now()
	account, err := s.accounts.FindByVerificationToken(ctx, code, now)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidOrExpired
		}
		return nil, s.internal(OpVerifyEmail, "lookup code", err)
	}

	account, err = s.accounts.MarkVerified(ctx, account.ID, code, now)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidOrExpired
		}
		return nil, s.internal(OpVerifyEmail, "mark verified", err)
	}

	if err := s.sender.SendWelcome(ctx, account.Email, account.Name); err != nil {
		return nil, s.internal(OpVerifyEmail, "send welcome email", err)
	}

	out := account.Summary()
	return &out, nil
}

// ForgotPassword issues a new reset token, replacing any earlier one, and
// mails the reset link.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (err error) {
	defer s.observe(ctx, OpForgotPassword, &err)

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			if s.concealUnknownEmail {
				return nil
			}
			return common.ErrorNotFound
		}
		return s.internal(OpForgotPassword, "lookup account", err)
	}

	token, err := s.newResetToken()
	if err != nil {
		return s.internal(OpForgotPassword, "generate reset token", err)
	}

	now := s.now()
	if err := s.accounts.SetResetToken(ctx, account.ID, token, now.Add(s.resetTTL), now); err != nil {
		return s.internal(OpForgotPassword, "store reset token", err)
	}

	if err := s.sender.SendPasswordReset(ctx, account.Email, s.ResetURL(token)); err != nil {
		return s.internal(OpForgotPassword, "send reset email", err)
	}
	return nil
}

// ResetURL is the frontend link carrying token.
func (s *AuthService) ResetURL(token string) string {
	return s.clientURL + "/reset-password/" + token
}

// ResetPassword consumes a pending, unexpired reset token and replaces the
// password. Verification status is left as it was.
func (s *AuthService) ResetPassword(ctx context.Context, token, password string) (err error) {
	defer s.observe(ctx, OpResetPassword, &err)

	now := s.now()
	account, err := s.accounts.FindByResetToken(ctx, token, now)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidOrExpired
		}
		return s.internal(OpResetPassword, "lookup token", err)
	}

	hash, err := s.hasher.HashPassword(password)
	if err != nil {
		return s.internal(OpResetPassword, "hash password", err)
	}

	// The token is checked again by the write itself; it may have been
	// consumed or replaced while the password was hashed.
	if err := s.accounts.ConsumeReset(ctx, account.ID, token, hash, now); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidOrExpired
		}
		return s.internal(OpResetPassword, "store password", err)
	}

	if err := s.sender.SendResetSuccess(ctx, account.Email); err != nil {
		return s.internal(OpResetPassword, "send reset confirmation", err)
	}
	return nil
}

// CheckSession returns the account behind an already verified session.
func (s *AuthService) CheckSession(ctx context.Context, accountID string) (summary *models.AccountSummary, err error) {
	defer s.observe(ctx, OpCheckSession, &err)

	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, s.internal(OpCheckSession, "lookup account", err)
	}
	out := account.Summary()
	return &out, nil
}

// maxCodeAttempts bounds how often signup redraws a verification code that
// another account already has pending.
const maxCodeAttempts = 5

// pendingFreeCode draws verification codes until one is not pending on any
// other account, so a code identifies a single account.
func (s *AuthService) pendingFreeCode(ctx context.Context, now time.Time) (string, error) {
	for range maxCodeAttempts {
		code, err := s.newCode()
		if err != nil {
			return "", err
		}
		_, err = s.accounts.FindByVerificationToken(ctx, code, now)
		if errors.Is(err, common.ErrorNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", errors.New("no free verification code")
}

// internal marks err as common.ErrorInternal while keeping the cause for logs.
func (s *AuthService) internal(op, step string, err error) error {
	return fmt.Errorf("%s: %s: %w: %w", op, step, common.ErrorInternal, err)
}

func (s *AuthService) observe(ctx context.Context, op string, errp *error) {
	err := *errp
	switch {
	case err == nil:
		s.metrics.AuthOp(op, metrics.OutcomeOK)
	case errors.Is(err, common.ErrorInternal):
		s.metrics.AuthOp(op, metrics.OutcomeError)
		s.logger.Error(ctx, "auth operation failed", "op", op, "error", err)
	default:
		s.metrics.AuthOp(op, metrics.OutcomeRejected)
		s.logger.Debug(ctx, "auth operation rejected", "op", op, "reason", err)
	}
}
