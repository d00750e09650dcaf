package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/accounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type sentMail struct {
	kind  string
	email string
	arg   string
}

// fakeSender records messages. When repo is set it also captures whether
// the account was already persisted at send time.
type fakeSender struct {
	mu        sync.Mutex
	sent      []sentMail
	err       error
	repo      accounts.Repository
	persisted []bool
}

func (f *fakeSender) record(ctx context.Context, kind, email, arg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.repo != nil {
		_, err := f.repo.FindByEmail(ctx, email)
		f.persisted = append(f.persisted, err == nil)
	}
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{kind, email, arg})
	return nil
}

func (f *fakeSender) SendVerification(ctx context.Context, email, code string) error {
	return f.record(ctx, "verification", email, code)
}

func (f *fakeSender) SendWelcome(ctx context.Context, email, name string) error {
	return f.record(ctx, "welcome", email, name)
}

func (f *fakeSender) SendPasswordReset(ctx context.Context, email, resetURL string) error {
	return f.record(ctx, "reset", email, resetURL)
}

func (f *fakeSender) SendResetSuccess(ctx context.Context, email string) error {
	return f.record(ctx, "reset_success", email, "")
}

func (f *fakeSender) last(t *testing.T) sentMail {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type env struct {
	svc    *AuthService
	repo   *accounts.MemoryRepository
	sender *fakeSender
	signer *auth.SessionSigner
	clock  *clock
}

func newEnv(t *testing.T, opts ...Option) *env {
	t.Helper()
	c := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	repo := accounts.NewMemoryRepository()
	sender := &fakeSender{repo: repo}
	signer, err := auth.NewSessionSigner("test-secret", 7*24*time.Hour)
	require.NoError(t, err)
	signer = signer.WithClock(c.Now)

	base := []Option{
		WithClock(c.Now),
		WithHasher(cryptox.NewHasher(bcrypt.MinCost)),
		WithClientURL("https://app.example.com/"),
	}
	svc, err := NewAuthService(repo, sender, signer, logging.Discard(), append(base, opts...)...)
	require.NoError(t, err)
	return &env{svc: svc, repo: repo, sender: sender, signer: signer, clock: c}
}

func (e *env) signup(t *testing.T, email string) (*AuthResult, string) {
	t.Helper()
	res, err := e.svc.Signup(context.Background(), "Alice", email, "secret1")
	require.NoError(t, err)
	m := e.sender.last(t)
	require.Equal(t, "verification", m.kind)
	return res, m.arg
}

func TestNewAuthService_RequiresCollaborators(t *testing.T) {
	signer, _ := auth.NewSessionSigner("k", time.Hour)
	repo := accounts.NewMemoryRepository()

	_, err := NewAuthService(nil, &fakeSender{}, signer, nil)
	assert.Error(t, err)
	_, err = NewAuthService(repo, nil, signer, nil)
	assert.Error(t, err)
	_, err = NewAuthService(repo, &fakeSender{}, nil, nil)
	assert.Error(t, err)
	_, err = NewAuthService(repo, &fakeSender{}, signer, nil)
	assert.NoError(t, err)
}

func TestSignup_CreatesUnverifiedAccountAndSession(t *testing.T) {
	e := newEnv(t)
	res, code := e.signup(t, "a@x.com")

	assert.Equal(t, "a@x.com", res.Account.Email)
	assert.Equal(t, "Alice", res.Account.Name)
	assert.False(t, res.Account.IsVerified)
	assert.Len(t, code, 6)

	id, err := e.signer.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.Account.ID, id)

	stored, err := e.repo.FindByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret1")))
	require.NotNil(t, stored.VerificationTokenExpiresAt)
	assert.Equal(t, e.clock.Now().Add(24*time.Hour), *stored.VerificationTokenExpiresAt)

	assert.Equal(t, []bool{true}, e.sender.persisted, "persist before notify")
}

func TestSignup_ResultNeverCarriesPassword(t *testing.T) {
	e := newEnv(t)
	res, _ := e.signup(t, "a@x.com")

	b, err := json.Marshal(res.Account)
	require.NoError(t, err)
	stored, _ := e.repo.FindByEmail(context.Background(), "a@x.com")
	assert.NotContains(t, string(b), stored.PasswordHash)
	assert.NotContains(t, string(b), "secret1")
	assert.NotContains(t, strings.ToLower(string(b)), "password")
}

func TestSignup_Duplicate(t *testing.T) {
	e := newEnv(t)
	e.signup(t, "a@x.com")

	_, err := e.svc.Signup(context.Background(), "Other", "a@x.com", "another1")
	require.ErrorIs(t, err, common.ErrorAlreadyExists)
	assert.Equal(t, 1, e.repo.Len())
	assert.Len(t, e.sender.sent, 1, "no mail for the rejected signup")
}

// racingRepo never sees the account on lookup, so only the store's
// uniqueness check can reject the second create.
type racingRepo struct {
	*accounts.MemoryRepository
}

func (r racingRepo) FindByEmail(context.Context, string) (models.Account, error) {
	return models.Account{}, common.ErrorNotFound
}

func TestSignup_ConcurrentDuplicateMapsToAlreadyExists(t *testing.T) {
	repo := racingRepo{accounts.NewMemoryRepository()}
	signer, _ := auth.NewSessionSigner("k", time.Hour)
	svc, err := NewAuthService(repo, &fakeSender{}, signer, nil, WithHasher(cryptox.NewHasher(bcrypt.MinCost)))
	require.NoError(t, err)

	const n = 8
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Signup(context.Background(), "Alice", "race@x.com", "secret1")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, common.ErrorAlreadyExists)
		assert.NotErrorIs(t, err, common.ErrorInternal)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, repo.Len())
}

func TestLogin_RequiresVerification(t *testing.T) {
	e := newEnv(t)
	e.signup(t, "a@x.com")

	_, err := e.svc.Login(context.Background(), "a@x.com", "secret1")
	require.ErrorIs(t, err, common.ErrNotVerified)
}

func TestLogin_BadCredentialsAreIndistinguishable(t *testing.T) {
	e := newEnv(t)
	_, code := e.signup(t, "a@x.com")
	_, err := e.svc.VerifyEmail(context.Background(), code)
	require.NoError(t, err)

	_, errWrongPw := e.svc.Login(context.Background(), "a@x.com", "wrong-pass")
	_, errNoUser := e.svc.Login(context.Background(), "ghost@x.com", "secret1")

	assert.ErrorIs(t, errWrongPw, common.ErrInvalidCredentials)
	assert.ErrorIs(t, errNoUser, common.ErrInvalidCredentials)
	assert.Equal(t, errWrongPw, errNoUser)
}

func TestScenario_SignupVerifyLogin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, code := e.signup(t, "a@x.com")

	verified, err := e.svc.VerifyEmail(ctx, code)
	require.NoError(t, err)
	assert.True(t, verified.IsVerified)
	welcome := e.sender.last(t)
	assert.Equal(t, sentMail{"welcome", "a@x.com", "Alice"}, welcome)

	e.clock.Advance(time.Hour)
	res, err := e.svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	assert.True(t, res.Account.IsVerified)
	assert.Equal(t, e.clock.Now(), res.Account.LastLogin)

	id, err := e.signer.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.Account.ID, id)

	stored, _ := e.repo.FindByEmail(ctx, "a@x.com")
	assert.Equal(t, e.clock.Now(), stored.LastLogin)
	assert.Nil(t, stored.VerificationToken)
	assert.Nil(t, stored.VerificationTokenExpiresAt)
}

func TestVerifyEmail_CodeIsSingleUse(t *testing.T) {
	e := newEnv(t)
	_, code := e.signup(t, "a@x.com")

	_, err := e.svc.VerifyEmail(context.Background(), code)
	require.NoError(t, err)

	_, err = e.svc.VerifyEmail(context.Background(), code)
	require.ErrorIs(t, err, common.ErrInvalidOrExpired)
}

func TestVerifyEmail_Expired(t *testing.T) {
	e := newEnv(t)
	_, code := e.signup(t, "a@x.com")

	e.clock.Advance(24 * time.Hour)
	_, err := e.svc.VerifyEmail(context.Background(), code)
	require.ErrorIs(t, err, common.ErrInvalidOrExpired)

	stored, _ := e.repo.FindByEmail(context.Background(), "a@x.com")
	assert.False(t, stored.IsVerified)
}

func TestVerifyEmail_WrongCode(t *testing.T) {
	e := newEnv(t, WithCodeGenerator(func() (string, error) { return "111111", nil }))
	e.signup(t, "a@x.com")

	_, err := e.svc.VerifyEmail(context.Background(), "222222")
	require.ErrorIs(t, err, common.ErrInvalidOrExpired)
}

func TestForgotPassword_UnknownEmail(t *testing.T) {
	e := newEnv(t)
	err := e.svc.ForgotPassword(context.Background(), "ghost@x.com")
	require.ErrorIs(t, err, common.ErrorNotFound)

	concealed := newEnv(t, WithConcealUnknownEmail(true))
	require.NoError(t, concealed.svc.ForgotPassword(context.Background(), "ghost@x.com"))
	assert.Empty(t, concealed.sender.sent)
}

func TestScenario_ForgotResetLogin(t *testing.T) {
	tokens := []string{"first-token", "second-token"}
	i := 0
	e := newEnv(t, WithResetTokenGenerator(func() (string, error) {
		tok := tokens[i]
		i++
		return tok, nil
	}))
	ctx := context.Background()
	_, code := e.signup(t, "a@x.com")
	_, err := e.svc.VerifyEmail(ctx, code)
	require.NoError(t, err)

	require.NoError(t, e.svc.ForgotPassword(ctx, "a@x.com"))
	assert.Equal(t, "https://app.example.com/reset-password/first-token", e.sender.last(t).arg)

	require.NoError(t, e.svc.ForgotPassword(ctx, "a@x.com"))
	require.ErrorIs(t, e.svc.ResetPassword(ctx, "first-token", "newpass1"), common.ErrInvalidOrExpired,
		"a newer request replaces the older token")

	require.NoError(t, e.svc.ResetPassword(ctx, "second-token", "newpass1"))
	assert.Equal(t, sentMail{"reset_success", "a@x.com", ""}, e.sender.last(t))

	require.ErrorIs(t, e.svc.ResetPassword(ctx, "second-token", "another1"), common.ErrInvalidOrExpired,
		"reset token is single use")

	_, err = e.svc.Login(ctx, "a@x.com", "secret1")
	require.ErrorIs(t, err, common.ErrInvalidCredentials)
	_, err = e.svc.Login(ctx, "a@x.com", "newpass1")
	require.NoError(t, err)
}

func TestResetPassword_Expired(t *testing.T) {
	e := newEnv(t, WithResetTokenGenerator(func() (string, error) { return "tok", nil }))
	e.signup(t, "a@x.com")
	require.NoError(t, e.svc.ForgotPassword(context.Background(), "a@x.com"))

	e.clock.Advance(time.Hour)
	require.ErrorIs(t, e.svc.ResetPassword(context.Background(), "tok", "newpass1"), common.ErrInvalidOrExpired)
}

func TestResetPassword_KeepsVerificationState(t *testing.T) {
	e := newEnv(t, WithResetTokenGenerator(func() (string, error) { return "tok", nil }))
	ctx := context.Background()
	_, code := e.signup(t, "a@x.com")

	require.NoError(t, e.svc.ForgotPassword(ctx, "a@x.com"))
	require.NoError(t, e.svc.ResetPassword(ctx, "tok", "newpass1"))

	stored, _ := e.repo.FindByEmail(ctx, "a@x.com")
	assert.False(t, stored.IsVerified)
	require.NotNil(t, stored.VerificationToken, "pending verification survives a reset")

	_, err := e.svc.VerifyEmail(ctx, code)
	require.NoError(t, err)
}

func TestCheckSession(t *testing.T) {
	e := newEnv(t)
	res, _ := e.signup(t, "a@x.com")

	got, err := e.svc.CheckSession(context.Background(), res.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Account, *got)

	_, err = e.svc.CheckSession(context.Background(), "missing")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestLogout_AlwaysSucceeds(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.svc.Logout(context.Background()))
}

func TestNotifyFailureAfterPersist(t *testing.T) {
	e := newEnv(t)
	e.sender.err = errors.New("relay down")

	_, err := e.svc.Signup(context.Background(), "Alice", "a@x.com", "secret1")
	require.ErrorIs(t, err, common.ErrorInternal)
	assert.Contains(t, err.Error(), "relay down")

	_, err = e.repo.FindByEmail(context.Background(), "a@x.com")
	assert.NoError(t, err, "account stays persisted")
}

type brokenRepo struct {
	*accounts.MemoryRepository
}

func (brokenRepo) FindByEmail(context.Context, string) (models.Account, error) {
	return models.Account{}, errors.New("connection refused")
}

func (brokenRepo) FindByID(context.Context, string) (models.Account, error) {
	return models.Account{}, errors.New("connection refused")
}

func TestStoreFailuresAreInternal(t *testing.T) {
	signer, _ := auth.NewSessionSigner("k", time.Hour)
	svc, err := NewAuthService(brokenRepo{accounts.NewMemoryRepository()}, &fakeSender{}, signer, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.Signup(ctx, "Alice", "a@x.com", "secret1")
	assert.ErrorIs(t, err, common.ErrorInternal)
	_, err = svc.Login(ctx, "a@x.com", "secret1")
	assert.ErrorIs(t, err, common.ErrorInternal)
	assert.ErrorIs(t, svc.ForgotPassword(ctx, "a@x.com"), common.ErrorInternal)
	_, err = svc.CheckSession(ctx, "id")
	assert.ErrorIs(t, err, common.ErrorInternal)
}

// hookRepo runs a one-shot callback right after a lookup returns, which
// lets a test complete another operation on the same account while the
// outer operation holds the record it read.
type hookRepo struct {
	*accounts.MemoryRepository
	afterFindByEmail             func()
	afterFindByVerificationToken func()
	afterFindByResetToken        func()
}

func fire(hook *func()) {
	if f := *hook; f != nil {
		*hook = nil
		f()
	}
}

func (r *hookRepo) FindByEmail(ctx context.Context, email string) (models.Account, error) {
	a, err := r.MemoryRepository.FindByEmail(ctx, email)
	fire(&r.afterFindByEmail)
	return a, err
}

func (r *hookRepo) FindByVerificationToken(ctx context.Context, code string, now time.Time) (models.Account, error) {
	a, err := r.MemoryRepository.FindByVerificationToken(ctx, code, now)
	fire(&r.afterFindByVerificationToken)
	return a, err
}

func (r *hookRepo) FindByResetToken(ctx context.Context, token string, now time.Time) (models.Account, error) {
	a, err := r.MemoryRepository.FindByResetToken(ctx, token, now)
	fire(&r.afterFindByResetToken)
	return a, err
}

// over returns a second service sharing the env's store through hooks.
func (e *env) over(t *testing.T, hooks *hookRepo) *AuthService {
	t.Helper()
	hooks.MemoryRepository = e.repo
	svc, err := NewAuthService(hooks, e.sender, e.signer, nil,
		WithClock(e.clock.Now),
		WithHasher(cryptox.NewHasher(bcrypt.MinCost)),
		WithResetTokenGenerator(func() (string, error) { return "tok-2", nil }),
	)
	require.NoError(t, err)
	return svc
}

func TestLogin_DoesNotRevertConcurrentReset(t *testing.T) {
	e := newEnv(t, WithResetTokenGenerator(func() (string, error) { return "tok", nil }))
	ctx := context.Background()
	_, code := e.signup(t, "a@x.com")
	_, err := e.svc.VerifyEmail(ctx, code)
	require.NoError(t, err)
	require.NoError(t, e.svc.ForgotPassword(ctx, "a@x.com"))

	hooks := &hookRepo{afterFindByEmail: func() {
		require.NoError(t, e.svc.ResetPassword(ctx, "tok", "newpass1"))
	}}
	_, err = e.over(t, hooks).Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err, "the login read the account before the reset")

	_, err = e.svc.Login(ctx, "a@x.com", "secret1")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	_, err = e.svc.Login(ctx, "a@x.com", "newpass1")
	assert.NoError(t, err)
}

func TestForgotPassword_DoesNotRevertConcurrentVerify(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, code := e.signup(t, "a@x.com")

	hooks := &hookRepo{afterFindByEmail: func() {
		_, err := e.svc.VerifyEmail(ctx, code)
		require.NoError(t, err)
	}}
	require.NoError(t, e.over(t, hooks).ForgotPassword(ctx, "a@x.com"))

	stored, err := e.repo.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, stored.IsVerified)
	assert.Nil(t, stored.VerificationToken)
	require.NotNil(t, stored.ResetPasswordToken)
	assert.Equal(t, "tok-2", *stored.ResetPasswordToken)

	_, err = e.svc.VerifyEmail(ctx, code)
	assert.ErrorIs(t, err, common.ErrInvalidOrExpired)
}

func TestVerifyEmail_ConcurrentUseOfOneCode(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, code := e.signup(t, "a@x.com")

	hooks := &hookRepo{afterFindByVerificationToken: func() {
		_, err := e.svc.VerifyEmail(ctx, code)
		require.NoError(t, err)
	}}
	_, err := e.over(t, hooks).VerifyEmail(ctx, code)
	require.ErrorIs(t, err, common.ErrInvalidOrExpired)

	welcomes := 0
	for _, m := range e.sender.sent {
		if m.kind == "welcome" {
			welcomes++
		}
	}
	assert.Equal(t, 1, welcomes)
}

func TestResetPassword_ConcurrentUseOfOneToken(t *testing.T) {
	e := newEnv(t, WithResetTokenGenerator(func() (string, error) { return "tok", nil }))
	ctx := context.Background()
	_, code := e.signup(t, "a@x.com")
	_, err := e.svc.VerifyEmail(ctx, code)
	require.NoError(t, err)
	require.NoError(t, e.svc.ForgotPassword(ctx, "a@x.com"))

	hooks := &hookRepo{afterFindByResetToken: func() {
		require.NoError(t, e.svc.ResetPassword(ctx, "tok", "first11"))
	}}
	err = e.over(t, hooks).ResetPassword(ctx, "tok", "second1")
	require.ErrorIs(t, err, common.ErrInvalidOrExpired)

	_, err = e.svc.Login(ctx, "a@x.com", "first11")
	assert.NoError(t, err)
	_, err = e.svc.Login(ctx, "a@x.com", "second1")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestResetPassword_KeepsConcurrentVerify(t *testing.T) {
	e := newEnv(t, WithResetTokenGenerator(func() (string, error) { return "tok", nil }))
	ctx := context.Background()
	_, code := e.signup(t, "a@x.com")
	require.NoError(t, e.svc.ForgotPassword(ctx, "a@x.com"))

	hooks := &hookRepo{afterFindByResetToken: func() {
		_, err := e.svc.VerifyEmail(ctx, code)
		require.NoError(t, err)
	}}
	require.NoError(t, e.over(t, hooks).ResetPassword(ctx, "tok", "newpass1"))

	stored, err := e.repo.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, stored.IsVerified)
	_, err = e.svc.Login(ctx, "a@x.com", "newpass1")
	assert.NoError(t, err)
}

func TestSignup_RedrawsCodePendingElsewhere(t *testing.T) {
	codes := []string{"111111", "111111", "222222"}
	e := newEnv(t, WithCodeGenerator(func() (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}))
	ctx := context.Background()

	_, first := e.signup(t, "a@x.com")
	_, second := e.signup(t, "b@x.com")
	assert.Equal(t, "111111", first)
	assert.Equal(t, "222222", second)

	got, err := e.svc.VerifyEmail(ctx, "111111")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", got.Email)
}

func TestSignup_NoFreeCode(t *testing.T) {
	e := newEnv(t, WithCodeGenerator(func() (string, error) { return "111111", nil }))
	e.signup(t, "a@x.com")

	_, err := e.svc.Signup(context.Background(), "Bob", "b@x.com", "secret1")
	require.ErrorIs(t, err, common.ErrorInternal)
	assert.Equal(t, 1, e.repo.Len())
}
