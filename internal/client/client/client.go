package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/netx"
)

// Client is the auth API as seen by the command-line front end.
type Client interface {
	Signup(ctx context.Context, name, email, password string) (*User, error)
	Login(ctx context.Context, email, password string) (*User, error)
	Logout(ctx context.Context) error
	VerifyEmail(ctx context.Context, code string) (*User, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) error
	CheckAuth(ctx context.Context) (*User, error)
}

// User is the account view returned by the server.
type User struct {
	ID         string    `json:"_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	IsVerified bool      `json:"isVerified"`
	LastLogin  time.Time `json:"lastLogin"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type envelope struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
	User    *User    `json:"user"`
}

type HTTPClient struct {
	base     string
	http     *http.Client
	sessions SessionStore
}

// New returns a client for the server at baseURL.
func New(baseURL string, sessions SessionStore, timeout time.Duration) *HTTPClient {
	if sessions == nil {
		sessions = &MemorySessionStore{}
	}
	return &HTTPClient{
		base:     strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		sessions: sessions,
	}
}

func (c *HTTPClient) Signup(ctx context.Context, name, email, password string) (*User, error) {
	env, err := c.do(ctx, http.MethodPost, "/api/auth/signup",
		map[string]string{"name": name, "email": email, "password": password})
	if err != nil {
		return nil, err
	}
	return env.User, nil
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (*User, error) {
	env, err := c.do(ctx, http.MethodPost, "/api/auth/login",
		map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}
	return env.User, nil
}

// Logout clears the server cookie and the local session either way.
func (c *HTTPClient) Logout(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil)
	if cerr := c.sessions.Clear(); err == nil {
		err = cerr
	}
	return err
}

func (c *HTTPClient) VerifyEmail(ctx context.Context, code string) (*User, error) {
	env, err := c.do(ctx, http.MethodPost, "/api/auth/verify-email", map[string]string{"code": code})
	if err != nil {
		return nil, err
	}
	return env.User, nil
}

func (c *HTTPClient) ForgotPassword(ctx context.Context, email string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": email})
	return err
}

func (c *HTTPClient) ResetPassword(ctx context.Context, token, password string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/auth/reset-password/"+url.PathEscape(token),
		map[string]string{"password": password})
	return err
}

func (c *HTTPClient) CheckAuth(ctx context.Context) (*User, error) {
	env, err := c.do(ctx, http.MethodGet, "/api/auth/check-auth", nil)
	if err != nil {
		return nil, err
	}
	return env.User, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any) (*envelope, error) {
	req, err := netx.NewJSONRequest(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}

	token, err := c.sessions.Load()
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: common.SessionCookieName, Value: token})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if netx.IsUnavailable(err) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.storeSession(resp); err != nil {
		return nil, err
	}

	var env envelope
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("decode response (%s): %w", resp.Status, err)
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &APIError{Status: resp.StatusCode, Message: env.Message, Errors: env.Errors}
	}
	return &env, nil
}

// storeSession mirrors the session cookie set or cleared by the server.
func (c *HTTPClient) storeSession(resp *http.Response) error {
	for _, ck := range resp.Cookies() {
		if ck.Name != common.SessionCookieName {
			continue
		}
		if ck.Value == "" || ck.MaxAge < 0 {
			return c.sessions.Clear()
		}
		return c.sessions.Save(ck.Value)
	}
	return nil
}
