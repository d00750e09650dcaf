// Package httpapi is the HTTP boundary of the auth server: it decodes and
// validates requests, calls the auth service, maps the outcome to a JSON
// envelope and manages the session cookie.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
)

// AuthService is the slice of services.AuthService the handlers call.
type AuthService interface {
	Signup(ctx context.Context, name, email, password string) (*services.AuthResult, error)
	Login(ctx context.Context, email, password string) (*services.AuthResult, error)
	Logout(ctx context.Context) error
	VerifyEmail(ctx context.Context, code string) (*models.AccountSummary, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) error
	CheckSession(ctx context.Context, accountID string) (*models.AccountSummary, error)
}

// SessionVerifier validates the session cookie value.
type SessionVerifier interface {
	Verify(token string) (string, error)
	TTL() time.Duration
}

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Config controls boundary behaviour.
type Config struct {
	// ClientURL is the only CORS origin allowed to send credentials.
	ClientURL string
	// SecureCookie sets the Secure attribute on the session cookie.
	SecureCookie bool
	// ServiceName names the otelhttp server spans.
	ServiceName string
}

// API wires the auth service, the session verifier and the ambient
// collaborators into HTTP handlers.
type API struct {
	svc      AuthService
	sessions SessionVerifier
	health   HealthChecker
	metrics  *metrics.Metrics
	logger   logging.Logger
	config   Config
}

// New returns an API. metrics and health may be nil.
func New(svc AuthService, sessions SessionVerifier, health HealthChecker, m *metrics.Metrics, logger logging.Logger, cfg Config) (*API, error) {
	if svc == nil {
		return nil, errors.New("auth service is required")
	}
	if sessions == nil {
		return nil, errors.New("session verifier is required")
	}
	if logger == nil {
		logger = logging.Discard()
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "authkeeper"
	}
	cfg.ClientURL = strings.TrimRight(cfg.ClientURL, "/")

	return &API{
		svc:      svc,
		sessions: sessions,
		health:   health,
		metrics:  m,
		logger:   logger.With("module", "http"),
		config:   cfg,
	}, nil
}

// NewServer builds the http.Server used by the application.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
