package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
)

// Mailer implements Sender on top of a Transport.
type Mailer struct {
	transport Transport
	templates *Templates
	logger    logging.Logger

	from     string
	siteName string
	loginURL string

	verificationTTL time.Duration
	resetTTL        time.Duration
}

type MailerOption func(*Mailer)

func WithFrom(from string) MailerOption { return func(m *Mailer) { m.from = from } }

func WithSiteName(name string) MailerOption { return func(m *Mailer) { m.siteName = name } }

// WithClientURL sets the frontend base used for the login link.
func WithClientURL(u string) MailerOption {
	return func(m *Mailer) { m.loginURL = strings.TrimRight(u, "/") + "/login" }
}

// WithLifetimes sets the code and link lifetimes quoted in the messages.
func WithLifetimes(verification, reset time.Duration) MailerOption {
	return func(m *Mailer) {
		m.verificationTTL = verification
		m.resetTTL = reset
	}
}

func WithTemplates(t *Templates) MailerOption { return func(m *Mailer) { m.templates = t } }

func NewMailer(transport Transport, logger logging.Logger, opts ...MailerOption) (*Mailer, error) {
	m := &Mailer{
		transport:       transport,
		logger:          logger.With("module", "notify"),
		from:            "Authkeeper <no-reply@authkeeper.local>",
		siteName:        "Authkeeper",
		loginURL:        "http://localhost:5173/login",
		verificationTTL: 24 * time.Hour,
		resetTTL:        time.Hour,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.templates == nil {
		t, err := DefaultTemplates()
		if err != nil {
			return nil, err
		}
		m.templates = t
	}
	return m, nil
}

type templateData struct {
	SiteName string
	Name     string
	Code     string
	ResetURL string
	LoginURL string
	ValidFor string
}

func (m *Mailer) SendVerification(ctx context.Context, email, code string) error {
	return m.send(ctx, KindVerification, email, templateData{Code: code, ValidFor: humanize(m.verificationTTL)})
}

func (m *Mailer) SendWelcome(ctx context.Context, email, name string) error {
	return m.send(ctx, KindWelcome, email, templateData{Name: name})
}

func (m *Mailer) SendPasswordReset(ctx context.Context, email, resetURL string) error {
	return m.send(ctx, KindPasswordReset, email, templateData{ResetURL: resetURL, ValidFor: humanize(m.resetTTL)})
}

func (m *Mailer) SendResetSuccess(ctx context.Context, email string) error {
	return m.send(ctx, KindResetSuccess, email, templateData{})
}

func (m *Mailer) send(ctx context.Context, kind, to string, data templateData) error {
	data.SiteName = m.siteName
	data.LoginURL = m.loginURL

	body, err := m.templates.render(kind, data)
	if err != nil {
		return err
	}

	msg := Message{
		Kind:    kind,
		From:    m.from,
		To:      to,
		Subject: strings.ReplaceAll(subjects[kind], "{{site}}", m.siteName),
		HTML:    body,
		Action:  data.Code + data.ResetURL,
	}
	if err := m.transport.Deliver(ctx, msg); err != nil {
		m.logger.Error(ctx, "mail delivery failed", "kind", kind, "error", err)
		return fmt.Errorf("deliver %s email: %w", kind, err)
	}
	m.logger.Debug(ctx, "mail delivered", "kind", kind)
	return nil
}

// humanize renders whole hours or minutes, e.g. "24 hours", "1 hour", "30 minutes".
func humanize(d time.Duration) string {
	unit := func(n int64, word string) string {
		if n == 1 {
			return "1 " + word
		}
		return fmt.Sprintf("%d %ss", n, word)
	}
	if d >= time.Hour && d%time.Hour == 0 {
		return unit(int64(d/time.Hour), "hour")
	}
	return unit(int64(d.Round(time.Minute)/time.Minute), "minute")
}
