// Package notify delivers the account lifecycle emails. A Mailer renders
// embedded (or S3 overridden) HTML templates and hands the result to a
// Transport: SMTP, NATS, or the structured log.
package notify

import "context"

// Sender is what the auth service needs from outbound messaging. Each call
// returns only after the message has been handed to the transport.
type Sender interface {
	SendVerification(ctx context.Context, email, code string) error
	SendWelcome(ctx context.Context, email, name string) error
	SendPasswordReset(ctx context.Context, email, resetURL string) error
	SendResetSuccess(ctx context.Context, email string) error
}

// Message is a rendered email.
type Message struct {
	Kind    string `json:"kind"`
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	// Action is the verification code or reset link the message carries,
	// empty for purely informational mail.
	Action string `json:"action,omitempty"`
}

// Transport moves a rendered message towards the recipient.
type Transport interface {
	Deliver(ctx context.Context, msg Message) error
}
