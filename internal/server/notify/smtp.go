package notify

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
)

// sendMail is a seam for tests.
var sendMail = smtp.SendMail

// SMTPTransport submits messages to a mail relay.
type SMTPTransport struct {
	addr string
	host string
	auth smtp.Auth
}

// NewSMTPTransport uses PLAIN auth when user is non-empty.
func NewSMTPTransport(host string, port int, user, password string) *SMTPTransport {
	t := &SMTPTransport{
		addr: net.JoinHostPort(host, strconv.Itoa(port)),
		host: host,
	}
	if user != "" {
		t.auth = smtp.PlainAuth("", user, password, host)
	}
	return t
}

func (t *SMTPTransport) Deliver(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	from, err := mail.ParseAddress(msg.From)
	if err != nil {
		return fmt.Errorf("sender address: %w", err)
	}
	to, err := mail.ParseAddress(msg.To)
	if err != nil {
		return fmt.Errorf("recipient address: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- sendMail(t.addr, t.auth, from.Address, []string{to.Address}, buildMIME(from, to, msg))
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func buildMIME(from, to *mail.Address, msg Message) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from.String())
	fmt.Fprintf(&b, "To: %s\r\n", to.String())
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTML)
	return b.Bytes()
}
