package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"sync"
)

const (
	KindVerification  = "verification"
	KindWelcome       = "welcome"
	KindPasswordReset = "password_reset"
	KindResetSuccess  = "reset_success"
)

// Kinds lists every template the mailer renders.
var Kinds = []string{KindVerification, KindWelcome, KindPasswordReset, KindResetSuccess}

var subjects = map[string]string{
	KindVerification:  "Verify your email",
	KindWelcome:       "Welcome to {{site}}",
	KindPasswordReset: "Reset your password",
	KindResetSuccess:  "Password reset successful",
}

//go:embed templates/*.html
var embedded embed.FS

// Templates is the set of message bodies keyed by kind.
type Templates struct {
	mu  sync.RWMutex
	set map[string]*template.Template
}

// DefaultTemplates parses the embedded templates.
func DefaultTemplates() (*Templates, error) {
	t := &Templates{set: make(map[string]*template.Template, len(Kinds))}
	for _, kind := range Kinds {
		src, err := embedded.ReadFile("templates/" + kind + ".html")
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", kind, err)
		}
		if err := t.Override(kind, string(src)); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Override replaces the body template for kind.
func (t *Templates) Override(kind, text string) error {
	if _, ok := subjects[kind]; !ok {
		return fmt.Errorf("unknown template %q", kind)
	}
	parsed, err := template.New(kind).Option("missingkey=error").Parse(text)
	if err != nil {
		return fmt.Errorf("parse template %s: %w", kind, err)
	}

	t.mu.Lock()
	t.set[kind] = parsed
	t.mu.Unlock()
	return nil
}

func (t *Templates) render(kind string, data any) (string, error) {
	t.mu.RLock()
	tpl, ok := t.set[kind]
	t.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown template %q", kind)
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", kind, err)
	}
	return buf.String(), nil
}
