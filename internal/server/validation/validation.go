// Package validation checks the shape of inbound auth requests before they
// reach the service layer.
package validation

import (
	"errors"
	"strings"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

const (
	MsgName     = "Name must be at least 3 characters"
	MsgEmail    = "Invalid email address"
	MsgPassword = "Password must be at least 6 characters"
	MsgCode     = "Verification code must be 6 characters"
	MsgBody     = "Invalid request body"
)

var (
	nameRules = []validation.Rule{
		validation.Required.Error(MsgName),
		validation.RuneLength(3, 0).Error(MsgName),
	}
	emailRules = []validation.Rule{
		validation.Required.Error(MsgEmail),
		is.EmailFormat.Error(MsgEmail),
	}
	passwordRules = []validation.Rule{
		validation.Required.Error(MsgPassword),
		validation.RuneLength(6, 0).Error(MsgPassword),
	}
	codeRules = []validation.Rule{
		validation.Required.Error(MsgCode),
		validation.RuneLength(common.VerificationCodeLength, common.VerificationCodeLength).Error(MsgCode),
	}
)

// Error lists every failed field message. It matches common.ErrValidation
// under errors.Is.
type Error struct {
	Messages []string
}

func (e *Error) Error() string {
	return "validation error: " + strings.Join(e.Messages, "; ")
}

func (e *Error) Unwrap() error {
	return common.ErrValidation
}

// Messages returns the field messages carried by err, or nil.
func Messages(err error) []string {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Messages
	}
	return nil
}

// BodyError reports a request body that could not be decoded.
func BodyError() error {
	return &Error{Messages: []string{MsgBody}}
}

type field struct {
	value any
	rules []validation.Rule
}

// check runs fields in order and collects one message per failing field.
func check(fields ...field) error {
	var msgs []string
	for _, f := range fields {
		if err := validation.Validate(f.value, f.rules...); err != nil {
			msgs = append(msgs, err.Error())
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	return &Error{Messages: msgs}
}

type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r SignupRequest) Validate() error {
	return check(
		field{r.Name, nameRules},
		field{r.Email, emailRules},
		field{r.Password, passwordRules},
	)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return check(
		field{r.Email, emailRules},
		field{r.Password, passwordRules},
	)
}

type VerifyEmailRequest struct {
	Code string `json:"code"`
}

func (r VerifyEmailRequest) Validate() error {
	return check(field{r.Code, codeRules})
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

func (r ForgotPasswordRequest) Validate() error {
	return check(field{r.Email, emailRules})
}

type ResetPasswordRequest struct {
	Password string `json:"password"`
}

func (r ResetPasswordRequest) Validate() error {
	return check(field{r.Password, passwordRules})
}
