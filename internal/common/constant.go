// Package common contains shared constants and sentinel errors used across
// authkeeper components.
package common

import "time"

// SessionCookieName is the cookie carrying the signed session token.
const SessionCookieName = "token"

// Token lifetimes used when the configuration does not override them.
const (
	DefaultSessionTTL      = 7 * 24 * time.Hour
	DefaultVerificationTTL = 24 * time.Hour
	DefaultResetTTL        = time.Hour
)

// VerificationCodeLength is the number of characters in an email verification code.
const VerificationCodeLength = 6
