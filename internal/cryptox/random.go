package cryptox

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
	"strings"
)

// ResetTokenBytes is the amount of entropy behind a password reset token.
const ResetTokenBytes = 32

// MakeRandHexString generates a random hexadecimal string of the given size.
// The size parameter specifies the number of random bytes; the resulting
// string is twice as long.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GenerateVerificationCode returns a code of n decimal digits drawn from
// crypto/rand. Leading zeros are kept so the length is always n.
func GenerateVerificationCode(n int) (string, error) {
	var sb strings.Builder
	sb.Grow(n)
	ten := big.NewInt(10)
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		sb.WriteByte(byte('0' + d.Int64()))
	}
	return sb.String(), nil
}

// GenerateResetToken returns a hex encoded token suitable for a URL path segment.
func GenerateResetToken() (string, error) {
	return MakeRandHexString(ResetTokenBytes)
}
