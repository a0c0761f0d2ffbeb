package auth

import (
	"crypto/rand"
	"encoding/hex"
	"io"
	"math/big"
	"strconv"
	"time"
)

const (
	// VerificationCodeTTL is how long a signup or login code stays valid
	VerificationCodeTTL = 24 * time.Hour
	// ResetTokenTTL is how long a password reset token stays valid
	ResetTokenTTL = time.Hour

	verificationCodeMin = 100000
	verificationCodeMax = 999999
	resetTokenSize      = 20
)

// CodeGenerator produces one-shot verification codes and reset tokens
type CodeGenerator interface {
	VerificationCode() (string, error)
	ResetToken() (string, error)
}

type randomCodes struct {
	reader io.Reader
}

// NewCodeGenerator returns a generator backed by crypto/rand
func NewCodeGenerator() CodeGenerator {
	return randomCodes{reader: rand.Reader}
}

// VerificationCode returns a 6 digit code in [100000, 999999]
func (g randomCodes) VerificationCode() (string, error) {
	span := big.NewInt(verificationCodeMax - verificationCodeMin + 1)
	n, err := rand.Int(g.reader, span)
	if err != nil {
		return "", internalFault(err, "failed to generate verification code")
	}
	return strconv.FormatInt(n.Int64()+verificationCodeMin, 10), nil
}

// ResetToken returns 20 random bytes hex encoded
func (g randomCodes) ResetToken() (string, error) {
	buf := make([]byte, resetTokenSize)
	if _, err := io.ReadFull(g.reader, buf); err != nil {
		return "", internalFault(err, "failed to generate reset token")
	}
	return hex.EncodeToString(buf), nil
}

// IsVerificationCode reports whether s has the shape of a verification code
func IsVerificationCode(s string) bool {
	if len(s) != 6 {
		return false
	}
	n, err := strconv.Atoi(s)
	return err == nil && n >= verificationCodeMin && n <= verificationCodeMax
}
