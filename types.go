package auth

import (
	"context"
	"fmt"
	"time"
)

// Logger is the logging contract used across the package
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetTokenExpiration() time.Duration
	GetCookieName() string
	GetCookieSecure() bool
	GetClientURL() string
	GetPhoneRegion() string
	GetAuthenticatedRedirect() string
}

// Mailer delivers the transactional emails of the auth flows
type Mailer interface {
	SendVerificationEmail(ctx context.Context, email, code string) error
	SendWelcomeEmail(ctx context.Context, email, name string) error
	SendPasswordResetEmail(ctx context.Context, email, resetURL string) error
	SendResetSuccessEmail(ctx context.Context, email string) error
}

// CaptchaVerifier checks a client CAPTCHA response with the provider
type CaptchaVerifier interface {
	Verify(ctx context.Context, response, remoteIP string) (bool, error)
}

// CaptchaVerifierFunc adapts a function to the CaptchaVerifier interface.
type CaptchaVerifierFunc func(ctx context.Context, response, remoteIP string) (bool, error)

// Verify implements CaptchaVerifier.
func (f CaptchaVerifierFunc) Verify(ctx context.Context, response, remoteIP string) (bool, error) {
	return f(ctx, response, remoteIP)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
