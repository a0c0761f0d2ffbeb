package auth

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeValidationFailed   = "VALIDATION_FAILED"
	TextCodeEmptyPassword      = "EMPTY_PASSWORD"
	TextCodeNoToken            = "NO_TOKEN"
	TextCodeInvalidSession     = "INVALID_SESSION"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeAccountNotFound    = "ACCOUNT_NOT_FOUND"
	TextCodeInvalidPassword    = "INVALID_PASSWORD"
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	TextCodeInvalidCode        = "INVALID_CODE"
	TextCodeInvalidResetToken  = "INVALID_RESET_TOKEN"
	TextCodeEmailAlreadyExists = "EMAIL_ALREADY_EXISTS"
	TextCodeCaptchaFailed      = "CAPTCHA_FAILED"
	TextCodeMailDelivery       = "MAIL_DELIVERY_FAILED"
	TextCodeInternal           = "INTERNAL"
	TextCodeRecordNotFound     = "RECORD_NOT_FOUND"
	TextCodeUnknownSubject     = "UNKNOWN_SUBJECT"
	TextCodeTooManyRequests    = "TOO_MANY_REQUESTS"
	TextCodeForbidden          = "FORBIDDEN"
)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = goerrors.New("password can't be an empty string", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrMismatchedHashAndPassword is returned when a password does not match its hash
var ErrMismatchedHashAndPassword = goerrors.New("Your email or password is wrong", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrMissingFields is returned when a payload lacks required fields
var ErrMissingFields = goerrors.New("All fields are required.", goerrors.CategoryValidation).
	WithTextCode(TextCodeValidationFailed).
	WithCode(goerrors.CodeBadRequest)

// ErrNoToken is returned by the strict gate when the request has no session cookie
var ErrNoToken = goerrors.New("Unauthorized - no token provided", goerrors.CategoryAuth).
	WithTextCode(TextCodeNoToken).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidToken covers bad signatures, undecodable payloads and expired tokens
var ErrInvalidToken = goerrors.New("Unauthorized - invalid token", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidSession).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is a specialization of ErrInvalidToken kept for logging
var ErrTokenExpired = goerrors.New("Unauthorized - invalid token", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidCredentials is the single login failure for unknown emails and wrong passwords
var ErrInvalidCredentials = goerrors.New("Your email or password is wrong", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeBadRequest)

// ErrUserNotFound is the forgot password flavor of an unknown email
var ErrUserNotFound = goerrors.New("User not found", goerrors.CategoryBadInput).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidVerificationCode does not say whether the code was wrong or expired
var ErrInvalidVerificationCode = goerrors.New("Invalid or expired verification code", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidCode).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidResetToken does not say whether the token was wrong or expired
var ErrInvalidResetToken = goerrors.New("Invalid or expired reset token", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidResetToken).
	WithCode(goerrors.CodeBadRequest)

// ErrEmailAlreadyExists is returned on signup with a registered email
var ErrEmailAlreadyExists = goerrors.New("User already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailAlreadyExists).
	WithCode(goerrors.CodeBadRequest)

// ErrCaptchaFailed is returned when the CAPTCHA provider rejects the response
var ErrCaptchaFailed = goerrors.New("Captcha verification failed", goerrors.CategoryOperation).
	WithTextCode(TextCodeCaptchaFailed).
	WithCode(goerrors.CodeBadRequest)

// ErrMailDelivery is returned when the mail sender fails
var ErrMailDelivery = goerrors.New("Could not deliver email", goerrors.CategoryOperation).
	WithTextCode(TextCodeMailDelivery).
	WithCode(goerrors.CodeInternal)

// ErrProfileNotFound is returned by the profile update for an unknown email
var ErrProfileNotFound = goerrors.New("error", goerrors.CategoryNotFound).
	WithTextCode(TextCodeRecordNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrUnknownSubject is returned by the quiz endpoints for unsupported subjects
var ErrUnknownSubject = goerrors.New("Unknown subject.", goerrors.CategoryValidation).
	WithTextCode(TextCodeUnknownSubject).
	WithCode(goerrors.CodeBadRequest)

// ErrTooManyRequests is returned by the rate limiter
var ErrTooManyRequests = goerrors.New("Too many requests!", goerrors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyRequests).
	WithCode(429)

// internalFault wraps unexpected failures into the InternalFault kind
func internalFault(err error, msg string) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg).
		WithTextCode(TextCodeInternal).
		WithCode(goerrors.CodeInternal)
}

// asRichError returns err as a rich error, wrapping it as an internal
// fault when it is not one already
func asRichError(err error, msg string) *goerrors.Error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return internalFault(err, msg)
}

// HasTextCode reports whether err is a rich error carrying code
func HasTextCode(err error, code string) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}

// StatusCode returns the HTTP status a given error maps to
func StatusCode(err error) int {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Code != 0 {
		return richErr.Code
	}
	return goerrors.CodeInternal
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if HasTextCode(err, TextCodeTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// ErrAccountMissing is returned when an authenticated account vanished
// between the gate and the handler
var ErrAccountMissing = goerrors.New("Account not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeRecordNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrExamNotAllowed is returned by the exam preparation check
var ErrExamNotAllowed = goerrors.New("Invalid account.", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)
