package auth_test

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-exam-auth"
)

func TestIsTokenExpiredError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "Structured token expired error",
			err:      auth.ErrTokenExpired,
			expected: true,
		},
		{
			name:     "Legacy token expired error (string match)",
			err:      errors.New("some wrapper: token is expired"),
			expected: true,
		},
		{
			name:     "Invalid token",
			err:      auth.ErrInvalidToken,
			expected: false,
		},
		{
			name:     "Different legacy error",
			err:      errors.New("invalid token"),
			expected: false,
		},
		{
			name:     "Nil error",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, auth.IsTokenExpiredError(tt.err))
		})
	}
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, fiber.StatusBadRequest, auth.StatusCode(auth.ErrInvalidCredentials))
	assert.Equal(t, fiber.StatusUnauthorized, auth.StatusCode(auth.ErrNoToken))
	assert.Equal(t, fiber.StatusNotFound, auth.StatusCode(auth.ErrProfileNotFound))
	assert.Equal(t, fiber.StatusForbidden, auth.StatusCode(auth.ErrExamNotAllowed))
	assert.Equal(t, fiber.StatusTooManyRequests, auth.StatusCode(auth.ErrTooManyRequests))
	assert.Equal(t, fiber.StatusInternalServerError, auth.StatusCode(errors.New("disk full")))

	wrapped := goerrors.Wrap(errors.New("boom"), goerrors.CategoryAuth, "nope").WithCode(goerrors.CodeUnauthorized)
	assert.Equal(t, fiber.StatusUnauthorized, auth.StatusCode(wrapped))
}

func TestHasTextCode(t *testing.T) {
	assert.True(t, auth.HasTextCode(auth.ErrInvalidResetToken, auth.TextCodeInvalidResetToken))
	assert.False(t, auth.HasTextCode(auth.ErrInvalidResetToken, auth.TextCodeInvalidCode))
	assert.False(t, auth.HasTextCode(errors.New("plain"), auth.TextCodeInvalidCode))
	assert.False(t, auth.HasTextCode(nil, auth.TextCodeInvalidCode))
}

func TestErrorHandlerResponses(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"validation", auth.ErrMissingFields, fiber.StatusBadRequest, "All fields are required."},
		{"auth", auth.ErrNoToken, fiber.StatusUnauthorized, "Unauthorized - no token provided"},
		{"not found", auth.ErrProfileNotFound, fiber.StatusNotFound, "error"},
		{"plain error hides its cause", errors.New("dsn password leaked"), fiber.StatusInternalServerError, "Internal Server Error"},
		{
			"internal fault hides its cause",
			goerrors.Wrap(errors.New("dsn password leaked"), goerrors.CategoryInternal, "db down").WithCode(goerrors.CodeInternal),
			fiber.StatusInternalServerError,
			"Internal Server Error",
		},
		{"mail failures keep their message", auth.ErrMailDelivery, fiber.StatusInternalServerError, "Could not deliver email"},
		{"fiber errors", fiber.NewError(fiber.StatusMethodNotAllowed, "nope"), fiber.StatusMethodNotAllowed, "nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New(fiber.Config{ErrorHandler: auth.ErrorLogger(nopLogger{})})
			app.Get("/", func(c *fiber.Ctx) error { return tt.err })

			resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil), -1)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			body := map[string]any{}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.message, body["message"])
		})
	}
}
