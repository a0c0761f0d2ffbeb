package mailer_test

import (
	"context"
	"errors"
	"io"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-exam-auth/mailer"
	"github.com/goliatone/go-exam-auth/views"
)

type failingTransport struct{}

func (failingTransport) Send(context.Context, mailer.Message) error {
	return errors.New("relay refused")
}

type failingRenderer struct{}

func (failingRenderer) Render(io.Writer, string, any, ...string) error {
	return errors.New("template missing")
}

func TestMailerRendersTemplates(t *testing.T) {
	transport := mailer.NewLogTransport(nil)
	m := mailer.New(views.New(nil), transport)
	ctx := context.Background()

	require.NoError(t, m.SendVerificationEmail(ctx, "a@x.com", "123456"))
	require.NoError(t, m.SendWelcomeEmail(ctx, "a@x.com", "Nguyen Van A"))
	require.NoError(t, m.SendPasswordResetEmail(ctx, "b@x.com", "http://exam.test/reset-password?token=abc"))
	require.NoError(t, m.SendResetSuccessEmail(ctx, "b@x.com"))

	sent := transport.Sent()
	require.Len(t, sent, 4)

	assert.Equal(t, "Verify your email", sent[0].Subject)
	assert.Contains(t, sent[0].HTML, "123456")
	assert.Contains(t, sent[0].HTML, "24 hours")
	assert.Contains(t, sent[1].HTML, "Nguyen Van A")

	last, ok := transport.Last("b@x.com")
	require.True(t, ok)
	assert.Equal(t, "Password reset successful", last.Subject)
	assert.Contains(t, sent[2].HTML, "http://exam.test/reset-password?token=abc")

	_, ok = transport.Last("nobody@x.com")
	assert.False(t, ok)
}

func TestMailerFailures(t *testing.T) {
	ctx := context.Background()

	err := mailer.New(views.New(nil), failingTransport{}).SendWelcomeEmail(ctx, "a@x.com", "A")
	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, "failed to deliver email", richErr.Message)

	transport := mailer.NewLogTransport(nil)
	err = mailer.New(failingRenderer{}, transport).SendResetSuccessEmail(ctx, "a@x.com")
	require.Error(t, err)
	assert.Empty(t, transport.Sent())

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err = mailer.New(views.New(nil), transport).SendResetSuccessEmail(cancelled, "a@x.com")
	require.Error(t, err)
	assert.Empty(t, transport.Sent())
}
