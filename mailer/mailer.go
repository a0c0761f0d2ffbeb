// Package mailer renders the transactional emails of the auth flows and
// hands them to a Transport.
package mailer

import (
	"bytes"
	"context"
	"io"

	goerrors "github.com/goliatone/go-errors"

	auth "github.com/goliatone/go-exam-auth"
)

const (
	TemplateVerification  = "email/verification"
	TemplateWelcome       = "email/welcome"
	TemplatePasswordReset = "email/password_reset"
	TemplateResetSuccess  = "email/reset_success"
)

// Renderer is satisfied by the django view engine
type Renderer interface {
	Render(out io.Writer, name string, binding any, layout ...string) error
}

// Message is a rendered email
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Transport delivers rendered messages
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// Mailer implements auth.Mailer
type Mailer struct {
	renderer  Renderer
	transport Transport
	logger    auth.Logger
}

var _ auth.Mailer = (*Mailer)(nil)

type Option func(*Mailer)

func WithLogger(logger auth.Logger) Option {
	return func(m *Mailer) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func New(renderer Renderer, transport Transport, opts ...Option) *Mailer {
	m := &Mailer{
		renderer:  renderer,
		transport: transport,
		logger:    nopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

func (m *Mailer) SendVerificationEmail(ctx context.Context, email, code string) error {
	return m.send(ctx, email, "Verify your email", TemplateVerification, map[string]any{
		"code":       code,
		"expires_in": "24 hours",
	})
}

func (m *Mailer) SendWelcomeEmail(ctx context.Context, email, name string) error {
	return m.send(ctx, email, "Welcome", TemplateWelcome, map[string]any{
		"name": name,
	})
}

func (m *Mailer) SendPasswordResetEmail(ctx context.Context, email, resetURL string) error {
	return m.send(ctx, email, "Reset your password", TemplatePasswordReset, map[string]any{
		"reset_url":  resetURL,
		"expires_in": "1 hour",
	})
}

func (m *Mailer) SendResetSuccessEmail(ctx context.Context, email string) error {
	return m.send(ctx, email, "Password reset successful", TemplateResetSuccess, map[string]any{})
}

func (m *Mailer) send(ctx context.Context, to, subject, template string, data map[string]any) error {
	if err := ctx.Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "mail delivery cancelled")
	}

	var buf bytes.Buffer
	if err := m.renderer.Render(&buf, template, data); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render email").
			WithMetadata(map[string]any{"template": template})
	}

	msg := Message{To: to, Subject: subject, HTML: buf.String()}
	if err := m.transport.Send(ctx, msg); err != nil {
		m.logger.Error("mailer: delivery of %q to %s failed: %v", subject, to, err)
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to deliver email").
			WithMetadata(map[string]any{"template": template})
	}

	m.logger.Debug("mailer: sent %q to %s", subject, to)
	return nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
