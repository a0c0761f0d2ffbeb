package auth

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const flowTimeout = 10 * time.Second

// FlowDependencies are the collaborators shared by the auth flow handlers
type FlowDependencies struct {
	Repo     RepositoryManager
	Tokens   TokenService
	Codes    CodeGenerator
	States   AccountStateMachine
	Mailer   Mailer
	Captcha  CaptchaVerifier
	Config   Config
	Logger   Logger
	Activity ActivitySink
	Clock    func() time.Time
}

// Validate checks the required collaborators are present
func (d FlowDependencies) Validate() error {
	missing := []string{}
	if d.Repo == nil {
		missing = append(missing, "repo")
	}
	if d.Tokens == nil {
		missing = append(missing, "tokens")
	}
	if d.Mailer == nil {
		missing = append(missing, "mailer")
	}
	if d.Config == nil {
		missing = append(missing, "config")
	}
	if len(missing) > 0 {
		return goerrors.New("auth flows are missing dependencies", goerrors.CategoryInternal).
			WithMetadata(map[string]any{"missing": missing})
	}
	return nil
}

func (d FlowDependencies) withDefaults() FlowDependencies {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Codes == nil {
		d.Codes = NewCodeGenerator()
	}
	d.Logger = normalizeLogger(d.Logger)
	d.Activity = normalizeActivitySink(d.Activity)
	if d.States == nil {
		d.States = NewAccountStateMachine(
			WithStateMachineClock(d.Clock),
			WithStateMachineActivitySink(d.Activity),
			WithStateMachineLogger(d.Logger),
		)
	}
	if d.Captcha == nil {
		d.Captcha = CaptchaVerifierFunc(func(context.Context, string, string) (bool, error) {
			return true, nil
		})
	}
	return d
}

func (d FlowDependencies) now() time.Time {
	return d.Clock().UTC()
}

// SessionGrant is a freshly issued session token and its record
type SessionGrant struct {
	Session   *Session
	Token     string
	ExpiresAt time.Time
}

// issueSession creates the session record and signs its token
func (d FlowDependencies) issueSession(ctx context.Context, tx bun.IDB, accountID uuid.UUID) (*SessionGrant, error) {
	sessionID := uuid.New()
	token, expiresAt, err := d.Tokens.Issue(accountID, sessionID)
	if err != nil {
		return nil, err
	}

	session, err := d.Repo.Sessions().CreateTx(ctx, tx, &Session{
		ID:        sessionID,
		AccountID: accountID,
		IssuedAt:  d.now(),
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return nil, internalFault(err, "failed to store session")
	}

	return &SessionGrant{Session: session, Token: token, ExpiresAt: expiresAt}, nil
}

// verifyCaptcha rejects the flow unless the provider accepts the response
func (d FlowDependencies) verifyCaptcha(ctx context.Context, response, remoteIP string) error {
	ok, err := d.Captcha.Verify(ctx, response, remoteIP)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "Captcha verification unavailable").
			WithTextCode(TextCodeCaptchaFailed).
			WithCode(goerrors.CodeInternal)
	}
	if !ok {
		return ErrCaptchaFailed
	}
	return nil
}

// mailFailure wraps a mail sender error
func mailFailure(err error, kind string) error {
	return goerrors.Wrap(err, goerrors.CategoryOperation, ErrMailDelivery.Message).
		WithTextCode(TextCodeMailDelivery).
		WithCode(goerrors.CodeInternal).
		WithMetadata(map[string]any{"mail": kind})
}

// validationFailure converts ozzo errors into the validation kind, keeping
// the field level messages as metadata
func validationFailure(err error, base *goerrors.Error) error {
	if err == nil {
		return nil
	}
	fields := map[string]any{}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for k, v := range verrs {
			fields[k] = v.Error()
		}
	}
	return base.Clone().WithMetadata(map[string]any{"fields": fields})
}

// isUniqueViolation recognizes duplicate key errors of sqlite and postgres
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "sqlstate 23505")
}

// VerifyEmailRedirect is where signup sends the client next
func VerifyEmailRedirect(email string) string {
	return "/verify-email?email=" + url.QueryEscape(email)
}

// VerifyEmailLoginRedirect is where login sends the client next
func VerifyEmailLoginRedirect(email string) string {
	return "/verify-email-login?email=" + url.QueryEscape(email)
}

// ResetPasswordURL builds the link delivered by the forgot password flow
func ResetPasswordURL(clientURL, token string) string {
	return strings.TrimRight(clientURL, "/") + "/reset-password?token=" + url.QueryEscape(token)
}

func accountActor(a *Account) ActorRef {
	if a == nil {
		return ActorRef{Type: "anonymous"}
	}
	return ActorRef{ID: a.ID.String(), Type: "account"}
}

func cancelled(err error, flow string) error {
	return goerrors.Wrap(err, goerrors.CategoryOperation, "context cancelled during "+flow)
}
