package auth

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// ForgotPasswordMessage requests a reset link for an email address
type ForgotPasswordMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Account email."`
	OnResponse func(resp *ForgotPasswordResponse)
}

func (p ForgotPasswordMessage) Type() string { return "account.password_reset.request" }

// Validate will run validation rules
func (p ForgotPasswordMessage) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required),
	)
}

type ForgotPasswordResponse struct {
	Account  *Account
	ResetURL string
}

type ForgotPasswordHandler struct {
	deps FlowDependencies
}

func NewForgotPasswordHandler(deps FlowDependencies) *ForgotPasswordHandler {
	return &ForgotPasswordHandler{deps: deps.withDefaults()}
}

func (h *ForgotPasswordHandler) Execute(ctx context.Context, event ForgotPasswordMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx.Err(), "password reset request")
	default:
		return h.execute(ctx, event)
	}
}

func (h *ForgotPasswordHandler) execute(ctx context.Context, event ForgotPasswordMessage) error {
	ctx, cancel := context.WithTimeout(ctx, flowTimeout)
	defer cancel()

	if err := event.Validate(); err != nil {
		return validationFailure(err, ErrUserNotFound)
	}

	resp := &ForgotPasswordResponse{}
	now := h.deps.now()

	err := h.deps.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		found, err := h.deps.Repo.Accounts().GetByEmailTx(ctx, tx, event.Email)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrUserNotFound
			}
			return internalFault(err, "failed to retrieve account for password reset")
		}

		token, err := h.deps.Codes.ResetToken()
		if err != nil {
			return err
		}
		expiresAt := now.Add(ResetTokenTTL)

		account, err := h.deps.States.Transition(ctx, accountActor(found), found, EventForgotPassword,
			func(ctx context.Context, a *Account) (*Account, error) {
				updated, err := h.deps.Repo.Accounts().IssueResetTokenTx(ctx, tx, a.ID, token, expiresAt)
				if err != nil {
					return nil, internalFault(err, "failed to store reset token")
				}
				return updated, nil
			},
			WithTransitionReason("forgot password"),
		)
		if err != nil {
			return err
		}

		resetURL := ResetPasswordURL(h.deps.Config.GetClientURL(), token)
		if err := h.deps.Mailer.SendPasswordResetEmail(ctx, account.Email, resetURL); err != nil {
			return mailFailure(err, "password_reset")
		}

		resp.Account = account
		resp.ResetURL = resetURL
		return nil
	})

	if err != nil {
		return asRichError(err, "failed to initialize password reset")
	}

	recordActivity(ctx, h.deps.Activity, h.deps.Logger, ActivityEvent{
		EventType: ActivityEventPasswordResetIssued,
		Actor:     accountActor(resp.Account),
		AccountID: resp.Account.ID.String(),
		Event:     EventForgotPassword,
		ToState:   StateOf(resp.Account),
		Metadata:  map[string]any{"expires_in": ResetTokenTTL.String()},
	})

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
