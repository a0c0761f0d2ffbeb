package auth

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type ResetPasswordMessage struct {
	Token      string `json:"-"`
	Password   string `json:"password" example:"some_secret_word" doc:"New password"`
	OnResponse func(resp *ResetPasswordResponse)
}

func (e ResetPasswordMessage) Type() string { return "account.password_reset.finalize" }

// Validate will run validation rules
func (e ResetPasswordMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Password, validation.Required),
	)
}

type ResetPasswordResponse struct {
	Account         *Account
	RevokedSessions int64
}

type ResetPasswordHandler struct {
	deps FlowDependencies
}

// NewResetPasswordHandler creates a handler with sane defaults.
func NewResetPasswordHandler(deps FlowDependencies) *ResetPasswordHandler {
	return &ResetPasswordHandler{deps: deps.withDefaults()}
}

func (h *ResetPasswordHandler) Execute(ctx context.Context, event ResetPasswordMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx.Err(), "password reset finalization")
	default:
		return h.execute(ctx, event)
	}
}

func (h *ResetPasswordHandler) execute(ctx context.Context, event ResetPasswordMessage) error {
	ctx, cancel := context.WithTimeout(ctx, flowTimeout)
	defer cancel()

	token := strings.TrimSpace(event.Token)
	if token == "" {
		return ErrInvalidResetToken
	}

	if err := event.Validate(); err != nil {
		return validationFailure(err, ErrMissingFields)
	}

	hash, err := HashPassword(event.Password)
	if err != nil {
		return err
	}

	resp := &ResetPasswordResponse{}
	now := h.deps.now()

	err = h.deps.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		found, err := h.deps.Repo.Accounts().FindByResetTokenTx(ctx, tx, token, now)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrInvalidResetToken
			}
			return internalFault(err, "could not retrieve password reset request")
		}

		account, err := h.deps.States.Transition(ctx, accountActor(found), found, EventResetPassword,
			func(ctx context.Context, a *Account) (*Account, error) {
				updated, err := h.deps.Repo.Accounts().ConsumeResetTokenTx(ctx, tx, a.ID, token, hash, now)
				if err != nil {
					if repository.IsRecordNotFound(err) {
						return nil, ErrInvalidResetToken
					}
					return nil, internalFault(err, "failed to update password")
				}

				revoked, err := h.deps.Repo.Sessions().RevokeAllTx(ctx, tx, a.ID, now)
				if err != nil {
					return nil, internalFault(err, "failed to revoke sessions")
				}
				resp.RevokedSessions = revoked
				return updated, nil
			},
			WithTransitionReason("reset password"),
		)
		if err != nil {
			return err
		}

		if err := h.deps.Mailer.SendResetSuccessEmail(ctx, account.Email); err != nil {
			return mailFailure(err, "reset_success")
		}

		resp.Account = account
		return nil
	})

	if err != nil {
		return asRichError(err, "failed to finalize password reset")
	}

	h.deps.Logger.Info("password reset for account %s, %d sessions revoked", resp.Account.ID, resp.RevokedSessions)

	recordActivity(ctx, h.deps.Activity, h.deps.Logger, ActivityEvent{
		EventType: ActivityEventPasswordReset,
		Actor:     accountActor(resp.Account),
		AccountID: resp.Account.ID.String(),
		Event:     EventResetPassword,
		ToState:   StateOf(resp.Account),
		Metadata:  map[string]any{"revoked_sessions": resp.RevokedSessions},
	})

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
