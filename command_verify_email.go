package auth

import (
	"context"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// VerifyEmailMessage confirms control of an email address with a code.
// Login marks the per-login variant, which also logs the account in.
type VerifyEmailMessage struct {
	Code       string `json:"code"`
	Email      string `json:"email"`
	Login      bool   `json:"-"`
	OnResponse func(resp *VerifyEmailResponse)
}

func (e VerifyEmailMessage) Type() string {
	if e.Login {
		return "account.verify_email_login"
	}
	return "account.verify_email"
}

func (e VerifyEmailMessage) event() AccountEvent {
	if e.Login {
		return EventVerifyLogin
	}
	return EventVerifySignup
}

type VerifyEmailResponse struct {
	Account *Account
}

type VerifyEmailHandler struct {
	deps FlowDependencies
}

func NewVerifyEmailHandler(deps FlowDependencies) *VerifyEmailHandler {
	return &VerifyEmailHandler{deps: deps.withDefaults()}
}

func (h *VerifyEmailHandler) Execute(ctx context.Context, event VerifyEmailMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx.Err(), "email verification")
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyEmailHandler) execute(ctx context.Context, event VerifyEmailMessage) error {
	ctx, cancel := context.WithTimeout(ctx, flowTimeout)
	defer cancel()

	code := strings.TrimSpace(event.Code)
	if !IsVerificationCode(code) {
		return ErrInvalidVerificationCode
	}

	resp := &VerifyEmailResponse{}
	now := h.deps.now()

	err := h.deps.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		found, err := h.deps.Repo.Accounts().FindByVerificationCodeTx(ctx, tx, code, event.Email, now)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrInvalidVerificationCode
			}
			return internalFault(err, "failed to look up verification code")
		}

		account, err := h.deps.States.Transition(ctx, accountActor(found), found, event.event(),
			func(ctx context.Context, a *Account) (*Account, error) {
				updated, err := h.deps.Repo.Accounts().ConsumeVerificationCodeTx(ctx, tx, a.ID, code, now, event.Login)
				if err != nil {
					if repository.IsRecordNotFound(err) {
						// lost the race against a concurrent submission
						return nil, ErrInvalidVerificationCode
					}
					return nil, internalFault(err, "failed to consume verification code")
				}
				return updated, nil
			},
			WithTransitionReason(event.Type()),
		)
		if err != nil {
			return err
		}

		if err := h.deps.Mailer.SendWelcomeEmail(ctx, account.Email, account.FullName); err != nil {
			return mailFailure(err, "welcome")
		}

		resp.Account = account
		return nil
	})

	if err != nil {
		return asRichError(err, "email verification transaction failed")
	}

	h.deps.Logger.Debug("email verified for account %s (login=%t)", resp.Account.ID, event.Login)

	recordActivity(ctx, h.deps.Activity, h.deps.Logger, ActivityEvent{
		EventType: ActivityEventEmailVerified,
		Actor:     accountActor(resp.Account),
		AccountID: resp.Account.ID.String(),
		Event:     event.event(),
		ToState:   StateOf(resp.Account),
		Metadata:  map[string]any{"login": event.Login},
	})

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
