package auth

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type LoginMessage struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	Captcha    string `json:"g-recaptcha-response"`
	RemoteIP   string `json:"-"`
	OnResponse func(resp *LoginResponse)
}

func (e LoginMessage) Type() string { return "account.login" }

// Validate will run validation rules
func (e LoginMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required),
		validation.Field(&e.Password, validation.Required),
	)
}

type LoginResponse struct {
	Account     *Account
	Grant       *SessionGrant
	RedirectURL string
}

// LoginHandler checks credentials, issues a session and sends the
// per-login verification code. The account is not logged in until that
// code is confirmed.
type LoginHandler struct {
	deps FlowDependencies
}

func NewLoginHandler(deps FlowDependencies) *LoginHandler {
	return &LoginHandler{deps: deps.withDefaults()}
}

func (h *LoginHandler) Execute(ctx context.Context, event LoginMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx.Err(), "login")
	default:
		return h.execute(ctx, event)
	}
}

func (h *LoginHandler) execute(ctx context.Context, event LoginMessage) error {
	ctx, cancel := context.WithTimeout(ctx, flowTimeout)
	defer cancel()

	if err := h.deps.verifyCaptcha(ctx, event.Captcha, event.RemoteIP); err != nil {
		return err
	}

	if err := event.Validate(); err != nil {
		return validationFailure(err, ErrMissingFields)
	}

	resp := &LoginResponse{}
	now := h.deps.now()

	err := h.deps.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		found, err := h.deps.Repo.Accounts().GetByEmailTx(ctx, tx, event.Email)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrInvalidCredentials
			}
			return internalFault(err, "failed to look up account")
		}

		if err := ComparePasswordAndHash(event.Password, found.PasswordHash); err != nil {
			resp.Account = found
			return ErrInvalidCredentials
		}

		code, err := h.deps.Codes.VerificationCode()
		if err != nil {
			return err
		}
		expiresAt := now.Add(VerificationCodeTTL)

		account, err := h.deps.States.Transition(ctx, accountActor(found), found, EventLogin,
			func(ctx context.Context, a *Account) (*Account, error) {
				updated, err := h.deps.Repo.Accounts().IssueVerificationCodeTx(ctx, tx, a.ID, code, expiresAt, &now)
				if err != nil {
					return nil, internalFault(err, "failed to store login code")
				}
				return updated, nil
			},
			WithTransitionReason("login"),
		)
		if err != nil {
			return err
		}

		grant, err := h.deps.issueSession(ctx, tx, account.ID)
		if err != nil {
			return err
		}

		if err := h.deps.Mailer.SendVerificationEmail(ctx, account.Email, code); err != nil {
			return mailFailure(err, "verification")
		}

		resp.Account = account
		resp.Grant = grant
		resp.RedirectURL = VerifyEmailLoginRedirect(account.Email)
		return nil
	})

	if err != nil {
		if HasTextCode(err, TextCodeInvalidCredentials) {
			h.deps.Logger.Info("login rejected for %q", event.Email)
			failure := ActivityEvent{
				EventType: ActivityEventLoginFailure,
				Actor:     accountActor(resp.Account),
				Metadata:  map[string]any{"email": event.Email},
			}
			if resp.Account != nil {
				failure.AccountID = resp.Account.ID.String()
			}
			recordActivity(ctx, h.deps.Activity, h.deps.Logger, failure)
		}
		return asRichError(err, "login transaction failed")
	}

	recordActivity(ctx, h.deps.Activity, h.deps.Logger, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Actor:     accountActor(resp.Account),
		AccountID: resp.Account.ID.String(),
		Event:     EventLogin,
		ToState:   StateOf(resp.Account),
	})

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
