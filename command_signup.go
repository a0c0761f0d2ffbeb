package auth

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type SignupMessage struct {
	FullName    string `json:"fullname"`
	DateOfBirth string `json:"DayOfBirth"`
	Phone       string `json:"phonenumber"`
	NationalID  string `json:"cccd"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Captcha     string `json:"g-recaptcha-response"`
	RemoteIP    string `json:"-"`
	OnResponse  func(resp *SignupResponse)
}

func (e SignupMessage) Type() string { return "account.signup" }

// Validate will run validation rules
func (e SignupMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.FullName, validation.Required),
		validation.Field(&e.DateOfBirth, validation.Required),
		validation.Field(&e.Phone, validation.Required),
		validation.Field(&e.NationalID, validation.Required),
		validation.Field(&e.Email, validation.Required),
		validation.Field(&e.Password, validation.Required),
	)
}

type SignupResponse struct {
	Account     *Account
	Grant       *SessionGrant
	RedirectURL string
}

type SignupHandler struct {
	deps FlowDependencies
}

func NewSignupHandler(deps FlowDependencies) *SignupHandler {
	return &SignupHandler{deps: deps.withDefaults()}
}

func (h *SignupHandler) Execute(ctx context.Context, event SignupMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx.Err(), "signup")
	default:
		return h.execute(ctx, event)
	}
}

func (h *SignupHandler) execute(ctx context.Context, event SignupMessage) error {
	ctx, cancel := context.WithTimeout(ctx, flowTimeout)
	defer cancel()

	if err := h.deps.verifyCaptcha(ctx, event.Captcha, event.RemoteIP); err != nil {
		return err
	}

	if err := event.Validate(); err != nil {
		return validationFailure(err, ErrMissingFields)
	}

	resp := &SignupResponse{}
	now := h.deps.now()

	err := h.deps.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := h.deps.Repo.Accounts().GetByEmailTx(ctx, tx, event.Email)
		if err == nil && existing != nil {
			return ErrEmailAlreadyExists
		}
		if err != nil && !repository.IsRecordNotFound(err) {
			return internalFault(err, "failed to look up account")
		}

		hash, err := HashPassword(event.Password)
		if err != nil {
			return err
		}

		code, err := h.deps.Codes.VerificationCode()
		if err != nil {
			return err
		}
		expiresAt := now.Add(VerificationCodeTTL)

		record := &Account{
			Email:                     strings.TrimSpace(event.Email),
			PasswordHash:              hash,
			FullName:                  event.FullName,
			DateOfBirth:               event.DateOfBirth,
			Phone:                     NormalizePhone(event.Phone, h.deps.Config.GetPhoneRegion()),
			NationalID:                event.NationalID,
			VerificationCode:          &code,
			VerificationCodeExpiresAt: &expiresAt,
		}

		account, err := h.deps.States.Transition(ctx, ActorRef{Type: "anonymous"}, record, EventSignup,
			func(ctx context.Context, a *Account) (*Account, error) {
				created, err := h.deps.Repo.Accounts().CreateTx(ctx, tx, a)
				if err != nil {
					if isUniqueViolation(err) {
						return nil, ErrEmailAlreadyExists
					}
					return nil, internalFault(err, "could not create account")
				}
				return created, nil
			},
			WithTransitionReason("signup"),
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
		resp.RedirectURL = VerifyEmailRedirect(account.Email)
		return nil
	})

	if err != nil {
		return asRichError(err, "signup transaction failed")
	}

	recordActivity(ctx, h.deps.Activity, h.deps.Logger, ActivityEvent{
		EventType: ActivityEventSignup,
		Actor:     accountActor(resp.Account),
		AccountID: resp.Account.ID.String(),
		Event:     EventSignup,
		ToState:   StateUnverified,
	})

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
