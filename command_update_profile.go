package auth

import (
	"context"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UpdateProfileMessage edits the profile of the account addressed by
// Email. The email must belong to the authenticated account.
type UpdateProfileMessage struct {
	AccountID  uuid.UUID `json:"-"`
	Name       string    `json:"name"`
	DOB        string    `json:"dob"`
	CCCD       string    `json:"cccd"`
	Phone      string    `json:"phone"`
	Email      string    `json:"email"`
	OnResponse func(resp *UpdateProfileResponse)
}

func (e UpdateProfileMessage) Type() string { return "account.profile.update" }

type UpdateProfileResponse struct {
	Account *Account
}

type UpdateProfileHandler struct {
	deps FlowDependencies
}

func NewUpdateProfileHandler(deps FlowDependencies) *UpdateProfileHandler {
	return &UpdateProfileHandler{deps: deps.withDefaults()}
}

func (h *UpdateProfileHandler) Execute(ctx context.Context, event UpdateProfileMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx.Err(), "profile update")
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdateProfileHandler) execute(ctx context.Context, event UpdateProfileMessage) error {
	ctx, cancel := context.WithTimeout(ctx, flowTimeout)
	defer cancel()

	resp := &UpdateProfileResponse{}
	email := strings.TrimSpace(event.Email)

	err := h.deps.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		current, err := h.deps.Repo.Accounts().GetByIDTx(ctx, tx, event.AccountID)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrProfileNotFound
			}
			return internalFault(err, "failed to retrieve account")
		}

		if email == "" || current.Email != email {
			h.deps.Logger.Warn("profile update for %q rejected: not the session owner", email)
			return ErrProfileNotFound
		}

		// absent fields keep their stored value
		profile := Profile{
			FullName:    firstNonEmpty(event.Name, current.FullName),
			DateOfBirth: firstNonEmpty(event.DOB, current.DateOfBirth),
			NationalID:  firstNonEmpty(event.CCCD, current.NationalID),
			Phone:       current.Phone,
		}
		if strings.TrimSpace(event.Phone) != "" {
			profile.Phone = NormalizePhone(event.Phone, h.deps.Config.GetPhoneRegion())
		}

		updated, err := h.deps.Repo.Accounts().UpdateProfileTx(ctx, tx, email, profile)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrProfileNotFound
			}
			return internalFault(err, "failed to update profile")
		}

		resp.Account = updated
		return nil
	})

	if err != nil {
		return asRichError(err, "profile update failed")
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
