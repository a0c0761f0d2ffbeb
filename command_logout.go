package auth

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// LogoutMessage ends the current session, or every session of the
// account when Everywhere is set
type LogoutMessage struct {
	AccountID  uuid.UUID
	SessionID  uuid.UUID
	Everywhere bool
	OnResponse func(resp *LogoutResponse)
}

func (e LogoutMessage) Type() string {
	if e.Everywhere {
		return "account.logout_all"
	}
	return "account.logout"
}

type LogoutResponse struct {
	Account         *Account
	RevokedSessions int64
}

type LogoutHandler struct {
	deps FlowDependencies
}

func NewLogoutHandler(deps FlowDependencies) *LogoutHandler {
	return &LogoutHandler{deps: deps.withDefaults()}
}

func (h *LogoutHandler) Execute(ctx context.Context, event LogoutMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx.Err(), "logout")
	default:
		return h.execute(ctx, event)
	}
}

func (h *LogoutHandler) execute(ctx context.Context, event LogoutMessage) error {
	ctx, cancel := context.WithTimeout(ctx, flowTimeout)
	defer cancel()

	resp := &LogoutResponse{}
	now := h.deps.now()

	err := h.deps.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		found, err := h.deps.Repo.Accounts().GetByIDTx(ctx, tx, event.AccountID)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrInvalidToken
			}
			return internalFault(err, "failed to retrieve account for logout")
		}

		account, err := h.deps.States.Transition(ctx, accountActor(found), found, EventLogout,
			func(ctx context.Context, a *Account) (*Account, error) {
				if event.Everywhere {
					revoked, err := h.deps.Repo.Sessions().RevokeAllTx(ctx, tx, a.ID, now)
					if err != nil {
						return nil, internalFault(err, "failed to revoke sessions")
					}
					resp.RevokedSessions = revoked
				} else if event.SessionID != uuid.Nil {
					if err := h.deps.Repo.Sessions().RevokeTx(ctx, tx, event.SessionID, now); err != nil {
						return nil, internalFault(err, "failed to revoke session")
					}
					resp.RevokedSessions = 1
				}

				updated, err := h.deps.Repo.Accounts().SetLoggedInTx(ctx, tx, a.ID, false)
				if err != nil {
					return nil, internalFault(err, "failed to update login flag")
				}
				return updated, nil
			},
			WithTransitionReason(event.Type()),
		)
		if err != nil {
			return err
		}

		resp.Account = account
		return nil
	})

	if err != nil {
		return asRichError(err, "logout transaction failed")
	}

	recordActivity(ctx, h.deps.Activity, h.deps.Logger, ActivityEvent{
		EventType: ActivityEventLogout,
		Actor:     accountActor(resp.Account),
		AccountID: resp.Account.ID.String(),
		Event:     EventLogout,
		ToState:   StateOf(resp.Account),
		Metadata: map[string]any{
			"everywhere":       event.Everywhere,
			"revoked_sessions": resp.RevokedSessions,
		},
	})

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
