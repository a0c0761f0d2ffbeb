package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-exam-auth"
)

func textCode(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode
	}
	return ""
}

func accountIn(state auth.AccountState) *auth.Account {
	a := &auth.Account{ID: uuid.New(), Email: "a@x.com"}
	switch state {
	case auth.StateVerifiedLoggedOut:
		a.IsVerified = true
	case auth.StateVerifiedLoggedIn:
		a.IsVerified = true
		a.IsLoggedIn = true
	}
	return a
}

func withPendingReset(a *auth.Account, expires time.Time) *auth.Account {
	token := "token"
	a.ResetToken = &token
	a.ResetTokenExpiresAt = &expires
	return a
}

func TestAccountStateMachineTransitionTable(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	sm := auth.NewAccountStateMachine(auth.WithStateMachineClock(func() time.Time { return now }))

	tests := []struct {
		name    string
		from    auth.AccountState
		reset   bool
		event   auth.AccountEvent
		allowed bool
	}{
		{"signup from unverified", auth.StateUnverified, false, auth.EventSignup, true},
		{"signup of a verified account", auth.StateVerifiedLoggedOut, false, auth.EventSignup, false},
		{"verify signup from anywhere", auth.StateVerifiedLoggedIn, false, auth.EventVerifySignup, true},
		{"login while unverified", auth.StateUnverified, false, auth.EventLogin, true},
		{"verify login", auth.StateVerifiedLoggedOut, false, auth.EventVerifyLogin, true},
		{"logout when logged in", auth.StateVerifiedLoggedIn, false, auth.EventLogout, true},
		{"logout when logged out", auth.StateVerifiedLoggedOut, false, auth.EventLogout, false},
		{"forgot password", auth.StateUnverified, false, auth.EventForgotPassword, true},
		{"reset with pending token", auth.StateVerifiedLoggedIn, true, auth.EventResetPassword, true},
		{"reset without pending token", auth.StateVerifiedLoggedIn, false, auth.EventResetPassword, false},
		{"unknown event", auth.StateVerifiedLoggedIn, false, auth.AccountEvent("suspend"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			account := accountIn(tt.from)
			if tt.reset {
				withPendingReset(account, now.Add(time.Minute))
			}
			assert.Equal(t, tt.allowed, sm.Can(account, tt.event))
		})
	}

	assert.False(t, sm.Can(nil, auth.EventLogin))
}

func TestAccountStateMachineExpiredResetIsNotPending(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	sm := auth.NewAccountStateMachine(auth.WithStateMachineClock(func() time.Time { return now }))

	account := withPendingReset(accountIn(auth.StateVerifiedLoggedOut), now.Add(-time.Second))
	assert.False(t, sm.CurrentStatus(account).ResetPending)
	assert.False(t, sm.Can(account, auth.EventResetPassword))
}

func TestAccountStateMachineTransitionRecordsActivity(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	sink := &MockActivitySink{}
	sm := auth.NewAccountStateMachine(
		auth.WithStateMachineClock(func() time.Time { return now }),
		auth.WithStateMachineActivitySink(sink),
	)

	account := accountIn(auth.StateVerifiedLoggedIn)

	sink.On("Record", mock.Anything, mock.MatchedBy(func(evt auth.ActivityEvent) bool {
		return evt.EventType == auth.ActivityEventAccountStateChanged &&
			evt.Event == auth.EventLogout &&
			evt.FromState == auth.StateVerifiedLoggedIn &&
			evt.ToState == auth.StateVerifiedLoggedOut &&
			evt.Actor.ID == "session" &&
			evt.Metadata["reason"] == "user logout" &&
			evt.Metadata["sessions"] == 1 &&
			evt.OccurredAt.Equal(now)
	})).Return(nil).Once()

	result, err := sm.Transition(context.Background(), auth.ActorRef{ID: "session"}, account, auth.EventLogout,
		func(ctx context.Context, a *auth.Account) (*auth.Account, error) {
			out := *a
			out.IsLoggedIn = false
			return &out, nil
		},
		auth.WithTransitionReason("user logout"),
		auth.WithTransitionMetadata(map[string]any{"sessions": 1}),
	)
	require.NoError(t, err)
	assert.Equal(t, auth.StateVerifiedLoggedOut, auth.StateOf(result))
	sink.AssertExpectations(t)
}

func TestAccountStateMachineRejectsInvalidTransition(t *testing.T) {
	sm := auth.NewAccountStateMachine()
	called := false

	_, err := sm.Transition(context.Background(), auth.ActorRef{}, accountIn(auth.StateVerifiedLoggedOut), auth.EventLogout,
		func(ctx context.Context, a *auth.Account) (*auth.Account, error) {
			called = true
			return a, nil
		})
	require.Error(t, err)
	assert.Equal(t, "INVALID_ACCOUNT_STATE_TRANSITION", textCode(err))
	assert.Equal(t, 400, auth.StatusCode(err))
	assert.False(t, called)

	_, err = sm.Transition(context.Background(), auth.ActorRef{}, nil, auth.EventLogin, nil)
	assert.Equal(t, "INVALID_ACCOUNT_STATE_TRANSITION", textCode(err))
}

func TestAccountStateMachineDetectsUnexpectedState(t *testing.T) {
	sm := auth.NewAccountStateMachine()

	_, err := sm.Transition(context.Background(), auth.ActorRef{}, accountIn(auth.StateVerifiedLoggedOut), auth.EventVerifyLogin,
		func(ctx context.Context, a *auth.Account) (*auth.Account, error) {
			return a, nil
		})
	require.Error(t, err)
	assert.Equal(t, "UNEXPECTED_ACCOUNT_STATE", textCode(err))
	assert.Equal(t, 500, auth.StatusCode(err))
}

func TestAccountStateMachineHooks(t *testing.T) {
	sm := auth.NewAccountStateMachine()
	account := accountIn(auth.StateUnverified)
	order := []string{}

	result, err := sm.Transition(context.Background(), auth.ActorRef{}, account, auth.EventVerifySignup,
		func(ctx context.Context, a *auth.Account) (*auth.Account, error) {
			order = append(order, "apply")
			out := *a
			out.IsVerified = true
			return &out, nil
		},
		auth.WithBeforeTransitionHook(func(ctx context.Context, tc auth.TransitionContext) error {
			order = append(order, "before")
			assert.Equal(t, auth.StateUnverified, tc.From.State)
			assert.Equal(t, auth.StateVerifiedLoggedOut, tc.To)
			return nil
		}),
		auth.WithAfterTransitionHook(func(ctx context.Context, tc auth.TransitionContext) error {
			order = append(order, "after")
			assert.True(t, tc.Account.IsVerified)
			return nil
		}),
	)
	require.NoError(t, err)
	assert.True(t, result.IsVerified)
	assert.Equal(t, []string{"before", "apply", "after"}, order)

	boom := errors.New("boom")
	_, err = sm.Transition(context.Background(), auth.ActorRef{}, account, auth.EventLogin, nil,
		auth.WithBeforeTransitionHook(func(context.Context, auth.TransitionContext) error { return boom }))
	assert.ErrorIs(t, err, boom)
}

func TestAccountStateMachineSinkFailureIsNotFatal(t *testing.T) {
	sink := auth.ActivitySinkFunc(func(context.Context, auth.ActivityEvent) error {
		return errors.New("sink down")
	})
	sm := auth.NewAccountStateMachine(
		auth.WithStateMachineActivitySink(sink),
		auth.WithStateMachineLogger(nopLogger{}),
	)

	_, err := sm.Transition(context.Background(), auth.ActorRef{}, accountIn(auth.StateVerifiedLoggedIn), auth.EventLogin, nil)
	assert.NoError(t, err)
}
