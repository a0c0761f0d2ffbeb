package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeInvalidTransition = "INVALID_ACCOUNT_STATE_TRANSITION"
	textCodeUnexpectedState   = "UNEXPECTED_ACCOUNT_STATE"
)

// ErrInvalidTransition is returned when an event is not allowed from the current state.
var ErrInvalidTransition = goerrors.New("invalid account state transition", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// AccountState is the verification/login state of an account
type AccountState string

const (
	StateUnverified        AccountState = "unverified"
	StateVerifiedLoggedOut AccountState = "verified_logged_out"
	StateVerifiedLoggedIn  AccountState = "verified_logged_in"
)

// AccountEvent drives a transition of the account state machine
type AccountEvent string

const (
	EventSignup         AccountEvent = "signup"
	EventVerifySignup   AccountEvent = "verify_signup"
	EventLogin          AccountEvent = "login"
	EventVerifyLogin    AccountEvent = "verify_login"
	EventLogout         AccountEvent = "logout"
	EventForgotPassword AccountEvent = "forgot_password"
	EventResetPassword  AccountEvent = "reset_password"
)

// AccountStatus is the full status of an account: its state plus the
// orthogonal reset pending flag
type AccountStatus struct {
	State        AccountState
	ResetPending bool
}

// StateOf derives the state from the account flags
func StateOf(a *Account) AccountState {
	switch {
	case a == nil || !a.IsVerified:
		return StateUnverified
	case a.IsLoggedIn:
		return StateVerifiedLoggedIn
	default:
		return StateVerifiedLoggedOut
	}
}

// StatusOf derives the full status at now
func StatusOf(a *Account, now time.Time) AccountStatus {
	return AccountStatus{
		State:        StateOf(a),
		ResetPending: a.HasPendingReset(now),
	}
}

// ActorRef identifies who/what triggered a transition.
type ActorRef struct {
	ID   string
	Type string
}

// Mutation persists the effect of a transition and returns the stored record
type Mutation func(ctx context.Context, account *Account) (*Account, error)

// TransitionContext is passed into hooks for additional processing.
type TransitionContext struct {
	Actor   ActorRef
	Account *Account
	Event   AccountEvent
	From    AccountStatus
	To      AccountState
	Reason  string
}

// TransitionHook is executed before or after a transition.
type TransitionHook func(ctx context.Context, tc TransitionContext) error

// TransitionOption customizes a single transition.
type TransitionOption func(*transitionOptions)

// WithTransitionReason sets the human-readable reason for the transition.
func WithTransitionReason(reason string) TransitionOption {
	return func(opts *transitionOptions) {
		opts.reason = reason
	}
}

// WithTransitionMetadata merges metadata into the recorded activity.
func WithTransitionMetadata(metadata map[string]any) TransitionOption {
	return func(opts *transitionOptions) {
		if len(metadata) == 0 {
			return
		}
		if opts.metadata == nil {
			opts.metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			opts.metadata[k] = v
		}
	}
}

// WithBeforeTransitionHook adds a hook executed before the mutation.
func WithBeforeTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.beforeHooks = append(opts.beforeHooks, h)
		}
	}
}

// WithAfterTransitionHook adds a hook executed after the mutation succeeds.
func WithAfterTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.afterHooks = append(opts.afterHooks, h)
		}
	}
}

type transitionOptions struct {
	reason      string
	metadata    map[string]any
	beforeHooks []TransitionHook
	afterHooks  []TransitionHook
}

// AccountStateMachine governs which flows may run against an account.
type AccountStateMachine interface {
	Can(account *Account, event AccountEvent) bool
	Transition(ctx context.Context, actor ActorRef, account *Account, event AccountEvent, apply Mutation, opts ...TransitionOption) (*Account, error)
	CurrentStatus(account *Account) AccountStatus
}

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*accountStateMachine)

// WithStateMachineClock injects a custom clock (useful for tests).
func WithStateMachineClock(clock func() time.Time) StateMachineOption {
	return func(sm *accountStateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithStateMachineActivitySink sets the ActivitySink used to publish lifecycle events.
func WithStateMachineActivitySink(sink ActivitySink) StateMachineOption {
	return func(sm *accountStateMachine) {
		sm.activitySink = normalizeActivitySink(sink)
	}
}

// WithStateMachineLogger overrides the logger used for sink failures.
func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(sm *accountStateMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

type transitionRule struct {
	from         map[AccountState]struct{}
	requireReset bool
	target       func(from AccountStatus) AccountState
}

var anyState = map[AccountState]struct{}{
	StateUnverified:        {},
	StateVerifiedLoggedOut: {},
	StateVerifiedLoggedIn:  {},
}

func keepState(from AccountStatus) AccountState { return from.State }

func fixedState(s AccountState) func(AccountStatus) AccountState {
	return func(AccountStatus) AccountState { return s }
}

// NewAccountStateMachine returns the default transition table
func NewAccountStateMachine(opts ...StateMachineOption) AccountStateMachine {
	sm := &accountStateMachine{
		rules: map[AccountEvent]transitionRule{
			EventSignup: {
				from:   map[AccountState]struct{}{StateUnverified: {}},
				target: fixedState(StateUnverified),
			},
			EventVerifySignup: {
				from: anyState,
				target: func(from AccountStatus) AccountState {
					if from.State == StateUnverified {
						return StateVerifiedLoggedOut
					}
					return from.State
				},
			},
			EventLogin: {
				from:   anyState,
				target: keepState,
			},
			EventVerifyLogin: {
				from:   anyState,
				target: fixedState(StateVerifiedLoggedIn),
			},
			EventLogout: {
				from:   map[AccountState]struct{}{StateVerifiedLoggedIn: {}},
				target: fixedState(StateVerifiedLoggedOut),
			},
			EventForgotPassword: {
				from:   anyState,
				target: keepState,
			},
			EventResetPassword: {
				from:         anyState,
				requireReset: true,
				target:       fixedState(StateVerifiedLoggedOut),
			},
		},
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

type accountStateMachine struct {
	rules        map[AccountEvent]transitionRule
	now          func() time.Time
	activitySink ActivitySink
	logger       Logger
}

func (sm *accountStateMachine) CurrentStatus(account *Account) AccountStatus {
	return StatusOf(account, sm.now())
}

func (sm *accountStateMachine) Can(account *Account, event AccountEvent) bool {
	if account == nil {
		return false
	}
	_, ok := sm.allowed(event, StatusOf(account, sm.now()))
	return ok
}

func (sm *accountStateMachine) allowed(event AccountEvent, from AccountStatus) (transitionRule, bool) {
	rule, ok := sm.rules[event]
	if !ok {
		return transitionRule{}, false
	}
	if _, ok := rule.from[from.State]; !ok {
		return transitionRule{}, false
	}
	if rule.requireReset && !from.ResetPending {
		return transitionRule{}, false
	}
	return rule, true
}

func (sm *accountStateMachine) Transition(ctx context.Context, actor ActorRef, account *Account, event AccountEvent, apply Mutation, opts ...TransitionOption) (*Account, error) {
	if account == nil {
		return nil, ErrInvalidTransition.Clone().WithMetadata(map[string]any{
			"event":  event,
			"reason": "account is nil",
		})
	}

	from := StatusOf(account, sm.now())
	rule, ok := sm.allowed(event, from)
	if !ok {
		return nil, ErrInvalidTransition.Clone().WithMetadata(map[string]any{
			"event":         event,
			"from":          from.State,
			"reset_pending": from.ResetPending,
		})
	}

	options := &transitionOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	target := rule.target(from)
	tc := TransitionContext{
		Actor:   actor,
		Account: account,
		Event:   event,
		From:    from,
		To:      target,
		Reason:  options.reason,
	}

	if err := runHooks(ctx, options.beforeHooks, tc); err != nil {
		return nil, err
	}

	updated := account
	if apply != nil {
		stored, err := apply(ctx, account)
		if err != nil {
			return nil, err
		}
		if stored != nil {
			updated = stored
		}
	}

	if got := StateOf(updated); got != target {
		return nil, goerrors.New("account mutation produced an unexpected state", goerrors.CategoryInternal).
			WithTextCode(textCodeUnexpectedState).
			WithCode(goerrors.CodeInternal).
			WithMetadata(map[string]any{
				"event":    event,
				"expected": target,
				"actual":   got,
			})
	}

	tc.Account = updated
	if err := runHooks(ctx, options.afterHooks, tc); err != nil {
		return nil, err
	}

	recordActivity(ctx, sm.activitySink, sm.logger, ActivityEvent{
		EventType:  ActivityEventAccountStateChanged,
		Actor:      actor,
		AccountID:  updated.ID.String(),
		Event:      event,
		FromState:  from.State,
		ToState:    target,
		Metadata:   sm.transitionMetadata(options),
		OccurredAt: sm.now(),
	})

	return updated, nil
}

func runHooks(ctx context.Context, hooks []TransitionHook, tc TransitionContext) error {
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, tc); err != nil {
			return err
		}
	}
	return nil
}

func (sm *accountStateMachine) transitionMetadata(opts *transitionOptions) map[string]any {
	if opts.reason == "" && len(opts.metadata) == 0 {
		return nil
	}

	result := map[string]any{}
	for k, v := range opts.metadata {
		result[k] = v
	}
	if opts.reason != "" {
		result["reason"] = opts.reason
	}
	return result
}
