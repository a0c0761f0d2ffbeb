package auth

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// AuthFlows composes the command handlers behind one entry point
type AuthFlows struct {
	deps FlowDependencies

	signup       *SignupHandler
	verify       *VerifyEmailHandler
	login        *LoginHandler
	forgot       *ForgotPasswordHandler
	reset        *ResetPasswordHandler
	logout       *LogoutHandler
	profile      *UpdateProfileHandler
	submitResult *SubmitResultHandler
}

// NewAuthFlows validates deps and builds every flow handler
func NewAuthFlows(deps FlowDependencies) (*AuthFlows, error) {
	if err := deps.Validate(); err != nil {
		return nil, err
	}

	deps = deps.withDefaults()

	return &AuthFlows{
		deps:         deps,
		signup:       NewSignupHandler(deps),
		verify:       NewVerifyEmailHandler(deps),
		login:        NewLoginHandler(deps),
		forgot:       NewForgotPasswordHandler(deps),
		reset:        NewResetPasswordHandler(deps),
		logout:       NewLogoutHandler(deps),
		profile:      NewUpdateProfileHandler(deps),
		submitResult: NewSubmitResultHandler(deps),
	}, nil
}

func (f *AuthFlows) Signup(ctx context.Context, msg SignupMessage) (*SignupResponse, error) {
	var out *SignupResponse
	msg.OnResponse = func(resp *SignupResponse) { out = resp }
	if err := f.signup.Execute(ctx, msg); err != nil {
		return nil, err
	}
	return out, nil
}

func (f *AuthFlows) VerifyEmail(ctx context.Context, msg VerifyEmailMessage) (*VerifyEmailResponse, error) {
	msg.Login = false
	return f.verifyEmail(ctx, msg)
}

func (f *AuthFlows) VerifyEmailLogin(ctx context.Context, msg VerifyEmailMessage) (*VerifyEmailResponse, error) {
	msg.Login = true
	return f.verifyEmail(ctx, msg)
}

func (f *AuthFlows) verifyEmail(ctx context.Context, msg VerifyEmailMessage) (*VerifyEmailResponse, error) {
	var out *VerifyEmailResponse
	msg.OnResponse = func(resp *VerifyEmailResponse) { out = resp }
	if err := f.verify.Execute(ctx, msg); err != nil {
		return nil, err
	}
	return out, nil
}

func (f *AuthFlows) Login(ctx context.Context, msg LoginMessage) (*LoginResponse, error) {
	var out *LoginResponse
	msg.OnResponse = func(resp *LoginResponse) { out = resp }
	if err := f.login.Execute(ctx, msg); err != nil {
		return nil, err
	}
	return out, nil
}

func (f *AuthFlows) ForgotPassword(ctx context.Context, msg ForgotPasswordMessage) (*ForgotPasswordResponse, error) {
	var out *ForgotPasswordResponse
	msg.OnResponse = func(resp *ForgotPasswordResponse) { out = resp }
	if err := f.forgot.Execute(ctx, msg); err != nil {
		return nil, err
	}
	return out, nil
}

func (f *AuthFlows) ResetPassword(ctx context.Context, msg ResetPasswordMessage) (*ResetPasswordResponse, error) {
	var out *ResetPasswordResponse
	msg.OnResponse = func(resp *ResetPasswordResponse) { out = resp }
	if err := f.reset.Execute(ctx, msg); err != nil {
		return nil, err
	}
	return out, nil
}

// Logout ends the session the request was authenticated with
func (f *AuthFlows) Logout(ctx context.Context, session *Session) (*LogoutResponse, error) {
	return f.runLogout(ctx, LogoutMessage{AccountID: session.AccountID, SessionID: session.ID})
}

// LogoutAll ends every session of the account
func (f *AuthFlows) LogoutAll(ctx context.Context, session *Session) (*LogoutResponse, error) {
	return f.runLogout(ctx, LogoutMessage{AccountID: session.AccountID, SessionID: session.ID, Everywhere: true})
}

func (f *AuthFlows) runLogout(ctx context.Context, msg LogoutMessage) (*LogoutResponse, error) {
	var out *LogoutResponse
	msg.OnResponse = func(resp *LogoutResponse) { out = resp }
	if err := f.logout.Execute(ctx, msg); err != nil {
		return nil, err
	}
	return out, nil
}

func (f *AuthFlows) UpdateProfile(ctx context.Context, msg UpdateProfileMessage) (*UpdateProfileResponse, error) {
	var out *UpdateProfileResponse
	msg.OnResponse = func(resp *UpdateProfileResponse) { out = resp }
	if err := f.profile.Execute(ctx, msg); err != nil {
		return nil, err
	}
	return out, nil
}

func (f *AuthFlows) SubmitResult(ctx context.Context, msg SubmitResultMessage) (*SubmitResultResponse, error) {
	var out *SubmitResultResponse
	msg.OnResponse = func(resp *SubmitResultResponse) { out = resp }
	if err := f.submitResult.Execute(ctx, msg); err != nil {
		return nil, err
	}
	return out, nil
}

// UserInfo returns the public profile of the account
func (f *AuthFlows) UserInfo(ctx context.Context, accountID uuid.UUID) (*UserInfo, error) {
	account, err := f.deps.Repo.Accounts().GetByID(ctx, accountID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrAccountMissing
		}
		return nil, internalFault(err, "failed to retrieve account")
	}
	info := NewUserInfo(account)
	return &info, nil
}

// Questions draws a random sample of the subject's question bank
func (f *AuthFlows) Questions(ctx context.Context, subject Subject) ([]*Question, error) {
	if !IsKnownSubject(subject) {
		return nil, ErrUnknownSubject
	}
	records, err := f.deps.Repo.Questions().Sample(ctx, subject, QuestionSampleSize)
	if err != nil {
		return nil, internalFault(err, "failed to sample questions")
	}
	return records, nil
}

// PrepareExam checks the account may sit an exam
func (f *AuthFlows) PrepareExam(ctx context.Context, accountID uuid.UUID) error {
	_, err := f.deps.Repo.Accounts().GetByID(ctx, accountID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrExamNotAllowed
		}
		return internalFault(err, "failed to retrieve account")
	}
	return nil
}

// Config returns the configuration the flows were built with
func (f *AuthFlows) Config() Config {
	return f.deps.Config
}

// Logger returns the flows logger
func (f *AuthFlows) Logger() Logger {
	return f.deps.Logger
}
