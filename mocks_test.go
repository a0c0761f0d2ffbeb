package auth_test

import (
	"context"
	"database/sql"
	"time"

	auth "github.com/goliatone/go-exam-auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

// MockRepositoryManager implements auth.RepositoryManager
type MockRepositoryManager struct {
	mock.Mock
}

func (m *MockRepositoryManager) Validate() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockRepositoryManager) MustValidate() {
	m.Called()
}

func (m *MockRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	args := m.Called(ctx, opts, f)
	if run, ok := args.Get(0).(func(context.Context, func(context.Context, bun.Tx) error) error); ok {
		return run(ctx, f)
	}
	return args.Error(0)
}

// runTx executes the transaction callback with a zero bun.Tx
func runTx(ctx context.Context, fn func(context.Context, bun.Tx) error) error {
	var tx bun.Tx
	return fn(ctx, tx)
}

func (m *MockRepositoryManager) Accounts() auth.Accounts {
	args := m.Called()
	return args.Get(0).(auth.Accounts)
}

func (m *MockRepositoryManager) Sessions() auth.Sessions {
	args := m.Called()
	return args.Get(0).(auth.Sessions)
}

func (m *MockRepositoryManager) Questions() auth.Questions {
	args := m.Called()
	return args.Get(0).(auth.Questions)
}

// MockAccounts implements auth.Accounts
type MockAccounts struct {
	mock.Mock
}

func accountResult(args mock.Arguments) (*auth.Account, error) {
	a, _ := args.Get(0).(*auth.Account)
	return a, args.Error(1)
}

func (m *MockAccounts) GetByID(ctx context.Context, id uuid.UUID) (*auth.Account, error) {
	return accountResult(m.Called(ctx, id))
}

func (m *MockAccounts) GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*auth.Account, error) {
	return accountResult(m.Called(ctx, tx, id))
}

func (m *MockAccounts) GetByEmail(ctx context.Context, email string) (*auth.Account, error) {
	return accountResult(m.Called(ctx, email))
}

func (m *MockAccounts) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*auth.Account, error) {
	return accountResult(m.Called(ctx, tx, email))
}

func (m *MockAccounts) CreateTx(ctx context.Context, tx bun.IDB, record *auth.Account) (*auth.Account, error) {
	return accountResult(m.Called(ctx, tx, record))
}

func (m *MockAccounts) FindByVerificationCodeTx(ctx context.Context, tx bun.IDB, code, email string, now time.Time) (*auth.Account, error) {
	return accountResult(m.Called(ctx, tx, code, email, now))
}

func (m *MockAccounts) IssueVerificationCodeTx(ctx context.Context, tx bun.IDB, id uuid.UUID, code string, expiresAt time.Time, loginAt *time.Time) (*auth.Account, error) {
	return accountResult(m.Called(ctx, tx, id, code, expiresAt, loginAt))
}

func (m *MockAccounts) ConsumeVerificationCodeTx(ctx context.Context, tx bun.IDB, id uuid.UUID, code string, now time.Time, login bool) (*auth.Account, error) {
	return accountResult(m.Called(ctx, tx, id, code, now, login))
}

func (m *MockAccounts) FindByResetTokenTx(ctx context.Context, tx bun.IDB, token string, now time.Time) (*auth.Account, error) {
	return accountResult(m.Called(ctx, tx, token, now))
}

func (m *MockAccounts) IssueResetTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string, expiresAt time.Time) (*auth.Account, error) {
	return accountResult(m.Called(ctx, tx, id, token, expiresAt))
}

func (m *MockAccounts) ConsumeResetTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token, passwordHash string, now time.Time) (*auth.Account, error) {
	return accountResult(m.Called(ctx, tx, id, token, passwordHash, now))
}

func (m *MockAccounts) SetLoggedInTx(ctx context.Context, tx bun.IDB, id uuid.UUID, loggedIn bool) (*auth.Account, error) {
	return accountResult(m.Called(ctx, tx, id, loggedIn))
}

func (m *MockAccounts) UpdateProfileTx(ctx context.Context, tx bun.IDB, email string, profile auth.Profile) (*auth.Account, error) {
	return accountResult(m.Called(ctx, tx, email, profile))
}

func (m *MockAccounts) RecordScoreTx(ctx context.Context, tx bun.IDB, id uuid.UUID, subject auth.Subject, score int) (*auth.Account, error) {
	return accountResult(m.Called(ctx, tx, id, subject, score))
}

// MockSessions implements auth.Sessions
type MockSessions struct {
	mock.Mock
}

func (m *MockSessions) GetByID(ctx context.Context, id uuid.UUID) (*auth.Session, error) {
	args := m.Called(ctx, id)
	s, _ := args.Get(0).(*auth.Session)
	return s, args.Error(1)
}

func (m *MockSessions) CreateTx(ctx context.Context, tx bun.IDB, record *auth.Session) (*auth.Session, error) {
	args := m.Called(ctx, tx, record)
	s, _ := args.Get(0).(*auth.Session)
	return s, args.Error(1)
}

func (m *MockSessions) RevokeTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, tx, id, at)
	return args.Error(0)
}

func (m *MockSessions) RevokeAllTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, at time.Time) (int64, error) {
	args := m.Called(ctx, tx, accountID, at)
	return args.Get(0).(int64), args.Error(1)
}

// MockMailer implements auth.Mailer
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendVerificationEmail(ctx context.Context, email, code string) error {
	return m.Called(ctx, email, code).Error(0)
}

func (m *MockMailer) SendWelcomeEmail(ctx context.Context, email, name string) error {
	return m.Called(ctx, email, name).Error(0)
}

func (m *MockMailer) SendPasswordResetEmail(ctx context.Context, email, resetURL string) error {
	return m.Called(ctx, email, resetURL).Error(0)
}

func (m *MockMailer) SendResetSuccessEmail(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

// MockActivitySink implements auth.ActivitySink
type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event auth.ActivityEvent) error {
	return m.Called(ctx, event).Error(0)
}
