package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-exam-auth"
	"github.com/goliatone/go-exam-auth/config"
	"github.com/goliatone/go-exam-auth/mailer"
	"github.com/goliatone/go-exam-auth/storage"
	"github.com/goliatone/go-exam-auth/views"
)

const (
	testEmail    = "a@x.com"
	testPassword = "Secret1!"
)

var (
	codePattern       = regexp.MustCompile(`\b(\d{6})\b`)
	resetTokenPattern = regexp.MustCompile(`token=([0-9a-f]{40})`)
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now().UTC().Truncate(time.Second)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type activityRecorder struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (r *activityRecorder) Record(_ context.Context, event auth.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *activityRecorder) Types() []auth.ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type testEnv struct {
	t        *testing.T
	store    *storage.Store
	repo     auth.RepositoryManager
	cfg      *config.Config
	tokens   auth.TokenService
	mail     *mailer.LogTransport
	flows    *auth.AuthFlows
	gate     *auth.SessionGate
	clock    *testClock
	activity *activityRecorder
	outcomes []string
}

type envOption func(*auth.FlowDependencies)

func withCaptcha(v auth.CaptchaVerifier) envOption {
	return func(d *auth.FlowDependencies) { d.Captcha = v }
}

func withMailer(m auth.Mailer) envOption {
	return func(d *auth.FlowDependencies) { d.Mailer = m }
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.FromEnv(func(key string) string {
		return map[string]string{
			"YOUR_SECRET_KEY": "test-signing-key",
			"CLIENT_URL":      "http://exam.test",
		}[key]
	})
	require.NoError(t, err)
	return cfg
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	ctx := context.Background()

	store, err := storage.Open(ctx, "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(ctx))

	env := &testEnv{
		t:        t,
		store:    store,
		repo:     auth.NewRepositoryManager(store.DB),
		cfg:      testConfig(t),
		mail:     mailer.NewLogTransport(nil),
		clock:    newTestClock(),
		activity: &activityRecorder{},
	}

	_, err = store.SeedQuestions(ctx, env.repo.Questions())
	require.NoError(t, err)

	env.tokens = auth.NewTokenService([]byte(env.cfg.GetSigningKey()), env.cfg.GetTokenExpiration(),
		auth.WithTokenLogger(nopLogger{}))

	deps := auth.FlowDependencies{
		Repo:     env.repo,
		Tokens:   env.tokens,
		Mailer:   mailer.New(views.New(auth.TemplateHelpers()), env.mail),
		Config:   env.cfg,
		Logger:   nopLogger{},
		Activity: env.activity,
		Clock:    env.clock.Now,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	env.flows, err = auth.NewAuthFlows(deps)
	require.NoError(t, err)

	env.gate = auth.NewSessionGate(env.tokens, env.repo, env.cfg,
		auth.WithGateLogger(nopLogger{}),
		auth.WithGateObserver(func(outcome string) {
			env.outcomes = append(env.outcomes, outcome)
		}),
	)
	return env
}

func (e *testEnv) app() *fiber.App {
	app := fiber.New(fiber.Config{
		Views:        views.New(auth.TemplateHelpers()),
		ErrorHandler: auth.ErrorLogger(nopLogger{}),
	})
	auth.RegisterRoutes(app,
		auth.WithFlows(e.flows),
		auth.WithGate(e.gate),
		auth.WithControllerLogger(nopLogger{}),
	)
	return app
}

func (e *testEnv) lastCode(email string) string {
	e.t.Helper()
	msg, ok := e.mail.Last(email)
	require.True(e.t, ok, "no mail sent to %s", email)
	m := codePattern.FindStringSubmatch(msg.HTML)
	require.Len(e.t, m, 2, "no code in %q", msg.Subject)
	return m[1]
}

func (e *testEnv) lastResetToken(email string) string {
	e.t.Helper()
	msg, ok := e.mail.Last(email)
	require.True(e.t, ok, "no mail sent to %s", email)
	m := resetTokenPattern.FindStringSubmatch(msg.HTML)
	require.Len(e.t, m, 2, "no reset token in %q", msg.Subject)
	return m[1]
}

func (e *testEnv) account(email string) *auth.Account {
	e.t.Helper()
	account, err := e.repo.Accounts().GetByEmail(context.Background(), email)
	require.NoError(e.t, err)
	return account
}

func signupMessage(email string) auth.SignupMessage {
	return auth.SignupMessage{
		FullName:    "Nguyen Van A",
		DateOfBirth: "2000-01-01",
		Phone:       "0912345678",
		NationalID:  "001200000001",
		Email:       email,
		Password:    testPassword,
	}
}

// signupVerified runs signup and its code verification
func (e *testEnv) signupVerified(email string) *auth.Account {
	e.t.Helper()
	ctx := context.Background()
	_, err := e.flows.Signup(ctx, signupMessage(email))
	require.NoError(e.t, err)
	_, err = e.flows.VerifyEmail(ctx, auth.VerifyEmailMessage{Code: e.lastCode(email)})
	require.NoError(e.t, err)
	return e.account(email)
}

// loggedIn runs login and the login code verification, returning the
// session grant of the login
func (e *testEnv) loggedIn(email string) *auth.SessionGrant {
	e.t.Helper()
	ctx := context.Background()
	resp, err := e.flows.Login(ctx, auth.LoginMessage{Email: email, Password: testPassword})
	require.NoError(e.t, err)
	_, err = e.flows.VerifyEmailLogin(ctx, auth.VerifyEmailMessage{Code: e.lastCode(email)})
	require.NoError(e.t, err)
	return resp.Grant
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return req
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == "token" {
			return c
		}
	}
	return nil
}
