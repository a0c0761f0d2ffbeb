package auth_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-exam-auth"
	"github.com/goliatone/go-exam-auth/ratelimit"
	"github.com/goliatone/go-exam-auth/views"
)

type httpClient struct {
	t      *testing.T
	app    *fiber.App
	cookie *http.Cookie
}

func (h *httpClient) do(method, target, body string) (*http.Response, map[string]any) {
	h.t.Helper()
	req := jsonRequest(method, target, body)
	if h.cookie != nil {
		req.AddCookie(&http.Cookie{Name: h.cookie.Name, Value: h.cookie.Value})
	}
	resp, err := h.app.Test(req, -1)
	require.NoError(h.t, err)

	if c := sessionCookie(resp); c != nil {
		if c.Value == "" {
			h.cookie = nil
		} else {
			h.cookie = c
		}
	}

	raw, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	out := map[string]any{}
	if json.Valid(raw) {
		require.NoError(h.t, json.Unmarshal(raw, &out))
	} else {
		out["html"] = string(raw)
	}
	return resp, out
}

func signupBody(email string) string {
	return fmt.Sprintf(`{"fullname":"Nguyen Van A","DayOfBirth":"2000-01-01","phonenumber":"0912345678","cccd":"001200000001","email":%q,"password":%q}`,
		email, testPassword)
}

func TestEndToEndSignupLoginLogout(t *testing.T) {
	env := newTestEnv(t)
	client := &httpClient{t: t, app: env.app()}

	resp, body := client.do(fiber.MethodPost, "/signup", signupBody(testEmail))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, "/verify-email?email=a%40x.com", body["redirectUrl"])

	cookie := sessionCookie(resp)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.InDelta(t, (7 * 24 * time.Hour).Seconds(), float64(cookie.MaxAge), 5)

	resp, body = client.do(fiber.MethodPost, "/verify-email", fmt.Sprintf(`{"code":%q}`, env.lastCode(testEmail)))
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	assert.Equal(t, true, body["success"])
	user := body["user"].(map[string]any)
	assert.Equal(t, true, user["isVerified"])
	assert.NotContains(t, user, "password_hash")
	assert.NotContains(t, user, "PasswordHash")

	resp, body = client.do(fiber.MethodPost, "/login", fmt.Sprintf(`{"email":%q,"password":%q}`, testEmail, testPassword))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, body)
	assert.True(t, strings.HasPrefix(body["redirectUrl"].(string), "/verify-email-login?"))

	resp, body = client.do(fiber.MethodGet, "/api/userInfo", "")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, "login code not confirmed yet")

	resp, body = client.do(fiber.MethodPost, "/verify-email-login", fmt.Sprintf(`{"code":%q}`, env.lastCode(testEmail)))
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	assert.Equal(t, true, body["user"].(map[string]any)["isLoggedIn"])

	resp, body = client.do(fiber.MethodGet, "/api/userInfo", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	assert.Equal(t, true, body["success"])
	info := body["user"].(map[string]any)
	assert.Equal(t, testEmail, info["email"])
	assert.Equal(t, "Nguyen Van A", info["name"])
	assert.Equal(t, "+84912345678", info["phone"])

	kept := client.cookie
	resp, body = client.do(fiber.MethodPost, "/logout", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "Logged out successfully", body["message"])
	assert.Nil(t, client.cookie, "cookie must be cleared")
	assert.False(t, env.account(testEmail).IsLoggedIn)

	client.cookie = kept
	resp, _ = client.do(fiber.MethodGet, "/api/userInfo", "")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, "a logged out token stays revoked")
}

func TestSignupHTTPErrors(t *testing.T) {
	env := newTestEnv(t)
	client := &httpClient{t: t, app: env.app()}

	resp, body := client.do(fiber.MethodPost, "/signup", `{"email":"a@x.com"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "All fields are required.", body["message"])

	resp, _ = client.do(fiber.MethodPost, "/signup", signupBody(testEmail))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, body = client.do(fiber.MethodPost, "/signup", signupBody(testEmail))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "User already exists", body["message"])

	resp, body = client.do(fiber.MethodPost, "/verify-email", `{"code":"000000"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid or expired verification code", body["message"])

	resp, body = client.do(fiber.MethodPost, "/login", `{"email":"a@x.com","password":"wrong"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Your email or password is wrong", body["message"])
}

func TestPasswordResetHTTP(t *testing.T) {
	env := newTestEnv(t)
	env.signupVerified(testEmail)
	client := &httpClient{t: t, app: env.app()}

	resp, body := client.do(fiber.MethodPost, "/forgot-password", `{"email":"nobody@x.com"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "User not found", body["message"])

	resp, body = client.do(fiber.MethodPost, "/forgot-password", fmt.Sprintf(`{"email":%q}`, testEmail))
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "Password reset link sent to your email", body["message"])

	token := env.lastResetToken(testEmail)

	resp, body = client.do(fiber.MethodPost, "/reset-password/"+token, `{"password":"N3wSecret!"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "Password reset successful", body["message"])

	resp, body = client.do(fiber.MethodPost, "/reset-password/"+token, `{"password":"Again1!"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid or expired reset token", body["message"])
}

func TestAccountAPI(t *testing.T) {
	env := newTestEnv(t)
	env.signupVerified(testEmail)
	grant := env.loggedIn(testEmail)

	client := &httpClient{t: t, app: env.app(), cookie: &http.Cookie{Name: "token", Value: grant.Token}}

	resp, body := client.do(fiber.MethodPost, "/api/updateUser", `{"name":"Tran Thi B","email":"a@x.com"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "Updated successfully", body["message"])
	assert.Equal(t, "Tran Thi B", env.account(testEmail).FullName)

	resp, body = client.do(fiber.MethodPost, "/api/updateUser", `{"name":"Mallory","email":"b@x.com"}`)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "error", body["message"])

	req := jsonRequest(fiber.MethodGet, "/api/questions?subject=ptdl", "")
	req.AddCookie(&http.Cookie{Name: "token", Value: grant.Token})
	qresp, err := client.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, qresp.StatusCode)

	questions := []map[string]any{}
	require.NoError(t, json.NewDecoder(qresp.Body).Decode(&questions))
	require.NotEmpty(t, questions)
	for _, q := range questions {
		assert.Equal(t, auth.SubjectDataAnalysis, q["subject"])
		assert.NotContains(t, q, "answer", "answers never leave the server")
	}

	resp, body = client.do(fiber.MethodPost, "/api/result?subject=ptdl", fmt.Sprintf(`{%q:"wrong"}`, questions[0]["_id"]))
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	assert.EqualValues(t, 0, body["score"])
	assert.EqualValues(t, 1, body["total"])

	resp, body = client.do(fiber.MethodPost, "/api/prepareToExam", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "Ready for the exam.", body["message"])

	resp, body = client.do(fiber.MethodGet, "/api/questions?subject=history", "")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Unknown subject.", body["message"])

	anon := &httpClient{t: t, app: client.app}
	resp, body = anon.do(fiber.MethodPost, "/api/result?subject=ptdl", `{}`)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Unauthorized - no token provided", body["message"])
}

func TestPages(t *testing.T) {
	env := newTestEnv(t)
	app := env.app()
	env.signupVerified(testEmail)
	grant := env.loggedIn(testEmail)

	for _, path := range []string{"/", "/login", "/signup", "/forgot-password", "/verify-email?email=a%40x.com", "/reset-password?token=abc"} {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, path, nil), -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode, path)
		assert.Contains(t, resp.Header.Get(fiber.HeaderContentType), "text/html", path)
	}

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/dashboard", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest(fiber.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: grant.Token})
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	html, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(html), "Nguyen Van A")
	assert.Contains(t, string(html), "Information security")

	req = httptest.NewRequest(fiber.MethodGet, "/login", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: grant.Token})
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
}

func TestPublicPagesAreRateLimited(t *testing.T) {
	env := newTestEnv(t)
	app := fiber.New(fiber.Config{Views: views.New(auth.TemplateHelpers())})
	limited := 0
	auth.RegisterRoutes(app,
		auth.WithFlows(env.flows),
		auth.WithGate(env.gate),
		auth.WithLimiter(ratelimit.New(ratelimit.Config{
			Max:     2,
			Window:  time.Minute,
			Storage: ratelimit.NewMemoryStorage(time.Minute),
			OnLimit: func(string) { limited++ },
		})),
	)

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/login", nil), -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/login", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, 1, limited)

	// the welcome page is not throttled
	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAuthEndpointsAreRateLimited(t *testing.T) {
	env := newTestEnv(t)
	app := fiber.New(fiber.Config{Views: views.New(auth.TemplateHelpers())})
	limited := 0
	auth.RegisterRoutes(app,
		auth.WithFlows(env.flows),
		auth.WithGate(env.gate),
		auth.WithLimiter(ratelimit.New(ratelimit.Config{
			Max:     2,
			Window:  time.Minute,
			Storage: ratelimit.NewMemoryStorage(time.Minute),
			OnLimit: func(string) { limited++ },
		})),
	)
	client := &httpClient{t: t, app: app}

	for i := 0; i < 2; i++ {
		resp, _ := client.do(fiber.MethodPost, "/verify-email-login", `{"code":"000000"}`)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	}

	resp, body := client.do(fiber.MethodPost, "/verify-email-login", `{"code":"000000"}`)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "Too many requests!", body["message"])
	assert.EqualValues(t, fiber.StatusInternalServerError, body["status"])

	for _, target := range []string{"/login", "/forgot-password", "/signup", "/verify-email", "/reset-password/abc"} {
		resp, _ := client.do(fiber.MethodPost, target, `{}`)
		assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode, target)
	}
	assert.Equal(t, 6, limited)
}
