package auth

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
)

type AuthControllerRoutes struct {
	Signup           string
	VerifyEmail      string
	VerifyEmailLogin string
	Login            string
	ForgotPassword   string
	ResetPassword    string
	Logout           string
	LogoutAll        string
}

type AuthControllerViews struct {
	Welcome          string
	Login            string
	Signup           string
	VerifyEmail      string
	VerifyEmailLogin string
	ForgotPassword   string
	ResetPassword    string
	SendSuccess      string
	Dashboard        string
	Questions        string
	UpdateUser       string
	PrepareToExam    string
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Flows        *AuthFlows
	Gate         *SessionGate
	Limiter      fiber.Handler
	Routes       *AuthControllerRoutes
	Views        *AuthControllerViews
	ViewData     fiber.Map
	ErrorHandler func(c *fiber.Ctx, err error) error
}

type AuthControllerOption func(*AuthController) *AuthController

func WithFlows(flows *AuthFlows) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Flows = flows
		return c
	}
}

func WithGate(gate *SessionGate) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Gate = gate
		return c
	}
}

// WithLimiter sets the rate limiter placed in front of the public auth
// pages and the unauthenticated auth endpoints
func WithLimiter(limiter fiber.Handler) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Limiter = limiter
		return c
	}
}

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Logger = normalizeLogger(logger)
		return c
	}
}

// WithViewData sets values passed to every page, e.g. the captcha site key
func WithViewData(data fiber.Map) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.ViewData = data
		return c
	}
}

func WithDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:       defLogger{},
		ErrorHandler: ErrorHandler,
		Routes: &AuthControllerRoutes{
			Signup:           "/signup",
			VerifyEmail:      "/verify-email",
			VerifyEmailLogin: "/verify-email-login",
			Login:            "/login",
			ForgotPassword:   "/forgot-password",
			ResetPassword:    "/reset-password",
			Logout:           "/logout",
			LogoutAll:        "/logout-all",
		},
		Views: &AuthControllerViews{
			Welcome:          "welcome",
			Login:            "login",
			Signup:           "signup",
			VerifyEmail:      "verify_email",
			VerifyEmailLogin: "verify_email_login",
			ForgotPassword:   "forgot_password",
			ResetPassword:    "reset_password",
			SendSuccess:      "send_success",
			Dashboard:        "dashboard",
			Questions:        "questions",
			UpdateUser:       "update_user",
			PrepareToExam:    "prepare_to_exam",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Flows == nil {
		panic("Missing AuthFlows in auth controller...")
	}

	if c.Gate == nil {
		panic("Missing SessionGate in auth controller...")
	}

	if c.Limiter == nil {
		c.Limiter = func(ctx *fiber.Ctx) error { return ctx.Next() }
	}

	return c
}

// RegisterRoutes mounts pages, auth endpoints and the account API on app
func RegisterRoutes(app fiber.Router, opts ...AuthControllerOption) *AuthController {
	c := NewAuthController(opts...)

	public := c.Gate.RedirectIfAuthenticated("")
	strict := c.Gate.Strict()

	app.Get("/", public, c.page(c.Views.Welcome))
	app.Get(c.Routes.Login, public, c.Limiter, c.page(c.Views.Login))
	app.Get(c.Routes.Signup, public, c.Limiter, c.page(c.Views.Signup))
	app.Get(c.Routes.VerifyEmail, public, c.page(c.Views.VerifyEmail))
	app.Get(c.Routes.VerifyEmailLogin, public, c.page(c.Views.VerifyEmailLogin))
	app.Get(c.Routes.ForgotPassword, public, c.Limiter, c.page(c.Views.ForgotPassword))
	app.Get(c.Routes.ResetPassword, public, c.page(c.Views.ResetPassword))
	app.Get("/send-successful-email", public, c.page(c.Views.SendSuccess))

	app.Get("/dashboard", strict, c.page(c.Views.Dashboard))
	app.Get("/questions", strict, c.page(c.Views.Questions))
	app.Get("/update_user", strict, c.page(c.Views.UpdateUser))
	app.Get("/api/prepareToExam", strict, c.page(c.Views.PrepareToExam))

	app.Post(c.Routes.Signup, c.Limiter, c.SignupPost)
	app.Post(c.Routes.VerifyEmail, c.Limiter, c.VerifyEmailPost)
	app.Post(c.Routes.VerifyEmailLogin, c.Limiter, c.VerifyEmailLoginPost)
	app.Post(c.Routes.Login, c.Limiter, c.LoginPost)
	app.Post(c.Routes.ForgotPassword, c.Limiter, c.ForgotPasswordPost)
	app.Post(fmt.Sprintf("%s/:token", c.Routes.ResetPassword), c.Limiter, c.ResetPasswordPost)
	app.Post(c.Routes.Logout, strict, c.LogoutPost)
	app.Post(c.Routes.LogoutAll, strict, c.LogoutAllPost)

	api := app.Group("/api")
	api.Get("/userInfo", strict, c.UserInfo)
	api.Post("/updateUser", strict, c.UpdateUser)
	api.Get("/questions", strict, c.Questions)
	api.Post("/result", strict, c.Result)
	api.Post("/prepareToExam", strict, c.PrepareToExam)

	return c
}

func (a *AuthController) page(view string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		vars := fiber.Map{}
		for k, v := range a.ViewData {
			vars[k] = v
		}
		vars["email"] = c.Query("email")
		vars["token"] = c.Query("token")
		vars["subject"] = c.Query("subject")
		if identity, ok := GetIdentity(c); ok {
			vars["user"] = NewUserInfo(identity.Account)
		}
		return c.Render(view, vars)
	}
}

type SignupPayload struct {
	FullName    string `form:"fullname" json:"fullname"`
	DateOfBirth string `form:"DayOfBirth" json:"DayOfBirth"`
	Phone       string `form:"phonenumber" json:"phonenumber"`
	NationalID  string `form:"cccd" json:"cccd"`
	Email       string `form:"email" json:"email"`
	Password    string `form:"password" json:"password"`
	Captcha     string `form:"g-recaptcha-response" json:"g-recaptcha-response"`
}

func (a *AuthController) SignupPost(c *fiber.Ctx) error {
	payload := new(SignupPayload)
	if err := c.BodyParser(payload); err != nil {
		return a.ErrorHandler(c, ErrMissingFields)
	}

	if a.Debug {
		fmt.Println(print.MaybePrettyJSON(payload))
	}

	resp, err := a.Flows.Signup(c.UserContext(), SignupMessage{
		FullName:    payload.FullName,
		DateOfBirth: payload.DateOfBirth,
		Phone:       payload.Phone,
		NationalID:  payload.NationalID,
		Email:       payload.Email,
		Password:    payload.Password,
		Captcha:     payload.Captcha,
		RemoteIP:    c.IP(),
	})
	if err != nil {
		a.Logger.Debug("signup failed: %v", err)
		return a.ErrorHandler(c, err)
	}

	a.setSessionCookie(c, resp.Grant)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"redirectUrl": resp.RedirectURL,
	})
}

type VerifyEmailPayload struct {
	Code  string `form:"code" json:"code"`
	Email string `form:"email" json:"email"`
}

func (a *AuthController) VerifyEmailPost(c *fiber.Ctx) error {
	return a.verifyEmail(c, false)
}

func (a *AuthController) VerifyEmailLoginPost(c *fiber.Ctx) error {
	return a.verifyEmail(c, true)
}

func (a *AuthController) verifyEmail(c *fiber.Ctx, login bool) error {
	payload := new(VerifyEmailPayload)
	if err := c.BodyParser(payload); err != nil {
		return a.ErrorHandler(c, ErrInvalidVerificationCode)
	}

	msg := VerifyEmailMessage{Code: payload.Code, Email: payload.Email}

	var (
		resp *VerifyEmailResponse
		err  error
	)
	if login {
		resp, err = a.Flows.VerifyEmailLogin(c.UserContext(), msg)
	} else {
		resp, err = a.Flows.VerifyEmail(c.UserContext(), msg)
	}
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": "Email verified successfully",
		"user":    resp.Account,
	})
}

type LoginPayload struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
	Captcha  string `form:"g-recaptcha-response" json:"g-recaptcha-response"`
}

func (a *AuthController) LoginPost(c *fiber.Ctx) error {
	payload := new(LoginPayload)
	if err := c.BodyParser(payload); err != nil {
		return a.ErrorHandler(c, ErrInvalidCredentials)
	}

	resp, err := a.Flows.Login(c.UserContext(), LoginMessage{
		Email:    payload.Email,
		Password: payload.Password,
		Captcha:  payload.Captcha,
		RemoteIP: c.IP(),
	})
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	a.setSessionCookie(c, resp.Grant)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"redirectUrl": resp.RedirectURL,
	})
}

type ForgotPasswordPayload struct {
	Email string `form:"email" json:"email"`
}

func (a *AuthController) ForgotPasswordPost(c *fiber.Ctx) error {
	payload := new(ForgotPasswordPayload)
	if err := c.BodyParser(payload); err != nil {
		return a.ErrorHandler(c, ErrUserNotFound)
	}

	if _, err := a.Flows.ForgotPassword(c.UserContext(), ForgotPasswordMessage{Email: payload.Email}); err != nil {
		return a.ErrorHandler(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": "Password reset link sent to your email",
	})
}

type ResetPasswordPayload struct {
	Password string `form:"password" json:"password"`
}

func (a *AuthController) ResetPasswordPost(c *fiber.Ctx) error {
	payload := new(ResetPasswordPayload)
	if err := c.BodyParser(payload); err != nil {
		return a.ErrorHandler(c, ErrMissingFields)
	}

	_, err := a.Flows.ResetPassword(c.UserContext(), ResetPasswordMessage{
		Token:    c.Params("token"),
		Password: payload.Password,
	})
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": "Password reset successful",
	})
}

func (a *AuthController) LogoutPost(c *fiber.Ctx) error {
	identity, ok := GetIdentity(c)
	if !ok {
		return a.ErrorHandler(c, ErrNoToken)
	}

	if _, err := a.Flows.Logout(c.UserContext(), identity.Session); err != nil {
		return a.ErrorHandler(c, err)
	}

	a.clearSessionCookie(c)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": "Logged out successfully",
	})
}

func (a *AuthController) LogoutAllPost(c *fiber.Ctx) error {
	identity, ok := GetIdentity(c)
	if !ok {
		return a.ErrorHandler(c, ErrNoToken)
	}

	resp, err := a.Flows.LogoutAll(c.UserContext(), identity.Session)
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	a.clearSessionCookie(c)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success":  true,
		"message":  "Logged out successfully",
		"sessions": resp.RevokedSessions,
	})
}

func (a *AuthController) setSessionCookie(c *fiber.Ctx, grant *SessionGrant) {
	if grant == nil {
		return
	}
	cfg := a.Flows.Config()
	maxAge := int(time.Until(grant.ExpiresAt).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	c.Cookie(&fiber.Cookie{
		Name:     cfg.GetCookieName(),
		Value:    grant.Token,
		Path:     "/",
		Expires:  grant.ExpiresAt,
		MaxAge:   maxAge,
		HTTPOnly: true,
		Secure:   cfg.GetCookieSecure(),
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

func (a *AuthController) clearSessionCookie(c *fiber.Ctx) {
	c.ClearCookie(a.Flows.Config().GetCookieName())
}
