// Package config loads the service settings from the environment, with
// an optional .env file layered underneath.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/joho/godotenv"

	auth "github.com/goliatone/go-exam-auth"
	"github.com/goliatone/go-exam-auth/captcha"
)

const (
	DefaultPort        = 5000
	DefaultClientURL   = "http://localhost:5000"
	DefaultDatabaseURL = "file:exam.db?cache=shared"
	DefaultCookieName  = "token"
	DefaultRedirect    = "/dashboard"
	DefaultLogLevel    = "info"
)

// Config holds runtime settings. It implements auth.Config.
type Config struct {
	SigningKey        string
	TokenExpiration   time.Duration
	CookieName        string
	CookieSecure      bool
	ClientURL         string
	PhoneRegion       string
	AuthRedirect      string
	Port              int
	DatabaseURL       string
	RedisURL          string
	CaptchaSecret     string
	CaptchaSiteKey    string
	CaptchaVerifyURL  string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
	MailFrom          string
	RateLimitMax      int
	RateLimitWindow   time.Duration
	LogLevel          string
	Debug             bool
	AllowedOrigins    []string
	SeedQuestionsOnUp bool
}

var _ auth.Config = (*Config)(nil)

// LoadDefaults populates Config with development defaults
func (c *Config) LoadDefaults() {
	c.TokenExpiration = auth.DefaultTokenExpiration
	c.CookieName = DefaultCookieName
	c.ClientURL = DefaultClientURL
	c.PhoneRegion = auth.DefaultPhoneRegion
	c.AuthRedirect = DefaultRedirect
	c.Port = DefaultPort
	c.DatabaseURL = DefaultDatabaseURL
	c.CaptchaVerifyURL = captcha.DefaultVerifyURL
	c.SMTPPort = 587
	c.MailFrom = "no-reply@localhost"
	c.RateLimitMax = 100
	c.RateLimitWindow = 15 * time.Minute
	c.LogLevel = DefaultLogLevel
	c.SeedQuestionsOnUp = true
}

// Load reads .env files (missing ones are ignored) and then the process
// environment over the defaults
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "failed to read env file").
					WithMetadata(map[string]any{"file": f})
			}
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	var errs []error
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, goerrors.Wrap(err, goerrors.CategoryValidation, key+" must be an integer"))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, goerrors.Wrap(err, goerrors.CategoryValidation, key+" must be a duration"))
				return
			}
			*dst = d
		}
	}
	flag := func(key string, dst *bool) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, goerrors.Wrap(err, goerrors.CategoryValidation, key+" must be a boolean"))
				return
			}
			*dst = b
		}
	}

	str("YOUR_SECRET_KEY", &cfg.SigningKey)
	dur("TOKEN_EXPIRATION", &cfg.TokenExpiration)
	str("COOKIE_NAME", &cfg.CookieName)
	flag("COOKIE_SECURE", &cfg.CookieSecure)
	str("CLIENT_URL", &cfg.ClientURL)
	str("PHONE_REGION", &cfg.PhoneRegion)
	str("AUTH_REDIRECT", &cfg.AuthRedirect)
	num("PORT", &cfg.Port)
	str("DATABASE_URL", &cfg.DatabaseURL)
	str("REDIS_URL", &cfg.RedisURL)
	str("SECRET_KEY_CAPTCHA", &cfg.CaptchaSecret)
	str("SITE_KEY_CAPTCHA", &cfg.CaptchaSiteKey)
	str("CAPTCHA_VERIFY_URL", &cfg.CaptchaVerifyURL)
	str("SMTP_HOST", &cfg.SMTPHost)
	num("SMTP_PORT", &cfg.SMTPPort)
	str("SMTP_USERNAME", &cfg.SMTPUsername)
	str("SMTP_PASSWORD", &cfg.SMTPPassword)
	str("MAIL_FROM", &cfg.MailFrom)
	num("RATE_LIMIT_MAX", &cfg.RateLimitMax)
	dur("RATE_LIMIT_WINDOW", &cfg.RateLimitWindow)
	str("LOG_LEVEL", &cfg.LogLevel)
	flag("DEBUG", &cfg.Debug)
	flag("SEED_QUESTIONS", &cfg.SeedQuestionsOnUp)

	if v := strings.TrimSpace(getenv("ALLOWED_ORIGINS")); v != "" {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	if len(errs) > 0 {
		return nil, errs[0]
	}

	if err := cfg.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid configuration")
	}

	return cfg, nil
}

// Validate will run validation rules
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.SigningKey, validation.Required),
		validation.Field(&c.TokenExpiration, validation.Required),
		validation.Field(&c.CookieName, validation.Required),
		validation.Field(&c.ClientURL, validation.Required),
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.DatabaseURL, validation.Required),
		validation.Field(&c.RateLimitMax, validation.Min(1)),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
	)
}

func (c Config) GetSigningKey() string {
	return c.SigningKey
}

func (c Config) GetTokenExpiration() time.Duration {
	return c.TokenExpiration
}

func (c Config) GetCookieName() string {
	return c.CookieName
}

func (c Config) GetCookieSecure() bool {
	return c.CookieSecure
}

func (c Config) GetClientURL() string {
	return c.ClientURL
}

func (c Config) GetPhoneRegion() string {
	return c.PhoneRegion
}

func (c Config) GetAuthenticatedRedirect() string {
	return c.AuthRedirect
}

// CaptchaEnabled reports whether a captcha secret is configured
func (c Config) CaptchaEnabled() bool {
	return c.CaptchaSecret != ""
}

// SMTPEnabled reports whether mail goes through an SMTP relay
func (c Config) SMTPEnabled() bool {
	return c.SMTPHost != ""
}
