// Package captcha verifies reCAPTCHA responses against the provider's
// siteverify endpoint.
package captcha

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"

	auth "github.com/goliatone/go-exam-auth"
)

// DefaultVerifyURL is Google's reCAPTCHA siteverify endpoint
const DefaultVerifyURL = "https://www.google.com/recaptcha/api/siteverify"

type verifyResponse struct {
	Success    bool     `json:"success"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

// Client implements auth.CaptchaVerifier
type Client struct {
	secret  string
	url     string
	timeout time.Duration
	logger  auth.Logger
}

var _ auth.CaptchaVerifier = (*Client)(nil)

type Option func(*Client)

func WithVerifyURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.url = url
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithLogger(logger auth.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func New(secret string, opts ...Option) *Client {
	c := &Client{
		secret:  secret,
		url:     DefaultVerifyURL,
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Verify reports whether the provider accepted response. An empty
// response is rejected without a round trip.
func (c *Client) Verify(ctx context.Context, response, remoteIP string) (bool, error) {
	if response == "" {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}

	args := fiber.AcquireArgs()
	defer fiber.ReleaseArgs(args)
	args.Set("secret", c.secret)
	args.Set("response", response)
	if remoteIP != "" {
		args.Set("remoteip", remoteIP)
	}

	agent := fiber.Post(c.url).Form(args).Timeout(timeout)

	out := verifyResponse{}
	code, _, errs := agent.Struct(&out)
	if len(errs) > 0 {
		return false, goerrors.Wrap(errors.Join(errs...), goerrors.CategoryOperation, "captcha provider request failed")
	}
	if code != fiber.StatusOK {
		return false, goerrors.New("captcha provider returned an unexpected status", goerrors.CategoryOperation).
			WithMetadata(map[string]any{"status": code})
	}

	if !out.Success && c.logger != nil {
		c.logger.Debug("captcha rejected: %v", out.ErrorCodes)
	}

	return out.Success, nil
}
