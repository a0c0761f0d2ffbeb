// Package ratelimit throttles the public auth pages and endpoints per
// client IP with fiber's limiter over a pluggable storage.
package ratelimit

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	auth "github.com/goliatone/go-exam-auth"
)

const (
	DefaultMax    = 100
	DefaultWindow = 15 * time.Minute
)

// Config of the limiter middleware
type Config struct {
	Max     int
	Window  time.Duration
	Storage fiber.Storage
	// OnLimit is called with the client key of every rejected request
	OnLimit func(key string)
}

// New returns a fixed window limiter responding 429 over the limit
func New(cfg Config) fiber.Handler {
	if cfg.Max <= 0 {
		cfg.Max = DefaultMax
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}

	keyGenerator := func(c *fiber.Ctx) string {
		return c.IP()
	}

	return limiter.New(limiter.Config{
		Max:          cfg.Max,
		Expiration:   cfg.Window,
		KeyGenerator: keyGenerator,
		Storage:      cfg.Storage,
		LimitReached: func(c *fiber.Ctx) error {
			if cfg.OnLimit != nil {
				cfg.OnLimit(keyGenerator(c))
			}
			return c.Status(auth.StatusCode(auth.ErrTooManyRequests)).JSON(fiber.Map{
				"status":  fiber.StatusInternalServerError,
				"message": auth.ErrTooManyRequests.Message,
			})
		},
		LimiterMiddleware: limiter.FixedWindow{},
	})
}
