package auth

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-repository-bun"
)

// Gate outcomes reported to a GateObserver
const (
	GateAllowed        = "allowed"
	GateNoToken        = "no_token"
	GateInvalidToken   = "invalid_token"
	GateInvalidSession = "invalid_session"
	GateNotLoggedIn    = "not_logged_in"
	GateError          = "error"
)

// GateObserver is notified of every strict gate decision
type GateObserver func(outcome string)

// SessionGate authenticates requests from the session cookie
type SessionGate struct {
	tokens   TokenService
	repo     RepositoryManager
	cfg      Config
	logger   Logger
	now      func() time.Time
	observer GateObserver

	ErrorHandler func(c *fiber.Ctx, err error) error
}

type SessionGateOption func(*SessionGate)

func WithGateLogger(logger Logger) SessionGateOption {
	return func(g *SessionGate) {
		g.logger = normalizeLogger(logger)
	}
}

func WithGateClock(clock func() time.Time) SessionGateOption {
	return func(g *SessionGate) {
		if clock != nil {
			g.now = clock
		}
	}
}

func WithGateObserver(observer GateObserver) SessionGateOption {
	return func(g *SessionGate) {
		g.observer = observer
	}
}

func NewSessionGate(tokens TokenService, repo RepositoryManager, cfg Config, opts ...SessionGateOption) *SessionGate {
	g := &SessionGate{
		tokens: tokens,
		repo:   repo,
		cfg:    cfg,
		logger: defLogger{},
		now:    time.Now,
	}
	g.ErrorHandler = gateErrorHandler

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Authenticate resolves the identity behind a session token. Anything
// short of a valid token, a live session record and a logged in account
// fails with ErrNoToken or ErrInvalidToken; store faults are internal.
func (g *SessionGate) Authenticate(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		g.observe(GateNoToken)
		return nil, ErrNoToken
	}

	claims, err := g.tokens.Verify(token)
	if err != nil {
		g.observe(GateInvalidToken)
		return nil, err
	}

	accountID, err := claims.AccountID()
	if err != nil {
		g.observe(GateInvalidToken)
		return nil, ErrInvalidToken
	}

	sessionID, err := claims.SessionID()
	if err != nil {
		g.observe(GateInvalidToken)
		return nil, ErrInvalidToken
	}

	account, err := g.repo.Accounts().GetByID(ctx, accountID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			g.observe(GateInvalidToken)
			return nil, ErrInvalidToken
		}
		g.observe(GateError)
		return nil, internalFault(err, "failed to resolve account")
	}

	session, err := g.repo.Sessions().GetByID(ctx, sessionID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			g.observe(GateInvalidSession)
			return nil, ErrInvalidToken
		}
		g.observe(GateError)
		return nil, internalFault(err, "failed to resolve session")
	}

	if session.AccountID != account.ID || !session.Active(g.now().UTC()) {
		g.observe(GateInvalidSession)
		return nil, ErrInvalidToken
	}

	if !account.IsLoggedIn {
		g.observe(GateNotLoggedIn)
		return nil, ErrInvalidToken
	}

	g.observe(GateAllowed)
	return &Identity{Account: account, Session: session}, nil
}

// Strict only lets through requests of logged in accounts
func (g *SessionGate) Strict() fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, err := g.Authenticate(c.UserContext(), c.Cookies(g.cfg.GetCookieName()))
		if err != nil {
			if StatusCode(err) >= fiber.StatusInternalServerError {
				g.logger.Error("session gate: %v", err)
			} else {
				g.logger.Debug("session gate rejected %s: %v", c.Path(), err)
			}
			return g.ErrorHandler(c, err)
		}
		setIdentity(c, identity)
		return c.Next()
	}
}

// RedirectIfAuthenticated sends logged in accounts to target, everyone
// else passes through
func (g *SessionGate) RedirectIfAuthenticated(target string) fiber.Handler {
	if target == "" {
		target = g.cfg.GetAuthenticatedRedirect()
	}
	return func(c *fiber.Ctx) error {
		token := c.Cookies(g.cfg.GetCookieName())
		if token == "" {
			return c.Next()
		}
		if _, err := g.Authenticate(c.UserContext(), token); err != nil {
			return c.Next()
		}
		return c.Redirect(target, fiber.StatusFound)
	}
}

func (g *SessionGate) observe(outcome string) {
	if g.observer != nil {
		g.observer(outcome)
	}
}

func gateErrorHandler(c *fiber.Ctx, err error) error {
	status := StatusCode(err)
	message := "Server error"
	if status < fiber.StatusInternalServerError {
		message = errorMessage(err)
	}
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}
