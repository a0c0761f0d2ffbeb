package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

var identityCtxKey = &contextKey{"identity"}

// IdentityLocalsKey is the fiber locals key the gate stores the identity under
const IdentityLocalsKey = "auth.identity"

type contextKey struct {
	name string
}

// Identity is what the session gate resolved for a request
type Identity struct {
	Account *Account
	Session *Session
}

// WithContext sets the Identity in the given context
func WithContext(r context.Context, identity *Identity) context.Context {
	return context.WithValue(r, identityCtxKey, identity)
}

// FromContext finds the identity from the context.
func FromContext(ctx context.Context) (*Identity, bool) {
	raw, ok := ctx.Value(identityCtxKey).(*Identity)
	return raw, ok && raw != nil
}

// GetIdentity extracts the identity stored by the strict gate
func GetIdentity(c *fiber.Ctx) (*Identity, bool) {
	raw := c.Locals(IdentityLocalsKey)
	if raw == nil {
		return nil, false
	}
	identity, ok := raw.(*Identity)
	return identity, ok && identity != nil
}

func setIdentity(c *fiber.Ctx, identity *Identity) {
	c.Locals(IdentityLocalsKey, identity)
	c.SetUserContext(WithContext(c.UserContext(), identity))
}
