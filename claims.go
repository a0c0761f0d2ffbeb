package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionClaims is the payload of a session token
type SessionClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
}

// AccountID returns the account the token was issued for
func (c *SessionClaims) AccountID() (uuid.UUID, error) {
	id := c.UserID
	if id == "" {
		id = c.Subject
	}
	return uuid.Parse(id)
}

// SessionID returns the session record backing the token
func (c *SessionClaims) SessionID() (uuid.UUID, error) {
	return uuid.Parse(c.ID)
}

// Expires returns the expiration time of the token
func (c *SessionClaims) Expires() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}
