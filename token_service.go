package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// DefaultTokenExpiration is the validity window of a session token
const DefaultTokenExpiration = 7 * 24 * time.Hour

// TokenService issues and verifies signed session tokens
type TokenService interface {
	Issue(accountID, sessionID uuid.UUID) (string, time.Time, error)
	Verify(token string) (*SessionClaims, error)
}

// TokenServiceOption customizes a token service
type TokenServiceOption func(*tokenService)

// WithTokenClock injects the clock used for iat/exp and validation
func WithTokenClock(clock func() time.Time) TokenServiceOption {
	return func(ts *tokenService) {
		if clock != nil {
			ts.now = clock
		}
	}
}

// WithTokenLogger sets the logger
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *tokenService) {
		ts.logger = normalizeLogger(logger)
	}
}

type tokenService struct {
	signingKey []byte
	expiration time.Duration
	now        func() time.Time
	logger     Logger
}

// NewTokenService creates a HS256 token service
func NewTokenService(signingKey []byte, expiration time.Duration, opts ...TokenServiceOption) TokenService {
	if expiration <= 0 {
		expiration = DefaultTokenExpiration
	}

	ts := &tokenService{
		signingKey: signingKey,
		expiration: expiration,
		now:        time.Now,
		logger:     defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	return ts
}

// Issue signs a token for the account, bound to the given session record
func (ts *tokenService) Issue(accountID, sessionID uuid.UUID) (string, time.Time, error) {
	now := ts.now()
	expiresAt := now.Add(ts.expiration)

	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID.String(),
			Subject:   accountID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID: accountID.String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", time.Time{}, internalFault(err, "failed to sign JWT")
	}

	return signed, expiresAt, nil
}

// Verify parses and validates a token string
func (ts *tokenService) Verify(tokenString string) (*SessionClaims, error) {
	if tokenString == "" {
		return nil, ErrNoToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("token service: unexpected signing method %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, jwt.WithTimeFunc(ts.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)

	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, goerrors.Wrap(err, ErrInvalidToken.Category, ErrInvalidToken.Message).
			WithTextCode(ErrInvalidToken.TextCode).
			WithCode(ErrInvalidToken.Code)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if _, err := claims.AccountID(); err != nil {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
