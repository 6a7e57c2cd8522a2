package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// devSecret is the fallback signing secret used when PLUGMART_JWT_SECRET is
// unset. It exists so the server can run out of the box in development and
// MUST be overridden in any real deployment.
const devSecret = "plugmart-dev-secret-do-not-use-in-production"

// Token verification errors. ErrTokenExpired and ErrTokenInvalid are distinct
// so callers can shape user-facing messages; the authorization guard treats
// both as forbidden.
var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")
)

// AccountKind identifies which account table a token subject belongs to.
type AccountKind string

const (
	AccountKindAdmin    AccountKind = "admin"
	AccountKindCustomer AccountKind = "customer"
)

// Claims represents the signed identity carried by a session token.
type Claims struct {
	jwt.RegisteredClaims
	AccountID int64       `json:"id"`
	Username  string      `json:"username,omitempty"`
	Email     string      `json:"email,omitempty"`
	Kind      AccountKind `json:"kind"`
}

// TokenService issues and verifies HMAC-signed session tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService signing with the given secret for
// tokens valid for ttl. An empty secret falls back to the development default
// and logs a warning.
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if secret == "" {
		slog.Warn("PLUGMART_JWT_SECRET not set, using development signing secret")
		secret = devSecret
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}
}

// Issue creates a signed token for the given subject, expiring after the
// configured TTL.
func (s *TokenService) Issue(accountID int64, username, email string, kind AccountKind) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "plugmart",
			Subject:   fmt.Sprintf("%d", accountID),
		},
		AccountID: accountID,
		Username:  username,
		Email:     email,
		Kind:      kind,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning its claims. Expired tokens
// return ErrTokenExpired; any other failure returns ErrTokenInvalid.
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
