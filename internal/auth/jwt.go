// Package auth issues session tokens and resolves the caller of a request.
//
// A caller is identified by the identity provider's user ID (the external
// ID stored on model.User). Two credentials are accepted:
//
//  1. the "token" HttpOnly cookie, a JWT signed by this server at sign-in
//  2. an "Authorization: Bearer <access token>" header carrying a provider
//     access token, checked against the provider on every request
//
// The cookie is tried first. Neither being present is not an error; the
// request just has no caller.
//
// JWT STRUCTURE:
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Payload: {"sub":"<external id>","email":"...","iss":"inkwell","exp":...}
//	- Signature: HMAC-SHA256(header+"."+payload, secret)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "inkwell"

// TokenService handles session JWT creation and validation.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService that signs tokens valid for ttl.
// Example: SESSION_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: session secret must be at least 16 characters")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: session lifetime must be positive")
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// TTL is the lifetime of tokens minted by Generate.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// claims is the JWT payload. Subject holds the external ID.
type claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Generate signs a session token for the caller.
func (s *TokenService) Generate(c Caller) (string, error) {
	return s.GenerateWithDuration(c, s.ttl)
}

// GenerateWithDuration signs a token with a custom expiry.
func (s *TokenService) GenerateWithDuration(c Caller, d time.Duration) (string, error) {
	if c.ExternalID == "" {
		return "", errors.New("auth: caller has no external ID")
	}
	now := time.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: c.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.ExternalID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a session token and returns its caller.
//
// Checks: HS256 signature, not expired, issuer "inkwell", non-empty subject.
func (s *TokenService) Validate(tokenStr string) (Caller, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Caller{}, fmt.Errorf("auth: token expired")
		}
		return Caller{}, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return Caller{}, fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return Caller{}, fmt.Errorf("auth: token has no subject")
	}
	return Caller{ExternalID: c.Subject, Email: c.Email}, nil
}
