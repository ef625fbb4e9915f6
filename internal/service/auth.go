package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/inkwell/internal/apperror"
	"github.com/sakif/inkwell/internal/auth"
	"github.com/sakif/inkwell/internal/identity"
	"github.com/sakif/inkwell/internal/model"
	"github.com/sakif/inkwell/internal/repository"
)

// IdentityProvider is the part of the identity client the auth flow needs.
type IdentityProvider interface {
	SignUp(ctx context.Context, email, password string) (*identity.Session, error)
	SignIn(ctx context.Context, email, password string) (*identity.Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

// AuthService handles sign-up, sign-in and sign-out against the identity
// provider and mints the session cookie token.
//
//	AuthHandler (HTTP) → AuthService → IdentityProvider (GoTrue)
//	                                 ↘ TokenService (JWT)
//	                                 ↘ UserRepository (profile lookup)
type AuthService struct {
	provider IdentityProvider
	users    repository.UserRepository
	tokens   *auth.TokenService
	logger   *slog.Logger
}

// NewAuthService wires the auth flow. A nil tokens disables session cookies;
// callers then authenticate with the provider access token.
func NewAuthService(provider IdentityProvider, users repository.UserRepository, tokens *auth.TokenService, logger *slog.Logger) *AuthService {
	return &AuthService{provider: provider, users: users, tokens: tokens, logger: logger}
}

// AuthResult bundles what the handler needs to answer a sign-in.
type AuthResult struct {
	User *identity.User
	// AccessToken is the provider token; empty when sign-up is waiting on
	// email confirmation.
	AccessToken string
	// SessionToken is the cookie JWT; empty when sessions are disabled or
	// there is no provider session.
	SessionToken string
	// Profile is the local profile, if one exists.
	Profile *model.User
}

// SignUp creates the provider account. When the provider answers with a
// session, the result carries the session JWT as well.
func (s *AuthService) SignUp(ctx context.Context, email, password string) (*AuthResult, error) {
	return s.passwordFlow(ctx, "sign-up", email, password, s.provider.SignUp)
}

// SignIn runs the password grant and attaches the local profile, if any.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*AuthResult, error) {
	return s.passwordFlow(ctx, "sign-in", email, password, s.provider.SignIn)
}

// SignOut revokes the provider session when a bearer token is known.
// Provider failures are logged; the local session is always cleared by the
// handler.
func (s *AuthService) SignOut(ctx context.Context, accessToken string) {
	if accessToken == "" {
		return
	}
	if err := s.provider.SignOut(ctx, accessToken); err != nil {
		s.logger.Warn("provider sign-out failed", slog.String("error", err.Error()))
	}
}

// SessionTTL is the cookie lifetime, zero when sessions are disabled.
func (s *AuthService) SessionTTL() time.Duration {
	if s.tokens == nil {
		return 0
	}
	return s.tokens.TTL()
}

type passwordCall func(ctx context.Context, email, password string) (*identity.Session, error)

func (s *AuthService) passwordFlow(ctx context.Context, op, email, password string, call passwordCall) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if field := firstMissing("email", email, "password", password); field != "" {
		return nil, apperror.ValidationFailed(field, "Email and password are required")
	}

	session, err := call(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if session.User == nil {
		return nil, fmt.Errorf("%s: provider returned no user", op)
	}

	res := &AuthResult{User: session.User}
	if session.Token != nil {
		res.AccessToken = session.Token.AccessToken
		if s.tokens != nil {
			res.SessionToken, err = s.tokens.Generate(auth.Caller{
				ExternalID: session.User.ID,
				Email:      session.User.Email,
			})
			if err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
		}
	}

	res.Profile, err = profileOf(ctx, s.users, &auth.Caller{ExternalID: session.User.ID})
	if err != nil {
		return nil, err
	}

	s.logger.Info("identity "+op,
		slog.String("supabaseId", session.User.ID),
		slog.Bool("session", res.AccessToken != ""),
	)
	return res, nil
}
