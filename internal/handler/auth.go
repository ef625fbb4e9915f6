package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/inkwell/internal/apperror"
	"github.com/sakif/inkwell/internal/auth"
	"github.com/sakif/inkwell/internal/service"
)

// AuthHandler fronts the identity provider and the session cookie.
//
// HANDLER RESPONSIBILITIES:
//   - HandleSignUp / HandleSignIn → password flow against the provider, cookie issued
//   - HandleSignOut               → clear the cookie, revoke the provider token
//   - HandleMe                    → the resolved caller plus their profile
type AuthHandler struct {
	auth   *service.AuthService
	users  *service.UserService
	logger *slog.Logger
}

// NewAuthHandler takes the user service too, so sign-in can return the
// local profile alongside the provider session.
func NewAuthHandler(authSvc *service.AuthService, users *service.UserService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: authSvc, users: users, logger: logger}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleSignUp registers an identity. When the provider requires email
// confirmation the response has no accessToken and no cookie is set.
//
// HTTP: POST /auth/signup
func (h *AuthHandler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	h.passwordFlow(w, r, http.StatusCreated, h.auth.SignUp)
}

// HandleSignIn exchanges credentials for a session.
//
// HTTP: POST /auth/signin
func (h *AuthHandler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	h.passwordFlow(w, r, http.StatusOK, h.auth.SignIn)
}

// passwordCall is the shape shared by AuthService.SignUp and SignIn.
type passwordCall func(ctx context.Context, email, password string) (*service.AuthResult, error)

// passwordFlow decodes credentials, runs call and answers with
//
//	{"success": true, "user": {...}, "accessToken": "...", "profile": {...} | null}
//
// The cookie is only set when the service minted a session token.
func (h *AuthHandler) passwordFlow(w http.ResponseWriter, r *http.Request, status int, call passwordCall) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := call(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if res.SessionToken != "" {
		auth.SetSessionCookie(w, r, res.SessionToken, h.auth.SessionTTL())
	}
	writeJSON(w, status, map[string]any{
		"success":     true,
		"user":        res.User,
		"accessToken": res.AccessToken,
		"profile":     res.Profile,
	})
}

// HandleSignOut always clears the local cookie; the provider token is
// revoked best-effort.
//
// HTTP: POST /auth/signout
func (h *AuthHandler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	token := auth.BearerToken(r)
	if caller := callerOf(r); caller != nil && caller.AccessToken != "" {
		token = caller.AccessToken
	}
	h.auth.SignOut(r.Context(), token)

	auth.ClearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type meResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// HandleMe returns the resolved caller and their profile (null when they
// have not created one).
//
// HTTP: GET /api/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	caller := callerOf(r)
	if caller == nil {
		writeError(w, h.logger, apperror.Unauthorized("Unauthorized"))
		return
	}

	profile, err := h.users.Profile(r.Context(), caller)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":    meResponse{ID: caller.ExternalID, Email: caller.Email},
		"profile": profile,
	})
}
