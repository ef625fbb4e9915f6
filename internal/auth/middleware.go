package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sakif/inkwell/internal/identity"
)

// CookieName is the session cookie set at sign-in.
const CookieName = "token"

// Caller is the identity behind a request.
type Caller struct {
	ExternalID string
	Email      string
	// AccessToken is the provider token when the caller arrived with a
	// bearer header, empty for cookie sessions.
	AccessToken string
}

type contextKey string

const callerKey contextKey = "caller"

// WithCaller returns a copy of ctx carrying c.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey, c)
}

// CallerFromContext returns the caller stored by OptionalAuth.
// Returns (Caller{}, false) if the request is anonymous.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey).(Caller)
	return c, ok && c.ExternalID != ""
}

// UserLookup resolves a provider access token. A nil user with a nil
// error means the token belongs to nobody.
type UserLookup interface {
	GetUser(ctx context.Context, accessToken string) (*identity.User, error)
}

// Resolver works out who is calling. Either dependency may be nil, which
// disables that credential.
type Resolver struct {
	tokens *TokenService
	users  UserLookup
	logger *slog.Logger
}

// NewResolver wires the two credential sources. main passes a nil tokens
// when SESSION_SECRET is unset, leaving bearer tokens as the only way in.
func NewResolver(tokens *TokenService, users UserLookup, logger *slog.Logger) *Resolver {
	return &Resolver{tokens: tokens, users: users, logger: logger}
}

// CurrentUser returns the request's caller: the session cookie first, then a
// provider bearer token. Lookup failures are logged and yield no caller.
func (res *Resolver) CurrentUser(r *http.Request) (Caller, bool) {
	if res.tokens != nil {
		if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
			c, err := res.tokens.Validate(cookie.Value)
			if err == nil {
				return c, true
			}
			res.logger.Debug("ignoring session cookie", slog.String("error", err.Error()))
		}
	}

	token := BearerToken(r)
	if token == "" || res.users == nil {
		return Caller{}, false
	}
	u, err := res.users.GetUser(r.Context(), token)
	if err != nil {
		res.logger.Warn("identity lookup failed", slog.String("error", err.Error()))
		return Caller{}, false
	}
	if u == nil || u.ID == "" {
		return Caller{}, false
	}
	return Caller{ExternalID: u.ID, Email: u.Email, AccessToken: token}, true
}

// OptionalAuth stores the caller, if any, in the request context. It never
// rejects a request.
func (res *Resolver) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, ok := res.CurrentUser(r); ok {
			r = r.WithContext(WithCaller(r.Context(), c))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth rejects requests without a caller with 401 before the wrapped
// handler runs. It expects OptionalAuth earlier in the chain.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CallerFromContext(r.Context()); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"Unauthorized","code":"unauthorized"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// BearerToken returns the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// SetSessionCookie stores a session token in the HttpOnly cookie.
func SetSessionCookie(w http.ResponseWriter, r *http.Request, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
