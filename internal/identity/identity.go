// Package identity talks to the external identity provider (Supabase GoTrue).
//
// The service never sees passwords beyond forwarding them here; sessions are
// the provider's access tokens, carried as *oauth2.Token.
//
// ENDPOINTS USED:
//
//	POST /auth/v1/signup                     email + password, may return a session
//	POST /auth/v1/token?grant_type=password  email + password, returns a session
//	POST /auth/v1/logout                     bearer, revokes the session
//	GET  /auth/v1/user                       bearer, returns the account
//
// Every request carries the project's anon key in the apikey header.
// Bearer requests go through an oauth2 static token source, which sets
// the Authorization header.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// ErrNotConfigured is returned by every call when the provider URL or key
// is missing.
var ErrNotConfigured = errors.New("identity provider not configured")

// ProviderError is an error response from the provider, passed through
// unchanged.
type ProviderError struct {
	Status  int
	Message string
}

// Error returns the provider's own message so clients see it verbatim.
func (e *ProviderError) Error() string {
	return e.Message
}

// User is the provider's account record.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Session is a signed-in user. Token is nil when the provider created the
// account but did not start a session (email confirmation pending).
type Session struct {
	User  *User
	Token *oauth2.Token
}

// Client calls the GoTrue REST API. It holds no session state, so one
// Client is shared by every request.
type Client struct {
	baseURL string
	anonKey string
	http    *http.Client
}

// New creates a client for the provider at baseURL. A nil httpClient uses
// http.DefaultClient, which sets no timeout; calls end when their context
// does.
func New(baseURL, anonKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		http:    httpClient,
	}
}

// Configured reports whether the client has somewhere to send requests.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != "" && c.anonKey != ""
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUp registers a new account. The returned Session has a nil Token when
// the provider wants the email confirmed first.
func (c *Client) SignUp(ctx context.Context, email, password string) (*Session, error) {
	return c.passwordFlow(ctx, "/auth/v1/signup", email, password)
}

// SignIn runs the password grant. A rejected login comes back as a
// *ProviderError carrying the provider's status.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	return c.passwordFlow(ctx, "/auth/v1/token?grant_type=password", email, password)
}

// SignOut revokes the session behind accessToken.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/v1/logout", nil)
	if err != nil {
		return err
	}
	resp, err := c.bearerClient(ctx, accessToken).Do(req)
	if err != nil {
		return fmt.Errorf("identity: signing out: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return readProviderError(resp)
	}
	return nil
}

// GetUser resolves an access token to its user. A token the provider
// rejects yields (nil, nil).
func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/auth/v1/user", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.bearerClient(ctx, accessToken).Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity: getting user: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, nil
	case resp.StatusCode >= 300:
		return nil, readProviderError(resp)
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("identity: decoding user: %w", err)
	}
	return &user, nil
}

// sessionResponse covers both shapes the provider answers password flows
// with: a full session, or a bare user when no session was started.
type sessionResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         *User  `json:"user"`
}

func (s sessionResponse) token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  s.AccessToken,
		TokenType:    s.TokenType,
		RefreshToken: s.RefreshToken,
	}
	switch {
	case s.ExpiresAt > 0:
		tok.Expiry = time.Unix(s.ExpiresAt, 0)
	case s.ExpiresIn > 0:
		tok.Expiry = time.Now().Add(time.Duration(s.ExpiresIn) * time.Second)
	}
	return tok
}

func (c *Client) passwordFlow(ctx context.Context, path, email, password string) (*Session, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	body, err := json.Marshal(credentials{Email: email, Password: password})
	if err != nil {
		return nil, fmt.Errorf("identity: encoding credentials: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity: calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, readProviderError(resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("identity: reading response: %w", err)
	}
	var sr sessionResponse
	if err := json.Unmarshal(raw, &sr); err != nil {
		return nil, fmt.Errorf("identity: decoding session: %w", err)
	}

	// No access token: the provider answered with the bare user object.
	if sr.AccessToken == "" {
		var user User
		if err := json.Unmarshal(raw, &user); err != nil {
			return nil, fmt.Errorf("identity: decoding user: %w", err)
		}
		return &Session{User: &user}, nil
	}
	return &Session{User: sr.User, Token: sr.token()}, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("identity: building request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// bearerClient wraps c.http so every request carries accessToken.
func (c *Client) bearerClient(ctx context.Context, accessToken string) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
}

// providerErrorBody lists the fields GoTrue versions have used for the
// error text.
type providerErrorBody struct {
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	ErrorDescription string `json:"error_description"`
	Error            string `json:"error"`
}

func readProviderError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var body providerErrorBody
	msg := ""
	if json.Unmarshal(raw, &body) == nil {
		for _, m := range []string{body.Msg, body.Message, body.ErrorDescription, body.Error} {
			if m != "" {
				msg = m
				break
			}
		}
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &ProviderError{Status: resp.StatusCode, Message: msg}
}
