package recordstore

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/dgrijalva/jwt-go"
	pkgerrors "github.com/pkg/errors"
)

// nowFunc is mockable for tests.
var nowFunc = time.Now

// AuthContext holds the bearer credential and its expiry. It is passed to the
// client by constructor injection; the onExpired callback fires when the
// server rejects the credential or its expiry passes, so the owner can
// redirect the operator to re-authentication.
type AuthContext struct {
	mu        sync.RWMutex
	token     string
	expiresAt time.Time
	onExpired func()
}

func NewAuthContext(token string, onExpired func()) *AuthContext {
	a := &AuthContext{onExpired: onExpired}
	if token != "" {
		a.SetToken(token)
	}
	return a
}

// SetToken stores the credential and derives its expiry from the JWT exp
// claim when present. The signature is not verified here; only the server
// can vouch for it.
func (a *AuthContext) SetToken(token string) {
	var expiresAt time.Time
	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err == nil {
		if exp, ok := claims["exp"].(float64); ok {
			expiresAt = time.Unix(int64(exp), 0)
		}
	}

	a.mu.Lock()
	a.token = token
	a.expiresAt = expiresAt
	a.mu.Unlock()
}

// Token returns the current credential, or "" when expired or unset.
func (a *AuthContext) Token() string {
	a.mu.RLock()
	token, expiresAt := a.token, a.expiresAt
	a.mu.RUnlock()
	if token != "" && !expiresAt.IsZero() && nowFunc().After(expiresAt) {
		a.expire()
		return ""
	}
	return token
}

// Expired reports whether no usable credential is held.
func (a *AuthContext) Expired() bool {
	return a.Token() == ""
}

func (a *AuthContext) expire() {
	a.mu.Lock()
	hadToken := a.token != ""
	a.token = ""
	a.expiresAt = time.Time{}
	cb := a.onExpired
	a.mu.Unlock()
	if hadToken && cb != nil {
		cb()
	}
}

// Login exchanges credentials for a bearer token and stores it in the
// client's AuthContext.
func (c *Client) Login(ctx context.Context, username, password string) error {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := c.doJSON(ctx, "POST", "/api/token", nil, form, &resp); err != nil {
		return pkgerrors.Wrap(err, "logging in")
	}
	c.auth.SetToken(resp.AccessToken)
	return nil
}
