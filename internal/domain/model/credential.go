package model

import (
	"fmt"
	"log/slog"
	"math"
	"time"
)

// DefaultTokenLifetime is applied when the provider omits expires_in on a
// long-lived token grant or refresh.
const DefaultTokenLifetime = 5184000 * time.Second

// RefreshWindowDays is how close to expiry a token must be before a
// non-forced refresh contacts the provider.
const RefreshWindowDays = 7

// Credential is the process-wide Instagram connection state. A zero
// time.Time means the timestamp is absent.
type Credential struct {
	AppID          string
	AppSecret      string
	AccessToken    string
	TokenExpiresAt time.Time
	LastRefreshAt  time.Time
	Username       string
}

// HasToken reports whether an access token is present.
func (c Credential) HasToken() bool {
	return c.AccessToken != ""
}

// HasValidCredentials returns true when both an access token and an app id
// are configured. It says nothing about expiry.
func (c Credential) HasValidCredentials() bool {
	return c.HasToken() && c.AppID != ""
}

// IsExpired reports whether the token is absent or past its expiry at now.
func (c Credential) IsExpired(now time.Time) bool {
	if c.TokenExpiresAt.IsZero() {
		return true
	}
	return !now.Before(c.TokenExpiresAt)
}

// DaysUntilExpiry returns the signed number of whole days from now until the
// token expires, rounded toward negative infinity: any already-expired token
// yields a negative value.
func (c Credential) DaysUntilExpiry(now time.Time) int {
	d := c.TokenExpiresAt.Sub(now)
	return int(math.Floor(d.Hours() / 24))
}

// State classifies the credential. PENDING_CALLBACK is not derivable from the
// credential alone; see application.OAuthService.Status.
func (c Credential) State(now time.Time) TokenState {
	if !c.HasToken() || c.TokenExpiresAt.IsZero() {
		return TokenStateUnauthorized
	}
	if c.IsExpired(now) {
		return TokenStateExpired
	}
	if c.DaysUntilExpiry(now) <= RefreshWindowDays {
		return TokenStateExpiringSoon
	}
	return TokenStateAuthorized
}

// WithGrant returns a copy of c holding the granted token. expires_at is
// computed from now, falling back to DefaultTokenLifetime.
func (c Credential) WithGrant(g TokenGrant, now time.Time) Credential {
	lifetime := g.ExpiresIn
	if lifetime <= 0 {
		lifetime = DefaultTokenLifetime
	}
	c.AccessToken = g.AccessToken
	c.TokenExpiresAt = now.Add(lifetime).UTC()
	c.LastRefreshAt = now.UTC()
	return c
}

// Disconnected returns a copy of c with every token field reset. The app id
// and secret are operator settings and survive a disconnect.
func (c Credential) Disconnected() Credential {
	c.AccessToken = ""
	c.TokenExpiresAt = time.Time{}
	c.LastRefreshAt = time.Time{}
	c.Username = ""
	return c
}

// String never includes the secret or the token.
func (c Credential) String() string {
	return fmt.Sprintf("Credential{app_id=%q username=%q has_token=%t expires_at=%s}",
		c.AppID, c.Username, c.HasToken(), c.TokenExpiresAt.Format(time.RFC3339))
}

// LogValue implements slog.LogValuer with secrets redacted.
func (c Credential) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("app_id", c.AppID),
		slog.String("username", c.Username),
		slog.Bool("has_token", c.HasToken()),
		slog.Time("token_expires_at", c.TokenExpiresAt),
	)
}

// TokenGrant is a token returned by any of the provider's token endpoints.
type TokenGrant struct {
	AccessToken string
	ExpiresIn   time.Duration // zero when the provider omitted expires_in
}

// Profile is the subset of the account profile the service uses.
type Profile struct {
	ID          string
	Username    string
	AccountType string
	MediaCount  int
}
