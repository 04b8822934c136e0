// Package application contains use-case orchestration services.
package application

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/igmedia/internal/domain/model"
	"github.com/ericfisherdev/igmedia/internal/domain/port/driven"
)

const (
	stateBytes = 32
	// StateTTL bounds how long an issued state waits for its callback.
	StateTTL = 10 * time.Minute
)

// Callback carries the query parameters of the provider's redirect.
// SessionState is the state bound to the browser that started the flow; the
// callback is accepted only when it equals State.
type Callback struct {
	State            string
	SessionState     string
	Code             string
	Error            string
	ErrorReason      string
	ErrorDescription string
}

// AuthStatus is the operator-facing view of the credential. It never carries
// the app secret or the token.
type AuthStatus struct {
	State           model.TokenState `json:"state"`
	AppConfigured   bool             `json:"app_configured"`
	Username        string           `json:"username,omitempty"`
	ExpiresAt       *time.Time       `json:"expires_at,omitempty"`
	DaysUntilExpiry *int             `json:"days_until_expiry,omitempty"`
	LastRefreshAt   *time.Time       `json:"last_refresh_at,omitempty"`
}

// RefreshResult describes the outcome of a refresh attempt that did not fail.
type RefreshResult struct {
	Refreshed       bool      `json:"refreshed"`
	ExpiresAt       time.Time `json:"expires_at"`
	DaysUntilExpiry int       `json:"days_until_expiry"`
	Message         string    `json:"message"`
}

// OAuthService drives the authorization-code flow and the long-lived token
// lifecycle. Every failure leaves the persisted credential untouched.
type OAuthService struct {
	creds       driven.CredentialStore
	states      driven.StateStore
	client      driven.InstagramClient
	redirectURI string
	now         func() time.Time
}

// NewOAuthService creates an OAuthService. redirectURI is the fixed callback
// URL registered with the provider.
func NewOAuthService(
	creds driven.CredentialStore,
	states driven.StateStore,
	client driven.InstagramClient,
	redirectURI string,
) *OAuthService {
	return &OAuthService{
		creds:       creds,
		states:      states,
		client:      client,
		redirectURI: redirectURI,
		now:         time.Now,
	}
}

// SetClock replaces the time source.
func (s *OAuthService) SetClock(now func() time.Time) {
	s.now = now
}

// RedirectURI returns the callback URL sent to the provider.
func (s *OAuthService) RedirectURI() string {
	return s.redirectURI
}

// BeginAuthorization issues a fresh state value and returns the consent-screen
// URL the operator's browser should be sent to. The caller must bind state to
// that browser's session and hand it back as Callback.SessionState.
func (s *OAuthService) BeginAuthorization(ctx context.Context) (authURL, state string, err error) {
	appID, err := s.creds.Get(ctx, driven.SettingAppID)
	if err != nil {
		return "", "", fmt.Errorf("load app id: %w", err)
	}
	if appID == "" {
		return "", "", fmt.Errorf("%w: app id is not set", model.ErrConfiguration)
	}

	state, err = generateState()
	if err != nil {
		return "", "", err
	}
	if err := s.states.Put(ctx, state, s.now().Add(StateTTL)); err != nil {
		return "", "", fmt.Errorf("store state: %w", err)
	}

	slog.Info("authorization started", "app_id", appID)
	return s.client.AuthorizationURL(appID, s.redirectURI, state), state, nil
}

// CompleteAuthorization validates the callback, performs both token
// exchanges and persists the long-lived credential in one write.
func (s *OAuthService) CompleteAuthorization(ctx context.Context, cb Callback, redirectURI string) (AuthStatus, error) {
	if cb.State == "" {
		return AuthStatus{}, fmt.Errorf("%w: missing state", model.ErrCSRF)
	}
	if cb.SessionState == "" || subtle.ConstantTimeCompare([]byte(cb.State), []byte(cb.SessionState)) != 1 {
		return AuthStatus{}, fmt.Errorf("%w: state does not match this browser session", model.ErrCSRF)
	}
	ok, err := s.states.Exists(ctx, cb.State)
	if err != nil {
		return AuthStatus{}, fmt.Errorf("check state: %w", err)
	}
	if !ok {
		return AuthStatus{}, fmt.Errorf("%w: state was not issued or has expired", model.ErrCSRF)
	}

	if cb.Error != "" {
		reason := cb.ErrorDescription
		if reason == "" {
			reason = cb.ErrorReason
		}
		if reason == "" {
			reason = cb.Error
		}
		return AuthStatus{}, fmt.Errorf("%w: %s", model.ErrAuthorizationDenied, reason)
	}
	if cb.Code == "" {
		return AuthStatus{}, fmt.Errorf("%w: no authorization code received", model.ErrAuthorizationDenied)
	}

	cred, err := s.creds.Load(ctx)
	if err != nil {
		return AuthStatus{}, fmt.Errorf("load credential: %w", err)
	}
	if cred.AppID == "" || cred.AppSecret == "" {
		return AuthStatus{}, fmt.Errorf("%w: app id and app secret must both be set", model.ErrConfiguration)
	}

	short, err := s.client.ExchangeCode(ctx, cred.AppID, cred.AppSecret, redirectURI, cb.Code)
	if err != nil {
		return AuthStatus{}, fmt.Errorf("%w: exchange authorization code: %w", model.ErrTokenExchange, err)
	}
	if short.AccessToken == "" {
		return AuthStatus{}, fmt.Errorf("%w: no access token in code exchange response", model.ErrTokenExchange)
	}

	long, err := s.client.ExchangeLongLived(ctx, cred.AppSecret, short.AccessToken)
	if err != nil {
		return AuthStatus{}, fmt.Errorf("%w: exchange for long-lived token: %w", model.ErrTokenExchange, err)
	}
	if long.AccessToken == "" {
		return AuthStatus{}, fmt.Errorf("%w: no access token in long-lived exchange response", model.ErrTokenExchange)
	}

	now := s.now()
	updated := cred.WithGrant(long, now)
	updated.Username = ""

	profile, err := s.client.FetchProfile(ctx, long.AccessToken)
	if err != nil {
		slog.Warn("profile lookup failed after authorization", "error", err)
	} else {
		updated.Username = profile.Username
	}

	if err := s.creds.Save(ctx, updated); err != nil {
		return AuthStatus{}, fmt.Errorf("save credential: %w", err)
	}
	if err := s.states.Delete(ctx, cb.State); err != nil {
		slog.Warn("failed to clear authorization state", "error", err)
	}

	slog.Info("authorization completed",
		"username", updated.Username,
		"token_expires_at", updated.TokenExpiresAt,
	)

	return s.statusOf(updated, false, now), nil
}

// Refresh extends the long-lived token. Without force it only contacts the
// provider inside the refresh window; an already-expired token cannot be
// refreshed and requires re-authorization.
func (s *OAuthService) Refresh(ctx context.Context, force bool) (RefreshResult, error) {
	cred, err := s.creds.Load(ctx)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("load credential: %w", err)
	}
	if !cred.HasToken() {
		return RefreshResult{}, fmt.Errorf("%w: no access token; authorize the account first", model.ErrNotAuthorized)
	}

	now := s.now()
	days := cred.DaysUntilExpiry(now)

	if !force && days > model.RefreshWindowDays {
		return RefreshResult{
			ExpiresAt:       cred.TokenExpiresAt,
			DaysUntilExpiry: days,
			Message:         fmt.Sprintf("token valid for %d more days; refresh not needed", days),
		}, nil
	}
	if !force && days < 0 {
		return RefreshResult{}, fmt.Errorf("%w: token expired on %s; re-authorize the account to obtain a new token",
			model.ErrTokenExpired, cred.TokenExpiresAt.Format(time.DateOnly))
	}

	grant, err := s.client.RefreshToken(ctx, cred.AccessToken)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("%w: refresh token: %w", model.ErrTokenExchange, err)
	}
	if grant.AccessToken == "" {
		return RefreshResult{}, fmt.Errorf("%w: no access token in refresh response", model.ErrTokenExchange)
	}

	updated := cred.WithGrant(grant, now)
	if err := s.creds.Save(ctx, updated); err != nil {
		return RefreshResult{}, fmt.Errorf("save credential: %w", err)
	}

	newDays := updated.DaysUntilExpiry(now)
	slog.Info("access token refreshed",
		"forced", force,
		"token_expires_at", updated.TokenExpiresAt,
		"days_until_expiry", newDays,
	)

	return RefreshResult{
		Refreshed:       true,
		ExpiresAt:       updated.TokenExpiresAt,
		DaysUntilExpiry: newDays,
		Message:         fmt.Sprintf("token refreshed; expires %s", updated.TokenExpiresAt.Format(time.DateOnly)),
	}, nil
}

// Disconnect clears every token field. App id and secret are kept. Calling it
// on an already disconnected credential is a no-op write.
func (s *OAuthService) Disconnect(ctx context.Context) error {
	cred, err := s.creds.Load(ctx)
	if err != nil {
		return fmt.Errorf("load credential: %w", err)
	}
	if err := s.creds.Save(ctx, cred.Disconnected()); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	slog.Info("instagram account disconnected")
	return nil
}

// Status reports where the credential sits in the authorization lifecycle.
func (s *OAuthService) Status(ctx context.Context) (AuthStatus, error) {
	cred, err := s.creds.Load(ctx)
	if err != nil {
		return AuthStatus{}, fmt.Errorf("load credential: %w", err)
	}

	pending := false
	if !cred.HasToken() {
		if pending, err = s.states.Pending(ctx); err != nil {
			return AuthStatus{}, fmt.Errorf("check pending state: %w", err)
		}
	}
	return s.statusOf(cred, pending, s.now()), nil
}

func (s *OAuthService) statusOf(cred model.Credential, pending bool, now time.Time) AuthStatus {
	status := AuthStatus{
		State:         cred.State(now),
		AppConfigured: cred.AppID != "" && cred.AppSecret != "",
		Username:      cred.Username,
	}
	if status.State == model.TokenStateUnauthorized && pending {
		status.State = model.TokenStatePendingCallback
	}
	if cred.HasToken() && !cred.TokenExpiresAt.IsZero() {
		expires := cred.TokenExpiresAt
		days := cred.DaysUntilExpiry(now)
		status.ExpiresAt = &expires
		status.DaysUntilExpiry = &days
	}
	if !cred.LastRefreshAt.IsZero() {
		last := cred.LastRefreshAt
		status.LastRefreshAt = &last
	}
	return status
}

func generateState() (string, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return hex.EncodeToString(b), nil
}
