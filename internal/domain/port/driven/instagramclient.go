package driven

import (
	"context"
	"errors"
	"fmt"

	"github.com/ericfisherdev/igmedia/internal/domain/model"
)

// ErrTransport is wrapped by InstagramClient errors that never produced a
// usable HTTP response: network failure, timeout, open circuit, or an
// undecodable success body. Timeouts are not distinguished.
var ErrTransport = errors.New("transport error")

// APIError is a non-2xx response from the provider. Message is taken from the
// provider's JSON error envelope when one could be parsed.
type APIError struct {
	StatusCode int
	Type       string
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s (%s, status %d)", e.Message, e.Type, e.StatusCode)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

// InstagramClient defines the driven port for the provider's authorization
// and graph hosts. Implementations must never include tokens or the app
// secret in returned errors.
type InstagramClient interface {
	// AuthorizationURL builds the browser redirect target for the consent screen.
	AuthorizationURL(appID, redirectURI, state string) string

	// ExchangeCode trades an authorization code for a short-lived token.
	ExchangeCode(ctx context.Context, appID, appSecret, redirectURI, code string) (model.TokenGrant, error)

	// ExchangeLongLived trades a short-lived token for a long-lived one.
	ExchangeLongLived(ctx context.Context, appSecret, shortLivedToken string) (model.TokenGrant, error)

	// RefreshToken extends an unexpired long-lived token.
	RefreshToken(ctx context.Context, accessToken string) (model.TokenGrant, error)

	FetchProfile(ctx context.Context, accessToken string) (model.Profile, error)

	// FetchMedia returns a single page of at most limit items, as provided.
	FetchMedia(ctx context.Context, accessToken string, limit int) ([]model.RemoteMedia, error)

	// FetchMediaByID returns nil, nil when the provider reports 404.
	FetchMediaByID(ctx context.Context, accessToken, mediaID string) (*model.RemoteMedia, error)
}
