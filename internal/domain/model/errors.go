package model

import "errors"

// Failure taxonomy shared by the OAuth flow and the sync engine. Callers
// match with errors.Is; the wrapped message is safe to show to operators.
var (
	// ErrConfiguration indicates missing app id or secret. The operator must
	// fix settings before retrying.
	ErrConfiguration = errors.New("configuration error")

	// ErrCSRF indicates the callback state did not match an issued state.
	ErrCSRF = errors.New("invalid state parameter")

	// ErrAuthorizationDenied indicates the provider returned an error instead
	// of an authorization code.
	ErrAuthorizationDenied = errors.New("authorization denied")

	// ErrTokenExchange indicates the provider rejected a token exchange or
	// refresh, or returned no token.
	ErrTokenExchange = errors.New("token exchange failed")

	// ErrTokenExpired indicates the token is past expiry and cannot be
	// refreshed. Re-authorization is required.
	ErrTokenExpired = errors.New("token expired")

	// ErrNotAuthorized indicates an operation needed a token and none exists.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrAPIRequest indicates a media listing or profile request failed.
	ErrAPIRequest = errors.New("instagram api request failed")

	// ErrInvalidMedia indicates a fetched media payload violates the media
	// contract (missing id or media_url, unknown media_type, bad timestamp).
	ErrInvalidMedia = errors.New("invalid media item")

	// ErrMediaNotFound indicates the requested media does not exist locally
	// or remotely.
	ErrMediaNotFound = errors.New("media not found")
)
