// Package instagram implements the InstagramClient port against the
// authorization host (api.instagram.com) and the graph host
// (graph.instagram.com).
package instagram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/ericfisherdev/igmedia/internal/domain/model"
	"github.com/ericfisherdev/igmedia/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.InstagramClient = (*Client)(nil)

const (
	DefaultAuthBaseURL  = "https://api.instagram.com/oauth/"
	DefaultGraphBaseURL = "https://graph.instagram.com/"
	DefaultTimeout      = 30 * time.Second

	authorizeScope = "instagram_business_basic"
	profileFields  = "id,username,account_type,media_count"

	// maxBodyBytes bounds how much of any response is read.
	maxBodyBytes = 4 << 20
)

// mediaFields is the fixed field set requested for every media object.
var mediaFields = strings.Join([]string{
	"id",
	"media_type",
	"media_url",
	"thumbnail_url",
	"permalink",
	"caption",
	"timestamp",
	"username",
	"like_count",
	"comments_count",
}, ",")

// Options configures a Client. Zero values select production defaults.
type Options struct {
	AuthBaseURL  string
	GraphBaseURL string
	Timeout      time.Duration

	// GraphRate limits graph-host requests per second. Zero disables throttling.
	GraphRate float64

	// BreakerFailures is the number of consecutive graph-host failures that
	// opens the circuit. Zero selects 5.
	BreakerFailures uint32
	// BreakerCooldown is how long the circuit stays open. Zero selects 1m.
	BreakerCooldown time.Duration

	// HTTPClient overrides the transport, mainly for httptest servers. Its
	// Timeout is replaced by Options.Timeout.
	HTTPClient *http.Client
}

// Client talks to both Instagram hosts. Graph-host calls are throttled and
// guarded by a circuit breaker; nothing is retried or cached.
type Client struct {
	authBase  *url.URL
	graphBase *url.URL
	http      *http.Client
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker[*response]
}

// response is the raw outcome of one request.
type response struct {
	status int
	body   []byte
}

// NewClient builds a Client from opts.
func NewClient(opts Options) (*Client, error) {
	if opts.AuthBaseURL == "" {
		opts.AuthBaseURL = DefaultAuthBaseURL
	}
	if opts.GraphBaseURL == "" {
		opts.GraphBaseURL = DefaultGraphBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = time.Minute
	}

	authBase, err := url.Parse(opts.AuthBaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing auth base URL: %w", err)
	}
	graphBase, err := url.Parse(opts.GraphBaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing graph base URL: %w", err)
	}

	httpClient := &http.Client{}
	if opts.HTTPClient != nil {
		clone := *opts.HTTPClient
		httpClient = &clone
	}
	httpClient.Timeout = opts.Timeout

	limit := rate.Inf
	if opts.GraphRate > 0 {
		limit = rate.Limit(opts.GraphRate)
	}

	failures := opts.BreakerFailures
	breaker := gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{
		Name:        "instagram-graph",
		MaxRequests: 1,
		Timeout:     opts.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: isBreakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Client{
		authBase:  authBase,
		graphBase: graphBase,
		http:      httpClient,
		limiter:   rate.NewLimiter(limit, 1),
		breaker:   breaker,
	}, nil
}

// isBreakerSuccess counts only transport failures and provider 5xx responses
// against the breaker; a rejected token is the caller's problem, not an outage.
func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	var apiErr *driven.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode < http.StatusInternalServerError
	}
	return false
}

func (c *Client) oauthConfig(appID, appSecret, redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     appID,
		ClientSecret: appSecret,
		RedirectURL:  redirectURI,
		Scopes:       []string{authorizeScope},
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.authBase.JoinPath("authorize").String(),
			TokenURL:  c.authBase.JoinPath("access_token").String(),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// AuthorizationURL returns the consent-screen URL carrying client_id,
// redirect_uri, response_type=code, scope and state.
func (c *Client) AuthorizationURL(appID, redirectURI, state string) string {
	return c.oauthConfig(appID, "", redirectURI).AuthCodeURL(state)
}

// ExchangeCode posts the authorization code to the authorization host and
// returns the short-lived token.
func (c *Client) ExchangeCode(ctx context.Context, appID, appSecret, redirectURI, code string) (model.TokenGrant, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)

	tok, err := c.oauthConfig(appID, appSecret, redirectURI).Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			return model.TokenGrant{}, parseAPIError(retrieveErr.Response.StatusCode, retrieveErr.Body)
		}
		return model.TokenGrant{}, redact(err)
	}

	grant := model.TokenGrant{AccessToken: tok.AccessToken}
	if !tok.Expiry.IsZero() {
		grant.ExpiresIn = time.Until(tok.Expiry).Round(time.Second)
	}
	return grant, nil
}

// tokenResponse is the graph host's token payload.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (t tokenResponse) grant() model.TokenGrant {
	return model.TokenGrant{
		AccessToken: t.AccessToken,
		ExpiresIn:   time.Duration(t.ExpiresIn) * time.Second,
	}
}

// ExchangeLongLived swaps a short-lived token for a ~60 day token.
func (c *Client) ExchangeLongLived(ctx context.Context, appSecret, shortLivedToken string) (model.TokenGrant, error) {
	q := url.Values{
		"grant_type":    {"ig_exchange_token"},
		"client_secret": {appSecret},
		"access_token":  {shortLivedToken},
	}

	var tr tokenResponse
	if err := c.graphGet(ctx, q, &tr, "access_token"); err != nil {
		return model.TokenGrant{}, err
	}
	return tr.grant(), nil
}

// RefreshToken extends a long-lived token that has not yet expired.
func (c *Client) RefreshToken(ctx context.Context, accessToken string) (model.TokenGrant, error) {
	q := url.Values{
		"grant_type":   {"ig_refresh_token"},
		"access_token": {accessToken},
	}

	var tr tokenResponse
	if err := c.graphGet(ctx, q, &tr, "refresh_access_token"); err != nil {
		return model.TokenGrant{}, err
	}
	return tr.grant(), nil
}

// FetchProfile returns the account behind accessToken.
func (c *Client) FetchProfile(ctx context.Context, accessToken string) (model.Profile, error) {
	q := url.Values{
		"fields":       {profileFields},
		"access_token": {accessToken},
	}

	var p struct {
		ID          string `json:"id"`
		Username    string `json:"username"`
		AccountType string `json:"account_type"`
		MediaCount  int    `json:"media_count"`
	}
	if err := c.graphGet(ctx, q, &p, "me"); err != nil {
		return model.Profile{}, err
	}
	return model.Profile{ID: p.ID, Username: p.Username, AccountType: p.AccountType, MediaCount: p.MediaCount}, nil
}

// FetchMedia requests one page of the account's media. Pagination cursors in
// the response are ignored.
func (c *Client) FetchMedia(ctx context.Context, accessToken string, limit int) ([]model.RemoteMedia, error) {
	q := url.Values{
		"fields":       {mediaFields},
		"limit":        {strconv.Itoa(limit)},
		"access_token": {accessToken},
	}

	var page struct {
		Data []model.RemoteMedia `json:"data"`
	}
	if err := c.graphGet(ctx, q, &page, "me", "media"); err != nil {
		return nil, err
	}
	if page.Data == nil {
		page.Data = []model.RemoteMedia{}
	}
	return page.Data, nil
}

// FetchMediaByID returns a single media object, or nil when the provider
// answers 404.
func (c *Client) FetchMediaByID(ctx context.Context, accessToken, mediaID string) (*model.RemoteMedia, error) {
	q := url.Values{
		"fields":       {mediaFields},
		"access_token": {accessToken},
	}

	var item model.RemoteMedia
	err := c.graphGet(ctx, q, &item, mediaID)
	var apiErr *driven.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// graphGet issues a throttled, breaker-guarded GET against the graph host and
// decodes a 2xx JSON body into out.
func (c *Client) graphGet(ctx context.Context, q url.Values, out any, path ...string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %v", driven.ErrTransport, err)
	}

	endpoint := c.graphBase.JoinPath(path...)
	endpoint.RawQuery = q.Encode()

	resp, err := c.breaker.Execute(func() (*response, error) {
		return c.do(ctx, http.MethodGet, endpoint)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: graph host unavailable: %v", driven.ErrTransport, err)
	}
	if err != nil {
		return err
	}

	if err := json.Unmarshal(resp.body, out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", driven.ErrTransport, endpoint.Path, err)
	}
	return nil
}

// do performs one request. Transport failures are redacted and wrapped in
// driven.ErrTransport; non-2xx responses become *driven.APIError.
func (c *Client) do(ctx context.Context, method string, endpoint *url.URL) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: create request for %s", driven.ErrTransport, endpoint.Path)
	}
	req.Header.Set("Accept", "application/json")

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, redact(err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s response: %v", driven.ErrTransport, endpoint.Path, err)
	}

	slog.Debug("instagram request",
		"method", method,
		"path", endpoint.Path,
		"status", httpResp.StatusCode,
	)

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return &response{status: httpResp.StatusCode, body: body}, parseAPIError(httpResp.StatusCode, body)
	}
	return &response{status: httpResp.StatusCode, body: body}, nil
}
