// Package httphandler is the HTTP driving adapter: the OAuth browser flow and
// a small JSON API over the media catalog.
package httphandler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ericfisherdev/igmedia/internal/application"
	"github.com/ericfisherdev/igmedia/internal/domain/model"
)

const stateCookieName = "igmedia_oauth_state"

// OAuthFlow is the authorization surface the handler drives.
type OAuthFlow interface {
	BeginAuthorization(ctx context.Context) (authURL, state string, err error)
	CompleteAuthorization(ctx context.Context, cb application.Callback, redirectURI string) (application.AuthStatus, error)
	Refresh(ctx context.Context, force bool) (application.RefreshResult, error)
	Disconnect(ctx context.Context) error
	Status(ctx context.Context) (application.AuthStatus, error)
	RedirectURI() string
}

// SyncTrigger runs a full sync, normally through the scheduler loop.
type SyncTrigger interface {
	TriggerSync(ctx context.Context, opts application.SyncOptions) (application.SyncReport, error)
}

// MediaRefresher re-fetches a single media object.
type MediaRefresher interface {
	SyncOne(ctx context.Context, remoteID string) (model.MediaItem, error)
}

// MediaCatalog is the read and visibility surface over stored media.
type MediaCatalog interface {
	List(ctx context.Context, q application.CatalogQuery) ([]model.MediaItem, error)
	ToggleVisibility(ctx context.Context, ids []int64) (int, error)
	SetVisibility(ctx context.Context, id int64, visible bool) error
}

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	oauth   OAuthFlow
	syncer  SyncTrigger
	media   MediaRefresher
	catalog MediaCatalog
	logger  *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	oauth OAuthFlow,
	syncer SyncTrigger,
	media MediaRefresher,
	catalog MediaCatalog,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		oauth:   oauth,
		syncer:  syncer,
		media:   media,
		catalog: catalog,
		logger:  logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /oauth/authorize", h.Authorize)
	mux.HandleFunc("GET /oauth/callback", h.Callback)

	mux.HandleFunc("GET /api/v1/status", h.Status)
	mux.HandleFunc("POST /api/v1/token/refresh", h.RefreshToken)
	mux.HandleFunc("POST /api/v1/disconnect", h.Disconnect)
	mux.HandleFunc("POST /api/v1/sync", h.Sync)
	mux.HandleFunc("GET /api/v1/media", h.ListMedia)
	mux.HandleFunc("POST /api/v1/media/visibility", h.ToggleVisibility)
	mux.HandleFunc("PUT /api/v1/media/{id}/visibility", h.SetVisibility)
	mux.HandleFunc("POST /api/v1/media/{remoteID}/sync", h.SyncMedia)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// fail writes err as a JSON error, hiding messages of unclassified errors.
func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status, ok := errorStatus(err)
	if !ok {
		h.logger.Error(op+" failed", "error", err)
		writeError(w, status, "internal server error")
		return
	}
	h.logger.Warn(op+" rejected", "status", status, "error", err)
	writeError(w, status, err.Error())
}

// Authorize binds a fresh state to the browser with a cookie and redirects it
// to the provider's consent screen.
func (h *Handler) Authorize(w http.ResponseWriter, r *http.Request) {
	target, state, err := h.oauth.BeginAuthorization(r.Context())
	if err != nil {
		h.fail(w, "begin authorization", err)
		return
	}
	http.SetCookie(w, h.stateCookie(state, int(application.StateTTL.Seconds())))
	http.Redirect(w, r, target, http.StatusFound)
}

// Callback completes the authorization flow from the provider's redirect. The
// state cookie is cleared whatever the outcome.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	var sessionState string
	if c, err := r.Cookie(stateCookieName); err == nil {
		sessionState = c.Value
	}
	http.SetCookie(w, h.stateCookie("", -1))

	q := r.URL.Query()
	cb := application.Callback{
		State:            q.Get("state"),
		SessionState:     sessionState,
		Code:             q.Get("code"),
		Error:            q.Get("error"),
		ErrorReason:      q.Get("error_reason"),
		ErrorDescription: q.Get("error_description"),
	}

	status, err := h.oauth.CompleteAuthorization(r.Context(), cb, h.oauth.RedirectURI())
	if err != nil {
		h.fail(w, "complete authorization", err)
		return
	}

	msg := "Instagram account connected"
	if status.Username != "" {
		msg += " as @" + status.Username
	}
	writeJSON(w, http.StatusOK, CallbackResponse{Message: msg, Status: status})
}

// stateCookie scopes the OAuth state to the /oauth/ routes of the browser
// that started the flow. A negative maxAge deletes it.
func (h *Handler) stateCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     stateCookieName,
		Value:    value,
		Path:     "/oauth/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   strings.HasPrefix(h.oauth.RedirectURI(), "https://"),
		SameSite: http.SameSiteLaxMode,
	}
}

// Status reports the authorization state.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.oauth.Status(r.Context())
	if err != nil {
		h.fail(w, "status", err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// RefreshToken runs a refresh check; ?force=true always contacts the provider.
func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	force, ok := boolParam(w, r, "force")
	if !ok {
		return
	}

	res, err := h.oauth.Refresh(r.Context(), force)
	if err != nil {
		h.fail(w, "token refresh", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Disconnect clears the stored token.
func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.oauth.Disconnect(r.Context()); err != nil {
		h.fail(w, "disconnect", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Instagram account disconnected"})
}

// Sync runs a manual sync and returns its report.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	force, ok := boolParam(w, r, "force")
	if !ok {
		return
	}
	limit := application.DefaultSyncLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	report, err := h.syncer.TriggerSync(r.Context(), application.SyncOptions{Limit: limit, Force: force})
	if err != nil {
		h.fail(w, "sync", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// SyncMedia re-fetches one media object by provider id.
func (h *Handler) SyncMedia(w http.ResponseWriter, r *http.Request) {
	remoteID := r.PathValue("remoteID")
	if remoteID == "" {
		writeError(w, http.StatusBadRequest, "missing media id")
		return
	}

	item, err := h.media.SyncOne(r.Context(), remoteID)
	if err != nil {
		h.fail(w, "media sync", err)
		return
	}
	writeJSON(w, http.StatusOK, toMediaResponse(item))
}

// ListMedia returns the catalog. Hidden media is included only with ?all=true.
func (h *Handler) ListMedia(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	all, ok := boolParam(w, r, "all")
	if !ok {
		return
	}
	query := application.CatalogQuery{
		VisibleOnly: !all,
		MediaType:   model.MediaType(q.Get("type")),
		Sort:        parseSort(q.Get("sort")),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		query.Limit = n
	}

	items, err := h.catalog.List(r.Context(), query)
	if err != nil {
		h.fail(w, "list media", err)
		return
	}

	resp := make([]MediaResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, toMediaResponse(item))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ToggleVisibility flips visibility for every id in the body.
func (h *Handler) ToggleVisibility(w http.ResponseWriter, r *http.Request) {
	var req VisibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "no media selected")
		return
	}

	toggled, err := h.catalog.ToggleVisibility(r.Context(), req.IDs)
	if err != nil {
		h.fail(w, "toggle visibility", err)
		return
	}
	writeJSON(w, http.StatusOK, VisibilityResponse{Toggled: toggled})
}

// SetVisibility sets visibility of a single record.
func (h *Handler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid media id")
		return
	}

	var req SetVisibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Visible == nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.catalog.SetVisibility(r.Context(), id, *req.Visible); err != nil {
		h.fail(w, "set visibility", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// boolParam parses an optional boolean query parameter, writing a 400 when it
// is malformed.
func boolParam(w http.ResponseWriter, r *http.Request, name string) (bool, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false, true
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name+" parameter")
		return false, false
	}
	return b, true
}

// sortAliases maps URL-friendly sort names onto catalog orderings.
var sortAliases = map[string]model.CatalogSort{
	"newest":        model.SortNewest,
	"oldest":        model.SortOldest,
	"most_liked":    model.SortMostLiked,
	"most_comments": model.SortMostComments,
}

// parseSort accepts an alias or a raw ordering. Unknown values pass through
// for the catalog to reject.
func parseSort(v string) model.CatalogSort {
	if s, ok := sortAliases[v]; ok {
		return s
	}
	return model.CatalogSort(v)
}
