package httphandler

import (
	"encoding/json"
	"errors"
	"html"
	"net/http"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/ericfisherdev/igmedia/internal/application"
	"github.com/ericfisherdev/igmedia/internal/domain/model"
)

// captionPolicy strips every tag from captions.
var captionPolicy = bluemonday.StrictPolicy()

// plainCaption strips markup from c and returns plain text. The policy
// escapes entities for HTML output; JSON consumers need the raw characters.
func plainCaption(c string) string {
	return html.UnescapeString(captionPolicy.Sanitize(c))
}

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// errorStatus maps the domain failure taxonomy onto HTTP status codes. ok is
// false for errors whose message should not reach the client.
func errorStatus(err error) (status int, ok bool) {
	switch {
	case errors.Is(err, model.ErrCSRF),
		errors.Is(err, model.ErrAuthorizationDenied),
		errors.Is(err, model.ErrConfiguration),
		errors.Is(err, application.ErrInvalidQuery):
		return http.StatusBadRequest, true
	case errors.Is(err, model.ErrInvalidMedia):
		return http.StatusUnprocessableEntity, true
	case errors.Is(err, model.ErrNotAuthorized),
		errors.Is(err, model.ErrTokenExpired):
		return http.StatusConflict, true
	case errors.Is(err, model.ErrMediaNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, model.ErrTokenExchange),
		errors.Is(err, model.ErrAPIRequest):
		return http.StatusBadGateway, true
	}
	return http.StatusInternalServerError, false
}

// MediaResponse is the JSON representation of a media record.
type MediaResponse struct {
	ID            int64  `json:"id"`
	RemoteID      string `json:"remote_id"`
	MediaType     string `json:"media_type"`
	MediaLabel    string `json:"media_label"`
	MediaURL      string `json:"media_url"`
	ThumbnailURL  string `json:"thumbnail_url,omitempty"`
	Permalink     string `json:"permalink,omitempty"`
	Caption       string `json:"caption"`
	PostedAt      string `json:"posted_at,omitempty"`
	Username      string `json:"username"`
	LikeCount     int    `json:"like_count"`
	CommentsCount int    `json:"comments_count"`
	IsVisible     bool   `json:"is_visible"`
	UpdatedAt     string `json:"updated_at"`
}

// CallbackResponse is returned once the authorization redirect completes.
type CallbackResponse struct {
	Message string                 `json:"message"`
	Status  application.AuthStatus `json:"status"`
}

// VisibilityRequest is the JSON body for the bulk toggle endpoint.
type VisibilityRequest struct {
	IDs []int64 `json:"ids"`
}

// VisibilityResponse reports how many records were toggled.
type VisibilityResponse struct {
	Toggled int `json:"toggled"`
}

// SetVisibilityRequest is the JSON body for the single-record visibility endpoint.
type SetVisibilityRequest struct {
	Visible *bool `json:"visible"`
}

// MessageResponse carries a human-readable outcome.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// toMediaResponse converts a domain MediaItem to its JSON representation.
func toMediaResponse(m model.MediaItem) MediaResponse {
	resp := MediaResponse{
		ID:            m.ID,
		RemoteID:      m.RemoteID,
		MediaType:     string(m.MediaType),
		MediaLabel:    m.MediaType.DisplayName(),
		MediaURL:      m.MediaURL,
		ThumbnailURL:  m.ThumbnailURL,
		Permalink:     m.Permalink,
		Caption:       plainCaption(m.Caption),
		Username:      m.Username,
		LikeCount:     m.LikeCount,
		CommentsCount: m.CommentsCount,
		IsVisible:     m.IsVisible,
		UpdatedAt:     m.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if !m.PostedAt.IsZero() {
		resp.PostedAt = m.PostedAt.UTC().Format(time.RFC3339)
	}
	return resp
}
