package instagram

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/ericfisherdev/igmedia/internal/domain/port/driven"
)

// graphErrorEnvelope is the error body returned by graph.instagram.com.
type graphErrorEnvelope struct {
	Error *struct {
		Message   string `json:"message"`
		Type      string `json:"type"`
		Code      int    `json:"code"`
		FBTraceID string `json:"fbtrace_id"`
	} `json:"error"`
}

// authErrorEnvelope is the flat error body returned by api.instagram.com.
type authErrorEnvelope struct {
	ErrorType    string `json:"error_type"`
	Code         int    `json:"code"`
	ErrorMessage string `json:"error_message"`
}

// parseAPIError turns a non-2xx response body into an *driven.APIError,
// falling back to a generic message when neither envelope matches.
func parseAPIError(status int, body []byte) *driven.APIError {
	apiErr := &driven.APIError{StatusCode: status}

	var graph graphErrorEnvelope
	if err := json.Unmarshal(body, &graph); err == nil && graph.Error != nil && graph.Error.Message != "" {
		apiErr.Type = graph.Error.Type
		apiErr.Code = graph.Error.Code
		apiErr.Message = graph.Error.Message
		return apiErr
	}

	var auth authErrorEnvelope
	if err := json.Unmarshal(body, &auth); err == nil && auth.ErrorMessage != "" {
		apiErr.Type = auth.ErrorType
		apiErr.Code = auth.Code
		apiErr.Message = auth.ErrorMessage
		return apiErr
	}

	apiErr.Message = fmt.Sprintf("request failed with status %d", status)
	return apiErr
}

// redact wraps a transport failure in driven.ErrTransport. URLs carried by
// *url.Error lose their query string, which holds tokens and secrets.
func redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%w: %s %s: %v", driven.ErrTransport, urlErr.Op, stripQuery(urlErr.URL), redactInner(urlErr.Err))
	}
	return fmt.Errorf("%w: %v", driven.ErrTransport, err)
}

// redactInner guards against nested url errors in the cause chain.
func redactInner(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s %s: %v", urlErr.Op, stripQuery(urlErr.URL), redactInner(urlErr.Err))
	}
	return err
}

func stripQuery(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable url>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.User = nil
	return u.String()
}
