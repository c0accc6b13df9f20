package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// APIError is an error response from the daemon, decoded from its
// RFC 7807 problem body when one is present.
type APIError struct {
	StatusCode int    `json:"-"`
	Title      string `json:"title"`
	Detail     string `json:"detail,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Title != "" {
		return e.Title
	}
	return fmt.Sprintf("server returned status %d", e.StatusCode)
}

// IsAuth reports whether the daemon rejected the caller's credentials.
func (e *APIError) IsAuth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IsNotFound reports whether the target resource does not exist.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsConflict reports whether the request clashed with existing state.
func (e *APIError) IsConflict() bool {
	return e.StatusCode == http.StatusConflict
}

// IsGone reports whether the resource existed but was revoked or expired.
func (e *APIError) IsGone() bool {
	return e.StatusCode == http.StatusGone
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	if json.Unmarshal(body, apiErr) == nil && (apiErr.Title != "" || apiErr.Detail != "") {
		return apiErr
	}
	apiErr.Detail = strings.TrimSpace(string(body))
	return apiErr
}
