package clockify

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError carries a non-2xx response from the Clockify API. It is kept
// distinct from transport-level failures so callers can surface the remote
// status and body to the user.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("clockify: status %d: %s", e.StatusCode, e.Body)
}

// IsNotFound reports whether err is an API rejection with HTTP 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// AsAPIError unwraps err to an APIError if it carries one.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
