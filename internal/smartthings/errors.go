package smartthings

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// Client id, client secret or refresh token missing. Retrying will not help.
	ErrConfiguration      = errors.New("smartthings client is not configured")
	ErrTransient          = errors.New("smartthings request failed")
	ErrUnauthorized       = errors.New("smartthings rejected the access token")
	ErrForbidden          = errors.New("smartthings denied access to the device")
	ErrMissingAccessToken = errors.New("token response carries no access_token")
)

// APIError is a non-2xx response from the provider.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case ErrTransient:
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
	}
	return false
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
