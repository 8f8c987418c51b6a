package mercury

import (
	"errors"
	"fmt"
)

const maxBodyInError = 220

// AuthExpiredError signals that the usage API rejected the access token
// (HTTP 401). It is distinguished from generic failures so the coordinator
// can trigger exactly one refresh-and-retry cycle.
type AuthExpiredError struct {
	Body string
}

func (e *AuthExpiredError) Error() string {
	if e.Body == "" {
		return "access token expired or invalid"
	}
	return fmt.Sprintf("access token expired or invalid: %s", truncate(e.Body, maxBodyInError))
}

// APIError represents a non-auth failure from the usage API, carrying the
// status code and response body for diagnostics
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("usage API returned status %d: %s", e.StatusCode, truncate(e.Body, maxBodyInError))
}

// RefreshError represents a failed token refresh, carrying the endpoint
// status and body for diagnostics
type RefreshError struct {
	StatusCode int
	Body       string
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("token refresh failed (%d): %s", e.StatusCode, truncate(e.Body, maxBodyInError))
}

// IsAuthExpired reports whether err is (or wraps) an AuthExpiredError
func IsAuthExpired(err error) bool {
	var authErr *AuthExpiredError
	return errors.As(err, &authErr)
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
