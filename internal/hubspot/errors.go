package hubspot

import (
	"errors"
	"fmt"
)

// Common errors returned by the HubSpot client.
var (
	// ErrAuthError indicates a missing, invalid or under-scoped access token.
	ErrAuthError = errors.New("HubSpot authentication error")

	// ErrRateLimited indicates the account's rate limit has been exceeded.
	ErrRateLimited = errors.New("HubSpot rate limit exceeded")

	// ErrNetworkError indicates a network connectivity issue.
	ErrNetworkError = errors.New("network error communicating with HubSpot")

	// ErrInvalidResponse indicates an unexpected API response.
	ErrInvalidResponse = errors.New("invalid response from HubSpot")
)

// APIError represents an error body returned by the HubSpot CRM API.
type APIError struct {
	StatusCode    int
	Category      string // e.g. "VALIDATION_ERROR", "OBJECT_NOT_FOUND"
	Message       string
	CorrelationID string
}

func (e *APIError) Error() string {
	if e.CorrelationID != "" {
		return fmt.Sprintf("HubSpot API error (status %d, category %s): %s (correlation %s)", e.StatusCode, e.Category, e.Message, e.CorrelationID)
	}
	return fmt.Sprintf("HubSpot API error (status %d, category %s): %s", e.StatusCode, e.Category, e.Message)
}

// IsAuthError returns true if the error indicates an authentication problem.
func IsAuthError(err error) bool {
	if errors.Is(err, ErrAuthError) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 401 || apiErr.StatusCode == 403
	}
	return false
}

// IsRateLimited returns true if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.Category == "RATE_LIMITS"
	}
	return false
}
