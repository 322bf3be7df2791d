package github

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// APIError is returned for every non-2xx response. Rate limit headers are
// carried along so callers can tell throttling apart from other failures.
type APIError struct {
	StatusCode         int
	URL                string
	RateLimitRemaining string
	RateLimitReset     time.Time
}

func (e *APIError) Error() string {
	return fmt.Sprintf("GitHub API error: %d - Rate Limit: %s", e.StatusCode, e.RateLimitRemaining)
}

func (e *APIError) RateLimited() bool {
	return (e.StatusCode == http.StatusForbidden || e.StatusCode == http.StatusTooManyRequests) && e.RateLimitRemaining == "0"
}

func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func newAPIError(resp *http.Response, url string) *APIError {
	apiErr := &APIError{
		StatusCode:         resp.StatusCode,
		URL:                url,
		RateLimitRemaining: resp.Header.Get("X-RateLimit-Remaining"),
	}

	if reset := resp.Header.Get("X-RateLimit-Reset"); reset != "" {
		if seconds, err := strconv.ParseInt(reset, 10, 64); err == nil {
			apiErr.RateLimitReset = time.Unix(seconds, 0)
		}
	}

	return apiErr
}
