package chat

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrEmptyMessage       = errors.New("message is required")
	ErrEmptyKeyword       = errors.New("keyword is required")
	ErrEmptyCompletion    = errors.New("model returned an empty response")
	ErrGenerationNotFound = errors.New("generated post not found")
)

const (
	ErrTypeInsufficientQuota = "insufficient_quota"
	ErrTypeInvalidAPIKey     = "invalid_api_key"
)

// ProviderError is a failure reported by the completion backend.
type ProviderError struct {
	Provider   string
	StatusCode int
	Type       string
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s provider error: %d %s: %s", e.Provider, e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("%s provider error: %d: %s", e.Provider, e.StatusCode, e.Message)
}

// StatusCode maps a chat error to the HTTP status returned to clients.
func StatusCode(err error) int {
	if errors.Is(err, ErrEmptyMessage) || errors.Is(err, ErrEmptyKeyword) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrGenerationNotFound) {
		return http.StatusNotFound
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		switch providerErr.Type {
		case ErrTypeInsufficientQuota:
			return http.StatusTooManyRequests
		case ErrTypeInvalidAPIKey:
			return http.StatusUnauthorized
		}
	}

	return http.StatusInternalServerError
}

// UserMessage is the text shown to the reader for err.
func UserMessage(err error) string {
	switch StatusCode(err) {
	case http.StatusBadRequest:
		return err.Error()
	case http.StatusNotFound:
		return "Generated post not found."
	case http.StatusTooManyRequests:
		return "API quota exceeded. Please try again later."
	case http.StatusUnauthorized:
		return "The API key is invalid."
	default:
		return "A temporary error occurred. Please try again later."
	}
}
