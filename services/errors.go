package services

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest marks input that failed validation before any outbound call.
var ErrInvalidRequest = errors.New("invalid request")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidRequest}, args...)...)
}

// AuthenticationError is returned when the Amadeus token endpoint rejects the
// client credentials or cannot be reached (StatusCode 0).
type AuthenticationError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *AuthenticationError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("amadeus authentication failed: %s", e.Message)
	}
	return fmt.Sprintf("amadeus authentication failed (%d): %s", e.StatusCode, e.Message)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// SearchError is returned when the flight-offers endpoint fails. StatusCode is
// 0 for transport errors.
type SearchError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *SearchError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("flight search failed (%d): %s", e.StatusCode, e.Body)
	case e.Err != nil:
		return "flight search failed: " + e.Err.Error()
	}
	return "flight search failed: " + e.Body
}

func (e *SearchError) Unwrap() error {
	return e.Err
}

// GenerationError is returned when the LLM call fails or its answer is still
// unusable after the allowed re-prompts.
type GenerationError struct {
	Provider string
	Attempts int
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: itinerary generation failed after %d attempt(s): %v", e.Provider, e.Attempts, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// ProviderError carries a non-2xx answer from an LLM provider.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider returned %d: %s", e.StatusCode, e.Body)
}
