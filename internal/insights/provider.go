package insights

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Provider sends one system/user prompt pair to a hosted model and returns
// the raw completion text.
type Provider interface {
	Name() string
	Complete(ctx context.Context, system, user string) (string, error)
}

// StatusError carries the HTTP status a provider reported.
type StatusError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// isRetryable reports whether another attempt could succeed. Errors without
// a status (network failures, timeouts) are retried; client errors other
// than rate limiting are not.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrEmptyResponse) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests ||
			se.StatusCode == http.StatusRequestTimeout ||
			se.StatusCode >= http.StatusInternalServerError
	}
	return true
}

// NewProvider builds the named provider: "openai", "gemini" or "mock".
func NewProvider(ctx context.Context, name, apiKey, model, baseURL string) (Provider, error) {
	switch name {
	case "openai":
		if apiKey == "" {
			return nil, fmt.Errorf("%w: OPENAI_API_KEY is not set", ErrUnavailable)
		}
		return NewOpenAIProvider(apiKey, model, baseURL), nil
	case "gemini":
		if apiKey == "" {
			return nil, fmt.Errorf("%w: GEMINI_API_KEY is not set", ErrUnavailable)
		}
		p, err := NewGeminiProvider(ctx, apiKey, model)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown insights provider %q", name)
	}
}
