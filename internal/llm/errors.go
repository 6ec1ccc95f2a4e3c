package llm

import (
	"errors"
	"fmt"
)

// ErrUnavailable signals a local rate-limit denial. Callers surface a
// "temporarily unavailable" message and must not retry automatically.
var ErrUnavailable = errors.New("generation service temporarily unavailable")

// GenerationError wraps any remote backend failure (transport, auth,
// quota, timeout). The original error is kept for logs and never shown
// verbatim to end users.
type GenerationError struct {
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s generation failed: %v", e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

func generationErr(provider string, err error) error {
	return &GenerationError{Provider: provider, Err: err}
}
