package scanning

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientInput is returned by AnalysisChain.Analyze when the text is too short
	// to interpret. Callers should reject the receipt rather than retry.
	ErrInsufficientInput = errors.New("insufficient text to analyze receipt")

	// ErrNoText is returned by an OCR provider that found no text in the image.
	ErrNoText = errors.New("no text detected")

	// ErrMalformedResponse is returned when a provider response cannot be parsed.
	ErrMalformedResponse = errors.New("malformed provider response")

	// ErrNotConfigured is returned by a provider that is missing its credentials.
	ErrNotConfigured = errors.New("provider not configured")
)

// ProviderError wraps a failure of a single external provider call.
type ProviderError struct {
	// Source is the provider that failed.
	Source Source

	// Op is the operation that failed (e.g. "ExtractText", "Analyze").
	Op string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Source, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// wrapProviderError wraps err as a ProviderError unless it already is one.
func wrapProviderError(source Source, op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Source: source, Op: op, Err: err}
}
