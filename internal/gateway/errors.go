package gateway

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedProvider = errors.New("unsupported payment provider")

	// ErrInvalidSignature is returned by VerifyWebhook when the payload
	// fails its authenticity check.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// UnsupportedOperationError signals a capability the provider does not
// implement. The orchestrator surfaces it as a client error, never a crash.
type UnsupportedOperationError struct {
	Provider Provider
	Op       string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("%s does not support %s", e.Provider, e.Op)
}

func errUnsupported(p Provider, op string) error {
	return &UnsupportedOperationError{Provider: p, Op: op}
}

// IsUnsupportedOperation reports whether err is an UnsupportedOperationError.
func IsUnsupportedOperation(err error) bool {
	var ue *UnsupportedOperationError
	return errors.As(err, &ue)
}

// ProviderError is the structured failure returned when a provider API call
// fails or is unreachable. Raw holds the response body for server-side
// logging; handlers surface only a generic message to callers.
type ProviderError struct {
	Provider   Provider
	Endpoint   string
	StatusCode int
	Message    string
	Raw        []byte
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s failed with status %d", e.Provider, e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s failed: %s", e.Provider, e.Endpoint, e.Message)
}

// AsProviderError unwraps err into a *ProviderError if it is one.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	ok := errors.As(err, &pe)
	return pe, ok
}
