package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ProviderError is a non-2xx reply from the provider. Rate limits and 5xx
// are retryable; any other 4xx is fatal and propagates immediately.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider returned %d: %s", e.StatusCode, e.Body)
}

func (e *ProviderError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

func (e *ProviderError) Retryable() bool {
	return e.RateLimited() || e.StatusCode >= 500
}

type failureClass int

const (
	classFatal failureClass = iota
	classRateLimit
	classTimeout
	classServerError
)

// classify maps an attempt error to the retry policy's failure classes.
// Transport errors that never produced a provider response count as
// timeouts; anything unrecognized is fatal.
func classify(err error) failureClass {
	var pe *ProviderError
	if errors.As(err, &pe) {
		switch {
		case pe.RateLimited():
			return classRateLimit
		case pe.StatusCode >= 500:
			return classServerError
		default:
			return classFatal
		}
	}
	if errors.Is(err, context.Canceled) {
		return classFatal
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return classTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return classTimeout
	}
	return classFatal
}
