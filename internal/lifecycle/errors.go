package lifecycle

import "fmt"

// ValidationError represents a bad-request condition (HTTP 400).
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// AdapterUnavailableError means the deployment substrate rejected or never
// received the call. The operation was rolled back; the caller decides
// whether to retry.
type AdapterUnavailableError struct {
	Err error
}

func (e *AdapterUnavailableError) Error() string {
	return fmt.Sprintf("deployment substrate unavailable: %v", e.Err)
}

func (e *AdapterUnavailableError) Unwrap() error { return e.Err }
