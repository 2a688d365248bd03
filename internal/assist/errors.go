// Package assist implements the AI-assisted layers of the voice search
// pipeline: the budget guard, the discovery orchestrator, and the error
// taxonomy shared with the intent resolver.
package assist

import "fmt"

// ConfigurationError means a required credential or setting is missing.
// It is always detected before any network call is made.
type ConfigurationError struct {
	// Setting names the missing configuration value.
	Setting string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("assist: missing configuration: %s", e.Setting)
}

// TransportError is a non-2xx HTTP response from a remote endpoint. The
// status code and response body are embedded for diagnostics.
type TransportError struct {
	// Status is the HTTP status code.
	Status int

	// Body is the raw response body, possibly truncated by the caller.
	Body string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("assist: http status %d: %s", e.Status, e.Body)
}

// DecodingError means a response could not be parsed: either the HTTP
// envelope was not valid JSON, or the model's JSON payload did not match the
// expected shape.
type DecodingError struct {
	// Stage is "envelope" or "payload".
	Stage string

	// Err is the underlying parse error.
	Err error
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("assist: decoding %s: %v", e.Stage, e.Err)
}

func (e *DecodingError) Unwrap() error { return e.Err }

// RateLimited means the budget guard denied the request before any LLM call
// was made.
type RateLimited struct {
	// Reason is the human-readable denial reason from the ledger.
	Reason string
}

func (e *RateLimited) Error() string {
	return fmt.Sprintf("assist: rate limited: %s", e.Reason)
}
