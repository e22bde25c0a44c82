package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by a CacheStore when no live entry exists for a key.
var ErrNotFound = errors.New("cache entry not found")

// ErrEmptyResponse marks an upstream answer with no usable text.
var ErrEmptyResponse = errors.New("empty response from reasoning API")

// ValidationKind names the first category of problem found in a request.
type ValidationKind int

const (
	ValidationMissingFields ValidationKind = iota
	ValidationInvalidParameter
	ValidationInvalidSeverity
)

// Label is the caller-facing error string for the kind.
func (k ValidationKind) Label() string {
	switch k {
	case ValidationMissingFields:
		return "Missing required fields"
	case ValidationInvalidParameter:
		return "Invalid parameter"
	case ValidationInvalidSeverity:
		return "Invalid severity value"
	default:
		return "Invalid request"
	}
}

// ValidationError enumerates every problem found in an inbound request.
type ValidationError struct {
	MissingFields []string // required fields absent from the request, in field order
	Invalid       []string // type and range problems, in field order
	Severity      string   // set when severity is present but outside the closed set
}

// Kind reports the highest-priority category present.
func (e *ValidationError) Kind() ValidationKind {
	switch {
	case len(e.MissingFields) > 0:
		return ValidationMissingFields
	case len(e.Invalid) > 0:
		return ValidationInvalidParameter
	default:
		return ValidationInvalidSeverity
	}
}

// Message joins every problem into one human-readable line.
func (e *ValidationError) Message() string {
	parts := make([]string, 0, len(e.Invalid)+2)
	if len(e.MissingFields) > 0 {
		parts = append(parts, "missing: "+strings.Join(e.MissingFields, ", "))
	}
	parts = append(parts, e.Invalid...)
	if e.Severity != "" {
		parts = append(parts, e.Severity)
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind().Label(), e.Message())
}

func (e *ValidationError) empty() bool {
	return len(e.MissingFields) == 0 && len(e.Invalid) == 0 && e.Severity == ""
}

// CredentialError is a configuration-level failure to obtain the API credential.
// It is never retried.
type CredentialError struct {
	Name string
	Err  error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("credential %q: %v", e.Name, e.Err)
}

func (e *CredentialError) Unwrap() error { return e.Err }

// InferenceFailure classifies why the reasoning API produced no answer.
type InferenceFailure string

const (
	InferenceTransport InferenceFailure = "transport" // network error or 5xx, after the retry
	InferenceRejected  InferenceFailure = "rejected"  // 4xx: bad credential, quota, bad request
	InferenceEmpty     InferenceFailure = "empty"     // blank or blocked answer
	InferenceTimeout   InferenceFailure = "timeout"
)

// InferenceError is returned when the reasoning API could not produce text.
type InferenceError struct {
	Failure    InferenceFailure
	StatusCode int // upstream HTTP status, 0 when none was received
	Err        error
}

func (e *InferenceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("inference %s (status %d): %v", e.Failure, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("inference %s: %v", e.Failure, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// CacheReadError wraps a store failure on lookup. Callers treat it as a miss.
type CacheReadError struct {
	Key CacheKey
	Err error
}

func (e *CacheReadError) Error() string {
	return fmt.Sprintf("cache read %s: %v", e.Key, e.Err)
}

func (e *CacheReadError) Unwrap() error { return e.Err }

// CacheWriteError wraps a store failure on write. It never fails a request.
type CacheWriteError struct {
	Key CacheKey
	Err error
}

func (e *CacheWriteError) Error() string {
	return fmt.Sprintf("cache write %s: %v", e.Key, e.Err)
}

func (e *CacheWriteError) Unwrap() error { return e.Err }
