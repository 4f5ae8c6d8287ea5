// Package errors defines the typed errors surfaced by the koala client.
package errors

import (
	"fmt"
	"strings"
)

// ConfigError indicates a problem with the client configuration.
type ConfigError struct {
	// Field contains the name of the configuration field that caused the error
	Field string
	// Message contains the detailed error message
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

// ArgumentError indicates a missing or malformed argument to a client
// operation, such as an absent OAuth callback URL.
type ArgumentError struct {
	// Field is the name of the offending argument
	Field string
	// Message contains the detailed error message
	Message string
}

func (e *ArgumentError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("argument error for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("argument error: %s", e.Message)
}

// TransportError indicates a server-side failure (HTTP status >= 500). The
// raw response body is attached verbatim because server-error bodies are not
// guaranteed to be valid JSON.
type TransportError struct {
	// StatusCode is the HTTP status returned by the server
	StatusCode int
	// Body is the raw response body, unparsed
	Body string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("HTTP %d: response body: %s", e.StatusCode, e.Body)
}

// APIError represents a structured error returned by the remote API.
type APIError struct {
	// Type is the error type reported by the API, e.g. "OAuthException"
	Type string
	// Message is the error message reported by the API
	Message string
	// Code is the numeric error code, when the API reports one
	Code int
}

func (e *APIError) Error() string {
	var parts []string
	if e.Type != "" {
		parts = append(parts, "type "+e.Type)
	}
	if e.Code != 0 {
		parts = append(parts, fmt.Sprintf("code %d", e.Code))
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if len(parts) == 0 {
		return "API error"
	}
	return "API error: " + strings.Join(parts, ", ")
}

// SignatureError indicates a signed-payload verification failure: an
// unsupported algorithm, an expired envelope, or a signature mismatch.
type SignatureError struct {
	// Reason describes which check failed
	Reason string
}

func (e *SignatureError) Error() string {
	return "signed request: " + e.Reason
}

// EmptyResponseError indicates an endpoint answered with no body where one
// was required, such as the session key exchange.
type EmptyResponseError struct {
	// Operation is the name of the operation that received the empty body
	Operation string
}

func (e *EmptyResponseError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("empty response received during %s", e.Operation)
	}
	return "empty response received"
}

// RequestError indicates the transport failed before a response was
// available, e.g. a network or request-construction failure.
type RequestError struct {
	// Operation is the name of the API operation that failed
	Operation string
	// Err contains the underlying error
	Err error
}

func (e *RequestError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("request error during %s: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("request error: %v", e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// ParseError indicates a response body could not be decoded.
type ParseError struct {
	// Operation is the name of the API operation where parsing failed
	Operation string
	// Err contains the underlying error
	Err error
}

func (e *ParseError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("parse error during %s: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("parse error: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
