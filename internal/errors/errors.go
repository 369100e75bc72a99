// Package errors provides standardized error codes for the panel client.
//
// Error codes follow the format {domain}.{error} where:
//   - domain: The subsystem that generated the error (config, connection, protocol, dom, upload, command)
//   - error: The specific error type within that domain
//
// Codes are stable and safe to match on; human-readable messages are carried
// alongside them for logs and alerts.
package errors

import (
	"errors"
	"fmt"
)

// Error codes by domain.
const (
	// Config domain - configuration file and validation errors
	CodeConfigNotFound = "config.not_found" // Explicit config file missing
	CodeConfigParse    = "config.parse"     // TOML could not be decoded
	CodeConfigInvalid  = "config.invalid"   // Value out of range

	// Connection domain - real-time transport errors
	CodeConnectionNotConnected       = "connection.not_connected"       // Send attempted while disconnected
	CodeConnectionDialFailed         = "connection.dial_failed"         // WebSocket dial failed
	CodeConnectionRetriesExhausted   = "connection.retries_exhausted"   // Reconnect policy gave up
	CodeConnectionSendFailed         = "connection.send_failed"         // Frame could not be queued or written
	CodeConnectionEndpointUnresolved = "connection.endpoint_unresolved" // No server URL and discovery found nothing
	CodeConnectionLost               = "connection.lost"                // Read pump ended unexpectedly

	// Protocol domain - wire format errors
	CodeProtocolInvalidMessage      = "protocol.invalid_message"       // Malformed envelope
	CodeProtocolInvalidFunctionPath = "protocol.invalid_function_path" // data-func missing or empty module
	CodeProtocolInvalidFragmentSet  = "protocol.invalid_fragment_set"  // response payload not an object of strings

	// DOM domain - panel tree errors
	CodeDOMParseFailed     = "dom.parse_failed"      // Markup could not be parsed
	CodeDOMElementNotFound = "dom.element_not_found" // Selector matched nothing
	CodeDOMInvalidSelector = "dom.invalid_selector"  // XPath did not compile

	// Upload domain - file reads for file-type inputs
	CodeUploadReadFailed = "upload.read_failed" // A selected file could not be read

	// Command domain - dispatcher errors
	CodeCommandBusy = "command.busy" // Another command is in flight

	// General domain - catch-all errors
	CodeUnknown  = "error.unknown"  // Unknown error
	CodeInternal = "error.internal" // Internal error
)

// CodedError wraps an error with a stable error code.
type CodedError struct {
	Code    string // Stable error code (e.g., "connection.not_connected")
	Message string // Human-readable error message
	Cause   error  // Underlying error (may be nil)
}

// Error implements the error interface.
func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CodedError) Unwrap() error {
	return e.Cause
}

// New creates a new CodedError with the given code and message.
func New(code, message string) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new CodedError wrapping an existing error.
func Wrap(code, message string, cause error) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// GetCode extracts the error code from an error.
// Falls back to CodeUnknown for errors that carry no code.
func GetCode(err error) string {
	if err == nil {
		return ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}

	return CodeUnknown
}

// GetMessage extracts a human-readable message from an error.
func GetMessage(err error) string {
	if err == nil {
		return ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Message
	}

	return err.Error()
}

// ToCodeAndMessage extracts both code and message from an error.
func ToCodeAndMessage(err error) (code, message string) {
	if err == nil {
		return "", ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code, coded.Message
	}

	return CodeUnknown, err.Error()
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code string) bool {
	return GetCode(err) == code
}

// NotConnected creates a "connection.not_connected" error.
func NotConnected(event string) *CodedError {
	return New(CodeConnectionNotConnected, fmt.Sprintf("cannot send %q: not connected", event))
}

// DialFailed creates a "connection.dial_failed" error.
func DialFailed(url string, cause error) *CodedError {
	return Wrap(CodeConnectionDialFailed, fmt.Sprintf("dial %s failed", url), cause)
}

// RetriesExhausted creates a "connection.retries_exhausted" error.
func RetriesExhausted(attempts int, cause error) *CodedError {
	return Wrap(CodeConnectionRetriesExhausted, fmt.Sprintf("gave up after %d reconnect attempts", attempts), cause)
}

// InvalidMessage creates a "protocol.invalid_message" error.
func InvalidMessage(reason string) *CodedError {
	return New(CodeProtocolInvalidMessage, reason)
}

// InvalidFunctionPath creates a "protocol.invalid_function_path" error.
func InvalidFunctionPath(path string) *CodedError {
	return New(CodeProtocolInvalidFunctionPath, fmt.Sprintf("invalid function path %q", path))
}

// ElementNotFound creates a "dom.element_not_found" error.
func ElementNotFound(selector string) *CodedError {
	return New(CodeDOMElementNotFound, fmt.Sprintf("no element matches %s", selector))
}

// UploadReadFailed creates an "upload.read_failed" error.
func UploadReadFailed(name string, cause error) *CodedError {
	return Wrap(CodeUploadReadFailed, fmt.Sprintf("could not read %s", name), cause)
}

// Internal creates an "error.internal" error.
func Internal(message string, cause error) *CodedError {
	return Wrap(CodeInternal, message, cause)
}
