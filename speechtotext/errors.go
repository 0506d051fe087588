package speechtotext

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrMissingParameters matches every *MissingParameterError.
var ErrMissingParameters = errors.New("missing required parameters")

// ErrStreamClosed is returned by writes on a stream that has closed or failed.
var ErrStreamClosed = errors.New("speechtotext: channel closed")

// MissingParameterError reports required fields absent from an operation's
// parameters. It is returned before any request is built.
type MissingParameterError struct {
	Operation string
	Params    []string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf(
		"speechtotext: %s: missing required parameters: %s",
		e.Operation,
		strings.Join(e.Params, ", "),
	)
}

func (e *MissingParameterError) Is(target error) bool {
	return target == ErrMissingParameters
}

// Error is a non-2xx response from the HTTP API.
type Error struct {
	HTTPStatus      int      `json:"-"`
	Code            int      `json:"code"`
	Message         string   `json:"error"`
	CodeDescription string   `json:"code_description,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
}

func (e *Error) Error() string {
	if e.CodeDescription != "" {
		return fmt.Sprintf("speechtotext: %s (%s, http_status=%d)",
			e.Message, e.CodeDescription, e.HTTPStatus)
	}
	return fmt.Sprintf("speechtotext: %s (http_status=%d)", e.Message, e.HTTPStatus)
}

func (e *Error) IsAuthError() bool {
	return e.HTTPStatus == http.StatusUnauthorized || e.HTTPStatus == http.StatusForbidden
}

func (e *Error) IsNotFound() bool {
	return e.HTTPStatus == http.StatusNotFound
}

// IsSessionConflict reports whether the session is busy with another
// recognition request.
func (e *Error) IsSessionConflict() bool {
	return e.HTTPStatus == http.StatusConflict
}

// AsError unwraps err into an *Error.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func parseAPIError(statusCode int, body []byte) error {
	apiErr := &Error{HTTPStatus: statusCode, Code: statusCode}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(statusCode)
		}
	}
	apiErr.HTTPStatus = statusCode
	return apiErr
}

// ErrorCode classifies stream failures. Callers branch on it: a connection
// reset may be worth a fresh stream, a rejection will not go away on its own.
type ErrorCode string

const (
	CodeConnectionReset   ErrorCode = "connection_reset"
	CodeConnectionRefused ErrorCode = "connection_refused"
	CodeRejected          ErrorCode = "rejected"
	CodeProtocol          ErrorCode = "protocol"
	CodeServer            ErrorCode = "server"
	CodeTimeout           ErrorCode = "timeout"
	CodeValidation        ErrorCode = "validation"
)

// StreamError is the failure carried by an EventError.
type StreamError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *StreamError) Error() string {
	if e.Err != nil && e.Message == "" {
		return fmt.Sprintf("speechtotext: stream %s: %v", e.Code, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("speechtotext: stream %s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("speechtotext: stream %s: %s", e.Code, e.Message)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// AsStreamError unwraps err into a *StreamError.
func AsStreamError(err error) (*StreamError, bool) {
	var e *StreamError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
