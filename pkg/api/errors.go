package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Kind is the classification of a failed backend call.
type Kind string

const (
	KindNetwork        Kind = "network"
	KindServer         Kind = "server"
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not_found"
	KindUser           Kind = "user"
	KindUnknown        Kind = "unknown"
	KindSessionExpired Kind = "session_expired"
)

const (
	MsgNetwork        = "Network connection failed. Please check your internet connection."
	MsgServer         = "Our servers are experiencing issues. Please try again in a few minutes."
	MsgValidation     = "Please check your input and try again."
	MsgNotFound       = "The requested resource was not found."
	MsgUnknown        = "An unexpected error occurred. Please try again."
	MsgSessionExpired = "Your session has expired. Please log in again."
)

// Error is a classified backend failure.
type Error struct {
	Kind    Kind
	Message string
	// Status is zero when no response was received.
	Status int
	// ServerMessage is the body's "error" field, if any.
	ServerMessage string
	// Detail is the body's "detail" field, if any.
	Detail string
	Method string
	Path   string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Method, e.Path, e.Kind, e.Err)
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: %s (status %d): %s", e.Method, e.Path, e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s: %s: %s", e.Method, e.Path, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the call may succeed.
func (e *Error) Retryable() bool {
	return e.Kind == KindNetwork || e.Kind == KindServer
}

// InputError is a local pre-flight failure. No request was sent.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string {
	return e.Message
}

func requiredError(field string) *InputError {
	return &InputError{Field: field, Message: strings.ReplaceAll(field, "_", " ") + " is required"}
}

// WithUserMessage attaches a caller supplied message. The result classifies as KindUser.
func WithUserMessage(err error, message string) *Error {
	out := &Error{Kind: KindUser, Message: message, Err: err}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		out.Status = apiErr.Status
		out.ServerMessage = apiErr.ServerMessage
		out.Detail = apiErr.Detail
		out.Method = apiErr.Method
		out.Path = apiErr.Path
	}
	return out
}

// Classify normalises any error into the taxonomy. Errors that are
// already classified are returned as is.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if isTransportError(err) {
		return &Error{Kind: KindNetwork, Message: MsgNetwork, Err: err}
	}
	return &Error{Kind: KindUnknown, Message: MsgUnknown, Err: err}
}

// Message returns the text to show a user for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var inputErr *InputError
	if errors.As(err, &inputErr) {
		return inputErr.Message
	}
	return Classify(err).Message
}

// IsRetryable reports whether err classifies as retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var inputErr *InputError
	if errors.As(err, &inputErr) {
		return false
	}
	return Classify(err).Retryable()
}

// IsSessionExpired reports whether err came from a 401.
func IsSessionExpired(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == KindSessionExpired
}

// IsKind reports whether err classifies as k.
func IsKind(err error, k Kind) bool {
	return err != nil && Classify(err).Kind == k
}

func isTransportError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// classifyResponse turns a non-2xx reply into an *Error.
func classifyResponse(method, path string, status int, body []byte) *Error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)

	e := &Error{
		Status:        status,
		ServerMessage: eb.Error,
		Detail:        eb.Detail,
		Method:        method,
		Path:          path,
	}

	switch {
	case status == http.StatusUnauthorized:
		e.Kind = KindSessionExpired
		e.Message = MsgSessionExpired
	case status >= http.StatusInternalServerError:
		e.Kind = KindServer
		e.Message = MsgServer
	case status == http.StatusBadRequest:
		e.Kind = KindValidation
		e.Message = MsgValidation
		if eb.Error != "" {
			e.Message = eb.Error
		}
		if strings.Contains(path, "/checkout/") {
			if msg := checkoutUserMessage(eb.Error); msg != "" {
				e.Kind = KindUser
				e.Message = msg
			}
		}
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
		e.Message = MsgNotFound
	default:
		e.Kind = KindUnknown
		e.Message = MsgUnknown
	}
	return e
}

func checkoutUserMessage(serverMessage string) string {
	switch {
	case strings.Contains(serverMessage, "stock"):
		return "Some items in your cart are no longer available."
	case strings.Contains(serverMessage, "cart"):
		return "Your cart appears to be empty. Please add items before checking out."
	case strings.Contains(serverMessage, "address"):
		return "Please verify your shipping address information."
	}
	return ""
}
