package salesclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const (
	networkErrorMessage = "could not reach the sales server, check your connection"
	unknownErrorMessage = "unknown error"
)

var statusMessages = map[int]string{
	http.StatusBadRequest:          "invalid request, check the data",
	http.StatusUnauthorized:        "session expired, log in again",
	http.StatusForbidden:           "you do not have permission for this action",
	http.StatusNotFound:            "resource not found",
	http.StatusConflict:            "the request conflicts with the current state",
	http.StatusUnprocessableEntity: "validation failed, check the entered data",
	http.StatusTooManyRequests:     "too many requests, wait a moment",
	http.StatusInternalServerError: "internal server error, try again",
	http.StatusBadGateway:          "bad gateway",
	http.StatusServiceUnavailable:  "service temporarily unavailable",
	http.StatusGatewayTimeout:      "the server timed out, try again",
}

// APIError is a failed call to the sales backend. StatusCode is zero when no
// response was received.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("salesclient: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("salesclient: status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// UserMessage is the text to show the operator.
func (e *APIError) UserMessage() string {
	return e.Message
}

func newNetworkError(err error) *APIError {
	return &APIError{Message: networkErrorMessage, Err: err}
}

// newStatusError builds an APIError from a non-2xx response, preferring the
// body's message, error and detail fields in that order.
func newStatusError(status int, body []byte) *APIError {
	return &APIError{StatusCode: status, Message: messageFromBody(status, body), Body: body}
}

func messageFromBody(status int, body []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, key := range []string{"message", "error", "detail"} {
			if text, ok := payload[key].(string); ok && strings.TrimSpace(text) != "" {
				return text
			}
		}
	}
	if msg, ok := statusMessages[status]; ok {
		return msg
	}
	return unknownErrorMessage
}

func statusOf(err error) (int, bool) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return 0, false
	}
	return apiErr.StatusCode, true
}

func IsAuthError(err error) bool {
	status, ok := statusOf(err)
	return ok && (status == http.StatusUnauthorized || status == http.StatusForbidden)
}

func IsValidationError(err error) bool {
	status, ok := statusOf(err)
	return ok && (status == http.StatusBadRequest || status == http.StatusUnprocessableEntity)
}

func IsNetworkError(err error) bool {
	status, ok := statusOf(err)
	return ok && status == 0
}

// retryable reports whether another attempt could succeed: network failures,
// throttling and server errors.
func retryable(err error) bool {
	status, ok := statusOf(err)
	if !ok {
		return false
	}
	return status == 0 || status == http.StatusTooManyRequests || status >= 500
}
