package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/bizmatters/agent-builder/studio-client/internal/models"
)

const (
	// FallbackMessage is used when neither the server nor the transport said anything useful
	FallbackMessage = "an unknown error occurred"
	// TransportMessage is shown for failures that produced no usable response
	TransportMessage = "network error: backend unreachable"
	// UnavailableMessage is shown while the circuit breaker rejects requests
	UnavailableMessage = "service temporarily unavailable"
)

// Error is the single normalized failure type returned by the gateway.
// Transport detail stays in Err; callers display Message.
type Error struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes a 404 match models.ErrNotFound
func (e *Error) Is(target error) bool {
	return target == models.ErrNotFound && e.StatusCode == http.StatusNotFound
}

// IsNotFound reports whether err denotes a missing entity
func IsNotFound(err error) bool {
	return errors.Is(err, models.ErrNotFound)
}

// Message extracts the user facing message from any error. Errors that did
// not come from the gateway fall back to their own text.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return FallbackMessage
}

// newStatusError builds the error for a non-2xx response. The server's
// {"error": ...} field wins, then the HTTP status message.
func newStatusError(statusCode int, body []byte) *Error {
	var resp models.ErrorResponse
	if len(body) > 0 && json.Unmarshal(body, &resp) == nil && strings.TrimSpace(resp.Error) != "" {
		return &Error{
			StatusCode: statusCode,
			Message:    resp.Error,
			Err:        fmt.Errorf("server returned status %d: %s", statusCode, resp.Error),
		}
	}
	return &Error{
		StatusCode: statusCode,
		Message:    fmt.Sprintf("request failed with status code %d", statusCode),
		Err:        fmt.Errorf("server returned status %d: %s", statusCode, strings.TrimSpace(string(body))),
	}
}

// newTransportError wraps a failure that produced no usable response. The
// underlying text stays in Err for logs and never reaches the error slot.
func newTransportError(err error) *Error {
	if err == nil {
		return &Error{Message: FallbackMessage}
	}
	msg := TransportMessage
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		msg = UnavailableMessage
	}
	return &Error{Message: msg, Err: err}
}
