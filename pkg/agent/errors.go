package agent

import (
	"errors"
	"fmt"
	"net/http"
)

// Transport-derived error codes.
const (
	CodeNetwork           = "NETWORK_ERROR"
	CodeStreamInterrupted = "STREAM_INTERRUPTED"
	CodeInvalidRequest    = "INVALID_REQUEST"
)

// AgentError is the terminal error of a turn, either reported by the agent
// or derived from a transport failure.
type AgentError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func (e *AgentError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FromPayload converts an error event payload.
func FromPayload(p ErrorPayload) *AgentError {
	return &AgentError{Code: p.Code, Message: p.Message, Retryable: p.Retryable}
}

// HTTPError builds the error for a non-2xx response.
func HTTPError(status int, message string) *AgentError {
	if message == "" {
		message = http.StatusText(status)
	}
	return &AgentError{
		Code:      fmt.Sprintf("HTTP_%d", status),
		Message:   message,
		Retryable: RetryableStatus(status),
	}
}

// NetworkError wraps a failure to reach the endpoint.
func NetworkError(err error) *AgentError {
	return &AgentError{Code: CodeNetwork, Message: err.Error(), Retryable: true}
}

// InvalidRequestError reports a request that could not be built. Retrying it
// cannot succeed.
func InvalidRequestError(err error) *AgentError {
	return &AgentError{Code: CodeInvalidRequest, Message: err.Error(), Retryable: false}
}

// StreamError wraps a read failure after streaming began.
func StreamError(err error) *AgentError {
	return &AgentError{Code: CodeStreamInterrupted, Message: err.Error(), Retryable: true}
}

// RetryableStatus reports whether a response status is worth retrying.
func RetryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// AsAgentError converts any error into an AgentError, treating unknown
// errors as network failures.
func AsAgentError(err error) *AgentError {
	var ae *AgentError
	if errors.As(err, &ae) {
		return ae
	}
	return NetworkError(err)
}
