package errors

import (
	"fmt"
	"net/url"
	"time"
)

// TransportErrorData contains structured data for transport-related errors
type TransportErrorData struct {
	Transport  string        `json:"transport"`
	Operation  string        `json:"operation,omitempty"`
	Endpoint   string        `json:"endpoint,omitempty"`
	Connected  bool          `json:"connected"`
	Retryable  bool          `json:"retryable"`
	Reason     string        `json:"reason,omitempty"`
	StatusCode int           `json:"status_code,omitempty"`
	Timeout    time.Duration `json:"timeout,omitempty"`
}

// ConnectionErrorData contains structured data for connection-level errors
type ConnectionErrorData struct {
	Endpoint        string        `json:"endpoint,omitempty"`
	TransportsTried []string      `json:"transports_tried,omitempty"`
	Timeout         time.Duration `json:"timeout,omitempty"`
	Retryable       bool          `json:"retryable"`
	Reason          string        `json:"reason,omitempty"`
}

// TransportError creates an error for a single transport variant's connect
// or send failure. A transport error during the primary connect step is what
// triggers the fallback try.
func TransportError(transport, operation string, cause error) BridgeError {
	message := fmt.Sprintf("%s transport error", transport)
	if operation != "" {
		message = fmt.Sprintf("%s transport error during %s", transport, operation)
	}
	if cause != nil {
		message = fmt.Sprintf("%s: %s", message, cause.Error())
	}

	reason := ""
	if cause != nil {
		reason = cause.Error()
	}

	return WrapError(
		cause,
		CodeTransportError,
		message,
		CategoryTransport,
		SeverityError,
	).WithData(&TransportErrorData{
		Transport: transport,
		Operation: operation,
		Connected: false,
		Retryable: true,
		Reason:    reason,
	})
}

// ConnectionFailed creates the terminal error for a connection attempt that
// exhausted every transport variant without success.
func ConnectionFailed(endpoint string, tried []string, cause error) BridgeError {
	message := "failed to connect"
	if endpoint != "" {
		message = fmt.Sprintf("failed to connect to %s", endpoint)
	}
	if cause != nil {
		message = fmt.Sprintf("%s: %s", message, cause.Error())
	}

	var endpointHost string
	if endpoint != "" {
		if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
			endpointHost = u.Host
		} else {
			endpointHost = endpoint
		}
	}

	reason := ""
	if cause != nil {
		reason = cause.Error()
	}

	return WrapError(
		cause,
		CodeConnectionFailed,
		message,
		CategoryTransport,
		SeverityCritical,
	).WithData(&ConnectionErrorData{
		Endpoint:        endpointHost,
		TransportsTried: tried,
		Retryable:       true,
		Reason:          reason,
	})
}

// ConnectionTimeout creates the error for a connect deadline expiry. It is
// the only constructor producing CategoryTimeout for the connect path, so
// IsTimeout identifies it without message inspection.
func ConnectionTimeout(endpoint string, tried []string, timeout time.Duration) BridgeError {
	message := "connection timeout"
	if endpoint != "" {
		message = fmt.Sprintf("connection timeout to %s", endpoint)
	}
	if timeout > 0 {
		message = fmt.Sprintf("%s after %v", message, timeout)
	}

	return NewError(
		CodeConnectionTimeout,
		message,
		CategoryTimeout,
		SeverityError,
	).WithData(&ConnectionErrorData{
		Endpoint:        endpoint,
		TransportsTried: tried,
		Timeout:         timeout,
		Retryable:       true,
		Reason:          "timeout",
	})
}

// ConnectionLost creates an error for a connection that terminated after it
// was established.
func ConnectionLost(transport, endpoint string, cause error) BridgeError {
	message := fmt.Sprintf("lost connection via %s", transport)
	if endpoint != "" {
		message = fmt.Sprintf("lost connection to %s via %s", endpoint, transport)
	}
	if cause != nil {
		message = fmt.Sprintf("%s: %s", message, cause.Error())
	}

	reason := ""
	if cause != nil {
		reason = cause.Error()
	}

	return WrapError(
		cause,
		CodeConnectionLost,
		message,
		CategoryTransport,
		SeverityError,
	).WithData(&TransportErrorData{
		Transport: transport,
		Endpoint:  endpoint,
		Connected: false,
		Retryable: true,
		Reason:    reason,
	})
}

// HandlerError creates an error for a proxied operation that failed after
// the connection was established. It does not invalidate the cached
// connection; only a close notification does that.
func HandlerError(method string, cause error) BridgeError {
	message := fmt.Sprintf("handler error for %s", method)
	if cause != nil {
		message = fmt.Sprintf("%s: %s", message, cause.Error())
	}

	return WrapError(
		cause,
		CodeHandlerError,
		message,
		CategoryHandler,
		SeverityError,
	)
}

// HTTPTransportError creates an error for HTTP-level transport failures
func HTTPTransportError(transport, operation, endpoint string, statusCode int, cause error) BridgeError {
	message := fmt.Sprintf("%s error during %s", transport, operation)
	if statusCode > 0 {
		message = fmt.Sprintf("%s error (HTTP %d) during %s", transport, statusCode, operation)
	}
	if endpoint != "" {
		message = fmt.Sprintf("%s to %s", message, endpoint)
	}
	if cause != nil {
		message = fmt.Sprintf("%s: %s", message, cause.Error())
	}

	retryable := statusCode >= 500 || statusCode == 429 || statusCode == 408

	reason := ""
	if cause != nil {
		reason = cause.Error()
	}

	return WrapError(
		cause,
		CodeTransportError,
		message,
		CategoryTransport,
		SeverityError,
	).WithData(&TransportErrorData{
		Transport:  transport,
		Operation:  operation,
		Endpoint:   endpoint,
		Connected:  statusCode > 0,
		Retryable:  retryable,
		StatusCode: statusCode,
		Reason:     reason,
	})
}

// ResponseTimeout creates an error for a request that got no response in time
func ResponseTimeout(transport, requestID string, timeout time.Duration) BridgeError {
	message := fmt.Sprintf("response timeout for request %s via %s", requestID, transport)
	if timeout > 0 {
		message = fmt.Sprintf("%s after %v", message, timeout)
	}

	return NewError(
		CodeOperationTimeout,
		message,
		CategoryTimeout,
		SeverityError,
	).WithData(&TransportErrorData{
		Transport: transport,
		Operation: "wait_response",
		Connected: true,
		Retryable: true,
		Timeout:   timeout,
		Reason:    "response timeout",
	})
}
