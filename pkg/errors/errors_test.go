package errors

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewError(t *testing.T) {
	err := NewError(CodeTransportError, "it broke", CategoryTransport, SeverityError)

	assert.Equal(t, CodeTransportError, err.Code())
	assert.Equal(t, "it broke", err.Message())
	assert.Equal(t, CategoryTransport, err.Category())
	assert.Equal(t, SeverityError, err.Severity())
	assert.Equal(t, "it broke", err.Error())
	require.NotNil(t, err.Context())
	assert.False(t, err.Context().Timestamp.IsZero())
}

func TestWithDetailAppends(t *testing.T) {
	err := NewError(CodeTransportError, "it broke", CategoryTransport, SeverityError)
	detailed := err.WithDetail("first").WithDetail("second")

	assert.Equal(t, "it broke: first; second", detailed.Error())
	// Original is unchanged
	assert.Equal(t, "it broke", err.Error())
}

func TestWrapErrorUnwrap(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := WrapError(cause, CodeConnectionFailed, "connect failed", CategoryTransport, SeverityCritical)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, cause, stderrors.Unwrap(err))
}

func TestIsTimeout(t *testing.T) {
	timeout := ConnectionTimeout("https://remote.example/mcp", []string{"streamable_http"}, 50*time.Millisecond)
	transportErr := TransportError("streamable_http", "connect", stderrors.New("connection refused"))

	assert.True(t, IsTimeout(timeout))
	assert.False(t, IsTimeout(transportErr))
	assert.False(t, IsTimeout(stderrors.New("deadline exceeded"))) // text never inspected
	assert.False(t, IsTimeout(nil))
}

func TestIsCategoryAndCode(t *testing.T) {
	err := ConnectionFailed("https://remote.example/mcp", []string{"streamable_http", "sse"}, stderrors.New("refused"))

	assert.True(t, IsCategory(err, CategoryTransport))
	assert.False(t, IsCategory(err, CategoryTimeout))
	assert.True(t, IsCode(err, CodeConnectionFailed))
	assert.False(t, IsCode(err, CodeConnectionTimeout))
}

func TestConnectionFailedData(t *testing.T) {
	err := ConnectionFailed("https://remote.example/mcp", []string{"streamable_http", "sse"}, stderrors.New("refused"))

	data, ok := err.Data().(*ConnectionErrorData)
	require.True(t, ok)
	assert.Equal(t, "remote.example", data.Endpoint)
	assert.Equal(t, []string{"streamable_http", "sse"}, data.TransportsTried)
	assert.True(t, data.Retryable)
}

func TestHandlerErrorPreservesCause(t *testing.T) {
	cause := stderrors.New("boom")
	err := HandlerError("resources/read", cause)

	assert.Equal(t, CategoryHandler, err.Category())
	assert.Equal(t, CodeHandlerError, err.Code())
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "resources/read")
	assert.Contains(t, err.Error(), "boom")
}

func TestHTTPTransportErrorRetryable(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{500, true},
		{503, true},
		{429, true},
		{408, true},
		{404, false},
		{401, false},
	}

	for _, tt := range tests {
		err := HTTPTransportError("sse", "connect", "https://remote.example/mcp", tt.status, stderrors.New("status"))
		data, ok := err.Data().(*TransportErrorData)
		require.True(t, ok)
		assert.Equal(t, tt.retryable, data.Retryable, "status %d", tt.status)
	}
}

func TestToJSON(t *testing.T) {
	cause := stderrors.New("refused")
	err := WrapError(cause, CodeConnectionFailed, "connect failed", CategoryTransport, SeverityCritical).
		WithDetail("after fallback")

	m := err.ToJSON()
	assert.Equal(t, CodeConnectionFailed, m["code"])
	assert.Equal(t, "connect failed", m["message"])
	assert.Equal(t, "transport", m["category"])
	assert.Equal(t, "after fallback", m["details"])
	assert.Equal(t, "refused", m["cause"])
}

func TestAsBridgeError(t *testing.T) {
	bridgeErr := NewError(CodeInternalError, "x", CategoryInternal, SeverityError)

	got, ok := AsBridgeError(bridgeErr)
	assert.True(t, ok)
	assert.Equal(t, bridgeErr, got)

	_, ok = AsBridgeError(stderrors.New("plain"))
	assert.False(t, ok)

	_, ok = AsBridgeError(nil)
	assert.False(t, ok)
}
