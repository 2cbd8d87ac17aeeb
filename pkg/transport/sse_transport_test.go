package transport

import (
	"bufio"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bridgeerrors "github.com/mcpbridge/bridge/pkg/errors"
	"github.com/mcpbridge/bridge/pkg/protocol"
)

func sseConfig(endpoint string) Config {
	return Config{
		Endpoint:   endpoint,
		ClientInfo: protocol.ClientInfo{Name: "bridge-test", Version: "0.0.1"},
	}
}

func TestSSEConnect(t *testing.T) {
	server := newMockSSEServer()
	defer server.Close()

	tr := NewSSETransport(sseConfig(server.URL()))
	defer func() { _ = tr.Close() }()

	require.NoError(t, tr.Connect(context.Background()))

	info := tr.ServerInfo()
	require.NotNil(t, info)
	assert.Equal(t, "mock-sse-remote", info.Name)

	reqs := server.recordedRequests()
	require.NotEmpty(t, reqs)
	assert.Equal(t, protocol.MethodInitialize, reqs[0].Method)
}

func TestSSEAuthorizationHeader(t *testing.T) {
	server := newMockSSEServer()
	defer server.Close()

	cfg := sseConfig(server.URL())
	cfg.AuthToken = "secret-token"
	tr := NewSSETransport(cfg)
	defer func() { _ = tr.Close() }()

	require.NoError(t, tr.Connect(context.Background()))

	for _, h := range server.recordedHeaders() {
		assert.Equal(t, "Bearer secret-token", h.Get("Authorization"))
	}
}

func TestSSEConnectRejected(t *testing.T) {
	server := newMockSSEServer()
	endpoint := server.URL()
	server.Close()

	tr := NewSSETransport(sseConfig(endpoint))
	defer func() { _ = tr.Close() }()

	err := tr.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, bridgeerrors.IsCategory(err, bridgeerrors.CategoryTransport))
	assert.False(t, bridgeerrors.IsTimeout(err))
}

func TestSSEStreamEndsBeforeEndpoint(t *testing.T) {
	server := newMockSSEServer()
	defer server.Close()

	server.mu.Lock()
	server.noEndpoint = true
	server.mu.Unlock()

	tr := NewSSETransport(sseConfig(server.URL()))
	defer func() { _ = tr.Close() }()

	err := tr.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint")
}

func TestSSESendRequest(t *testing.T) {
	server := newMockSSEServer()
	defer server.Close()

	server.mu.Lock()
	server.results["resources/read"] = map[string]string{"contents": "via-sse"}
	server.mu.Unlock()

	tr := NewSSETransport(sseConfig(server.URL()))
	defer func() { _ = tr.Close() }()

	require.NoError(t, tr.Connect(context.Background()))

	result, err := tr.SendRequest(context.Background(), "resources/read", nil)
	require.NoError(t, err)
	assert.Contains(t, string(result), "via-sse")
}

func TestSSESendRequestRemoteError(t *testing.T) {
	server := newMockSSEServer()
	defer server.Close()

	server.mu.Lock()
	server.errorResult["tools/call"] = &protocol.Error{
		Code:    protocol.InternalError,
		Message: "sse boom",
	}
	server.mu.Unlock()

	tr := NewSSETransport(sseConfig(server.URL()))
	defer func() { _ = tr.Close() }()

	require.NoError(t, tr.Connect(context.Background()))

	_, err := tr.SendRequest(context.Background(), "tools/call", nil)
	require.Error(t, err)
	assert.True(t, bridgeerrors.IsCategory(err, bridgeerrors.CategoryHandler))
	assert.Contains(t, err.Error(), "sse boom")
}

func TestSSERemoteCloseFiresDone(t *testing.T) {
	server := newMockSSEServer()
	defer server.Close()

	tr := NewSSETransport(sseConfig(server.URL()))
	defer func() { _ = tr.Close() }()

	require.NoError(t, tr.Connect(context.Background()))

	close(server.closeStream)

	select {
	case <-tr.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done did not fire after remote closed the stream")
	}
}

func TestSSECloseIdempotent(t *testing.T) {
	server := newMockSSEServer()
	defer server.Close()

	tr := NewSSETransport(sseConfig(server.URL()))
	require.NoError(t, tr.Connect(context.Background()))

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())

	select {
	case <-tr.Done():
	default:
		t.Fatal("Done not closed after Close")
	}
}

func TestScanEvents(t *testing.T) {
	stream := strings.Join([]string{
		": keep-alive",
		"event: endpoint",
		"data: /messages",
		"",
		"data: first",
		"data: second",
		"id: 7",
		"",
		"event: message",
		"data: {\"jsonrpc\":\"2.0\"}",
		"",
	}, "\n")

	var events []sseEvent
	sc := bufio.NewScanner(strings.NewReader(stream))
	err := scanEvents(context.Background(), sc, func(ev sseEvent) {
		events = append(events, ev)
	})
	require.NoError(t, err)

	require.Len(t, events, 3)
	assert.Equal(t, sseEvent{name: "endpoint", data: "/messages"}, events[0])
	assert.Equal(t, sseEvent{name: "message", data: "first\nsecond", id: "7"}, events[1])
	assert.Equal(t, "message", events[2].name)
}

func TestScanEventsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sc := bufio.NewScanner(strings.NewReader("data: x\n\ndata: y\n\n"))
	err := scanEvents(ctx, sc, func(sseEvent) {})
	assert.ErrorIs(t, err, context.Canceled)
}
