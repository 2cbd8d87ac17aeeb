// Package transport provides the wire transports the bridge uses to reach a
// remote MCP server: Streamable HTTP (primary) and legacy HTTP+SSE
// (fallback). Constructing a transport never fails; only Connect can.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mcpbridge/bridge/pkg/protocol"
)

// Kind identifies a transport variant
type Kind string

const (
	KindStreamableHTTP Kind = "streamable_http"
	KindSSE            Kind = "sse"
)

// NotificationHandler handles server-initiated notifications
type NotificationHandler func(ctx context.Context, params json.RawMessage) error

// Transport is a wire-level mechanism for carrying JSON-RPC traffic to the
// remote server.
type Transport interface {
	// Kind identifies the variant
	Kind() Kind

	// Connect establishes the connection and runs the initialize handshake.
	// It honors ctx cancellation and returns a tagged transport error on
	// failure.
	Connect(ctx context.Context) error

	// SendRequest sends a request and waits for its response
	SendRequest(ctx context.Context, method string, params interface{}) (json.RawMessage, error)

	// SendNotification sends a fire-and-forget notification
	SendNotification(ctx context.Context, method string, params interface{}) error

	// RegisterNotificationHandler registers a handler for server-initiated
	// notifications
	RegisterNotificationHandler(method string, handler NotificationHandler)

	// ServerInfo returns the remote server's handshake metadata. Valid only
	// after Connect succeeds.
	ServerInfo() *protocol.ServerInfo

	// ServerCapabilities returns the capability set the remote announced
	// during the handshake. Valid only after Connect succeeds.
	ServerCapabilities() map[string]bool

	// Done returns a channel closed exactly once when the connection
	// terminates, whether by Close or by the remote side.
	Done() <-chan struct{}

	// Close shuts the transport down and fires Done
	Close() error
}

// Factory constructs a transport bound to a config. Construction never
// fails; only the subsequent Connect can.
type Factory func(cfg Config) Transport

// Config carries everything a transport needs to reach the remote endpoint.
type Config struct {
	// Endpoint is the remote server URL
	Endpoint string

	// Headers are extra HTTP headers sent on every request
	Headers map[string]string

	// AuthToken, when non-empty, is sent as "Authorization: Bearer <token>"
	// on both transport variants. It is opaque to the bridge.
	AuthToken string

	// ClientInfo is the identity presented during the initialize handshake
	ClientInfo protocol.ClientInfo

	// RequestTimeout bounds individual proxied requests after the
	// connection is up. Zero means no per-request limit beyond ctx.
	RequestTimeout time.Duration

	// HTTPClient overrides the default client, mainly for tests
	HTTPClient *http.Client
}

// headerSet materializes the full header set for an outgoing request,
// including the bearer Authorization header when a credential is configured.
func (c Config) headerSet() http.Header {
	h := make(http.Header)
	for k, v := range c.Headers {
		h.Set(k, v)
	}
	if c.AuthToken != "" {
		h.Set("Authorization", "Bearer "+c.AuthToken)
	}
	return h
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	// No client-level timeout: SSE streams are long-lived and request
	// deadlines come from ctx.
	return &http.Client{}
}

// baseTransport provides the request/response bookkeeping shared by both
// variants: pending-request routing, ID generation, notification dispatch,
// and the single-fire done channel.
type baseTransport struct {
	mu                   sync.Mutex
	nextID               int64
	idPrefix             string
	pendingRequests      map[string]chan *protocol.Response
	notificationHandlers map[string]NotificationHandler
	serverInfo           *protocol.ServerInfo
	serverCapabilities   map[string]bool

	done     chan struct{}
	doneOnce sync.Once
}

func newBaseTransport(idPrefix string) *baseTransport {
	return &baseTransport{
		nextID:               1,
		idPrefix:             idPrefix,
		pendingRequests:      make(map[string]chan *protocol.Response),
		notificationHandlers: make(map[string]NotificationHandler),
		done:                 make(chan struct{}),
	}
}

// generateID returns the next unique request ID
func (t *baseTransport) generateID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	return fmt.Sprintf("%s-%d", t.idPrefix, id)
}

// RegisterNotificationHandler registers a handler for incoming notifications
func (t *baseTransport) RegisterNotificationHandler(method string, handler NotificationHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.notificationHandlers[method] = handler
}

// ServerInfo returns the handshake metadata captured during Connect
func (t *baseTransport) ServerInfo() *protocol.ServerInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.serverInfo
}

func (t *baseTransport) setServerInfo(info *protocol.ServerInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.serverInfo = info
}

// ServerCapabilities returns the capabilities announced during Connect
func (t *baseTransport) ServerCapabilities() map[string]bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.serverCapabilities
}

func (t *baseTransport) setServerCapabilities(caps map[string]bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.serverCapabilities = caps
}

// Done returns the close notification channel
func (t *baseTransport) Done() <-chan struct{} {
	return t.done
}

// fireDone closes the done channel. Safe to call from any path; the close
// happens at most once.
func (t *baseTransport) fireDone() {
	t.doneOnce.Do(func() {
		close(t.done)
	})
}

// registerPending installs a response channel for a request ID
func (t *baseTransport) registerPending(id string) chan *protocol.Response {
	ch := make(chan *protocol.Response, 1)
	t.mu.Lock()
	t.pendingRequests[id] = ch
	t.mu.Unlock()
	return ch
}

// unregisterPending removes a response channel, e.g. after ctx expiry
func (t *baseTransport) unregisterPending(id string) {
	t.mu.Lock()
	delete(t.pendingRequests, id)
	t.mu.Unlock()
}

// waitForResponse blocks until the response for id arrives or ctx expires
func (t *baseTransport) waitForResponse(ctx context.Context, id string, ch chan *protocol.Response) (*protocol.Response, error) {
	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		t.unregisterPending(id)
		return nil, ctx.Err()
	case <-t.done:
		t.unregisterPending(id)
		return nil, fmt.Errorf("transport closed while waiting for response %s", id)
	}
}

// dispatch routes a raw incoming message to the pending request it answers
// or to a registered notification handler.
func (t *baseTransport) dispatch(ctx context.Context, data []byte) {
	switch {
	case protocol.IsResponse(data):
		var resp protocol.Response
		if err := json.Unmarshal(data, &resp); err != nil {
			return
		}
		key := fmt.Sprintf("%v", resp.ID)
		t.mu.Lock()
		ch, ok := t.pendingRequests[key]
		if ok {
			delete(t.pendingRequests, key)
		}
		t.mu.Unlock()
		if ok {
			ch <- &resp
		}

	case protocol.IsNotification(data):
		var note protocol.Notification
		if err := json.Unmarshal(data, &note); err != nil {
			return
		}
		t.mu.Lock()
		handler, ok := t.notificationHandlers[note.Method]
		t.mu.Unlock()
		if ok {
			// Handler panics and errors must not kill the reader pump.
			func() {
				defer func() { _ = recover() }()
				_ = handler(ctx, note.Params)
			}()
		}
	}
}
