package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	bridgeerrors "github.com/mcpbridge/bridge/pkg/errors"
	"github.com/mcpbridge/bridge/pkg/protocol"
)

// sessionIDHeader carries the server-assigned session across requests
const sessionIDHeader = "Mcp-Session-Id"

// streamIDHeader identifies the client-assigned listener stream so the
// server can resume it after a drop.
const streamIDHeader = "Mcp-Stream-Id"

// StreamableHTTPTransport is the primary transport: JSON-RPC over POST with
// optional SSE upgrade on responses, per the Streamable HTTP revision of the
// MCP spec.
type StreamableHTTPTransport struct {
	*baseTransport
	cfg    Config
	client *http.Client

	lifeCtx    context.Context
	lifeCancel context.CancelFunc
	closeOnce  sync.Once

	sessMu    sync.Mutex
	sessionID string
}

// NewStreamableHTTPTransport constructs the primary transport. Construction
// never fails; Connect performs the handshake.
func NewStreamableHTTPTransport(cfg Config) Transport {
	lifeCtx, lifeCancel := context.WithCancel(context.Background())
	return &StreamableHTTPTransport{
		baseTransport: newBaseTransport("streamable-http"),
		cfg:           cfg,
		client:        cfg.httpClient(),
		lifeCtx:       lifeCtx,
		lifeCancel:    lifeCancel,
	}
}

// Kind identifies the variant
func (t *StreamableHTTPTransport) Kind() Kind {
	return KindStreamableHTTP
}

// Connect runs the initialize handshake over POST and, on success, opens a
// background GET listener stream for server-initiated messages.
func (t *StreamableHTTPTransport) Connect(ctx context.Context) error {
	params := protocol.InitializeParams{
		ProtocolVersion: protocol.ProtocolVersion,
		ClientInfo:      t.cfg.ClientInfo,
		Capabilities:    map[string]bool{"sampling": true},
	}

	id := t.generateID()
	req, err := protocol.NewRequest(id, protocol.MethodInitialize, params)
	if err != nil {
		return bridgeerrors.TransportError(string(KindStreamableHTTP), "connect", err)
	}

	resp, err := t.roundTrip(ctx, req, id)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return bridgeerrors.TransportError(string(KindStreamableHTTP), "initialize", resp.Error)
	}

	var result protocol.InitializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return bridgeerrors.TransportError(string(KindStreamableHTTP), "initialize", err)
	}
	t.setServerInfo(&result.ServerInfo)
	t.setServerCapabilities(result.Capabilities)

	if err := t.SendNotification(ctx, protocol.MethodInitialized, struct{}{}); err != nil {
		return err
	}

	go t.openListener()

	return nil
}

// roundTrip POSTs one request and resolves its response, whether the server
// answers with plain JSON or upgrades the POST to an SSE stream.
func (t *StreamableHTTPTransport) roundTrip(ctx context.Context, req *protocol.Request, id string) (*protocol.Response, error) {
	ch := t.registerPending(id)

	rctx, cancel := t.requestCtx(ctx)
	defer cancel()

	httpResp, err := t.post(rctx, req)
	if err != nil {
		t.unregisterPending(id)
		return nil, bridgeerrors.HTTPTransportError(string(KindStreamableHTTP), "send_request", t.cfg.Endpoint, 0, err)
	}

	if httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		_ = httpResp.Body.Close()
		t.unregisterPending(id)
		return nil, bridgeerrors.HTTPTransportError(
			string(KindStreamableHTTP), "send_request", t.cfg.Endpoint, httpResp.StatusCode,
			fmt.Errorf("unexpected status %s: %s", httpResp.Status, strings.TrimSpace(string(body))))
	}

	contentType := httpResp.Header.Get("Content-Type")
	switch {
	case strings.Contains(contentType, "application/json"):
		data, err := io.ReadAll(httpResp.Body)
		_ = httpResp.Body.Close()
		if err != nil {
			t.unregisterPending(id)
			return nil, bridgeerrors.HTTPTransportError(string(KindStreamableHTTP), "read_response", t.cfg.Endpoint, 0, err)
		}
		t.dispatch(rctx, data)

	case strings.Contains(contentType, "text/event-stream"):
		// The POST was upgraded; pump events until our response shows up.
		// Closing the body is what stops the pump.
		defer func() { _ = httpResp.Body.Close() }()
		go func() {
			sc := bufio.NewScanner(httpResp.Body)
			sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
			_ = scanEvents(rctx, sc, func(ev sseEvent) {
				if ev.name == "message" {
					t.dispatch(context.Background(), []byte(ev.data))
				}
			})
		}()

	default:
		_ = httpResp.Body.Close()
		t.unregisterPending(id)
		return nil, bridgeerrors.HTTPTransportError(
			string(KindStreamableHTTP), "read_response", t.cfg.Endpoint, 0,
			fmt.Errorf("unexpected content type %q", contentType))
	}

	resp, err := t.waitForResponse(rctx, id, ch)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// post sends one JSON-RPC payload, applying the configured header set and
// the session ID once the server has assigned one.
func (t *StreamableHTTPTransport) post(ctx context.Context, payload interface{}) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header = t.cfg.headerSet()
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/event-stream")

	t.sessMu.Lock()
	if t.sessionID != "" {
		httpReq.Header.Set(sessionIDHeader, t.sessionID)
	}
	t.sessMu.Unlock()

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}

	if sid := resp.Header.Get(sessionIDHeader); sid != "" {
		t.sessMu.Lock()
		t.sessionID = sid
		t.sessMu.Unlock()
	}

	return resp, nil
}

// openListener opens the optional GET stream for server-initiated messages.
// Servers may reject it (405); that only costs us remote-close detection
// between requests. When the stream does open and later ends, the done
// signal fires.
func (t *StreamableHTTPTransport) openListener() {
	streamID := "listener-" + uuid.NewString()

	httpReq, err := http.NewRequestWithContext(t.lifeCtx, http.MethodGet, t.cfg.Endpoint, nil)
	if err != nil {
		return
	}

	httpReq.Header = t.cfg.headerSet()
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set(streamIDHeader, streamID)
	t.sessMu.Lock()
	if t.sessionID != "" {
		httpReq.Header.Set(sessionIDHeader, t.sessionID)
	}
	t.sessMu.Unlock()

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return
	}

	if resp.StatusCode != http.StatusOK || !strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		_ = resp.Body.Close()
		return
	}

	go func() {
		defer func() { _ = resp.Body.Close() }()

		sc := bufio.NewScanner(resp.Body)
		sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		_ = scanEvents(t.lifeCtx, sc, func(ev sseEvent) {
			if ev.name == "message" {
				t.dispatch(t.lifeCtx, []byte(ev.data))
			}
		})

		// Stream ended. If we did not initiate the shutdown, the remote did.
		if t.lifeCtx.Err() == nil {
			t.fireDone()
		}
	}()
}

// SendRequest sends a proxied request and waits for its response
func (t *StreamableHTTPTransport) SendRequest(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	if t.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.RequestTimeout)
		defer cancel()
	}

	id := t.generateID()
	req, err := protocol.NewRequest(id, method, params)
	if err != nil {
		return nil, bridgeerrors.TransportError(string(KindStreamableHTTP), "send_request", err)
	}

	resp, err := t.roundTrip(ctx, req, id)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, bridgeerrors.HandlerError(method, resp.Error)
	}
	return resp.Result, nil
}

// SendNotification sends a fire-and-forget notification
func (t *StreamableHTTPTransport) SendNotification(ctx context.Context, method string, params interface{}) error {
	note, err := protocol.NewNotification(method, params)
	if err != nil {
		return bridgeerrors.TransportError(string(KindStreamableHTTP), "send_notification", err)
	}

	rctx, cancel := t.requestCtx(ctx)
	defer cancel()

	resp, err := t.post(rctx, note)
	if err != nil {
		return bridgeerrors.HTTPTransportError(string(KindStreamableHTTP), "send_notification", t.cfg.Endpoint, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return bridgeerrors.HTTPTransportError(
			string(KindStreamableHTTP), "send_notification", t.cfg.Endpoint, resp.StatusCode,
			fmt.Errorf("unexpected status %s", resp.Status))
	}
	return nil
}

// requestCtx derives a context that is additionally cancelled when the
// transport closes, so Close aborts in-flight HTTP calls.
func (t *StreamableHTTPTransport) requestCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	rctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(t.lifeCtx, cancel)
	return rctx, func() {
		stop()
		cancel()
	}
}

// Close shuts the transport down and fires the done signal
func (t *StreamableHTTPTransport) Close() error {
	t.closeOnce.Do(func() {
		t.lifeCancel()
		t.fireDone()
	})
	return nil
}
