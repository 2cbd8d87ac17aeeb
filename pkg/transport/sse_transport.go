package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	bridgeerrors "github.com/mcpbridge/bridge/pkg/errors"
	"github.com/mcpbridge/bridge/pkg/protocol"
)

// SSETransport is the fallback transport: the legacy HTTP+SSE pairing where
// a long-lived GET stream delivers server messages and an "endpoint" event
// announces the URL requests are POSTed to.
type SSETransport struct {
	*baseTransport
	cfg    Config
	client *http.Client

	lifeCtx    context.Context
	lifeCancel context.CancelFunc
	closeOnce  sync.Once

	msgMu      sync.Mutex
	messageURL string

	eg *errgroup.Group
}

// NewSSETransport constructs the fallback transport. Construction never
// fails; Connect opens the stream and runs the handshake.
func NewSSETransport(cfg Config) Transport {
	lifeCtx, lifeCancel := context.WithCancel(context.Background())
	eg, _ := errgroup.WithContext(lifeCtx)
	return &SSETransport{
		baseTransport: newBaseTransport("sse"),
		cfg:           cfg,
		client:        cfg.httpClient(),
		lifeCtx:       lifeCtx,
		lifeCancel:    lifeCancel,
		eg:            eg,
	}
}

// Kind identifies the variant
func (t *SSETransport) Kind() Kind {
	return KindSSE
}

// Connect opens the event stream, waits for the endpoint announcement, and
// runs the initialize handshake through it.
func (t *SSETransport) Connect(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(t.lifeCtx, http.MethodGet, t.cfg.Endpoint, nil)
	if err != nil {
		return bridgeerrors.TransportError(string(KindSSE), "connect", err)
	}
	httpReq.Header = t.cfg.headerSet()
	httpReq.Header.Set("Accept", "text/event-stream")

	// The dial is bound to the transport lifetime, not the connect ctx: the
	// stream must outlive Connect. Close aborts it either way.
	type doResult struct {
		resp *http.Response
		err  error
	}
	resCh := make(chan doResult, 1)
	go func() {
		resp, err := t.client.Do(httpReq)
		resCh <- doResult{resp: resp, err: err}
	}()

	var resp *http.Response
	select {
	case <-ctx.Done():
		t.lifeCancel()
		go func() {
			if r := <-resCh; r.resp != nil {
				_ = r.resp.Body.Close()
			}
		}()
		return bridgeerrors.TransportError(string(KindSSE), "connect", ctx.Err())
	case r := <-resCh:
		if r.err != nil {
			return bridgeerrors.HTTPTransportError(string(KindSSE), "connect", t.cfg.Endpoint, 0, r.err)
		}
		resp = r.resp
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return bridgeerrors.HTTPTransportError(
			string(KindSSE), "connect", t.cfg.Endpoint, resp.StatusCode,
			fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body))))
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		_ = resp.Body.Close()
		return bridgeerrors.HTTPTransportError(
			string(KindSSE), "connect", t.cfg.Endpoint, 0,
			fmt.Errorf("server did not return text/event-stream content type"))
	}

	endpointCh := make(chan string, 1)
	t.startPump(resp, endpointCh)

	// Wait for the endpoint announcement before anything can be POSTed.
	select {
	case <-ctx.Done():
		return bridgeerrors.TransportError(string(KindSSE), "connect", ctx.Err())
	case <-t.done:
		return bridgeerrors.HTTPTransportError(
			string(KindSSE), "connect", t.cfg.Endpoint, 0,
			fmt.Errorf("event stream closed before endpoint event"))
	case raw := <-endpointCh:
		messageURL, err := t.resolveMessageURL(raw)
		if err != nil {
			return bridgeerrors.TransportError(string(KindSSE), "connect", err)
		}
		t.msgMu.Lock()
		t.messageURL = messageURL
		t.msgMu.Unlock()
	}

	return t.handshake(ctx)
}

// startPump runs the stream reader. The pump owns the response body; closing
// the transport closes the body, which unblocks the scanner.
func (t *SSETransport) startPump(resp *http.Response, endpointCh chan<- string) {
	stop := context.AfterFunc(t.lifeCtx, func() {
		_ = resp.Body.Close()
	})

	t.eg.Go(func() error {
		defer stop()
		defer func() { _ = resp.Body.Close() }()

		sc := bufio.NewScanner(resp.Body)
		sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		err := scanEvents(t.lifeCtx, sc, func(ev sseEvent) {
			switch ev.name {
			case "endpoint":
				select {
				case endpointCh <- ev.data:
				default:
				}
			case "message":
				t.dispatch(t.lifeCtx, []byte(ev.data))
			}
		})

		// Stream ended. If we did not initiate the shutdown, the remote did.
		if t.lifeCtx.Err() == nil {
			t.fireDone()
		}
		return err
	})
}

// resolveMessageURL resolves the announced POST target, which may be
// relative, against the stream endpoint.
func (t *SSETransport) resolveMessageURL(raw string) (string, error) {
	base, err := url.Parse(t.cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", t.cfg.Endpoint, err)
	}
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid endpoint event %q: %w", raw, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// handshake runs the initialize exchange through the established stream
func (t *SSETransport) handshake(ctx context.Context) error {
	params := protocol.InitializeParams{
		ProtocolVersion: protocol.ProtocolVersion,
		ClientInfo:      t.cfg.ClientInfo,
		Capabilities:    map[string]bool{"sampling": true},
	}

	id := t.generateID()
	req, err := protocol.NewRequest(id, protocol.MethodInitialize, params)
	if err != nil {
		return bridgeerrors.TransportError(string(KindSSE), "initialize", err)
	}

	ch := t.registerPending(id)
	if err := t.post(ctx, req); err != nil {
		t.unregisterPending(id)
		return err
	}

	resp, err := t.waitForResponse(ctx, id, ch)
	if err != nil {
		return bridgeerrors.TransportError(string(KindSSE), "initialize", err)
	}
	if resp.Error != nil {
		return bridgeerrors.TransportError(string(KindSSE), "initialize", resp.Error)
	}

	var result protocol.InitializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return bridgeerrors.TransportError(string(KindSSE), "initialize", err)
	}
	t.setServerInfo(&result.ServerInfo)
	t.setServerCapabilities(result.Capabilities)

	note, err := protocol.NewNotification(protocol.MethodInitialized, struct{}{})
	if err != nil {
		return bridgeerrors.TransportError(string(KindSSE), "initialize", err)
	}
	return t.post(ctx, note)
}

// post sends one JSON-RPC payload to the announced message endpoint
func (t *SSETransport) post(ctx context.Context, payload interface{}) error {
	t.msgMu.Lock()
	messageURL := t.messageURL
	t.msgMu.Unlock()

	if messageURL == "" {
		return bridgeerrors.TransportError(string(KindSSE), "send",
			fmt.Errorf("no message endpoint announced yet"))
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return bridgeerrors.TransportError(string(KindSSE), "send", err)
	}

	rctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(t.lifeCtx, cancel)
	defer stop()

	httpReq, err := http.NewRequestWithContext(rctx, http.MethodPost, messageURL, bytes.NewReader(body))
	if err != nil {
		return bridgeerrors.TransportError(string(KindSSE), "send", err)
	}
	httpReq.Header = t.cfg.headerSet()
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return bridgeerrors.HTTPTransportError(string(KindSSE), "send", messageURL, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return bridgeerrors.HTTPTransportError(
			string(KindSSE), "send", messageURL, resp.StatusCode,
			fmt.Errorf("unexpected status %s", resp.Status))
	}
	return nil
}

// SendRequest sends a proxied request and waits for the response to arrive
// over the event stream.
func (t *SSETransport) SendRequest(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	if t.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.RequestTimeout)
		defer cancel()
	}

	id := t.generateID()
	req, err := protocol.NewRequest(id, method, params)
	if err != nil {
		return nil, bridgeerrors.TransportError(string(KindSSE), "send_request", err)
	}

	ch := t.registerPending(id)
	if err := t.post(ctx, req); err != nil {
		t.unregisterPending(id)
		return nil, err
	}

	resp, err := t.waitForResponse(ctx, id, ch)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, bridgeerrors.HandlerError(method, resp.Error)
	}
	return resp.Result, nil
}

// SendNotification sends a fire-and-forget notification
func (t *SSETransport) SendNotification(ctx context.Context, method string, params interface{}) error {
	note, err := protocol.NewNotification(method, params)
	if err != nil {
		return bridgeerrors.TransportError(string(KindSSE), "send_notification", err)
	}
	return t.post(ctx, note)
}

// Close shuts the transport down and fires the done signal
func (t *SSETransport) Close() error {
	t.closeOnce.Do(func() {
		t.lifeCancel()
		t.fireDone()
	})
	return nil
}
