package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/mcpbridge/bridge/pkg/protocol"
)

// mockStreamableServer fakes a Streamable HTTP server: initialize over POST,
// notifications acknowledged with 202, proxied methods answered from the
// configured results map, optional GET listener stream.
type mockStreamableServer struct {
	server *httptest.Server

	mu            sync.Mutex
	requests      []*protocol.Request
	headers       []http.Header
	results       map[string]interface{}
	errorResults  map[string]*protocol.Error
	sessionID     string
	upgradeToSSE  bool
	allowListener bool
	listenerGone  chan struct{}
	closeListener chan struct{}
}

func newMockStreamableServer() *mockStreamableServer {
	m := &mockStreamableServer{
		results:       make(map[string]interface{}),
		errorResults:  make(map[string]*protocol.Error),
		sessionID:     "sess-1",
		listenerGone:  make(chan struct{}),
		closeListener: make(chan struct{}),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.handler))
	return m
}

func (m *mockStreamableServer) URL() string { return m.server.URL }

func (m *mockStreamableServer) Close() { m.server.Close() }

func (m *mockStreamableServer) recordedRequests() []*protocol.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*protocol.Request(nil), m.requests...)
}

func (m *mockStreamableServer) recordedHeaders() []http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]http.Header(nil), m.headers...)
}

func (m *mockStreamableServer) handler(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.headers = append(m.headers, r.Header.Clone())
	m.mu.Unlock()

	if r.Method == http.MethodGet {
		m.handleListener(w, r)
		return
	}

	var req protocol.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.ID == nil {
		// Notification
		w.WriteHeader(http.StatusAccepted)
		return
	}

	m.mu.Lock()
	m.requests = append(m.requests, &req)
	errResult := m.errorResults[req.Method]
	result, ok := m.results[req.Method]
	upgrade := m.upgradeToSSE
	m.mu.Unlock()

	var resp *protocol.Response
	switch {
	case errResult != nil:
		resp = &protocol.Response{
			JSONRPCMessage: protocol.JSONRPCMessage{JSONRPC: protocol.JSONRPCVersion},
			ID:             req.ID,
			Error:          errResult,
		}
	case req.Method == protocol.MethodInitialize:
		resp = mustResponse(req.ID, protocol.InitializeResult{
			ProtocolVersion: protocol.ProtocolVersion,
			ServerInfo:      protocol.ServerInfo{Name: "mock-remote", Version: "1.2.3"},
			Capabilities:    map[string]bool{"tools": true, "resources": true},
		})
	case ok:
		resp = mustResponse(req.ID, result)
	default:
		resp = &protocol.Response{
			JSONRPCMessage: protocol.JSONRPCMessage{JSONRPC: protocol.JSONRPCVersion},
			ID:             req.ID,
			Error:          &protocol.Error{Code: protocol.MethodNotFound, Message: "method not found"},
		}
	}

	payload, _ := json.Marshal(resp)
	w.Header().Set(sessionIDHeader, m.sessionID)

	if upgrade {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "event: message\ndata: %s\n\n", payload)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(payload)
}

func (m *mockStreamableServer) handleListener(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	allow := m.allowListener
	m.mu.Unlock()

	if !allow {
		http.Error(w, "listener not supported", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	w.(http.Flusher).Flush()

	select {
	case <-m.closeListener:
	case <-r.Context().Done():
	}
	close(m.listenerGone)
}

// mockSSEServer fakes a legacy HTTP+SSE server: GET opens the stream and
// announces the message endpoint, POST answers arrive back over the stream.
type mockSSEServer struct {
	server *httptest.Server

	mu          sync.Mutex
	requests    []*protocol.Request
	headers     []http.Header
	results     map[string]interface{}
	errorResult map[string]*protocol.Error
	noEndpoint  bool
	outbound    chan []byte
	closeStream chan struct{}
}

func newMockSSEServer() *mockSSEServer {
	m := &mockSSEServer{
		results:     make(map[string]interface{}),
		errorResult: make(map[string]*protocol.Error),
		outbound:    make(chan []byte, 16),
		closeStream: make(chan struct{}),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.handler))
	return m
}

func (m *mockSSEServer) URL() string { return m.server.URL + "/sse" }

func (m *mockSSEServer) Close() { m.server.Close() }

func (m *mockSSEServer) recordedRequests() []*protocol.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*protocol.Request(nil), m.requests...)
}

func (m *mockSSEServer) recordedHeaders() []http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]http.Header(nil), m.headers...)
}

func (m *mockSSEServer) handler(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.headers = append(m.headers, r.Header.Clone())
	m.mu.Unlock()

	switch {
	case r.Method == http.MethodGet:
		m.handleStream(w, r)
	case r.Method == http.MethodPost:
		m.handleMessage(w, r)
	default:
		http.Error(w, "bad method", http.StatusMethodNotAllowed)
	}
}

func (m *mockSSEServer) handleStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	flusher := w.(http.Flusher)

	m.mu.Lock()
	skipEndpoint := m.noEndpoint
	m.mu.Unlock()

	if skipEndpoint {
		flusher.Flush()
		return
	}

	fmt.Fprintf(w, "event: endpoint\ndata: /messages\n\n")
	flusher.Flush()

	for {
		select {
		case payload := <-m.outbound:
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", payload)
			flusher.Flush()
		case <-m.closeStream:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (m *mockSSEServer) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req protocol.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusAccepted)

	if req.ID == nil {
		return
	}

	m.mu.Lock()
	m.requests = append(m.requests, &req)
	errResult := m.errorResult[req.Method]
	result, ok := m.results[req.Method]
	m.mu.Unlock()

	var resp *protocol.Response
	switch {
	case errResult != nil:
		resp = &protocol.Response{
			JSONRPCMessage: protocol.JSONRPCMessage{JSONRPC: protocol.JSONRPCVersion},
			ID:             req.ID,
			Error:          errResult,
		}
	case req.Method == protocol.MethodInitialize:
		resp = mustResponse(req.ID, protocol.InitializeResult{
			ProtocolVersion: protocol.ProtocolVersion,
			ServerInfo:      protocol.ServerInfo{Name: "mock-sse-remote", Version: "0.9.0"},
			Capabilities:    map[string]bool{"tools": true},
		})
	case ok:
		resp = mustResponse(req.ID, result)
	default:
		resp = &protocol.Response{
			JSONRPCMessage: protocol.JSONRPCMessage{JSONRPC: protocol.JSONRPCVersion},
			ID:             req.ID,
			Error:          &protocol.Error{Code: protocol.MethodNotFound, Message: "method not found"},
		}
	}

	payload, _ := json.Marshal(resp)
	m.outbound <- payload
}

func mustResponse(id interface{}, result interface{}) *protocol.Response {
	resp, err := protocol.NewResponse(id, result)
	if err != nil {
		panic(err)
	}
	return resp
}
