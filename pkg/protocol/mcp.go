// Package protocol defines the JSON-RPC 2.0 message types and the MCP
// handshake structures exchanged between the bridge and a remote server.
package protocol

// ProtocolVersion is the MCP protocol revision the bridge speaks
const ProtocolVersion = "2025-03-26"

// Standard MCP method names used by the bridge itself. Proxied operations
// are opaque strings and never interpreted.
const (
	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized"
	MethodPing        = "ping"
	MethodCancelled   = "notifications/cancelled"
)

// ClientInfo identifies the client side of the handshake
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ServerInfo identifies the remote server after a successful handshake
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeParams are the parameters of the initialize request
type InitializeParams struct {
	ProtocolVersion string          `json:"protocolVersion"`
	ClientInfo      ClientInfo      `json:"clientInfo"`
	Capabilities    map[string]bool `json:"capabilities,omitempty"`
}

// InitializeResult is the server's half of the handshake
type InitializeResult struct {
	ProtocolVersion string          `json:"protocolVersion"`
	ServerInfo      ServerInfo      `json:"serverInfo"`
	Capabilities    map[string]bool `json:"capabilities,omitempty"`
	Instructions    string          `json:"instructions,omitempty"`
}
