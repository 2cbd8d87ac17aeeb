// Package bridge provides a lazy, self-healing bridge between a local
// endpoint and a remote MCP server, with automatic failover from Streamable
// HTTP to legacy HTTP+SSE.
package bridge

import (
	"github.com/mcpbridge/bridge/pkg/bridge"
	"github.com/mcpbridge/bridge/pkg/instrument"
	"github.com/mcpbridge/bridge/pkg/transport"
)

// Version represents the current version of the bridge
const Version = "0.1.0"

// These exports provide direct access to the core bridge components
var (
	// NewSupervisor creates a connection supervisor
	NewSupervisor = bridge.New

	// NewStreamableHTTPTransport creates the primary transport variant
	NewStreamableHTTPTransport = transport.NewStreamableHTTPTransport

	// NewSSETransport creates the fallback transport variant
	NewSSETransport = transport.NewSSETransport

	// Wrap instruments a proxied operation with logging and tracing
	Wrap = instrument.Wrap
)

// Supervisor configuration and connection handle types
type (
	Config    = bridge.Config
	Conn      = bridge.Conn
	Operation = instrument.Operation
)

// DefaultConnectTimeout is the cumulative connect deadline applied when the
// configuration leaves it unset.
const DefaultConnectTimeout = bridge.DefaultConnectTimeout
