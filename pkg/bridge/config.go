package bridge

import (
	"errors"
	"net/http"
	"time"

	"github.com/mcpbridge/bridge/pkg/logging"
	"github.com/mcpbridge/bridge/pkg/observability"
	"github.com/mcpbridge/bridge/pkg/protocol"
	"github.com/mcpbridge/bridge/pkg/transport"
)

// DefaultConnectTimeout is the cumulative deadline for one connection
// attempt when none is configured.
const DefaultConnectTimeout = 30 * time.Second

// Config configures a Supervisor.
type Config struct {
	// Endpoint is the remote server URL both transports connect to
	Endpoint string

	// Primary constructs the preferred transport variant. Defaults to
	// Streamable HTTP.
	Primary transport.Factory

	// Fallback constructs the secondary variant, tried only after a
	// non-timeout primary failure. Defaults to legacy HTTP+SSE.
	Fallback transport.Factory

	// AuthToken, when non-empty, is injected as a bearer Authorization
	// header on both transport variants. Opaque to the bridge.
	AuthToken string

	// Headers are extra HTTP headers sent by both transports
	Headers map[string]string

	// ConnectTimeout is the cumulative deadline for one connection attempt,
	// covering both transport tries. Defaults to DefaultConnectTimeout.
	ConnectTimeout time.Duration

	// PerTransportTimeout gives each transport try its own full
	// ConnectTimeout budget instead of sharing one.
	PerTransportTimeout bool

	// RequestTimeout bounds individual proxied requests once connected
	RequestTimeout time.Duration

	// ClientInfo is the identity presented during the remote handshake
	ClientInfo protocol.ClientInfo

	// Logger receives one line per state transition. Takes precedence over
	// LogSink when both are set.
	Logger logging.Logger

	// LogSink is a single-argument line consumer for hosts that own their
	// own logging
	LogSink logging.Sink

	// Metrics records connect attempts and proxied calls. Nil disables
	// recording.
	Metrics observability.MetricsRecorder

	// HTTPClient overrides the transports' HTTP client, mainly for tests
	HTTPClient *http.Client
}

// withDefaults returns a copy with every unset knob filled in
func (c Config) withDefaults() Config {
	if c.Primary == nil {
		c.Primary = transport.NewStreamableHTTPTransport
	}
	if c.Fallback == nil {
		c.Fallback = transport.NewSSETransport
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.ClientInfo.Name == "" {
		c.ClientInfo = protocol.ClientInfo{Name: "mcp-bridge", Version: "0.1.0"}
	}
	if c.Logger == nil {
		if c.LogSink != nil {
			c.Logger = logging.NewSinkLogger(c.LogSink)
		} else {
			c.Logger = logging.Nop()
		}
	}
	if c.Metrics == nil {
		c.Metrics = observability.NopMetrics()
	}
	return c
}

// validate checks the knobs a Supervisor cannot default
func (c Config) validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	return nil
}

// transportConfig materializes the shared transport configuration
func (c Config) transportConfig() transport.Config {
	return transport.Config{
		Endpoint:       c.Endpoint,
		Headers:        c.Headers,
		AuthToken:      c.AuthToken,
		ClientInfo:     c.ClientInfo,
		RequestTimeout: c.RequestTimeout,
		HTTPClient:     c.HTTPClient,
	}
}
