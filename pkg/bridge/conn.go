package bridge

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mcpbridge/bridge/pkg/logging"
	"github.com/mcpbridge/bridge/pkg/observability"
	"github.com/mcpbridge/bridge/pkg/protocol"
	"github.com/mcpbridge/bridge/pkg/transport"
)

// Conn is a live, connected handle to the remote server, cached by the
// Supervisor until its close notification fires. Callers invoke proxied
// operations through it but never close it directly; lifecycle belongs to
// the Supervisor.
type Conn struct {
	transport transport.Transport
	logger    logging.Logger
	metrics   observability.MetricsRecorder
}

func newConn(t transport.Transport, logger logging.Logger, metrics observability.MetricsRecorder) *Conn {
	return &Conn{
		transport: t,
		logger:    logger,
		metrics:   metrics,
	}
}

// Call invokes an arbitrary proxied operation on the remote server. The
// method and params are opaque to the bridge.
func (c *Conn) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	start := time.Now()
	result, err := c.transport.SendRequest(ctx, method, params)
	elapsed := time.Since(start)

	if err != nil {
		c.metrics.RecordProxiedCall(method, observability.StatusFailure, elapsed)
		return nil, err
	}
	c.metrics.RecordProxiedCall(method, observability.StatusSuccess, elapsed)
	return result, nil
}

// Notify sends a fire-and-forget notification to the remote server
func (c *Conn) Notify(ctx context.Context, method string, params interface{}) error {
	return c.transport.SendNotification(ctx, method, params)
}

// OnNotification registers a handler for server-initiated notifications
func (c *Conn) OnNotification(method string, handler transport.NotificationHandler) {
	c.transport.RegisterNotificationHandler(method, handler)
}

// ServerInfo returns the remote server's handshake metadata
func (c *Conn) ServerInfo() *protocol.ServerInfo {
	return c.transport.ServerInfo()
}

// ServerCapabilities returns the capability set negotiated at connect
func (c *Conn) ServerCapabilities() map[string]bool {
	return c.transport.ServerCapabilities()
}

// Transport reports which variant carried the connection
func (c *Conn) Transport() transport.Kind {
	return c.transport.Kind()
}

// Done returns the single-fire close notification channel
func (c *Conn) Done() <-chan struct{} {
	return c.transport.Done()
}

// Close shuts the connection down gracefully. The Supervisor notices via
// Done and clears its cache.
func (c *Conn) Close() error {
	return c.transport.Close()
}
