// Package bridge implements the lazy, self-healing connection supervisor at
// the heart of the bridge: it establishes the remote connection on first
// use, deduplicates concurrent connect attempts, fails over from the
// primary transport to the fallback, enforces a connect deadline, and
// recovers transparently after the remote side disconnects.
package bridge

import (
	"context"
	"sync"

	"github.com/mcpbridge/bridge/pkg/logging"
	"github.com/mcpbridge/bridge/pkg/observability"
)

// Supervisor owns the cached remote connection and the in-flight connect
// attempt. Exactly one of {idle, connecting, connected} holds at any
// instant: conn and pending are never both set.
type Supervisor struct {
	cfg     Config
	logger  logging.Logger
	metrics observability.MetricsRecorder

	mu      sync.Mutex
	conn    *Conn
	pending *attempt
}

// New creates a Supervisor. No connection is established until the first
// Acquire call.
func New(cfg Config) (*Supervisor, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	return &Supervisor{
		cfg:     cfg,
		logger:  cfg.Logger.WithFields(logging.String("component", "supervisor")),
		metrics: cfg.Metrics,
	}, nil
}

// attempt is one in-flight connection negotiation, shared by every caller
// that arrives before it resolves.
type attempt struct {
	done chan struct{}
	conn *Conn
	err  error
}

func newAttempt() *attempt {
	return &attempt{done: make(chan struct{})}
}

// resolve publishes the attempt's single outcome to all waiters
func (a *attempt) resolve(conn *Conn, err error) {
	a.conn = conn
	a.err = err
	close(a.done)
}

// Acquire returns a connected handle: the cached one when present, the
// outcome of the in-flight attempt when one is running, or the outcome of a
// brand-new attempt otherwise. N concurrent callers before resolution
// trigger exactly one connect sequence and all observe its single outcome.
//
// A caller whose ctx expires while waiting gets ctx.Err(); the attempt
// itself keeps running for the remaining waiters.
func (s *Supervisor) Acquire(ctx context.Context) (*Conn, error) {
	s.mu.Lock()
	if s.conn != nil {
		conn := s.conn
		s.mu.Unlock()
		return conn, nil
	}

	if s.pending == nil {
		s.pending = newAttempt()
		go s.runAttempt(s.pending)
	}
	att := s.pending
	s.mu.Unlock()

	select {
	case <-att.done:
		return att.conn, att.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// runAttempt executes one negotiation and publishes its outcome. On success
// the connection moves into the cache and the supervisor subscribes to its
// close notification; on failure the state returns to idle so the next
// Acquire starts fresh.
func (s *Supervisor) runAttempt(att *attempt) {
	conn, err := s.negotiate()

	s.mu.Lock()
	if s.pending == att {
		s.pending = nil
		if err == nil {
			s.conn = conn
			go s.watch(conn)
		}
	}
	s.mu.Unlock()

	if err == nil {
		s.metrics.RecordConnectionState(true)
	}

	att.resolve(conn, err)
}

// watch clears the cache when the connection's close notification fires.
// The supervisor is its own subscriber: invalidation happens even when no
// caller is waiting. No reconnect is triggered here; the next Acquire does
// that lazily.
func (s *Supervisor) watch(conn *Conn) {
	<-conn.Done()

	s.mu.Lock()
	cleared := s.conn == conn
	if cleared {
		s.conn = nil
	}
	s.mu.Unlock()

	if cleared {
		s.metrics.RecordConnectionState(false)
		s.logger.Warn("Remote connection closed, will reconnect on next acquire",
			logging.String("transport", string(conn.Transport())))
	}
}

// Close shuts down the cached connection, if any. A pending attempt is left
// to resolve on its own; its outcome lands in an empty cache slot or is
// handed to its waiters as usual.
func (s *Supervisor) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}
