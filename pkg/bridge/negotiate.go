package bridge

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/mcpbridge/bridge/pkg/errors"
	"github.com/mcpbridge/bridge/pkg/logging"
	"github.com/mcpbridge/bridge/pkg/observability"
	"github.com/mcpbridge/bridge/pkg/transport"
)

// errDeadline marks a connect try aborted by the deadline guard. Detected
// with errors.Is, never by message.
var errDeadline = stderrors.New("connect deadline expired")

// negotiate runs one full connection sequence: primary transport first,
// fallback only after a non-timeout primary failure. The deadline guard
// covers the whole sequence; once it fires, no further transport is tried.
func (s *Supervisor) negotiate() (*Conn, error) {
	tcfg := s.cfg.transportConfig()
	guard := newDeadlineGuard(s.cfg.ConnectTimeout)
	defer guard.Stop()

	s.logger.Info("Connecting to remote endpoint",
		logging.String("endpoint", s.cfg.Endpoint))

	var tried []string

	primary := s.cfg.Primary(tcfg)
	tried = append(tried, string(primary.Kind()))

	err := s.tryConnect(primary, guard)
	if err == nil {
		return s.connected(primary), nil
	}
	_ = primary.Close()

	if stderrors.Is(err, errDeadline) {
		return nil, s.timedOut(tried)
	}

	s.logger.Warn("Primary transport failed, falling back",
		logging.String("primary", string(primary.Kind())),
		logging.ErrorField(err))

	if s.cfg.PerTransportTimeout {
		guard.Stop()
		guard = newDeadlineGuard(s.cfg.ConnectTimeout)
		defer guard.Stop()
	}

	fallback := s.cfg.Fallback(tcfg)
	tried = append(tried, string(fallback.Kind()))

	ferr := s.tryConnect(fallback, guard)
	if ferr == nil {
		return s.connected(fallback), nil
	}
	_ = fallback.Close()

	if stderrors.Is(ferr, errDeadline) {
		return nil, s.timedOut(tried)
	}

	connErr := errors.ConnectionFailed(s.cfg.Endpoint, tried, ferr)
	s.logger.Error("Connection attempt failed",
		logging.String("endpoint", s.cfg.Endpoint),
		logging.Any("transports_tried", tried),
		logging.ErrorField(connErr))
	return nil, connErr
}

// tryConnect races one transport's Connect against the deadline guard. On
// guard expiry the connect context is cancelled so the in-flight dial and
// handshake abort rather than linger.
func (s *Supervisor) tryConnect(t transport.Transport, guard *deadlineGuard) error {
	cctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	start := time.Now()
	errCh := make(chan error, 1)
	go func() {
		errCh <- t.Connect(cctx)
	}()

	select {
	case err := <-errCh:
		elapsed := time.Since(start)
		if err != nil {
			s.metrics.RecordConnectAttempt(string(t.Kind()), observability.StatusFailure, elapsed)
			return err
		}
		s.metrics.RecordConnectAttempt(string(t.Kind()), observability.StatusSuccess, elapsed)
		return nil
	case <-guard.Fired():
		cancel()
		s.metrics.RecordConnectAttempt(string(t.Kind()), observability.StatusTimeout, time.Since(start))
		return errDeadline
	}
}

// connected wraps a freshly connected transport in a Conn handle
func (s *Supervisor) connected(t transport.Transport) *Conn {
	fields := []logging.Field{
		logging.String("endpoint", s.cfg.Endpoint),
		logging.String("transport", string(t.Kind())),
	}
	if info := t.ServerInfo(); info != nil {
		fields = append(fields, logging.String("server", info.Name))
	}
	s.logger.Info("Connected", fields...)

	return newConn(t, s.logger, s.metrics)
}

// timedOut builds and logs the terminal timeout error for an attempt
func (s *Supervisor) timedOut(tried []string) error {
	err := errors.ConnectionTimeout(s.cfg.Endpoint, tried, s.cfg.ConnectTimeout)
	s.logger.Error("Connection attempt timed out",
		logging.String("endpoint", s.cfg.Endpoint),
		logging.Any("transports_tried", tried),
		logging.Duration("timeout", s.cfg.ConnectTimeout))
	return err
}
