package bridge

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mcpbridge/bridge/pkg/transport"
	"github.com/mcpbridge/bridge/pkg/utils"
)

func TestSupervisorLifecycleNoGoroutineLeak(t *testing.T) {
	detector := utils.NewLeakDetector(t)
	detector.Start()

	primary := &stubFactory{kind: transport.KindStreamableHTTP}
	fallback := &stubFactory{kind: transport.KindSSE}
	s := newTestSupervisor(t, primary, fallback, nil)

	conn, err := s.Acquire(context.Background())
	require.NoError(t, err)
	require.NotNil(t, conn)

	require.NoError(t, s.Close())

	detector.Check()
}

func TestFailedAttemptNoGoroutineLeak(t *testing.T) {
	detector := utils.NewLeakDetector(t)
	detector.Start()

	primary := &stubFactory{
		kind:    transport.KindStreamableHTTP,
		connect: failConnect(fmt.Errorf("primary refused")),
	}
	fallback := &stubFactory{
		kind:    transport.KindSSE,
		connect: failConnect(fmt.Errorf("fallback refused")),
	}
	s := newTestSupervisor(t, primary, fallback, nil)

	_, err := s.Acquire(context.Background())
	require.Error(t, err)

	detector.Check()
}

func TestAbortedConnectNoGoroutineLeak(t *testing.T) {
	detector := utils.NewLeakDetector(t)
	detector.Start()

	primary := &stubFactory{
		kind:    transport.KindStreamableHTTP,
		connect: hangConnect(),
	}
	fallback := &stubFactory{kind: transport.KindSSE}
	s := newTestSupervisor(t, primary, fallback, func(cfg *Config) {
		cfg.ConnectTimeout = 30 * time.Millisecond
	})

	_, err := s.Acquire(context.Background())
	require.Error(t, err)

	detector.Check()
}
