package utils

import (
	"runtime"
	"testing"
	"time"
)

// LeakDetector verifies that a test leaves no goroutines behind. The bridge
// spawns goroutines for connect attempts, reader pumps and connection
// watchers; all of them must exit once the supervisor and its transports are
// closed.
type LeakDetector struct {
	t              *testing.T
	baseline       int
	allowedGrowth  int
	checkInterval  time.Duration
	stabilizeDelay time.Duration
}

// NewLeakDetector creates a detector bound to a test
func NewLeakDetector(t *testing.T) *LeakDetector {
	return &LeakDetector{
		t:              t,
		checkInterval:  100 * time.Millisecond,
		stabilizeDelay: 200 * time.Millisecond,
	}
}

// AllowGrowth tolerates up to n extra goroutines at check time
func (d *LeakDetector) AllowGrowth(n int) *LeakDetector {
	d.allowedGrowth = n
	return d
}

// Start records the baseline goroutine count
func (d *LeakDetector) Start() {
	time.Sleep(d.stabilizeDelay)
	d.baseline = runtime.NumGoroutine()
}

// Check fails the test when the goroutine count stays above the baseline.
// It samples several times because goroutines in teardown may still be
// draining when the test body returns.
func (d *LeakDetector) Check() {
	time.Sleep(d.stabilizeDelay)

	final := runtime.NumGoroutine()
	for i := 0; i < 2; i++ {
		time.Sleep(d.checkInterval)
		if n := runtime.NumGoroutine(); n < final {
			final = n
		}
	}

	leaked := final - d.baseline
	if leaked > d.allowedGrowth {
		buf := make([]byte, 1<<20)
		stackLen := runtime.Stack(buf, true)
		d.t.Errorf("goroutine leak: baseline %d, final %d (leaked %d, allowed %d)\n%s",
			d.baseline, final, leaked, d.allowedGrowth, buf[:stackLen])
	}
}
