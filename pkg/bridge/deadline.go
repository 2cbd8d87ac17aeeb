package bridge

import (
	"time"
)

// deadlineGuard is a single-shot deadline. It is armed once per connection
// attempt, fires at most once, and must be stopped on every exit path so no
// timer outlives its attempt.
type deadlineGuard struct {
	timer *time.Timer
}

func newDeadlineGuard(d time.Duration) *deadlineGuard {
	return &deadlineGuard{timer: time.NewTimer(d)}
}

// Fired returns the channel that delivers the deadline expiry
func (g *deadlineGuard) Fired() <-chan time.Time {
	return g.timer.C
}

// Stop cancels the guard. Safe to call more than once, including after the
// guard has fired.
func (g *deadlineGuard) Stop() {
	g.timer.Stop()
}
