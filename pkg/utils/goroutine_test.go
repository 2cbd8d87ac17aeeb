package utils

import (
	"testing"
	"time"
)

func TestLeakDetectorCleanRun(t *testing.T) {
	detector := NewLeakDetector(t)
	detector.Start()

	done := make(chan struct{})
	go func() {
		close(done)
	}()
	<-done

	detector.Check()
}

func TestLeakDetectorAllowGrowth(t *testing.T) {
	stop := make(chan struct{})
	defer close(stop)

	detector := NewLeakDetector(t).AllowGrowth(1)
	detector.Start()

	go func() {
		select {
		case <-stop:
		case <-time.After(5 * time.Second):
		}
	}()

	detector.Check()
}
