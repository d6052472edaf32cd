// Package testutil holds helpers shared by lifecycle tests.
package testutil

import (
	"runtime"
	"testing"
	"time"
)

const (
	leakDeadline = 5 * time.Second
	leakPoll     = 50 * time.Millisecond
)

// GoroutineBaseline settles the runtime and returns the goroutine count to
// compare against after the code under test has shut down.
func GoroutineBaseline() int {
	runtime.GC()
	time.Sleep(20 * time.Millisecond)
	return runtime.NumGoroutine()
}

// AssertNoGoroutineLeaks checks that the goroutine count returns to within
// margin of baseline before the deadline. Stopped drain loops, device
// goroutines and ffmpeg readers exit asynchronously, so it polls.
func AssertNoGoroutineLeaks(t testing.TB, baseline, margin int) {
	t.Helper()
	deadline := time.Now().Add(leakDeadline)
	current := runtime.NumGoroutine()
	for current > baseline+margin && time.Now().Before(deadline) {
		time.Sleep(leakPoll)
		current = runtime.NumGoroutine()
	}
	if current > baseline+margin {
		t.Errorf("goroutine leak: baseline=%d, current=%d, margin=%d", baseline, current, margin)
	}
}
