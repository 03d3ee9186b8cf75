// Package retrytest provides fake timers for exercising retry and pacing delays.
package retrytest

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Recorder hands out timers that fire immediately and remembers every delay
// they were asked to wait. It lets callers simulate retry and pacing delays.
type Recorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

// NewTimer satisfies Policy.NewTimer.
func (r *Recorder) NewTimer() backoff.Timer {
	return &recordingTimer{rec: r, c: make(chan time.Time, 1)}
}

// Delays returns the requested delays in order.
func (r *Recorder) Delays() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

// Total returns the sum of all requested delays.
func (r *Recorder) Total() time.Duration {
	var total time.Duration
	for _, d := range r.Delays() {
		total += d
	}
	return total
}

type recordingTimer struct {
	rec *Recorder
	c   chan time.Time
}

func (t *recordingTimer) Start(d time.Duration) {
	t.rec.mu.Lock()
	t.rec.delays = append(t.rec.delays, d)
	t.rec.mu.Unlock()

	select {
	case t.c <- time.Now():
	default:
	}
}

func (t *recordingTimer) Stop() {}

func (t *recordingTimer) C() <-chan time.Time { return t.c }
