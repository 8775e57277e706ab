package sink

import (
	"context"
	"sync"
	"time"

	"github.com/roach88/sheetsync/internal/clock"
)

// Window is a sliding-window rate limiter: at most max calls in any span of
// per. Calls hold the window's lock for their whole duration, so calls made
// through one Window are serialized.
//
// Thread-safety: Window is safe for concurrent use.
type Window struct {
	mu    sync.Mutex
	max   int
	per   time.Duration
	clock clock.Clock
	calls []time.Time // successful call times, oldest first
}

// NewWindow creates a limiter allowing max calls per duration.
// A non-positive max disables limiting. A nil clock uses the system clock.
func NewWindow(max int, per time.Duration, clk clock.Clock) *Window {
	return &Window{
		max:   max,
		per:   per,
		clock: clock.Or(clk),
	}
}

// Do waits for a free slot, runs fn and records the call if fn succeeded.
// The only error Do adds of its own is ctx's error while waiting.
func (w *Window) Do(ctx context.Context, fn func() error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.wait(ctx); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	if w.max > 0 {
		w.calls = append(w.calls, w.clock.Now())
	}
	return nil
}

// wait blocks until fewer than max calls fall inside the window.
// Caller must hold w.mu.
func (w *Window) wait(ctx context.Context) error {
	if w.max <= 0 {
		return ctx.Err()
	}
	for {
		now := w.clock.Now()
		w.prune(now)
		if len(w.calls) < w.max {
			return nil
		}
		delay := w.calls[0].Add(w.per).Sub(now)
		if err := w.clock.Sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// prune drops calls that have aged out of the window.
func (w *Window) prune(now time.Time) {
	cutoff := now.Add(-w.per)
	i := 0
	for i < len(w.calls) && !w.calls[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return
	}
	n := copy(w.calls, w.calls[i:])
	w.calls = w.calls[:n]
}

// InFlight returns how many recorded calls are still inside the window.
func (w *Window) InFlight() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(w.clock.Now())
	return len(w.calls)
}
