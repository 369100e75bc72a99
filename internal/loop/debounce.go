package loop

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Debouncer collapses bursts of triggers into one call after a quiet period.
// All triggers share a single timer: each one restarts the window and
// replaces the pending function. Use it only from the loop goroutine.
type Debouncer struct {
	loop   *Loop
	window time.Duration
	timer  *clock.Timer
	gen    uint64
}

// NewDebouncer creates a debouncer with the given quiet window.
func NewDebouncer(l *Loop, window time.Duration) *Debouncer {
	return &Debouncer{loop: l, window: window}
}

// Trigger restarts the window; fn runs if no other trigger follows within it.
func (d *Debouncer) Trigger(fn func()) {
	d.Stop()
	gen := d.gen
	d.timer = d.loop.AfterFunc(d.window, func() {
		// A timer that already fired into the queue cannot be stopped,
		// so stale generations are dropped here.
		if gen != d.gen {
			return
		}
		d.timer = nil
		fn()
	})
}

// Stop cancels any pending call.
func (d *Debouncer) Stop() {
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
