package usecases

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of calls into a single call made once the
// input has been quiet for the configured interval. The last function
// passed to Trigger wins.
type Debouncer struct {
	mu       sync.Mutex
	interval time.Duration
	timer    *time.Timer
	seq      uint64
	stopped  bool
}

// NewDebouncer creates a Debouncer with the given quiet interval.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{interval: interval}
}

// Trigger schedules f, cancelling any call still waiting.
func (d *Debouncer) Trigger(f func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		current := !d.stopped && seq == d.seq
		d.mu.Unlock()
		if current {
			f()
		}
	})
}

// Stop cancels the pending call, if any. Later Triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
