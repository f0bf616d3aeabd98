package watch

import (
	"time"
)

// Debouncer coalesces rapid changes into a single ChangeEvent. The window
// closes once interval passes without a new Trigger.
//
// A Debouncer is owned by a single goroutine: the watcher loop calls
// Trigger for every raw change, selects on C, and calls Flush when C fires.
type Debouncer struct {
	interval time.Duration
	timer    *time.Timer
	armed    bool
	pending  *ChangeSet
}

// NewDebouncer creates a debouncer with the given quiet interval.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{
		interval: interval,
		pending:  NewChangeSet(),
	}
}

// Trigger records a change for path and restarts the quiet interval.
func (d *Debouncer) Trigger(path string, kind ChangeKind) {
	d.pending.Record(path, kind)

	if d.timer == nil {
		d.timer = time.NewTimer(d.interval)
	} else {
		d.timer.Reset(d.interval)
	}

	d.armed = true
}

// C fires once the quiet interval has elapsed. It returns nil while no
// window is open, which blocks forever in a select.
func (d *Debouncer) C() <-chan time.Time {
	if !d.armed {
		return nil
	}

	return d.timer.C
}

// Flush closes the current window and returns its ChangeEvent.
func (d *Debouncer) Flush() ChangeEvent {
	d.armed = false

	return d.pending.Flush()
}

// Stop cancels any pending window.
func (d *Debouncer) Stop() {
	if d.timer != nil {
		d.timer.Stop()
	}

	d.armed = false
}
