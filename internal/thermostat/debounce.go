package thermostat

import "time"

// DefaultUpdateDelay is the quiet period before a desired change is written.
const DefaultUpdateDelay = 5 * time.Second

// Debouncer keeps at most one outstanding timer. Every Schedule replaces the
// previous timer, so a burst of commands produces a single fire.
//
// The fire callback runs on the timer's goroutine and only receives the
// generation of the timer that fired; the owner hands it back to Fired from
// its own loop, which drops fires of timers that were replaced or cancelled
// in the meantime.
type Debouncer struct {
	delay time.Duration
	fire  func(gen uint64)
	timer *time.Timer
	gen   uint64
}

func NewDebouncer(delay time.Duration, fire func(gen uint64)) *Debouncer {
	if delay <= 0 {
		delay = DefaultUpdateDelay
	}
	return &Debouncer{delay: delay, fire: fire}
}

// Schedule cancels any armed timer and arms a new one.
func (d *Debouncer) Schedule() {
	d.Cancel()
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

// Cancel disarms the timer. It is a no-op when nothing is armed.
func (d *Debouncer) Cancel() {
	if d.timer == nil {
		return
	}
	d.timer.Stop()
	d.timer = nil
}

// Armed reports whether a timer is outstanding.
func (d *Debouncer) Armed() bool {
	return d.timer != nil
}

// Fired consumes a fire notification. It returns false for stale generations.
func (d *Debouncer) Fired(gen uint64) bool {
	if d.timer == nil || gen != d.gen {
		return false
	}
	d.timer = nil
	return true
}

func (d *Debouncer) Delay() time.Duration {
	return d.delay
}
