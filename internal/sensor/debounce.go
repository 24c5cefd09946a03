package sensor

import "time"

// Debouncer reports a level only once it has held for the debounce window.
// Until the first level has held for the window, Stable reports false.
type Debouncer struct {
	window       time.Duration
	stable       bool
	baselined    bool
	pending      bool
	hasPending   bool
	pendingSince time.Time
}

// NewDebouncer creates a debouncer with the given window. A zero window
// passes levels straight through.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{window: window}
}

// Seed establishes a baseline without waiting for the window.
func (d *Debouncer) Seed(level bool) {
	d.stable = level
	d.baselined = true
	d.hasPending = false
}

// Update feeds a sample and returns the stable level and whether it changed.
func (d *Debouncer) Update(level bool, now time.Time) (bool, bool) {
	if d.window <= 0 {
		changed := d.baselined && d.stable != level
		d.Seed(level)
		return d.stable, changed
	}

	if d.baselined && level == d.stable {
		d.hasPending = false
		return d.stable, false
	}

	if !d.hasPending || d.pending != level {
		d.pending = level
		d.pendingSince = now
		d.hasPending = true
		return d.stable, false
	}

	if now.Sub(d.pendingSince) < d.window {
		return d.stable, false
	}

	changed := d.baselined && d.stable != level
	d.Seed(level)
	return d.stable, changed
}

// Stable returns the current debounced level.
func (d *Debouncer) Stable() bool { return d.stable }

// Baselined reports whether a level has been established.
func (d *Debouncer) Baselined() bool { return d.baselined }
