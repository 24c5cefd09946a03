package sensor

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Water reports whether the reservoir holds water. The raw level is stored by
// Observe from the line's edge callback; Refresh consumes it on the tick.
type Water struct {
	flag
	raw    atomic.Bool
	db     *Debouncer
	buzzer indicate
	last   time.Time
}

// NewWater creates a water sensor seeded with an initial synchronous reading.
// The buzzer (may be nil) sounds while water is absent.
func NewWater(initial bool, window time.Duration, buzzer Indicator) *Water {
	w := &Water{db: NewDebouncer(window), buzzer: indicate{out: buzzer}}
	w.raw.Store(initial)
	w.db.Seed(initial)
	w.set(initial)
	return w
}

// Observe records a raw level change. It is safe to call from the GPIO
// event goroutine and never blocks.
func (w *Water) Observe(present bool) {
	w.raw.Store(present)
}

// Refresh debounces the latest raw level and updates the alarm.
func (w *Water) Refresh(now time.Time) error {
	present, _ := w.db.Update(w.raw.Load(), now)
	w.set(present)
	w.last = now
	if err := w.buzzer.set(!present); err != nil {
		return fmt.Errorf("set buzzer: %w", err)
	}
	return nil
}

// LastRead returns the time of the last Refresh.
func (w *Water) LastRead() time.Time { return w.last }
